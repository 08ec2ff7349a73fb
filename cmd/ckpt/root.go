package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keshon/ckpt/internal/config"
	"github.com/keshon/ckpt/internal/engine"
	"github.com/keshon/ckpt/internal/fs"
)

var (
	flagProject string
	flagQuiet   bool
)

var rootCmd = &cobra.Command{
	Use:           "ckpt",
	Short:         "Undoable snapshots for a working directory",
	Long:          "ckpt captures a project tree as immutable checkpoints and restores, undoes and diffs them.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "p", "", "project directory (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress progress output")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// openEngine wires an engine for the selected project, combining user
// config and the project's .ckptignore into the ignore rule list.
func openEngine() (*engine.Engine, error) {
	projectPath := flagProject
	if projectPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		projectPath = cwd
	}

	fsys := fs.NewOSFS()
	storageRoot := config.StorageRoot()

	userCfg, err := config.LoadUserConfig(fsys, storageRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	return engine.New(engine.Options{
		ProjectPath: projectPath,
		StorageRoot: storageRoot,
		IgnoreRules: config.IgnoreRules(userCfg, config.LoadIgnoreFile(fsys, projectPath)),
		SkipVerify:  !userCfg.Features.VerifyOnRead,
		Verbose:     !flagQuiet,
	})
}
