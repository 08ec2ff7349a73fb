package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/keshon/ckpt/internal/config"
	"github.com/keshon/ckpt/internal/engine"
	"github.com/keshon/ckpt/internal/fs"
	"github.com/keshon/ckpt/internal/hook"
)

func init() {
	rootCmd.AddCommand(
		newCreateCmd(),
		newListCmd(),
		newRestoreCmd(),
		newUndoCmd(),
		newDiffCmd(),
		newStatusCmd(),
		newCleanCmd(),
		newHookCmd(),
	)
}

func newCreateCmd() *cobra.Command {
	var session string
	var promptIndex int

	cmd := &cobra.Command{
		Use:     "create [message]",
		Aliases: []string{"save"},
		Short:   "Capture the working tree as a new checkpoint",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := "checkpoint"
			if len(args) > 0 {
				message = args[0]
			}

			eng, err := openEngine()
			if err != nil {
				return err
			}
			cp, err := eng.Create(message, session, promptIndex)
			if err != nil {
				return err
			}
			fmt.Printf("Checkpoint %s created\n", shortID(cp.ID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&session, "session", "s", "", "session id to record with the checkpoint")
	cmd.Flags().IntVar(&promptIndex, "prompt", 0, "prompt index within the session")
	return cmd
}

func newListCmd() *cobra.Command {
	var session string
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"log"},
		Short:   "List checkpoints, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			cps, err := eng.List(engine.ListOptions{SessionPrefix: session, Limit: limit})
			if err != nil {
				return err
			}
			if len(cps) == 0 {
				fmt.Println("No checkpoints yet")
				return nil
			}
			for _, cp := range cps {
				line := fmt.Sprintf("%s  %s  %s", shortID(cp.ID), cp.Timestamp, cp.Message)
				if cp.SessionID != engine.ManualSession {
					line += fmt.Sprintf("  [session %s", shortID(cp.SessionID))
					if cp.PromptIndex > 0 {
						line += fmt.Sprintf(" #%d", cp.PromptIndex)
					}
					line += "]"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&session, "session", "s", "", "filter by session id prefix")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of checkpoints to show")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore the working tree to a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			if err := eng.Restore(args[0]); err != nil {
				return err
			}
			fmt.Printf("Restored to %s (undo with `ckpt undo`)\n", shortID(args[0]))
			return nil
		},
	}
}

func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "undo",
		Aliases: []string{"cancel"},
		Short:   "Undo the most recent restore",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			if err := eng.CancelRestore(); err != nil {
				return err
			}
			fmt.Println("Restore undone")
			return nil
		},
	}
}

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <id>",
		Short: "Show path-level changes between a checkpoint and the current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			changes, err := eng.Diff(args[0])
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				fmt.Println("No differences")
				return nil
			}
			for _, c := range changes {
				fmt.Printf("%-9s %s\n", c.Type, c.Path)
			}
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show project checkpoint status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			st, err := eng.Status()
			if err != nil {
				return err
			}
			fmt.Printf("Project:     %s\n", st.ProjectPath)
			fmt.Printf("Checkpoints: %d\n", st.TotalCheckpoints)
			if st.Latest != nil {
				fmt.Printf("Latest:      %s  %s\n", shortID(st.Latest.ID), st.Latest.Message)
			}
			fmt.Printf("Storage:     %s\n", formatBytes(st.StorageBytes))
			return nil
		},
	}
}

func newCleanCmd() *cobra.Command {
	var days int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Prune checkpoints older than a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			cutoff := time.Now().AddDate(0, 0, -days)
			removed, err := eng.Clean(cutoff, dryRun)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Printf("%d checkpoint(s) would be removed\n", removed)
			} else {
				fmt.Printf("%d checkpoint(s) removed\n", removed)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "older-than", 30, "prune checkpoints older than this many days")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only report what would be removed")
	return cmd
}

func newHookCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "hook",
		Short:  "Create a checkpoint from a hook event on stdin",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := hook.NewRunner(nil)

			ev, err := hook.Decode(cmd.InOrStdin())
			if err != nil {
				// Hooks must stay silent failures for the caller.
				fmt.Fprintf(os.Stderr, "ckpt hook: %v\n", err)
				return nil
			}

			fsys := fs.NewOSFS()
			storageRoot := config.StorageRoot()
			userCfg, _ := config.LoadUserConfig(fsys, storageRoot)
			if !userCfg.Features.AutoCheckpoint {
				return nil
			}

			projectPath := ev.CWD
			if projectPath == "" {
				projectPath, _ = os.Getwd()
			}

			eng, err := engine.New(engine.Options{
				ProjectPath: projectPath,
				StorageRoot: storageRoot,
				IgnoreRules: config.IgnoreRules(userCfg, config.LoadIgnoreFile(fsys, projectPath)),
				SkipVerify:  !userCfg.Features.VerifyOnRead,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "ckpt hook: %v\n", err)
				return nil
			}

			if cp := runner.HandlePrompt(eng, ev); cp != nil {
				fmt.Fprintf(os.Stderr, "ckpt: checkpoint %s\n", shortID(cp.ID))
			}
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
