// Package config resolves the process-wide storage root, per-project
// namespaces and user-level settings. The engine itself only consumes the
// resolved paths and rule lists; it never reads configuration files.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keshon/ckpt/internal/fs"
	"github.com/keshon/ckpt/internal/hashing"
	"github.com/keshon/ckpt/internal/util"
)

const (
	// StorageRootEnv overrides the default storage root location.
	StorageRootEnv = "CKPT_HOME"

	storageRootName = ".ckpt"

	ObjectsDir = "objects"
	CommitsDir = "commits"
	RefsDir    = "refs"
	ConfigFile = "config.json"

	// IgnoreFileName is the per-project ignore rule file.
	IgnoreFileName = ".ckptignore"

	// projectIDLen is the hex-prefix length of a project id.
	projectIDLen = 16
)

// DefaultIgnored are rules applied to every capture and materialize,
// regardless of user configuration.
var DefaultIgnored = []string{
	storageRootName,
	IgnoreFileName,
	".git",
	".hg",
	".svn",
	"node_modules",
}

// StorageRoot returns the process-wide storage root directory.
func StorageRoot() string {
	if v := os.Getenv(StorageRootEnv); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return storageRootName
	}
	return filepath.Join(home, storageRootName)
}

// CanonicalPath resolves symlinks and relative segments so the same
// directory always yields the same path string.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.Clean(abs), nil
}

// ProjectID derives the stable storage namespace key for a project path.
// Same canonical path, same id.
func ProjectID(path string) (string, error) {
	canon, err := CanonicalPath(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(sum[:])[:projectIDLen], nil
}

// Project holds the resolved paths of one project namespace.
type Project struct {
	ID   string // namespace key under the storage root
	Path string // canonical project path
	Root string // <storage root>/<id>
}

// NewProject resolves a project namespace under the given storage root.
func NewProject(storageRoot, projectPath string) (*Project, error) {
	canon, err := CanonicalPath(projectPath)
	if err != nil {
		return nil, err
	}
	id, err := ProjectID(canon)
	if err != nil {
		return nil, err
	}
	return &Project{
		ID:   id,
		Path: canon,
		Root: filepath.Join(storageRoot, id),
	}, nil
}

func (p *Project) ObjectsPath() string { return filepath.Join(p.Root, ObjectsDir) }
func (p *Project) CommitsPath() string { return filepath.Join(p.Root, CommitsDir) }
func (p *Project) RefsPath() string    { return filepath.Join(p.Root, RefsDir) }
func (p *Project) ConfigPath() string  { return filepath.Join(p.Root, ConfigFile) }

// ProjectConfig is persisted as config.json inside a project namespace.
type ProjectConfig struct {
	Hash string `json:"hash"`
	Path string `json:"path"`
}

// SaveConfig writes the project config.
func (p *Project) SaveConfig(fsys fs.FS, cfg ProjectConfig) error {
	if cfg.Hash == "" {
		cfg.Hash = hashing.DefaultAlgo
	}
	if cfg.Path == "" {
		cfg.Path = p.Path
	}
	if err := util.WriteJSON(fsys, p.ConfigPath(), cfg); err != nil {
		return fmt.Errorf("save project config: %w", err)
	}
	return nil
}

// LoadConfig reads the project config. A missing file yields defaults.
func (p *Project) LoadConfig(fsys fs.FS) ProjectConfig {
	var cfg ProjectConfig
	if err := util.ReadJSON(fsys, p.ConfigPath(), &cfg); err != nil {
		return ProjectConfig{Hash: hashing.DefaultAlgo, Path: p.Path}
	}
	if cfg.Hash == "" {
		cfg.Hash = hashing.DefaultAlgo
	}
	return cfg
}
