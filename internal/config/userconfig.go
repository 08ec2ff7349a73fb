package config

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/keshon/ckpt/internal/fs"
)

// UserConfigFile is the user-level settings file under the storage root.
const UserConfigFile = "config.yaml"

// Features toggles optional engine behavior.
type Features struct {
	// AutoCheckpoint enables checkpoint creation from hook events.
	AutoCheckpoint bool `yaml:"auto_checkpoint"`
	// VerifyOnRead re-hashes objects when they are read back.
	VerifyOnRead bool `yaml:"verify_on_read"`
}

// UserConfig is the persisted user configuration.
type UserConfig struct {
	Ignore   []string `yaml:"ignore"`
	Features Features `yaml:"features"`
}

// DefaultUserConfig returns the configuration used when no file exists.
func DefaultUserConfig() UserConfig {
	return UserConfig{
		Features: Features{
			AutoCheckpoint: true,
			VerifyOnRead:   true,
		},
	}
}

// LoadUserConfig reads config.yaml under the storage root. A missing file
// is not an error; defaults apply.
func LoadUserConfig(fsys fs.FS, storageRoot string) (UserConfig, error) {
	cfg := DefaultUserConfig()

	path := filepath.Join(storageRoot, UserConfigFile)
	data, err := fsys.ReadFile(path)
	if err != nil {
		if fsys.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read user config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultUserConfig(), fmt.Errorf("parse user config %q: %w", path, err)
	}
	return cfg, nil
}

// SaveUserConfig writes config.yaml under the storage root.
func SaveUserConfig(fsys fs.FS, storageRoot string, cfg UserConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode user config: %w", err)
	}
	if err := fsys.MkdirAll(storageRoot, 0o755); err != nil {
		return fmt.Errorf("create storage root %q: %w", storageRoot, err)
	}
	path := filepath.Join(storageRoot, UserConfigFile)
	if err := fsys.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write user config %q: %w", path, err)
	}
	return nil
}

// LoadIgnoreFile reads the project-level .ckptignore. Blank lines and
// comments are skipped. A missing file yields no rules.
func LoadIgnoreFile(fsys fs.FS, projectRoot string) []string {
	data, err := fsys.ReadFile(filepath.Join(projectRoot, IgnoreFileName))
	if err != nil {
		return nil
	}

	var rules []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	return rules
}

// IgnoreRules combines user config rules and the project's .ckptignore
// into one ordered list. The built-in DefaultIgnored rules are appended
// by the engine itself; its own storage and VCS metadata must stay
// untouchable regardless of configuration.
func IgnoreRules(user UserConfig, projectRules []string) []string {
	rules := make([]string, 0, len(user.Ignore)+len(projectRules))
	rules = append(rules, user.Ignore...)
	rules = append(rules, projectRules...)
	return rules
}
