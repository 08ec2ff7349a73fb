// Package ref implements the mutable named pointers of a project. Refs
// are the only mutable state in the store; writes go through a temp file
// and a rename so a ref is never observed partially written.
package ref

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/keshon/ckpt/internal/fs"
)

const (
	// Head points at the currently active checkpoint.
	Head = "HEAD"
	// OrigHead is the single-slot undo pointer written just before a
	// restore mutates HEAD.
	OrigHead = "ORIG_HEAD"
)

// Store keeps one pointer file per ref name under Dir.
type Store struct {
	Dir string
	FS  fs.FS
}

// NewStore creates a Store over dir.
func NewStore(dir string, fsys fs.FS) *Store {
	return &Store{Dir: dir, FS: fsys}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Get returns the commit id a ref points at, and whether the ref exists.
func (s *Store) Get(name string) (string, bool, error) {
	data, err := s.FS.ReadFile(s.path(name))
	if err != nil {
		if s.FS.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read ref %q: %w", name, err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", false, nil
	}
	return id, true, nil
}

// Set overwrites a ref atomically.
func (s *Store) Set(name, commitID string) error {
	if err := s.FS.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create refs dir: %w", err)
	}

	tmp, tmpPath, err := s.FS.CreateTempFile(s.Dir, ".tmp-ref-*")
	if err != nil {
		return fmt.Errorf("create temp ref: %w", err)
	}
	defer s.FS.Remove(tmpPath)

	if _, err := tmp.Write([]byte(commitID + "\n")); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ref: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ref: %w", err)
	}

	if err := s.FS.Rename(tmpPath, s.path(name)); err != nil {
		return fmt.Errorf("rename ref %q: %w", name, err)
	}
	return nil
}

// Delete removes a ref. A missing ref is not an error.
func (s *Store) Delete(name string) error {
	err := s.FS.Remove(s.path(name))
	if err != nil && !s.FS.IsNotExist(err) {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	return nil
}
