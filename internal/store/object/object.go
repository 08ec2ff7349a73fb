// Package object implements the content-addressed store. Objects are
// immutable byte blobs written once under their own digest; writes go
// through a temp file and a rename so a crash never leaves a partially
// written object under a valid id.
package object

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/keshon/ckpt/internal/fs"
	"github.com/keshon/ckpt/internal/hashing"
)

var (
	// ErrNotFound reports an id with no stored object.
	ErrNotFound = errors.New("object not found")
	// ErrCorrupt reports stored bytes that no longer match their digest.
	ErrCorrupt = errors.New("object corrupt")
)

const objectExt = ".bin"

// Store is a content-addressed object store rooted at one directory.
type Store struct {
	Dir  string
	FS   fs.FS
	Hash *hashing.Hasher

	// VerifyOnRead re-hashes objects in Get and fails with ErrCorrupt
	// on mismatch.
	VerifyOnRead bool
}

// New creates a Store over dir.
func New(dir string, fsys fs.FS, h *hashing.Hasher) *Store {
	return &Store{Dir: dir, FS: fsys, Hash: h, VerifyOnRead: true}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.Dir, id+objectExt)
}

// Has reports whether an object with the given id is stored.
func (s *Store) Has(id string) bool {
	return s.FS.Exists(s.path(id))
}

// Put stores data under its digest and returns the digest. Storing the
// same bytes twice is a no-op.
func (s *Store) Put(data []byte) (string, error) {
	id := s.Hash.Sum(data)
	if s.Has(id) {
		return id, nil
	}
	if err := s.write(id, data); err != nil {
		return "", err
	}
	return id, nil
}

// PutFile stores a file's content. The file is digested first so that
// already-stored content is never read twice.
func (s *Store) PutFile(path string) (string, error) {
	id, err := s.Hash.SumFile(path)
	if err != nil {
		return "", fmt.Errorf("hash %q: %w", path, err)
	}
	if s.Has(id) {
		return id, nil
	}
	data, err := s.FS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", path, err)
	}
	if err := s.write(id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Get returns the bytes stored under id.
func (s *Store) Get(id string) ([]byte, error) {
	data, err := s.FS.ReadFile(s.path(id))
	if err != nil {
		if s.FS.IsNotExist(err) {
			return nil, fmt.Errorf("object %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read object %q: %w", id, err)
	}

	if s.VerifyOnRead {
		if actual := s.Hash.Sum(data); actual != id {
			return nil, fmt.Errorf("object %q hashed to %q: %w", id, actual, ErrCorrupt)
		}
	}
	return data, nil
}

// Delete removes a stored object. Missing objects are not an error; the
// sweep in Clean may race its own reachability snapshot.
func (s *Store) Delete(id string) error {
	err := s.FS.Remove(s.path(id))
	if err != nil && !s.FS.IsNotExist(err) {
		return fmt.Errorf("delete object %q: %w", id, err)
	}
	return nil
}

// IDs returns every stored object id.
func (s *Store) IDs() ([]string, error) {
	entries, err := s.FS.ReadDir(s.Dir)
	if err != nil {
		if s.FS.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read objects dir %q: %w", s.Dir, err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, objectExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, objectExt))
	}
	return ids, nil
}

// Size returns the total stored bytes in this store.
func (s *Store) Size() (int64, error) {
	entries, err := s.FS.ReadDir(s.Dir)
	if err != nil {
		if s.FS.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read objects dir %q: %w", s.Dir, err)
	}

	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := s.FS.Stat(filepath.Join(s.Dir, e.Name()))
		if err != nil {
			continue
		}
		total += fi.Size()
	}
	return total, nil
}

// CleanupTemp removes orphaned temp files left by interrupted writes.
func (s *Store) CleanupTemp() error {
	entries, err := s.FS.ReadDir(s.Dir)
	if err != nil {
		if s.FS.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "tmp-") || strings.HasPrefix(name, ".tmp-") {
			_ = s.FS.Remove(filepath.Join(s.Dir, name))
		}
	}
	return nil
}

func (s *Store) write(id string, data []byte) error {
	if err := s.FS.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create objects dir: %w", err)
	}

	tmp, tmpPath, err := s.FS.CreateTempFile(s.Dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %q: %w", s.Dir, err)
	}
	defer s.FS.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp object: %w", err)
	}

	if err := s.FS.Rename(tmpPath, s.path(id)); err != nil {
		return fmt.Errorf("rename temp object to %q: %w", id, err)
	}
	return nil
}
