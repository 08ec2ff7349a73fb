package tree

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	ifs "github.com/keshon/ckpt/internal/fs"
	"github.com/keshon/ckpt/internal/store/object"
	"github.com/keshon/ckpt/internal/util"
)

// Builder turns a filtered directory into a stored tree object.
type Builder struct {
	Store *object.Store
	FS    ifs.FS

	// Skip receives a slash-separated path relative to the build root
	// and reports whether it must be excluded. Nil skips nothing.
	Skip func(rel string) bool

	// OnFile is invoked as each scanned file lands in the store. It must
	// be safe for concurrent use. Nil is ignored.
	OnFile func()
}

// NewBuilder creates a Builder over the given stores.
func NewBuilder(store *object.Store, fsys ifs.FS) *Builder {
	return &Builder{Store: store, FS: fsys}
}

func (b *Builder) skip(rel string) bool {
	return b.Skip != nil && b.Skip(rel)
}

// Build scans root, stores every blob and sub-tree, and returns the root
// tree id. Entries are sorted by name before hashing, so two directories
// with identical post-filter contents always produce the same id.
func (b *Builder) Build(root string) (string, error) {
	files, err := b.scan(root)
	if err != nil {
		return "", err
	}

	// Warm the object store in parallel; tree assembly below reuses the
	// hashes instead of re-reading file content.
	hashes := make(map[string]string, len(files))
	var mu sync.Mutex
	err = util.Parallel(files, util.WorkerCount(), func(rel string) error {
		id, err := b.Store.PutFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		mu.Lock()
		hashes[rel] = id
		mu.Unlock()
		if b.OnFile != nil {
			b.OnFile()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store blobs: %w", err)
	}

	return b.buildDir(root, "", hashes)
}

// scan returns the relative slash paths of all regular files under root,
// sorted, honoring the skip predicate.
func (b *Builder) scan(root string) ([]string, error) {
	var files []string
	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		entries, err := b.FS.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read dir %q: %w", dir, err)
		}
		for _, e := range entries {
			childRel := e.Name()
			if rel != "" {
				childRel = rel + "/" + e.Name()
			}
			if b.skip(childRel) {
				continue
			}
			child := filepath.Join(dir, e.Name())
			if e.IsDir() {
				if err := walk(child, childRel); err != nil {
					return err
				}
				continue
			}
			fi, err := b.FS.Lstat(child)
			if err != nil {
				return fmt.Errorf("lstat %q: %w", child, err)
			}
			if fi.Mode()&fs.ModeSymlink != 0 {
				continue // captured as link targets during assembly
			}
			if !fi.Mode().IsRegular() {
				continue // sockets, devices and the like are not captured
			}
			files = append(files, childRel)
		}
		return nil
	}
	if err := walk(root, ""); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (b *Builder) buildDir(dir, rel string, hashes map[string]string) (string, error) {
	entries, err := b.FS.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir %q: %w", dir, err)
	}

	t := &Tree{}
	for _, e := range entries {
		childRel := e.Name()
		if rel != "" {
			childRel = rel + "/" + e.Name()
		}
		if b.skip(childRel) {
			continue
		}
		child := filepath.Join(dir, e.Name())

		if e.IsDir() {
			id, err := b.buildDir(child, childRel, hashes)
			if err != nil {
				return "", err
			}
			t.Entries = append(t.Entries, Entry{Name: e.Name(), Kind: KindDir, Hash: id})
			continue
		}

		fi, err := b.FS.Lstat(child)
		if err != nil {
			return "", fmt.Errorf("lstat %q: %w", child, err)
		}

		if fi.Mode()&fs.ModeSymlink != 0 {
			target, err := b.FS.Readlink(child)
			if err != nil {
				return "", fmt.Errorf("readlink %q: %w", child, err)
			}
			id, err := b.Store.Put([]byte(target))
			if err != nil {
				return "", err
			}
			t.Entries = append(t.Entries, Entry{Name: e.Name(), Kind: KindSymlink, Hash: id})
			continue
		}

		if !fi.Mode().IsRegular() {
			continue
		}

		id, ok := hashes[childRel]
		if !ok {
			// The file appeared after the scan pass; store it now.
			id, err = b.Store.PutFile(child)
			if err != nil {
				return "", err
			}
		}
		t.Entries = append(t.Entries, Entry{Name: e.Name(), Kind: KindFile, Hash: id})
	}

	data, err := t.Encode()
	if err != nil {
		return "", err
	}
	id, err := b.Store.Put(data)
	if err != nil {
		return "", fmt.Errorf("store tree %q: %w", rel, err)
	}
	return id, nil
}
