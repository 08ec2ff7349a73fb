// Package tree models directory snapshots. A tree is an ordered list of
// named entries (files, subdirectories, symlinks) referencing content by
// digest. Trees are stored in the object store under the digest of their
// canonical encoding, so identical directory contents hash identically
// anywhere in history.
package tree

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
)

// Kind classifies a tree entry.
type Kind string

const (
	KindFile    Kind = "file"
	KindDir     Kind = "dir"
	KindSymlink Kind = "symlink"
)

// Entry is one named member of a tree. For files the hash addresses the
// blob content, for directories the sub-tree object, for symlinks a blob
// holding the link target path. Symlinks are never followed.
type Entry struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Hash string `json:"hash"`
}

// Tree is a directory snapshot with entries sorted by name.
type Tree struct {
	Entries []Entry `json:"entries"`
}

// Sort orders entries by name. Encoding requires sorted entries so the
// digest is independent of traversal order.
func (t *Tree) Sort() {
	sort.Slice(t.Entries, func(i, j int) bool { return t.Entries[i].Name < t.Entries[j].Name })
}

// Encode returns the canonical serialized form.
func (t *Tree) Encode() ([]byte, error) {
	t.Sort()
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}
	return data, nil
}

// Decode parses a canonical tree encoding.
func Decode(data []byte) (*Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return &t, nil
}

// Getter is the object-store read surface trees need.
type Getter interface {
	Get(id string) ([]byte, error)
}

// Load reads a tree object from the store.
func Load(store Getter, id string) (*Tree, error) {
	data, err := store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("load tree %q: %w", id, err)
	}
	return Decode(data)
}

// Flatten returns every non-directory entry reachable from the tree id,
// keyed by slash-separated path relative to the tree root.
func Flatten(store Getter, id string) (map[string]Entry, error) {
	out := make(map[string]Entry)
	if err := flattenInto(store, id, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(store Getter, id, prefix string, out map[string]Entry) error {
	t, err := Load(store, id)
	if err != nil {
		return err
	}
	for _, e := range t.Entries {
		p := e.Name
		if prefix != "" {
			p = path.Join(prefix, e.Name)
		}
		switch e.Kind {
		case KindDir:
			if err := flattenInto(store, e.Hash, p, out); err != nil {
				return err
			}
		default:
			out[p] = e
		}
	}
	return nil
}

// DirPaths returns every directory path reachable from the tree id,
// including empty ones, relative to the tree root.
func DirPaths(store Getter, id string) ([]string, error) {
	var dirs []string
	var walk func(id, prefix string) error
	walk = func(id, prefix string) error {
		t, err := Load(store, id)
		if err != nil {
			return err
		}
		for _, e := range t.Entries {
			if e.Kind != KindDir {
				continue
			}
			p := e.Name
			if prefix != "" {
				p = path.Join(prefix, e.Name)
			}
			dirs = append(dirs, p)
			if err := walk(e.Hash, p); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(id, ""); err != nil {
		return nil, err
	}
	sort.Strings(dirs)
	return dirs, nil
}
