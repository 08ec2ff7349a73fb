package engine

import (
	"path"
	"sort"

	"github.com/keshon/ckpt/internal/store/ref"
	"github.com/keshon/ckpt/internal/store/tree"
)

// ChangeType classifies a diff entry.
type ChangeType string

const (
	Added    ChangeType = "added"
	Deleted  ChangeType = "deleted"
	Modified ChangeType = "modified"
)

// Change is one path-level difference between two checkpoints.
type Change struct {
	Type ChangeType `json:"type"`
	Path string     `json:"path"`
}

// Diff compares the target checkpoint's tree against HEAD's tree, path
// by path, without touching the working tree. Present only in target
// means the path was deleted since then; present only in HEAD means it
// was added; differing content means modified.
func (e *Engine) Diff(idOrPrefix string) ([]Change, error) {
	targetID, err := e.Commits.ResolvePrefix(idOrPrefix)
	if err != nil {
		return nil, err
	}
	target, err := e.Commits.Get(targetID)
	if err != nil {
		return nil, err
	}

	var currentTree string
	if head, ok, err := e.Refs.Get(ref.Head); err != nil {
		return nil, err
	} else if ok {
		cur, err := e.Commits.Get(head)
		if err != nil {
			return nil, err
		}
		currentTree = cur.TreeID
	}

	var changes []Change
	if err := e.compareTrees(target.TreeID, currentTree, "", &changes); err != nil {
		return nil, err
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// compareTrees walks two trees in lockstep. Identical subtree hashes
// short-circuit whole directories.
func (e *Engine) compareTrees(targetID, currentID, prefix string, out *[]Change) error {
	if targetID == currentID {
		return nil
	}

	targetEntries, err := e.loadEntries(targetID)
	if err != nil {
		return err
	}
	currentEntries, err := e.loadEntries(currentID)
	if err != nil {
		return err
	}

	names := map[string]bool{}
	for n := range targetEntries {
		names[n] = true
	}
	for n := range currentEntries {
		names[n] = true
	}

	for name := range names {
		p := name
		if prefix != "" {
			p = path.Join(prefix, name)
		}
		t, inTarget := targetEntries[name]
		c, inCurrent := currentEntries[name]

		switch {
		case inTarget && !inCurrent:
			if err := e.expand(t, p, Deleted, out); err != nil {
				return err
			}
		case !inTarget && inCurrent:
			if err := e.expand(c, p, Added, out); err != nil {
				return err
			}
		case t.Hash == c.Hash && t.Kind == c.Kind:
			// unchanged
		case t.Kind == tree.KindDir && c.Kind == tree.KindDir:
			if err := e.compareTrees(t.Hash, c.Hash, p, out); err != nil {
				return err
			}
		case t.Kind != tree.KindDir && c.Kind != tree.KindDir:
			*out = append(*out, Change{Type: Modified, Path: p})
		default:
			// A directory replaced a file or vice versa: the target
			// side is gone, the current side is new.
			if err := e.expand(t, p, Deleted, out); err != nil {
				return err
			}
			if err := e.expand(c, p, Added, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) loadEntries(id string) (map[string]tree.Entry, error) {
	if id == "" {
		return nil, nil
	}
	t, err := tree.Load(e.Objects, id)
	if err != nil {
		return nil, err
	}
	m := make(map[string]tree.Entry, len(t.Entries))
	for _, en := range t.Entries {
		m[en.Name] = en
	}
	return m, nil
}

// expand records one change for a file entry, or one per file beneath a
// directory entry.
func (e *Engine) expand(en tree.Entry, p string, typ ChangeType, out *[]Change) error {
	if en.Kind != tree.KindDir {
		*out = append(*out, Change{Type: typ, Path: p})
		return nil
	}
	files, err := tree.Flatten(e.Objects, en.Hash)
	if err != nil {
		return err
	}
	for rel := range files {
		*out = append(*out, Change{Type: typ, Path: path.Join(p, rel)})
	}
	return nil
}
