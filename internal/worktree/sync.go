// Package worktree synchronizes a live directory with stored trees in
// both directions, honoring ignore rules. Ignored paths are never read,
// written or deleted.
package worktree

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/keshon/ckpt/internal/fs"
	"github.com/keshon/ckpt/internal/progress"
	"github.com/keshon/ckpt/internal/store/object"
	"github.com/keshon/ckpt/internal/store/tree"
	"github.com/keshon/ckpt/internal/util"
)

// Sync captures and materializes working trees.
type Sync struct {
	FS      fs.FS
	Objects *object.Store
	Ignore  *Ignore

	// Verbose renders a progress tracker during long runs.
	Verbose bool
}

// New creates a Sync.
func New(objects *object.Store, fsys fs.FS, ignore *Ignore) *Sync {
	if ignore == nil {
		ignore = NewIgnore(nil)
	}
	return &Sync{FS: fsys, Objects: objects, Ignore: ignore}
}

// Capture stores the filtered content of root and returns the tree id.
func (s *Sync) Capture(root string) (string, error) {
	b := tree.NewBuilder(s.Objects, s.FS)
	b.Skip = s.Ignore.Match

	if s.Verbose {
		bar := progress.NewTracker(0, "Capturing files ")
		defer bar.Finish()
		b.OnFile = bar.Increment
	}

	id, err := b.Build(root)
	if err != nil {
		return "", fmt.Errorf("capture %q: %w", root, err)
	}
	return id, nil
}

// Materialize overwrites the non-ignored contents of root with the
// stored tree: every tree entry is written out, every live path absent
// from the tree is removed, and directories left empty are swept.
func (s *Sync) Materialize(root, treeID string) error {
	files, err := tree.Flatten(s.Objects, treeID)
	if err != nil {
		return err
	}
	dirs, err := tree.DirPaths(s.Objects, treeID)
	if err != nil {
		return err
	}

	for _, d := range dirs {
		if err := s.FS.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0o755); err != nil {
			return fmt.Errorf("create dir %q: %w", d, err)
		}
	}

	paths := util.SortedKeys(files)

	var bar *progress.Tracker
	if s.Verbose {
		bar = progress.NewTracker(len(paths), "Restoring files ")
		defer bar.Finish()
	}

	err = util.Parallel(paths, util.WorkerCount(), func(rel string) error {
		if err := s.restorePath(root, rel, files[rel]); err != nil {
			return err
		}
		if bar != nil {
			bar.Increment()
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.removeUntracked(root, files, dirs)
}

func (s *Sync) restorePath(root, rel string, e tree.Entry) error {
	full := filepath.Join(root, filepath.FromSlash(rel))

	data, err := s.Objects.Get(e.Hash)
	if err != nil {
		return fmt.Errorf("restore %q: %w", rel, err)
	}

	if fi, err := s.FS.Lstat(full); err == nil {
		if e.Kind == tree.KindFile && fi.Mode().IsRegular() {
			// Unchanged files are left alone.
			if existing, err := s.FS.ReadFile(full); err == nil && s.Objects.Hash.Sum(existing) == e.Hash {
				return nil
			}
		} else {
			// Kind changed (file vs symlink); replace the path outright.
			if err := s.FS.Remove(full); err != nil {
				return fmt.Errorf("replace %q: %w", rel, err)
			}
		}
	}

	if err := s.FS.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create dir for %q: %w", rel, err)
	}

	if e.Kind == tree.KindSymlink {
		_ = s.FS.Remove(full)
		if err := s.FS.Symlink(string(data), full); err != nil {
			return fmt.Errorf("symlink %q: %w", rel, err)
		}
		return nil
	}

	tmp, tmpPath, err := s.FS.CreateTempFile(filepath.Dir(full), ".tmp-restore-*")
	if err != nil {
		return fmt.Errorf("create temp for %q: %w", rel, err)
	}
	defer s.FS.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %q: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %q: %w", rel, err)
	}
	if err := s.FS.Rename(tmpPath, full); err != nil {
		return fmt.Errorf("rename into %q: %w", rel, err)
	}
	return nil
}

// removeUntracked deletes every non-ignored live path that the tree does
// not describe, then sweeps directories left empty.
func (s *Sync) removeUntracked(root string, files map[string]tree.Entry, dirs []string) error {
	keepDir := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		keepDir[d] = true
	}
	// Parents of kept files stay even if the tree had no explicit entry.
	for rel := range files {
		for d := path.Dir(rel); d != "." && d != "/"; d = path.Dir(d) {
			keepDir[d] = true
		}
	}

	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		entries, err := s.FS.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read dir %q: %w", dir, err)
		}
		for _, e := range entries {
			childRel := e.Name()
			if rel != "" {
				childRel = rel + "/" + e.Name()
			}
			if s.Ignore.Match(childRel) {
				continue
			}
			child := filepath.Join(dir, e.Name())

			if e.IsDir() {
				if err := walk(child, childRel); err != nil {
					return err
				}
				if keepDir[childRel] {
					continue
				}
				if left, err := s.FS.ReadDir(child); err == nil && len(left) == 0 {
					_ = s.FS.Remove(child)
				}
				continue
			}

			if _, ok := files[childRel]; !ok {
				if err := s.FS.Remove(child); err != nil && !s.FS.IsNotExist(err) {
					return fmt.Errorf("remove %q: %w", childRel, err)
				}
			}
		}
		return nil
	}
	return walk(root, "")
}
