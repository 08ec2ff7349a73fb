package worktree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/keshon/ckpt/internal/fs"
	"github.com/keshon/ckpt/internal/hashing"
	"github.com/keshon/ckpt/internal/store/object"
)

func newTestSync(t *testing.T, rules []string) *Sync {
	t.Helper()
	h, err := hashing.New("")
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	store := object.New(t.TempDir(), fs.NewOSFS(), h)
	return New(store, fs.NewOSFS(), NewIgnore(rules))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func TestCaptureMaterialize_RoundTrip(t *testing.T) {
	s := newTestSync(t, nil)

	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")
	writeFile(t, root, "sub/b.txt", "beta")
	writeFile(t, root, "sub/deep/c.txt", "gamma")

	id, err := s.Capture(root)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	// Mutate, add, delete.
	writeFile(t, root, "a.txt", "changed")
	writeFile(t, root, "new.txt", "fresh")
	if err := os.Remove(filepath.Join(root, "sub", "b.txt")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if err := s.Materialize(root, id); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	if got := readFile(t, root, "a.txt"); got != "alpha" {
		t.Errorf("a.txt = %q, want alpha", got)
	}
	if got := readFile(t, root, "sub/b.txt"); got != "beta" {
		t.Errorf("sub/b.txt = %q, want beta", got)
	}
	if got := readFile(t, root, "sub/deep/c.txt"); got != "gamma" {
		t.Errorf("sub/deep/c.txt = %q, want gamma", got)
	}
	if _, err := os.Stat(filepath.Join(root, "new.txt")); !os.IsNotExist(err) {
		t.Errorf("untracked new.txt survived materialize")
	}
}

func TestMaterialize_IgnoredUntouched(t *testing.T) {
	s := newTestSync(t, []string{"scratch/**", "*.log"})

	root := t.TempDir()
	writeFile(t, root, "kept.txt", "v1")
	writeFile(t, root, "scratch/wip.txt", "work in progress")
	writeFile(t, root, "debug.log", "noise")

	id, err := s.Capture(root)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	writeFile(t, root, "kept.txt", "v2")
	writeFile(t, root, "scratch/wip.txt", "still here")

	if err := s.Materialize(root, id); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	if got := readFile(t, root, "kept.txt"); got != "v1" {
		t.Errorf("kept.txt = %q, want v1", got)
	}
	// Ignored paths survive both capture and the untracked sweep.
	if got := readFile(t, root, "scratch/wip.txt"); got != "still here" {
		t.Errorf("ignored file was touched: %q", got)
	}
	if got := readFile(t, root, "debug.log"); got != "noise" {
		t.Errorf("ignored log was touched: %q", got)
	}
}

func TestMaterialize_SweepsEmptiedDirs(t *testing.T) {
	s := newTestSync(t, nil)

	root := t.TempDir()
	writeFile(t, root, "a.txt", "1")

	id, err := s.Capture(root)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	writeFile(t, root, "later/only.txt", "added after")

	if err := s.Materialize(root, id); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "later")); !os.IsNotExist(err) {
		t.Errorf("emptied directory was not swept")
	}
}

func TestMaterialize_RecreatesEmptyDirs(t *testing.T) {
	s := newTestSync(t, nil)

	root := t.TempDir()
	writeFile(t, root, "a.txt", "1")
	writeFile(t, root, "hollow/.keep", "")

	id, err := s.Capture(root)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	if err := os.RemoveAll(filepath.Join(root, "hollow")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if err := s.Materialize(root, id); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	if got := readFile(t, root, "hollow/.keep"); got != "" {
		t.Errorf("hollow/.keep = %q, want empty", got)
	}
}

func TestVerboseRoundTrip(t *testing.T) {
	s := newTestSync(t, nil)
	s.Verbose = true

	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")
	writeFile(t, root, "sub/b.txt", "beta")

	id, err := s.Capture(root)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	writeFile(t, root, "a.txt", "dirty")
	if err := s.Materialize(root, id); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if got := readFile(t, root, "a.txt"); got != "alpha" {
		t.Errorf("a.txt = %q, want alpha", got)
	}
}

func TestMaterialize_SymlinkRestored(t *testing.T) {
	s := newTestSync(t, nil)

	root := t.TempDir()
	writeFile(t, root, "real.txt", "data")
	if err := os.Symlink("real.txt", filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported here: %v", err)
	}

	id, err := s.Capture(root)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	if err := os.Remove(filepath.Join(root, "link")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if err := s.Materialize(root, id); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	target, err := os.Readlink(filepath.Join(root, "link"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != "real.txt" {
		t.Errorf("link target %q, want real.txt", target)
	}
}
