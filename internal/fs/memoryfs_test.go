package fs

import (
	"io"
	"os"
	"testing"
)

func TestMemoryFS_WriteRead(t *testing.T) {
	m := NewMemoryFS()
	if err := m.MkdirAll("a/b", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := m.WriteFile("a/b/f.txt", []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := m.ReadFile("a/b/f.txt")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}

	r, err := m.Open("a/b/f.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	all, _ := io.ReadAll(r)
	if string(all) != "data" {
		t.Errorf("open content = %q", all)
	}
}

func TestMemoryFS_NotExist(t *testing.T) {
	m := NewMemoryFS()
	_, err := m.ReadFile("missing")
	if err == nil || !m.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	if m.Exists("missing") {
		t.Errorf("missing path reported as existing")
	}
}

func TestMemoryFS_WriteRequiresDir(t *testing.T) {
	m := NewMemoryFS()
	if err := m.WriteFile("nodir/f.txt", []byte("x"), 0o644); err == nil {
		t.Errorf("write into missing dir must fail")
	}
}

func TestMemoryFS_TempFileRename(t *testing.T) {
	m := NewMemoryFS()
	if err := m.MkdirAll("d", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	w, tmp, err := m.CreateTempFile("d", "tmp-*")
	if err != nil {
		t.Fatalf("temp: %v", err)
	}
	if _, err := w.Write([]byte("staged")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := m.Rename(tmp, "d/final.txt"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, err := m.ReadFile("d/final.txt")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "staged" {
		t.Errorf("content = %q", got)
	}
	if m.Exists(tmp) {
		t.Errorf("temp file survived rename")
	}
}

func TestMemoryFS_UniqueTempNames(t *testing.T) {
	m := NewMemoryFS()
	if err := m.MkdirAll("d", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	_, p1, err := m.CreateTempFile("d", "t-*")
	if err != nil {
		t.Fatalf("temp: %v", err)
	}
	_, p2, err := m.CreateTempFile("d", "t-*")
	if err != nil {
		t.Fatalf("temp: %v", err)
	}
	if p1 == p2 {
		t.Errorf("temp names collide: %s", p1)
	}
}

func TestMemoryFS_ReadDir(t *testing.T) {
	m := NewMemoryFS()
	if err := m.MkdirAll("root/sub", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := m.WriteFile("root/b.txt", []byte("1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := m.WriteFile("root/a.txt", []byte("2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := m.WriteFile("root/sub/deep.txt", []byte("3"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := m.ReadDir("root")
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	want := []struct {
		name string
		dir  bool
	}{
		{"a.txt", false},
		{"b.txt", false},
		{"sub", true},
	}
	if len(entries) != len(want) {
		t.Fatalf("entries = %d, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].Name() != w.name || entries[i].IsDir() != w.dir {
			t.Errorf("entry[%d] = %s dir=%v, want %s dir=%v", i, entries[i].Name(), entries[i].IsDir(), w.name, w.dir)
		}
	}
}

func TestMemoryFS_Symlink(t *testing.T) {
	m := NewMemoryFS()
	if err := m.MkdirAll("d", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := m.Symlink("target.txt", "d/link"); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	fi, err := m.Lstat("d/link")
	if err != nil {
		t.Fatalf("lstat: %v", err)
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		t.Errorf("lstat did not report a symlink mode: %v", fi.Mode())
	}

	target, err := m.Readlink("d/link")
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != "target.txt" {
		t.Errorf("target = %q", target)
	}

	if err := m.Remove("d/link"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := m.Readlink("d/link"); err == nil {
		t.Errorf("readlink after remove must fail")
	}
}
