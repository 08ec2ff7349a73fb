package commit

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/keshon/ckpt/internal/fs"
	"github.com/keshon/ckpt/internal/hashing"
)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	h, err := hashing.New("")
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	mem := fs.NewMemoryFS()
	if err := mem.MkdirAll("commits", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return NewGraph("commits", mem, h)
}

func TestAppend_DeterministicID(t *testing.T) {
	g := newTestGraph(t)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c1, err := g.Append("tree1", "", "init", ts)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	c2, err := g.Append("tree1", "", "init", ts)
	if err != nil {
		t.Fatalf("re-append: %v", err)
	}
	if c1.ID != c2.ID {
		t.Errorf("identical inputs produced different ids: %s vs %s", c1.ID, c2.ID)
	}

	c3, err := g.Append("tree1", "", "other message", ts)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if c3.ID == c1.ID {
		t.Errorf("different message produced the same id")
	}
}

func TestGet_NotFound(t *testing.T) {
	g := newTestGraph(t)
	_, err := g.Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWalk_OrderAndLimit(t *testing.T) {
	g := newTestGraph(t)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Three commits sharing one wall-clock second; order must come
	// from the parent links, not the timestamps.
	var parent string
	var ids []string
	for i := 1; i <= 3; i++ {
		c, err := g.Append("tree", parent, fmt.Sprintf("c%d", i), ts)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		parent = c.ID
		ids = append(ids, c.ID)
	}

	out, err := g.Walk(parent, 0)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 commits, got %d", len(out))
	}
	for i, want := range []string{ids[2], ids[1], ids[0]} {
		if out[i].ID != want {
			t.Errorf("walk[%d] = %s, want %s", i, out[i].ID, want)
		}
	}

	limited, err := g.Walk(parent, 2)
	if err != nil {
		t.Fatalf("walk limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 commits with limit, got %d", len(limited))
	}
}

func TestWalk_EmptyStart(t *testing.T) {
	g := newTestGraph(t)
	out, err := g.Walk("", 0)
	if err != nil {
		t.Fatalf("walk with no history must not fail: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty walk, got %d commits", len(out))
	}
}

func TestResolvePrefix(t *testing.T) {
	g := newTestGraph(t)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c, err := g.Append("tree", "", "only", ts)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	// unique prefix
	got, err := g.ResolvePrefix(c.ID[:8])
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != c.ID {
		t.Errorf("resolved %s, want %s", got, c.ID)
	}

	// full id
	got, err = g.ResolvePrefix(c.ID)
	if err != nil || got != c.ID {
		t.Errorf("full id resolution failed: %s, %v", got, err)
	}

	// no match
	if _, err := g.ResolvePrefix("zzzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// empty prefix
	if _, err := g.ResolvePrefix(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty prefix, got %v", err)
	}
}

func TestResolvePrefix_Ambiguous(t *testing.T) {
	g := newTestGraph(t)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Append commits until two ids share a first hex character; with
	// 16 buckets a handful of commits is plenty.
	seen := map[byte][]string{}
	for i := 0; ; i++ {
		c, err := g.Append("tree", "", fmt.Sprintf("m%d", i), ts)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		b := c.ID[0]
		seen[b] = append(seen[b], c.ID)
		if len(seen[b]) == 2 {
			prefix := string(b)
			if _, err := g.ResolvePrefix(prefix); !errors.Is(err, ErrAmbiguous) {
				t.Errorf("expected ErrAmbiguous for %q, got %v", prefix, err)
			}
			return
		}
		if i > 64 {
			t.Fatalf("no colliding first characters after %d commits", i)
		}
	}
}

func TestCommitTime(t *testing.T) {
	g := newTestGraph(t)
	ts := time.Date(2026, 3, 1, 12, 30, 45, 123456789, time.UTC)

	c, err := g.Append("tree", "", "msg", ts)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := c.Time()
	if err != nil {
		t.Fatalf("time: %v", err)
	}
	if !got.Equal(ts) {
		t.Errorf("timestamp round-trip: got %v want %v", got, ts)
	}
}
