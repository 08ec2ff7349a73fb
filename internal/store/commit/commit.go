// Package commit implements the append-only commit graph. Every commit
// references one tree and at most one parent, so a project's history is
// a linear log walked newest-first over parent links.
package commit

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/keshon/ckpt/internal/fs"
	"github.com/keshon/ckpt/internal/hashing"
	"github.com/keshon/ckpt/internal/util"
)

var (
	// ErrNotFound reports an unknown commit id or prefix.
	ErrNotFound = errors.New("commit not found")
	// ErrAmbiguous reports a prefix matching two or more commits.
	ErrAmbiguous = errors.New("ambiguous commit prefix")
)

const commitExt = ".json"

// Commit is an immutable history record.
type Commit struct {
	ID        string `json:"id"`
	TreeID    string `json:"tree_id"`
	Parent    string `json:"parent,omitempty"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"` // UTC, RFC3339Nano
}

// Time parses the commit timestamp.
func (c *Commit) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, c.Timestamp)
}

// Graph stores commits as one JSON file each under Dir.
type Graph struct {
	Dir  string
	FS   fs.FS
	Hash *hashing.Hasher
}

// NewGraph creates a Graph over dir.
func NewGraph(dir string, fsys fs.FS, h *hashing.Hasher) *Graph {
	return &Graph{Dir: dir, FS: fsys, Hash: h}
}

func (g *Graph) path(id string) string {
	return filepath.Join(g.Dir, id+commitExt)
}

// idPayload is the canonical input of a commit id. Field order is fixed;
// two identical payloads always produce the same id.
type idPayload struct {
	TreeID    string `json:"tree_id"`
	Parent    string `json:"parent"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Append writes a new commit and returns it. The id is a pure function
// of the inputs, so re-appending identical inputs is a no-op.
func (g *Graph) Append(treeID, parent, message string, ts time.Time) (*Commit, error) {
	stamp := ts.UTC().Format(time.RFC3339Nano)

	payload, err := json.Marshal(idPayload{
		TreeID:    treeID,
		Parent:    parent,
		Message:   message,
		Timestamp: stamp,
	})
	if err != nil {
		return nil, fmt.Errorf("encode commit payload: %w", err)
	}

	c := &Commit{
		ID:        g.Hash.Sum(payload),
		TreeID:    treeID,
		Parent:    parent,
		Message:   message,
		Timestamp: stamp,
	}

	if g.FS.Exists(g.path(c.ID)) {
		return c, nil
	}
	if err := g.FS.MkdirAll(g.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create commits dir: %w", err)
	}
	if err := util.WriteJSON(g.FS, g.path(c.ID), c); err != nil {
		return nil, fmt.Errorf("write commit %q: %w", c.ID, err)
	}
	return c, nil
}

// Get reads a commit by full id.
func (g *Graph) Get(id string) (*Commit, error) {
	var c Commit
	if err := util.ReadJSON(g.FS, g.path(id), &c); err != nil {
		if g.FS.IsNotExist(err) {
			return nil, fmt.Errorf("commit %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read commit %q: %w", id, err)
	}
	return &c, nil
}

// Walk follows parent links from startID and returns commits
// newest-first. The traversal order is authoritative; commits are never
// re-sorted by timestamp. limit <= 0 walks the whole chain. An empty
// startID yields an empty result, not an error.
func (g *Graph) Walk(startID string, limit int) ([]*Commit, error) {
	if startID == "" {
		return nil, nil
	}

	var out []*Commit
	seen := map[string]bool{}
	for id := startID; id != ""; {
		if seen[id] {
			break // a parent cycle ends the walk
		}
		seen[id] = true

		c, err := g.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
		id = c.Parent
	}
	return out, nil
}

// IDs returns every stored commit id.
func (g *Graph) IDs() ([]string, error) {
	entries, err := g.FS.ReadDir(g.Dir)
	if err != nil {
		if g.FS.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read commits dir %q: %w", g.Dir, err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, commitExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, commitExt))
	}
	return ids, nil
}

// ResolvePrefix expands a short id to the unique full commit id.
func (g *Graph) ResolvePrefix(prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("empty commit id: %w", ErrNotFound)
	}

	ids, err := g.IDs()
	if err != nil {
		return "", err
	}

	var match string
	for _, id := range ids {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if id == prefix {
			return id, nil
		}
		if match != "" {
			return "", fmt.Errorf("prefix %q: %w", prefix, ErrAmbiguous)
		}
		match = id
	}
	if match == "" {
		return "", fmt.Errorf("prefix %q: %w", prefix, ErrNotFound)
	}
	return match, nil
}

// Remove deletes a commit file. Only Clean may call this; commits are
// otherwise immutable.
func (g *Graph) Remove(id string) error {
	err := g.FS.Remove(g.path(id))
	if err != nil && !g.FS.IsNotExist(err) {
		return fmt.Errorf("remove commit %q: %w", id, err)
	}
	return nil
}
