package engine

import (
	"fmt"
	"time"

	"github.com/keshon/ckpt/internal/store/ref"
	"github.com/keshon/ckpt/internal/store/tree"
)

// Clean prunes history older than the cutoff and returns how many
// checkpoints were (or would be) removed. With dryRun the count is
// reported and nothing changes.
//
// Pruning truncates the linear log: commits newer than the cutoff are
// kept (the current HEAD always survives), the oldest kept commit is
// rewritten without a parent, and an object sweep deletes every blob and
// tree no remaining commit reaches. New commits are written before any
// ref moves and old ones deleted after, so a crash mid-clean leaves a
// superset of the needed objects, never a dangling ref.
func (e *Engine) Clean(olderThan time.Time, dryRun bool) (int, error) {
	head, ok, err := e.Refs.Get(ref.Head)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	chain, err := e.Commits.Walk(head, 0) // newest first
	if err != nil {
		return 0, err
	}

	keep := 0
	for _, c := range chain {
		ts, err := c.Time()
		if err != nil {
			return 0, fmt.Errorf("commit %q has invalid timestamp: %w", c.ID, err)
		}
		if ts.Before(olderThan) {
			break
		}
		keep++
	}
	if keep == 0 {
		keep = 1 // the current state is never pruned away
	}

	removed := len(chain) - keep
	if removed <= 0 || dryRun {
		if removed < 0 {
			removed = 0
		}
		return removed, nil
	}

	// Rewrite the kept chain oldest-first; the boundary commit loses
	// its parent, which cascades into new ids up to HEAD.
	mapping := make(map[string]string, keep)
	newParent := ""
	for i := keep - 1; i >= 0; i-- {
		c := chain[i]
		ts, err := c.Time()
		if err != nil {
			return 0, err
		}
		nc, err := e.Commits.Append(c.TreeID, newParent, c.Message, ts)
		if err != nil {
			return 0, err
		}
		mapping[c.ID] = nc.ID
		newParent = nc.ID
	}

	if err := e.Refs.Set(ref.Head, mapping[head]); err != nil {
		return 0, err
	}
	if orig, ok, err := e.Refs.Get(ref.OrigHead); err != nil {
		return 0, err
	} else if ok {
		if nid, kept := mapping[orig]; kept {
			if err := e.Refs.Set(ref.OrigHead, nid); err != nil {
				return 0, err
			}
		} else if err := e.Refs.Delete(ref.OrigHead); err != nil {
			// The undo target no longer exists; the slot goes with it.
			return 0, err
		}
	}

	if err := e.sweep(mapping[head]); err != nil {
		return 0, err
	}
	return removed, nil
}

// sweep deletes commits unreachable from newHead and objects unreachable
// from the remaining commits.
func (e *Engine) sweep(newHead string) error {
	reachable, err := e.Commits.Walk(newHead, 0)
	if err != nil {
		return err
	}
	keepCommit := make(map[string]bool, len(reachable))
	for _, c := range reachable {
		keepCommit[c.ID] = true
	}

	ids, err := e.Commits.IDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if !keepCommit[id] {
			if err := e.Commits.Remove(id); err != nil {
				return err
			}
		}
	}

	marked := map[string]bool{}
	for _, c := range reachable {
		if err := e.markTree(c.TreeID, marked); err != nil {
			return err
		}
	}

	objectIDs, err := e.Objects.IDs()
	if err != nil {
		return err
	}
	for _, id := range objectIDs {
		if !marked[id] {
			if err := e.Objects.Delete(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// markTree marks a tree object and everything beneath it as reachable.
func (e *Engine) markTree(id string, marked map[string]bool) error {
	if marked[id] {
		return nil
	}
	marked[id] = true

	t, err := tree.Load(e.Objects, id)
	if err != nil {
		return err
	}
	for _, en := range t.Entries {
		if en.Kind == tree.KindDir {
			if err := e.markTree(en.Hash, marked); err != nil {
				return err
			}
			continue
		}
		marked[en.Hash] = true
	}
	return nil
}
