// Package engine orchestrates the snapshot stores into the checkpoint
// operations: create, list, restore, cancel, diff, status, clean. It is
// a state machine over two refs, HEAD and ORIG_HEAD; every mutating
// operation writes objects fully before a ref moves, so a crash at any
// point leaves HEAD on a fully stored commit.
package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/keshon/ckpt/internal/config"
	"github.com/keshon/ckpt/internal/fs"
	"github.com/keshon/ckpt/internal/hashing"
	"github.com/keshon/ckpt/internal/store/commit"
	"github.com/keshon/ckpt/internal/store/object"
	"github.com/keshon/ckpt/internal/store/ref"
	"github.com/keshon/ckpt/internal/worktree"
)

// ErrNoPendingRestore reports a cancel with no restore to undo.
var ErrNoPendingRestore = errors.New("no pending restore")

// Options configure a project engine. Zero values pick production
// defaults.
type Options struct {
	// ProjectPath is the working directory under snapshot control.
	ProjectPath string
	// StorageRoot overrides config.StorageRoot().
	StorageRoot string
	// IgnoreRules is the ordered rule list for capture/materialize.
	IgnoreRules []string
	// HashAlgo overrides the project's persisted digest algorithm.
	HashAlgo string
	// FS overrides the filesystem backend (tests).
	FS fs.FS
	// Clock overrides time.Now (tests).
	Clock func() time.Time
	// Verbose renders progress during capture/materialize.
	Verbose bool
	// SkipVerify disables digest re-checks on object reads.
	SkipVerify bool
}

// Engine is the snapshot engine for one project namespace.
type Engine struct {
	Project *config.Project
	Objects *object.Store
	Commits *commit.Graph
	Refs    *ref.Store
	Sync    *worktree.Sync

	clock func() time.Time
}

// New opens (or initializes) the project namespace and wires the stores.
func New(opts Options) (*Engine, error) {
	if opts.ProjectPath == "" {
		return nil, fmt.Errorf("project path required")
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewOSFS()
	}
	storageRoot := opts.StorageRoot
	if storageRoot == "" {
		storageRoot = config.StorageRoot()
	}

	project, err := config.NewProject(storageRoot, opts.ProjectPath)
	if err != nil {
		return nil, err
	}

	// A storage root nested inside the project is ignored during capture
	// and materialize; the project directory itself can never double as
	// the storage root, since every sibling file would then sit next to
	// live object data.
	canonStorage, relErr := config.CanonicalPath(storageRoot)
	var relStorage string
	if relErr == nil {
		relStorage, relErr = filepath.Rel(project.Path, canonStorage)
	}
	if relErr == nil && relStorage == "." {
		return nil, fmt.Errorf("storage root %q is the project directory itself", storageRoot)
	}

	for _, d := range []string{project.Root, project.ObjectsPath(), project.CommitsPath(), project.RefsPath()} {
		if err := fsys.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create namespace dir %q: %w", d, err)
		}
	}

	cfg := project.LoadConfig(fsys)
	if opts.HashAlgo != "" && opts.HashAlgo != cfg.Hash {
		// Every stored id was computed with the persisted algorithm;
		// switching would make all of them fail verification.
		if fsys.Exists(project.ConfigPath()) {
			return nil, fmt.Errorf("project already uses %q digests, cannot switch to %q", cfg.Hash, opts.HashAlgo)
		}
		cfg.Hash = opts.HashAlgo
	}
	if !fsys.Exists(project.ConfigPath()) {
		if err := project.SaveConfig(fsys, cfg); err != nil {
			return nil, err
		}
	}

	hasher, err := hashing.New(cfg.Hash)
	if err != nil {
		return nil, err
	}

	objects := object.New(project.ObjectsPath(), fsys, hasher)
	objects.VerifyOnRead = !opts.SkipVerify

	rules := append([]string{}, opts.IgnoreRules...)
	rules = append(rules, config.DefaultIgnored...)
	// A storage root nested inside the project must never be captured
	// or deleted by its own engine.
	if relErr == nil && relStorage != ".." && !strings.HasPrefix(relStorage, "../") {
		rules = append(rules, filepath.ToSlash(relStorage))
	}

	sync := worktree.New(objects, fsys, worktree.NewIgnore(rules))
	sync.Verbose = opts.Verbose

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		Project: project,
		Objects: objects,
		Commits: commit.NewGraph(project.CommitsPath(), fsys, hasher),
		Refs:    ref.NewStore(project.RefsPath(), fsys),
		Sync:    sync,
		clock:   clock,
	}, nil
}

// Create captures the working tree and appends a checkpoint on top of
// HEAD. A pending ORIG_HEAD survives: clearing the undo slot here would
// make cancel useless the moment an automated hook checkpoints after a
// restore.
func (e *Engine) Create(message, sessionID string, promptIndex int) (*Checkpoint, error) {
	treeID, err := e.Sync.Capture(e.Project.Path)
	if err != nil {
		return nil, err
	}

	head, _, err := e.Refs.Get(ref.Head)
	if err != nil {
		return nil, err
	}

	c, err := e.Commits.Append(treeID, head, FormatMessage(message, sessionID, promptIndex), e.clock())
	if err != nil {
		return nil, err
	}

	if err := e.Refs.Set(ref.Head, c.ID); err != nil {
		return nil, err
	}

	cp := ParseCheckpoint(c, e.Project.Path)
	return &cp, nil
}

// ListOptions filter List output.
type ListOptions struct {
	// SessionPrefix keeps only checkpoints whose session id starts
	// with the prefix.
	SessionPrefix string
	// Limit truncates the result; <= 0 means unbounded.
	Limit int
}

// List returns checkpoints newest-first in walk order. No timestamp
// re-sort happens: two checkpoints in the same second never swap.
func (e *Engine) List(opts ListOptions) ([]Checkpoint, error) {
	head, _, err := e.Refs.Get(ref.Head)
	if err != nil {
		return nil, err
	}

	walkLimit := opts.Limit
	if opts.SessionPrefix != "" {
		walkLimit = 0 // the filter decides what counts toward the limit
	}
	commits, err := e.Commits.Walk(head, walkLimit)
	if err != nil {
		return nil, err
	}

	out := make([]Checkpoint, 0, len(commits))
	for _, c := range commits {
		cp := ParseCheckpoint(c, e.Project.Path)
		if opts.SessionPrefix != "" && !strings.HasPrefix(cp.SessionID, opts.SessionPrefix) {
			continue
		}
		out = append(out, cp)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// Current returns the commit id HEAD points at, if any.
func (e *Engine) Current() (string, bool, error) {
	return e.Refs.Get(ref.Head)
}

// Restore rewinds the working tree to a checkpoint. ORIG_HEAD is written
// before HEAD moves and before any file changes, so a crash between
// steps always leaves a consistent recovery path.
func (e *Engine) Restore(idOrPrefix string) error {
	id, err := e.Commits.ResolvePrefix(idOrPrefix)
	if err != nil {
		return err
	}
	target, err := e.Commits.Get(id)
	if err != nil {
		return err
	}

	current, ok, err := e.Refs.Get(ref.Head)
	if err != nil {
		return err
	}
	if ok {
		if err := e.Refs.Set(ref.OrigHead, current); err != nil {
			return err
		}
	}
	if err := e.Refs.Set(ref.Head, id); err != nil {
		return err
	}

	return e.Sync.Materialize(e.Project.Path, target.TreeID)
}

// CancelRestore undoes the most recent restore. The slot is single-level
// undo, not a redo stack: cancel consumes ORIG_HEAD, so a second cancel
// without an intervening restore fails.
func (e *Engine) CancelRestore() error {
	orig, ok, err := e.Refs.Get(ref.OrigHead)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPendingRestore
	}

	target, err := e.Commits.Get(orig)
	if err != nil {
		return err
	}

	if err := e.Refs.Set(ref.Head, orig); err != nil {
		return err
	}
	if err := e.Sync.Materialize(e.Project.Path, target.TreeID); err != nil {
		return err
	}
	return e.Refs.Delete(ref.OrigHead)
}

// Status is the aggregate project view.
type Status struct {
	ProjectPath      string      `json:"project_path"`
	TotalCheckpoints int         `json:"total_checkpoints"`
	Latest           *Checkpoint `json:"latest,omitempty"`
	StorageBytes     int64       `json:"storage_bytes"`
}

// Status reports the project path, reachable checkpoint count, the most
// recent checkpoint and total stored bytes.
func (e *Engine) Status() (*Status, error) {
	st := &Status{ProjectPath: e.Project.Path}

	head, _, err := e.Refs.Get(ref.Head)
	if err != nil {
		return nil, err
	}
	commits, err := e.Commits.Walk(head, 0)
	if err != nil {
		return nil, err
	}
	st.TotalCheckpoints = len(commits)
	if len(commits) > 0 {
		latest := ParseCheckpoint(commits[0], e.Project.Path)
		st.Latest = &latest
	}

	st.StorageBytes, err = e.Objects.Size()
	if err != nil {
		return nil, err
	}
	return st, nil
}
