// Package hook adapts assistant hook events into engine calls. This is
// collaborator territory: payloads get a typed schema with explicit
// defaulting, and engine failures are logged and swallowed so a broken
// checkpoint never breaks the surrounding workflow. That policy lives
// here, not in the engine.
package hook

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/keshon/ckpt/internal/engine"
)

// maxSummaryLen bounds the prompt excerpt used as checkpoint message,
// counted in runes.
const maxSummaryLen = 72

// Event is the typed hook payload read from stdin.
type Event struct {
	SessionID     string `json:"session_id"`
	Prompt        string `json:"prompt"`
	CWD           string `json:"cwd"`
	HookEventName string `json:"hook_event_name"`
}

// Decode parses an event and applies defaults: a missing session id gets
// a generated one so the checkpoint is still attributable.
func Decode(r io.Reader) (*Event, error) {
	var ev Event
	dec := json.NewDecoder(r)
	if err := dec.Decode(&ev); err != nil {
		return nil, fmt.Errorf("decode hook event: %w", err)
	}
	if ev.SessionID == "" {
		ev.SessionID = uuid.NewString()
	}
	return &ev, nil
}

// Runner drives the engine from hook events.
type Runner struct {
	Log *slog.Logger
}

// NewRunner creates a Runner; a nil logger falls back to slog.Default.
func NewRunner(log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{Log: log}
}

// HandlePrompt creates a checkpoint for a prompt event. The prompt index
// continues the session's existing numbering. Any engine failure is
// logged and nil is returned; the hook must never fail the caller.
func (r *Runner) HandlePrompt(eng *engine.Engine, ev *Event) *engine.Checkpoint {
	idx := 1
	if prior, err := eng.List(engine.ListOptions{SessionPrefix: ev.SessionID}); err == nil {
		idx = len(prior) + 1
	} else {
		r.Log.Warn("listing session checkpoints failed", "session", ev.SessionID, "error", err)
	}

	cp, err := eng.Create(Summarize(ev.Prompt), ev.SessionID, idx)
	if err != nil {
		r.Log.Warn("checkpoint creation failed", "session", ev.SessionID, "error", err)
		return nil
	}
	return cp
}

// Summarize turns a prompt into a single-line checkpoint message.
// Truncation counts runes, never splitting a multi-byte character.
func Summarize(prompt string) string {
	s := strings.Join(strings.Fields(prompt), " ")
	if s == "" {
		return "checkpoint"
	}
	if utf8.RuneCountInString(s) > maxSummaryLen {
		runes := []rune(s)
		s = string(runes[:maxSummaryLen-1]) + "…"
	}
	return s
}
