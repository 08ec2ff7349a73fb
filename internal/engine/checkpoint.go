package engine

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/keshon/ckpt/internal/store/commit"
)

// ManualSession is the session id assigned to checkpoints whose commit
// message does not carry session metadata.
const ManualSession = "manual"

// Checkpoint is the user-facing snapshot record derived from a commit
// plus parsed session metadata. It is never stored separately.
type Checkpoint struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	PromptIndex int    `json:"prompt_index,omitempty"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
	ProjectPath string `json:"project_path"`
}

var (
	sessionRe = regexp.MustCompile(`(?s)^Session: (\S+) - (.*)$`)
	promptRe  = regexp.MustCompile(`(?s)^Prompt (\d+): (.*)$`)
)

// FormatMessage encodes session metadata into a commit message:
//
//	Session: <sessionID> - [Prompt <n>: ]<message>
//
// An empty session id leaves the message untouched, which parses back
// as a manual checkpoint.
func FormatMessage(message, sessionID string, promptIndex int) string {
	if sessionID == "" {
		return message
	}
	if promptIndex > 0 {
		message = fmt.Sprintf("Prompt %d: %s", promptIndex, message)
	}
	return fmt.Sprintf("Session: %s - %s", sessionID, message)
}

// ParseCheckpoint reconstructs a Checkpoint from a commit. Messages that
// do not match the session pattern are kept whole under the manual
// session; nothing is ever rejected here.
func ParseCheckpoint(c *commit.Commit, projectPath string) Checkpoint {
	cp := Checkpoint{
		ID:          c.ID,
		SessionID:   ManualSession,
		Message:     c.Message,
		Timestamp:   c.Timestamp,
		ProjectPath: projectPath,
	}

	m := sessionRe.FindStringSubmatch(c.Message)
	if m == nil {
		return cp
	}
	cp.SessionID = m[1]
	cp.Message = m[2]

	if p := promptRe.FindStringSubmatch(cp.Message); p != nil {
		if n, err := strconv.Atoi(p[1]); err == nil {
			cp.PromptIndex = n
			cp.Message = p[2]
		}
	}
	return cp
}
