package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keshon/ckpt/internal/store/commit"
)

func TestFormatMessage(t *testing.T) {
	cases := []struct {
		name    string
		message string
		session string
		prompt  int
		want    string
	}{
		{"manual", "fix bug", "", 0, "fix bug"},
		{"manual ignores prompt", "fix bug", "", 3, "fix bug"},
		{"session", "fix bug", "abc", 0, "Session: abc - fix bug"},
		{"session with prompt", "fix bug", "abc", 2, "Session: abc - Prompt 2: fix bug"},
		{"empty message", "", "abc", 0, "Session: abc - "},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMessage(tt.message, tt.session, tt.prompt))
		})
	}
}

func TestParseCheckpoint(t *testing.T) {
	cases := []struct {
		name        string
		raw         string
		wantSession string
		wantPrompt  int
		wantMessage string
	}{
		{"plain", "just a note", ManualSession, 0, "just a note"},
		{"session", "Session: abc - did things", "abc", 0, "did things"},
		{"session with prompt", "Session: abc - Prompt 4: did things", "abc", 4, "did things"},
		{"multiline body", "Session: abc - line one\nline two", "abc", 0, "line one\nline two"},
		{"almost a session line", "Session abc - missing colon", ManualSession, 0, "Session abc - missing colon"},
		{"prompt without session", "Prompt 2: bare", ManualSession, 0, "Prompt 2: bare"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			c := &commit.Commit{
				ID:        "id1",
				TreeID:    "tree1",
				Message:   tt.raw,
				Timestamp: "2026-03-01T10:00:00Z",
			}
			cp := ParseCheckpoint(c, "/proj")
			assert.Equal(t, tt.wantSession, cp.SessionID)
			assert.Equal(t, tt.wantPrompt, cp.PromptIndex)
			assert.Equal(t, tt.wantMessage, cp.Message)
			assert.Equal(t, "id1", cp.ID)
			assert.Equal(t, "/proj", cp.ProjectPath)
		})
	}
}

func TestFormatParse_RoundTrip(t *testing.T) {
	raw := FormatMessage("refactor parser", "sess-42", 7)
	cp := ParseCheckpoint(&commit.Commit{Message: raw}, "")
	assert.Equal(t, "sess-42", cp.SessionID)
	assert.Equal(t, 7, cp.PromptIndex)
	assert.Equal(t, "refactor parser", cp.Message)
}
