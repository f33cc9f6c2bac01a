// Package types defines the data and wire types shared across the SDK:
// sessions, transcript messages, realtime channel frames, and the display
// shape the transcript view renders.
package types

import "time"

// Session is one tutoring conversation. The id is assigned by the backend
// and never changes after creation.
type Session struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionContext carries per-session settings owned by the backend.
type SessionContext struct {
	SessionID    string  `json:"session_id"`
	AudioEnabled bool    `json:"audio_enabled"`
	Language     string  `json:"language"`
	ActiveTool   *string `json:"active_tool"`
}

// ContextPatch is a partial update to a session context. Nil fields are
// left untouched by the backend.
type ContextPatch struct {
	AudioEnabled *bool   `json:"audio_enabled,omitempty"`
	Language     *string `json:"language,omitempty"`
	ActiveTool   *string `json:"active_tool,omitempty"`
}
