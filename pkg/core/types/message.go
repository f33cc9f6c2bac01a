package types

import "time"

// Message sources.
const (
	SourceUser   = "user"
	SourceTutor  = "tutor"
	SourceSystem = "system"
)

// Message kinds.
const (
	KindText       = "text"
	KindTranscript = "transcript"
)

// TranscriptMessage is the persisted form of one message in a session.
// MessageID is unique per session; ordering is by CreatedAt with arrival
// order breaking ties.
type TranscriptMessage struct {
	MessageID      string    `json:"message_id"`
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	MessageSource  string    `json:"message_source"`
	MessageKind    string    `json:"message_kind"`
	MessageContent string    `json:"message_content"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DisplayMessage is the derived shape the transcript view renders. It is
// never persisted; it is recomputed from the persisted and live message
// sets on every merge.
type DisplayMessage struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsUser    bool   `json:"is_user"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Display converts a transcript message to its render shape.
func (m TranscriptMessage) Display() DisplayMessage {
	return DisplayMessage{
		ID:        m.MessageID,
		Text:      m.MessageContent,
		IsUser:    m.MessageSource == SourceUser,
		Timestamp: m.CreatedAt.UnixMilli(),
	}
}
