package tutor

import (
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core/types"
)

// SendState tracks the delivery of an optimistically rendered entry.
type SendState int

const (
	// SendConfirmed entries were delivered, or arrived from the backend.
	SendConfirmed SendState = iota
	// SendPending entries are rendered locally while delivery is in flight.
	SendPending
	// SendFailed entries could not be delivered. They stay in the log so
	// the renderer can mark them instead of silently dropping user text.
	SendFailed
)

func (s SendState) String() string {
	switch s {
	case SendConfirmed:
		return "confirmed"
	case SendPending:
		return "pending"
	case SendFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChatEntry is one line of the channel-local chat log.
type ChatEntry struct {
	ID        string
	Text      string
	IsUser    bool
	Timestamp time.Time
	State     SendState
	FailCause string
}

// ChatLog holds the messages exchanged over one realtime channel session.
// Sent text is appended before delivery and reconciled afterwards, so the
// sender sees their message immediately.
type ChatLog struct {
	mu       sync.Mutex
	entries  []ChatEntry
	newID    func() string
	now      func() time.Time
	onAppend func(ChatEntry)
}

// NewChatLog creates an empty log.
func NewChatLog() *ChatLog {
	return &ChatLog{
		newID: func() string { return "local-" + ulid.Make().String() },
		now:   time.Now,
	}
}

// OnAppend registers a callback invoked for each appended entry. Must be
// set before the log is shared across goroutines.
func (l *ChatLog) OnAppend(fn func(ChatEntry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onAppend = fn
}

// AppendPending appends an in-flight user entry and returns its id for the
// later Confirm or Fail call.
func (l *ChatLog) AppendPending(text string) string {
	return l.append(text, true, SendPending)
}

// AppendUser appends a delivered user entry.
func (l *ChatLog) AppendUser(text string) string {
	return l.append(text, true, SendConfirmed)
}

// AppendAgent appends a tutor entry.
func (l *ChatLog) AppendAgent(text string) string {
	return l.append(text, false, SendConfirmed)
}

func (l *ChatLog) append(text string, isUser bool, state SendState) string {
	l.mu.Lock()
	entry := ChatEntry{
		ID:        l.newID(),
		Text:      text,
		IsUser:    isUser,
		Timestamp: l.now(),
		State:     state,
	}
	l.entries = append(l.entries, entry)
	fn := l.onAppend
	l.mu.Unlock()

	if fn != nil {
		fn(entry)
	}
	return entry.ID
}

// Confirm marks a pending entry as delivered. Unknown ids are ignored.
func (l *ChatLog) Confirm(id string) {
	l.resolve(id, SendConfirmed, "")
}

// Fail marks a pending entry as undeliverable with a cause for rendering.
func (l *ChatLog) Fail(id, cause string) {
	l.resolve(id, SendFailed, cause)
}

func (l *ChatLog) resolve(id string, state SendState, cause string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].ID == id {
			l.entries[i].State = state
			l.entries[i].FailCause = cause
			return
		}
	}
}

// Entries returns a copy of the log in append order.
func (l *ChatLog) Entries() []ChatEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ChatEntry(nil), l.entries...)
}

// Display maps the log to display messages, skipping failed and blank
// entries.
func (l *ChatLog) Display() []types.DisplayMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.DisplayMessage, 0, len(l.entries))
	for _, e := range l.entries {
		if e.State == SendFailed || strings.TrimSpace(e.Text) == "" {
			continue
		}
		out = append(out, types.DisplayMessage{
			ID:        e.ID,
			Text:      e.Text,
			IsUser:    e.IsUser,
			Timestamp: e.Timestamp.UnixMilli(),
		})
	}
	return out
}

// Reset clears the log, for session switches.
func (l *ChatLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
