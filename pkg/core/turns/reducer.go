package turns

import (
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core/types"
)

// State is the reducer's turn state.
type State int

const (
	// Idle means no turn is open.
	Idle State = iota
	// UserTurnOpen means a user message is accumulating interim results.
	UserTurnOpen
	// BotTurnOpen means a bot utterance is open, possibly already sealed
	// but still accepting trailing text fragments.
	BotTurnOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case UserTurnOpen:
		return "user_turn_open"
	case BotTurnOpen:
		return "bot_turn_open"
	default:
		return "idle"
	}
}

// LiveMessage is one in-flight voice-origin message. Content is mutable
// while IsStreaming is true; sealed messages are retained, not deleted,
// because fragments for them may still arrive out of order.
type LiveMessage struct {
	ID          string
	Source      string // types.SourceUser or types.SourceTutor
	Content     string
	IsStreaming bool
	CreatedAt   time.Time
}

// Reducer folds voice pipeline events into per-turn live messages.
//
// At most one user message and one bot message are open at a time. The
// zero value is not usable; construct with NewReducer.
type Reducer struct {
	mu sync.Mutex

	now   func() time.Time
	newID func(source string) string

	messages []LiveMessage
	state    State
	userIdx  int // index of the open user message, -1 when none
	botIdx   int // index of the open bot message, -1 when none
	botWords []string

	rev     uint64
	memoRev uint64
	memo    []types.TranscriptMessage
}

// ReducerOption configures a Reducer.
type ReducerOption func(*Reducer)

// WithClock overrides the clock used to timestamp messages.
func WithClock(now func() time.Time) ReducerOption {
	return func(r *Reducer) { r.now = now }
}

// WithIDFunc overrides id generation for live messages.
func WithIDFunc(newID func(source string) string) ReducerOption {
	return func(r *Reducer) { r.newID = newID }
}

// NewReducer creates an empty reducer.
func NewReducer(opts ...ReducerOption) *Reducer {
	r := &Reducer{
		now:     time.Now,
		newID:   func(source string) string { return source + "-" + ulid.Make().String() },
		userIdx: -1,
		botIdx:  -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply feeds one event through the state machine. Events the reducer does
// not track (speaking markers) are ignored.
func (r *Reducer) Apply(event Event) {
	if event == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := event.(type) {
	case UserTranscriptEvent:
		r.applyUserTranscript(e)
	case UserStartedSpeakingEvent:
		// A new user turn has begun: stop accepting trailing bot fragments.
		r.botIdx = -1
		r.botWords = nil
		r.state = UserTurnOpen
		r.rev++
	case BotTtsStartedEvent:
		r.applyBotStarted()
	case BotTtsTextEvent:
		r.applyBotText(e)
	case BotTtsStoppedEvent:
		if r.botIdx >= 0 {
			r.messages[r.botIdx].IsStreaming = false
			r.rev++
		}
		// The pointer stays: trailing text for this utterance may arrive
		// after the stop event.
	}
}

func (r *Reducer) applyUserTranscript(e UserTranscriptEvent) {
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return
	}
	if !e.Final {
		if r.userIdx >= 0 {
			// Interim results are last-write-wins on content.
			r.messages[r.userIdx].Content = e.Text
		} else {
			r.messages = append(r.messages, LiveMessage{
				ID:          r.newID(types.SourceUser),
				Source:      types.SourceUser,
				Content:     e.Text,
				IsStreaming: true,
				CreatedAt:   r.now(),
			})
			r.userIdx = len(r.messages) - 1
			r.state = UserTurnOpen
		}
		r.rev++
		return
	}

	if r.userIdx >= 0 {
		r.messages[r.userIdx].Content = e.Text
		r.messages[r.userIdx].IsStreaming = false
	} else {
		// No interim message existed; create the sealed message directly.
		r.messages = append(r.messages, LiveMessage{
			ID:        r.newID(types.SourceUser),
			Source:    types.SourceUser,
			Content:   e.Text,
			CreatedAt: r.now(),
		})
	}
	r.userIdx = -1
	r.state = Idle
	r.rev++
}

func (r *Reducer) applyBotStarted() {
	if r.botIdx >= 0 {
		// Out-of-order start before the previous stop: seal the old one.
		r.messages[r.botIdx].IsStreaming = false
	}
	r.messages = append(r.messages, LiveMessage{
		ID:          r.newID("bot"),
		Source:      types.SourceTutor,
		IsStreaming: true,
		CreatedAt:   r.now(),
	})
	r.botIdx = len(r.messages) - 1
	r.botWords = nil
	r.state = BotTurnOpen
	r.rev++
}

func (r *Reducer) applyBotText(e BotTtsTextEvent) {
	if r.botIdx < 0 {
		// Fragment with no open utterance: drop.
		return
	}
	r.botWords = append(r.botWords, e.Text)
	r.messages[r.botIdx].Content = strings.Join(r.botWords, " ")
	r.rev++
}

// Snapshot projects the accumulated turns into the persisted message shape
// for uniform rendering. Empty messages are filtered out. The projection is
// memoized on the reducer revision; the returned slice is the caller's to
// keep or mutate.
func (r *Reducer) Snapshot(sessionID string) []types.TranscriptMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.memo != nil && r.memoRev == r.rev {
		return append([]types.TranscriptMessage(nil), r.memo...)
	}

	out := make([]types.TranscriptMessage, 0, len(r.messages))
	for _, msg := range r.messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		out = append(out, types.TranscriptMessage{
			MessageID:      msg.ID,
			SessionID:      sessionID,
			MessageSource:  msg.Source,
			MessageKind:    types.KindTranscript,
			MessageContent: msg.Content,
			CreatedAt:      msg.CreatedAt,
			UpdatedAt:      msg.CreatedAt,
		})
	}
	r.memo = out
	r.memoRev = r.rev
	return append([]types.TranscriptMessage(nil), out...)
}

// Messages returns a copy of the live message list, including empty and
// still-streaming entries.
func (r *Reducer) Messages() []LiveMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LiveMessage(nil), r.messages...)
}

// State returns the current turn state.
func (r *Reducer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Reset clears all live state. No partial-turn artifacts survive a reset;
// it is called when a call ends.
func (r *Reducer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	r.state = Idle
	r.userIdx = -1
	r.botIdx = -1
	r.botWords = nil
	r.memo = nil
	r.rev++
	r.memoRev = r.rev - 1
}
