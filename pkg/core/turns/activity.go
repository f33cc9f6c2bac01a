package turns

import "sync"

// Activity describes what the agent is doing, for status display.
type Activity string

const (
	ActivityIdle      Activity = "idle"
	ActivityListening Activity = "listening"
	ActivityThinking  Activity = "thinking"
	ActivitySpeaking  Activity = "speaking"
)

// ActivityTracker derives the agent activity from speaking markers.
// It is a projection only; it never feeds back into the reducer.
type ActivityTracker struct {
	mu    sync.Mutex
	state Activity
}

// NewActivityTracker returns a tracker in the idle state.
func NewActivityTracker() *ActivityTracker {
	return &ActivityTracker{state: ActivityIdle}
}

// Apply updates the activity from one event. Events that carry no activity
// information are ignored.
func (t *ActivityTracker) Apply(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch event.(type) {
	case UserStartedSpeakingEvent:
		t.state = ActivityListening
	case UserStoppedSpeakingEvent:
		t.state = ActivityThinking
	case BotStartedSpeakingEvent:
		t.state = ActivitySpeaking
	case BotStoppedSpeakingEvent:
		t.state = ActivityIdle
	}
}

// Activity returns the current state. While the voice transport is not
// ready the agent is always reported idle.
func (t *ActivityTracker) Activity(transportReady bool) Activity {
	if !transportReady {
		return ActivityIdle
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Reset returns the tracker to idle.
func (t *ActivityTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = ActivityIdle
}
