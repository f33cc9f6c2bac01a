package turns

// Event is the interface for all voice pipeline events.
type Event interface {
	// EventType returns the event type string for logging and serialization.
	EventType() string
}

// UserTranscriptEvent carries an interim or final STT result for the user.
// Interim results may be revised; the final result replaces them.
type UserTranscriptEvent struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

func (e UserTranscriptEvent) EventType() string { return "user.transcript" }

// UserStartedSpeakingEvent marks the beginning of a new user turn.
type UserStartedSpeakingEvent struct{}

func (e UserStartedSpeakingEvent) EventType() string { return "user.started_speaking" }

// UserStoppedSpeakingEvent marks the end of user speech.
type UserStoppedSpeakingEvent struct{}

func (e UserStoppedSpeakingEvent) EventType() string { return "user.stopped_speaking" }

// BotStartedSpeakingEvent marks the start of audible bot speech.
type BotStartedSpeakingEvent struct{}

func (e BotStartedSpeakingEvent) EventType() string { return "bot.started_speaking" }

// BotStoppedSpeakingEvent marks the end of audible bot speech.
type BotStoppedSpeakingEvent struct{}

func (e BotStoppedSpeakingEvent) EventType() string { return "bot.stopped_speaking" }

// BotTtsStartedEvent opens a new bot utterance.
type BotTtsStartedEvent struct{}

func (e BotTtsStartedEvent) EventType() string { return "bot.tts_started" }

// BotTtsTextEvent carries one word of the bot utterance being spoken.
type BotTtsTextEvent struct {
	Text string `json:"text"`
}

func (e BotTtsTextEvent) EventType() string { return "bot.tts_text" }

// BotTtsStoppedEvent marks the end of the bot utterance. Trailing
// BotTtsTextEvents for the same utterance may still arrive after it.
type BotTtsStoppedEvent struct{}

func (e BotTtsStoppedEvent) EventType() string { return "bot.tts_stopped" }
