// Package turns folds the fine-grained event stream of the voice pipeline
// (interim/final user transcripts, TTS start/text/stop, speaking markers)
// into coherent per-turn messages.
//
// The pipeline does not guarantee ordering between the end of a bot
// utterance and its trailing text fragments, nor between the start of a new
// utterance and the stop of the previous one. The reducer therefore keeps
// an explicit small state machine (Idle, UserTurnOpen, BotTurnOpen) instead
// of trusting event order:
//
//   - a stop event seals the open bot message but keeps accepting trailing
//     text for it until the next turn begins
//   - a new bot start seals whatever bot message was still open
//   - the user starting to speak closes the door on trailing bot fragments
//
// All state is owned by a single Reducer; callers feed it events and read
// projections, nothing else mutates it.
package turns
