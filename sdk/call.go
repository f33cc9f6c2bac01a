package tutor

import (
	"context"
	"net/url"
	"sync"

	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core"
	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core/turns"
)

// Mode is the interaction mode of a session.
type Mode int

const (
	ModeChat Mode = iota
	ModeCall
)

func (m Mode) String() string {
	if m == ModeCall {
		return "call"
	}
	return "chat"
}

// CallConfig configures a call controller.
type CallConfig struct {
	// Voice is the transport the controller drives. Required.
	Voice *VoiceTransport
	// Reducer receives turn events during a call. Nil creates one.
	Reducer *turns.Reducer
	// Activity tracks the agent activity indicator. Nil creates one.
	Activity *turns.ActivityTracker
	// OnReady runs when the voice connection becomes ready, typically to
	// enable the microphone.
	OnReady func()
}

// CallController owns the chat/call mode of a session. Starting a call
// switches to call mode before any network work so the interface follows
// the user's intent immediately; failures surface as an error banner while
// the mode stays put. Ending a call always returns to chat mode and resets
// the live transcript, even when hanging up the transport fails.
type CallController struct {
	voice    *VoiceTransport
	reducer  *turns.Reducer
	activity *turns.ActivityTracker
	client   *Client
	onReady  func()

	mu      sync.Mutex
	mode    Mode
	lastErr string
}

// NewCallController creates a controller and wires the transport's events
// into the reducer and activity tracker.
func (c *Client) NewCallController(cfg CallConfig) *CallController {
	reducer := cfg.Reducer
	if reducer == nil {
		reducer = turns.NewReducer()
	}
	activity := cfg.Activity
	if activity == nil {
		activity = turns.NewActivityTracker()
	}
	ctl := &CallController{
		voice:    cfg.Voice,
		reducer:  reducer,
		activity: activity,
		client:   c,
		onReady:  cfg.OnReady,
		mode:     ModeChat,
	}
	ctl.voice.OnEvent(func(ev turns.Event) {
		ctl.reducer.Apply(ev)
		ctl.activity.Apply(ev)
	})
	ctl.voice.OnStateChange(ctl.handleVoiceState)
	return ctl
}

// Reducer exposes the live transcript reducer.
func (ctl *CallController) Reducer() *turns.Reducer {
	return ctl.reducer
}

// Activity returns the current agent activity, idle unless the voice
// connection is ready.
func (ctl *CallController) Activity() turns.Activity {
	return ctl.activity.Activity(ctl.voice.State() == VoiceReady)
}

// Mode returns the current interaction mode.
func (ctl *CallController) Mode() Mode {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.mode
}

// LastError returns the most recent call failure, cleared on the next
// StartCall.
func (ctl *CallController) LastError() string {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.lastErr
}

// StartCall switches to call mode and connects the voice pipeline for
// sessionID. The mode flips before the dial; on failure it stays in call
// mode with the error recorded, so the user decides whether to retry or
// hang up. Starting while already connected or connecting only switches
// the mode.
func (ctl *CallController) StartCall(ctx context.Context, sessionID string) error {
	ctl.mu.Lock()
	ctl.mode = ModeCall
	ctl.lastErr = ""
	ctl.mu.Unlock()

	if s := ctl.voice.State(); s == VoiceReady || s == VoiceConnecting {
		return nil
	}

	token, err := ctl.client.tokens.Token(ctx)
	if err != nil || token == "" {
		ctl.setErr("authentication required")
		return core.NewAuthRequiredError("voice call requires an access token")
	}

	wsURL, err := ctl.client.websocketEndpoint("/pipecat/session/" + sessionID + "?token=" + url.QueryEscape(token))
	if err != nil {
		ctl.setErr(err.Error())
		return err
	}

	if err := ctl.voice.Connect(ctx, wsURL); err != nil {
		ctl.setErr(err.Error())
		return err
	}
	return nil
}

// EndCall hangs up and returns to chat mode. The live transcript and
// activity indicator are reset unconditionally; a failed hangup is logged
// and does not keep the session in call mode.
func (ctl *CallController) EndCall() {
	if s := ctl.voice.State(); s == VoiceReady || s == VoiceConnecting {
		if err := ctl.voice.Disconnect(); err != nil {
			ctl.client.logger.Warn("voice hangup failed", "error", err)
		}
	}

	ctl.reducer.Reset()
	ctl.activity.Reset()

	ctl.mu.Lock()
	ctl.mode = ModeChat
	ctl.mu.Unlock()
}

// SetMuted gates the outbound microphone.
func (ctl *CallController) SetMuted(muted bool) {
	ctl.voice.EnableMic(!muted)
}

// Muted reports the microphone gate.
func (ctl *CallController) Muted() bool {
	return !ctl.voice.MicEnabled()
}

func (ctl *CallController) handleVoiceState(state VoiceState) {
	if state == VoiceReady && ctl.onReady != nil {
		ctl.onReady()
	}
}

func (ctl *CallController) setErr(message string) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	ctl.lastErr = message
}
