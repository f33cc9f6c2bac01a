package tutor

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core"
	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core/turns"
)

// VoiceState is the lifecycle state of the streaming voice connection.
type VoiceState int

const (
	VoiceInitializing VoiceState = iota
	VoiceConnecting
	VoiceReady
	VoiceDisconnected
	VoiceError
)

func (s VoiceState) String() string {
	switch s {
	case VoiceInitializing:
		return "initializing"
	case VoiceConnecting:
		return "connecting"
	case VoiceReady:
		return "ready"
	case VoiceDisconnected:
		return "disconnected"
	case VoiceError:
		return "error"
	default:
		return "unknown"
	}
}

// VoiceConfig configures a voice transport.
type VoiceConfig struct {
	// Serializer encodes and decodes pipeline frames. Default JSON.
	Serializer FrameSerializer
	// Output configures tutor speech buffering.
	Output AudioOutputConfig
	// DialTimeout bounds a dial without a context deadline. Default 15s.
	DialTimeout time.Duration
	// Dialer overrides the websocket dialer, mainly for tests.
	Dialer WebsocketDialer
}

// VoiceTransport is the streaming connection to the voice pipeline. Inbound
// frames become turn events for the live transcript reducer; tutor speech
// audio is queued on the AudioOutput. Outbound microphone audio is written
// only while the mic is enabled.
//
// Unlike the realtime channel the voice transport does not reconnect on its
// own: a dropped call ends the call.
type VoiceTransport struct {
	client     *Client
	serializer FrameSerializer
	dialer     WebsocketDialer
	timeout    time.Duration
	out        *AudioOutput

	mu      sync.Mutex
	state   VoiceState
	conn    *websocket.Conn
	mic     bool
	onEvent []func(turns.Event)
	onState []func(VoiceState)

	writeMu sync.Mutex
}

// NewVoiceTransport creates a transport bound to this client.
func (c *Client) NewVoiceTransport(cfg VoiceConfig) *VoiceTransport {
	serializer := cfg.Serializer
	if serializer == nil {
		serializer = JSONFrameSerializer{}
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	return &VoiceTransport{
		client:     c,
		serializer: serializer,
		dialer:     dialer,
		timeout:    timeout,
		out:        NewAudioOutput(cfg.Output),
		state:      VoiceInitializing,
	}
}

// OnEvent registers a turn event handler. Register before Connect.
func (v *VoiceTransport) OnEvent(fn func(turns.Event)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onEvent = append(v.onEvent, fn)
}

// OnStateChange registers a state handler. Register before Connect.
func (v *VoiceTransport) OnStateChange(fn func(VoiceState)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onState = append(v.onState, fn)
}

// State returns the current connection state.
func (v *VoiceTransport) State() VoiceState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Output exposes the tutor speech queue.
func (v *VoiceTransport) Output() *AudioOutput {
	return v.out
}

// EnableMic opens or closes the outbound microphone gate. Audio sent while
// the gate is closed is dropped at the source.
func (v *VoiceTransport) EnableMic(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mic = enabled
}

// MicEnabled reports the microphone gate.
func (v *VoiceTransport) MicEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mic
}

// Connect dials the pipeline at wsURL. Calling it while ready or connecting
// is a no-op.
func (v *VoiceTransport) Connect(ctx context.Context, wsURL string) error {
	v.mu.Lock()
	if v.state == VoiceReady || v.state == VoiceConnecting {
		v.mu.Unlock()
		return nil
	}
	v.state = VoiceConnecting
	handlers := append(([]func(VoiceState))(nil), v.onState...)
	v.mu.Unlock()
	notify(handlers, VoiceConnecting)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	conn, resp, err := v.dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		v.setState(VoiceError)
		return &TransportError{Op: "dial voice pipeline", URL: wsURL, Err: err}
	}

	v.mu.Lock()
	v.conn = conn
	v.mu.Unlock()
	v.setState(VoiceReady)

	go v.readLoop(conn)
	return nil
}

func (v *VoiceTransport) readLoop(conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		frame, err := v.serializer.Decode(messageType, data)
		if err != nil {
			v.client.logger.Warn("dropping undecodable voice frame", "error", err)
			continue
		}
		v.dispatch(frame)
	}

	v.mu.Lock()
	stale := v.conn != conn
	if !stale {
		v.conn = nil
	}
	v.mu.Unlock()
	if !stale {
		v.setState(VoiceDisconnected)
	}
}

// dispatch maps one inbound frame to reducer events and audio.
func (v *VoiceTransport) dispatch(frame VoiceFrame) {
	switch frame.Kind {
	case VoiceFrameUserTranscript:
		v.emit(turns.UserTranscriptEvent{Text: frame.Text, Final: frame.Final})
	case VoiceFrameUserStartedSpeaking:
		// The user interrupted: stale tutor speech must stop now, before
		// the event reaches the reducer.
		v.out.Flush()
		v.emit(turns.UserStartedSpeakingEvent{})
	case VoiceFrameUserStoppedSpeaking:
		v.emit(turns.UserStoppedSpeakingEvent{})
	case VoiceFrameBotStartedSpeaking:
		v.emit(turns.BotStartedSpeakingEvent{})
	case VoiceFrameBotStoppedSpeaking:
		v.emit(turns.BotStoppedSpeakingEvent{})
	case VoiceFrameBotTtsStarted:
		v.emit(turns.BotTtsStartedEvent{})
	case VoiceFrameBotTtsText:
		v.emit(turns.BotTtsTextEvent{Text: frame.Text})
	case VoiceFrameBotTtsStopped:
		v.emit(turns.BotTtsStoppedEvent{})
	case VoiceFrameBotAudio:
		v.out.Push(frame.Audio)
	case "":
		// Frames the serializer does not recognize.
	default:
		v.client.logger.Debug("ignoring unknown voice frame", "kind", frame.Kind)
	}
}

func (v *VoiceTransport) emit(ev turns.Event) {
	v.mu.Lock()
	handlers := append(([]func(turns.Event))(nil), v.onEvent...)
	v.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

func (v *VoiceTransport) setState(state VoiceState) {
	v.mu.Lock()
	v.state = state
	handlers := append(([]func(VoiceState))(nil), v.onState...)
	v.mu.Unlock()
	notify(handlers, state)
}

func notify(handlers []func(VoiceState), state VoiceState) {
	for _, fn := range handlers {
		fn(state)
	}
}

// SendAudio writes one chunk of microphone PCM. Chunks sent while muted
// are silently dropped; sending without a connection is an error.
func (v *VoiceTransport) SendAudio(pcm []byte) error {
	v.mu.Lock()
	if v.state != VoiceReady || v.conn == nil {
		v.mu.Unlock()
		return core.NewNotConnectedError("voice pipeline is not connected")
	}
	if !v.mic {
		v.mu.Unlock()
		return nil
	}
	conn := v.conn
	v.mu.Unlock()

	messageType, data, err := v.serializer.Encode(VoiceFrame{
		Kind:   VoiceFrameAudioIn,
		Audio:  pcm,
		Format: "pcm_s16le",
	})
	if err != nil {
		return core.NewInvalidRequestError("encode audio frame: " + err.Error())
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	if err := conn.WriteMessage(messageType, data); err != nil {
		return &TransportError{Op: "send voice audio", Err: err}
	}
	return nil
}

// Disconnect closes the connection and drops queued tutor speech.
func (v *VoiceTransport) Disconnect() error {
	v.mu.Lock()
	conn := v.conn
	v.conn = nil
	v.mu.Unlock()

	v.out.Flush()
	if conn == nil {
		v.setState(VoiceDisconnected)
		return nil
	}

	v.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	v.writeMu.Unlock()

	err := conn.Close()
	v.setState(VoiceDisconnected)
	return err
}
