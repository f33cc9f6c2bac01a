package tutor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core"
	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core/types"
)

// ChannelStatus is the connection state of the realtime message channel.
type ChannelStatus int

const (
	ChannelDisconnected ChannelStatus = iota
	ChannelConnecting
	ChannelConnected
	ChannelError
)

func (s ChannelStatus) String() string {
	switch s {
	case ChannelDisconnected:
		return "disconnected"
	case ChannelConnecting:
		return "connecting"
	case ChannelConnected:
		return "connected"
	case ChannelError:
		return "error"
	default:
		return "unknown"
	}
}

const (
	defaultReconnectDelay = 3 * time.Second
	defaultDialTimeout    = 15 * time.Second
)

// WebsocketDialer abstracts the websocket dial for testing.
type WebsocketDialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// ChannelConfig configures a realtime message channel.
type ChannelConfig struct {
	// ReconnectDelay is the pause before redialing after the connection
	// drops, whatever the cause. Default 3s.
	ReconnectDelay time.Duration
	// MaxReconnectAttempts caps consecutive failed redials before the
	// channel settles in the error state. Zero retries forever.
	MaxReconnectAttempts int
	// DialTimeout bounds a single dial when the caller's context carries
	// no deadline. Default 15s.
	DialTimeout time.Duration
	// Player renders inbound audio clips. Nil drops audio frames.
	Player ClipPlayer
	// Dialer overrides the websocket dialer, mainly for tests.
	Dialer WebsocketDialer
}

// Channel is the persistent realtime connection for one session. It keeps
// itself connected until Close: any disconnect schedules a redial after
// ReconnectDelay. Inbound frames land in the channel's ChatLog or the clip
// player; outbound text is echoed locally before it is written.
type Channel struct {
	client *Client
	cfg    ChannelConfig
	dialer WebsocketDialer
	log    *ChatLog

	mu             sync.Mutex
	sessionID      string
	conn           *websocket.Conn
	status         ChannelStatus
	lastErr        string
	closed         bool
	attempts       int
	reconnectTimer *time.Timer
	playing        interface{ Close() error }

	writeMu sync.Mutex
}

// NewChannel creates a channel bound to this client's credentials and
// endpoints. Connect starts it.
func (c *Client) NewChannel(cfg ChannelConfig) *Channel {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Channel{
		client: c,
		cfg:    cfg,
		dialer: dialer,
		log:    NewChatLog(),
	}
}

// Log exposes the channel's chat log.
func (ch *Channel) Log() *ChatLog {
	return ch.log
}

// Status returns the current connection status.
func (ch *Channel) Status() ChannelStatus {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.status
}

// LastError returns the most recent connection or send failure, cleared on
// the next successful connect.
func (ch *Channel) LastError() string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.lastErr
}

// Connect dials the realtime endpoint for sessionID. Calling it while
// already connected or connecting to the same session is a no-op.
// Switching sessions tears the previous connection down first and clears
// the chat log.
func (ch *Channel) Connect(ctx context.Context, sessionID string) error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return core.NewInvalidRequestError("channel is closed")
	}
	if sessionID == ch.sessionID && (ch.status == ChannelConnected || ch.status == ChannelConnecting) {
		ch.mu.Unlock()
		return nil
	}
	if sessionID != ch.sessionID {
		ch.teardownLocked()
		ch.log.Reset()
	}
	ch.stopReconnectLocked()
	ch.sessionID = sessionID
	ch.status = ChannelConnecting
	ch.lastErr = ""
	ch.mu.Unlock()

	return ch.dial(ctx, sessionID)
}

func (ch *Channel) dial(ctx context.Context, sessionID string) error {
	token, err := ch.client.tokens.Token(ctx)
	if err != nil || token == "" {
		ch.setFailure("authentication required")
		return core.NewAuthRequiredError("realtime channel requires an access token")
	}

	wsURL, err := ch.client.websocketEndpoint("/realtime-session/" + sessionID + "?token=" + url.QueryEscape(token))
	if err != nil {
		ch.setFailure(err.Error())
		return err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ch.cfg.DialTimeout)
		defer cancel()
	}

	conn, resp, err := ch.dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		ch.setFailure("dial failed: " + err.Error())
		ch.scheduleReconnect(sessionID)
		return &TransportError{Op: "dial realtime channel", URL: wsURL, Err: err}
	}

	ch.mu.Lock()
	if ch.closed || ch.sessionID != sessionID {
		ch.mu.Unlock()
		conn.Close()
		return nil
	}
	ch.conn = conn
	ch.status = ChannelConnected
	ch.lastErr = ""
	ch.attempts = 0
	ch.mu.Unlock()

	ch.client.logger.Debug("realtime channel connected", "session_id", sessionID)
	go ch.readLoop(conn, sessionID)
	return nil
}

func (ch *Channel) readLoop(conn *websocket.Conn, sessionID string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		ch.handleFrame(data)
	}
	ch.handleDisconnect(conn, sessionID)
}

func (ch *Channel) handleDisconnect(conn *websocket.Conn, sessionID string) {
	ch.mu.Lock()
	if ch.conn != conn {
		// A newer connection replaced this one.
		ch.mu.Unlock()
		return
	}
	ch.conn = nil
	if ch.closed {
		ch.status = ChannelDisconnected
		ch.mu.Unlock()
		return
	}
	ch.status = ChannelDisconnected
	ch.mu.Unlock()

	ch.client.logger.Debug("realtime channel disconnected, scheduling reconnect",
		"session_id", sessionID, "delay", ch.cfg.ReconnectDelay)
	ch.scheduleReconnect(sessionID)
}

func (ch *Channel) scheduleReconnect(sessionID string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed || ch.sessionID != sessionID || ch.reconnectTimer != nil {
		return
	}
	if ch.cfg.MaxReconnectAttempts > 0 && ch.attempts >= ch.cfg.MaxReconnectAttempts {
		ch.status = ChannelError
		ch.lastErr = "reconnect attempts exhausted"
		return
	}
	ch.attempts++
	ch.reconnectTimer = time.AfterFunc(ch.cfg.ReconnectDelay, func() {
		ch.mu.Lock()
		ch.reconnectTimer = nil
		if ch.closed || ch.sessionID != sessionID {
			ch.mu.Unlock()
			return
		}
		ch.status = ChannelConnecting
		ch.mu.Unlock()
		ch.dial(context.Background(), sessionID)
	})
}

// teardownLocked closes the current connection and stops any playing clip,
// for a session switch. The old read loop exits through its stale-conn
// check without scheduling a reconnect. Callers hold ch.mu.
func (ch *Channel) teardownLocked() {
	if ch.conn != nil {
		ch.conn.Close()
		ch.conn = nil
	}
	if ch.playing != nil {
		ch.playing.Close()
		ch.playing = nil
	}
	ch.status = ChannelDisconnected
}

func (ch *Channel) stopReconnectLocked() {
	if ch.reconnectTimer != nil {
		ch.reconnectTimer.Stop()
		ch.reconnectTimer = nil
	}
	ch.attempts = 0
}

func (ch *Channel) setFailure(message string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.status = ChannelError
	ch.lastErr = message
}

// Send writes one raw text message. The text is appended to the chat log
// before the write so the sender sees it immediately. When the channel is
// not connected the log is left untouched and a not-connected error is
// returned.
func (ch *Channel) Send(text string) error {
	ch.mu.Lock()
	if ch.status != ChannelConnected || ch.conn == nil {
		ch.lastErr = "not connected"
		ch.mu.Unlock()
		return core.NewNotConnectedError("realtime channel is not connected")
	}
	conn := ch.conn
	ch.mu.Unlock()

	ch.log.AppendUser(text)

	ch.writeMu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, []byte(text))
	ch.writeMu.Unlock()
	if err != nil {
		ch.mu.Lock()
		ch.lastErr = "send failed: " + err.Error()
		ch.mu.Unlock()
		return &TransportError{Op: "send realtime message", Err: err}
	}
	return nil
}

// handleFrame decodes one inbound frame. Malformed frames are logged and
// dropped; the connection stays up.
func (ch *Channel) handleFrame(data []byte) {
	var frame types.ChannelFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		ch.client.logger.Warn("dropping malformed channel frame", "error", err)
		return
	}

	switch frame.Kind {
	case types.FrameTranscript:
		var t types.TranscriptFrameData
		if err := json.Unmarshal(frame.Data, &t); err != nil {
			ch.client.logger.Warn("dropping malformed transcript frame", "error", err)
			return
		}
		if t.Source == types.SourceUser {
			ch.log.AppendUser(t.Text)
		} else {
			ch.log.AppendAgent(t.Text)
		}
	case types.FrameAudio:
		var a types.AudioFrameData
		if err := json.Unmarshal(frame.Data, &a); err != nil {
			ch.client.logger.Warn("dropping malformed audio frame", "error", err)
			return
		}
		ch.playClip(a)
	case types.FrameContext:
		ch.client.logger.Debug("session context updated over channel")
	default:
		ch.client.logger.Debug("ignoring unknown channel frame", "kind", frame.Kind)
	}
}

// Close tears the channel down permanently: pending reconnects are
// canceled, the socket is closed and any playing clip is stopped.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	ch.closed = true
	ch.stopReconnectLocked()
	conn := ch.conn
	ch.conn = nil
	ch.status = ChannelDisconnected
	playing := ch.playing
	ch.playing = nil
	ch.mu.Unlock()

	if playing != nil {
		playing.Close()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}
