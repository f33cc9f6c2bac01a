package tutor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core"
	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core/types"
)

var testUpgrader = websocket.Upgrader{}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeClip struct {
	mu     sync.Mutex
	closed bool
}

func (c *fakeClip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClip) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakePlayer struct {
	mu    sync.Mutex
	mimes []string
	clips []*fakeClip
}

func (p *fakePlayer) Play(mimeType string, audio []byte) (io.Closer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	clip := &fakeClip{}
	p.mimes = append(p.mimes, mimeType)
	p.clips = append(p.clips, clip)
	return clip, nil
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clips)
}

func TestChannelSendEchoesAndDelivers(t *testing.T) {
	t.Parallel()
	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realtime-session/s1" {
			t.Errorf("path=%q, want /realtime-session/s1", r.URL.Path)
		}
		if got := r.URL.Query().Get("token"); got != "tok-1" {
			t.Errorf("token=%q, want tok-1", got)
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithTokenSource(StaticTokenSource("tok-1")))
	channel := client.NewChannel(ChannelConfig{})
	defer channel.Close()

	if err := channel.Connect(context.Background(), "s1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := channel.Status(); got != ChannelConnected {
		t.Fatalf("status=%v, want connected", got)
	}

	if err := channel.Send("مرحبا"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// The echo lands in the log before Send returns.
	entries := channel.Log().Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if !entries[0].IsUser || entries[0].Text != "مرحبا" {
		t.Fatalf("entry=%+v", entries[0])
	}

	select {
	case got := <-received:
		if got != "مرحبا" {
			t.Fatalf("wire text=%q, want it verbatim", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received the message")
	}
}

func TestChannelSendWhileDisconnected(t *testing.T) {
	t.Parallel()
	client := NewClient(WithTokenSource(StaticTokenSource("tok")))
	channel := client.NewChannel(ChannelConfig{})
	defer channel.Close()

	err := channel.Send("hello")
	if !core.IsNotConnected(err) {
		t.Fatalf("err=%v, want not connected", err)
	}
	if entries := channel.Log().Entries(); len(entries) != 0 {
		t.Fatalf("failed send must not reach the log, got %d entries", len(entries))
	}
	if channel.LastError() == "" {
		t.Fatalf("last error should be recorded")
	}
}

func TestChannelRequiresToken(t *testing.T) {
	t.Parallel()
	client := NewClient()
	channel := client.NewChannel(ChannelConfig{})
	defer channel.Close()

	err := channel.Connect(context.Background(), "s1")
	if !core.IsAuthRequired(err) {
		t.Fatalf("err=%v, want auth required", err)
	}
	if got := channel.Status(); got != ChannelError {
		t.Fatalf("status=%v, want error", got)
	}
}

func TestChannelInboundFrames(t *testing.T) {
	t.Parallel()
	frames := make(chan []byte, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for data := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithTokenSource(StaticTokenSource("tok")))
	channel := client.NewChannel(ChannelConfig{})
	defer channel.Close()
	if err := channel.Connect(context.Background(), "s1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	transcript, _ := json.Marshal(types.ChannelFrame{
		Kind: types.FrameTranscript,
		Data: json.RawMessage(`{"text":"أهلاً","source":"tutor"}`),
	})
	frames <- []byte(`{not json`)
	frames <- transcript
	close(frames)

	waitFor(t, "transcript frame", func() bool {
		return len(channel.Log().Entries()) == 1
	})
	entry := channel.Log().Entries()[0]
	if entry.IsUser || entry.Text != "أهلاً" {
		t.Fatalf("entry=%+v", entry)
	}
}

func TestChannelPlaysOneClipAtATime(t *testing.T) {
	t.Parallel()
	frames := make(chan []byte, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for data := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	player := &fakePlayer{}
	client := NewClient(WithBaseURL(server.URL), WithTokenSource(StaticTokenSource("tok")))
	channel := client.NewChannel(ChannelConfig{Player: player})
	defer channel.Close()
	if err := channel.Connect(context.Background(), "s1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	clip := base64.StdEncoding.EncodeToString([]byte("pcm"))
	audioFrame := func(format string) []byte {
		data, _ := json.Marshal(types.AudioFrameData{AudioData: clip, Format: format})
		frame, _ := json.Marshal(types.ChannelFrame{Kind: types.FrameAudio, Data: data})
		return frame
	}
	frames <- audioFrame("mp3")
	frames <- audioFrame("wav")
	close(frames)

	waitFor(t, "both clips", func() bool { return player.count() == 2 })

	player.mu.Lock()
	defer player.mu.Unlock()
	if player.mimes[0] != "audio/mpeg" {
		t.Fatalf("mime[0]=%q, want audio/mpeg", player.mimes[0])
	}
	if player.mimes[1] != "audio/wav" {
		t.Fatalf("mime[1]=%q, want audio/wav", player.mimes[1])
	}
	if !player.clips[0].isClosed() {
		t.Fatalf("first clip should be stopped when the second starts")
	}
	if player.clips[1].isClosed() {
		t.Fatalf("second clip should still be playing")
	}
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	conns := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()
		if n == 1 {
			// Drop the first connection immediately.
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithTokenSource(StaticTokenSource("tok")))
	channel := client.NewChannel(ChannelConfig{ReconnectDelay: 10 * time.Millisecond})
	defer channel.Close()
	if err := channel.Connect(context.Background(), "s1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitFor(t, "reconnect", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return conns >= 2
	})
	waitFor(t, "connected status", func() bool {
		return channel.Status() == ChannelConnected
	})
}

func TestChannelDefaultReconnectDelay(t *testing.T) {
	t.Parallel()
	client := NewClient(WithTokenSource(StaticTokenSource("tok")))
	channel := client.NewChannel(ChannelConfig{})
	defer channel.Close()

	if channel.cfg.ReconnectDelay != 3*time.Second {
		t.Fatalf("delay=%v, want 3s", channel.cfg.ReconnectDelay)
	}
}

func TestChannelConnectIdempotent(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	conns := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns++
		mu.Unlock()
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithTokenSource(StaticTokenSource("tok")))
	channel := client.NewChannel(ChannelConfig{})
	defer channel.Close()

	for i := 0; i < 3; i++ {
		if err := channel.Connect(context.Background(), "s1"); err != nil {
			t.Fatalf("Connect %d: %v", i, err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if conns != 1 {
		t.Fatalf("conns=%d, want 1", conns)
	}
}

func TestChannelSwitchingSessionsReplacesConnection(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	player := &fakePlayer{}
	client := NewClient(WithBaseURL(server.URL), WithTokenSource(StaticTokenSource("tok")))
	channel := client.NewChannel(ChannelConfig{ReconnectDelay: 10 * time.Millisecond, Player: player})
	defer channel.Close()

	if err := channel.Connect(context.Background(), "s1"); err != nil {
		t.Fatalf("Connect s1: %v", err)
	}
	if err := channel.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	clip, _ := player.Play("audio/mpeg", []byte("pcm"))
	channel.mu.Lock()
	channel.playing = clip
	channel.mu.Unlock()

	if err := channel.Connect(context.Background(), "s2"); err != nil {
		t.Fatalf("Connect s2: %v", err)
	}
	if got := channel.Status(); got != ChannelConnected {
		t.Fatalf("status=%v, want connected", got)
	}

	mu.Lock()
	gotPaths := append([]string(nil), paths...)
	mu.Unlock()
	want := []string{"/realtime-session/s1", "/realtime-session/s2"}
	if len(gotPaths) != 2 || gotPaths[0] != want[0] || gotPaths[1] != want[1] {
		t.Fatalf("paths=%v, want %v", gotPaths, want)
	}

	// The old session's log and clip do not leak into the new session.
	if entries := channel.Log().Entries(); len(entries) != 0 {
		t.Fatalf("got %d entries after switch, want 0", len(entries))
	}
	player.mu.Lock()
	stopped := player.clips[0].isClosed()
	player.mu.Unlock()
	if !stopped {
		t.Fatalf("the playing clip should be stopped on session switch")
	}

	// The replaced connection must not trigger a reconnect to s1.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 2 {
		t.Fatalf("paths=%v, reconnect dialed the old session", paths)
	}
}

func TestChannelCloseStopsReconnect(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	conns := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns++
		mu.Unlock()
		conn.Close()
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithTokenSource(StaticTokenSource("tok")))
	channel := client.NewChannel(ChannelConfig{ReconnectDelay: 10 * time.Millisecond})
	if err := channel.Connect(context.Background(), "s1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	channel.Close()
	mu.Lock()
	after := conns
	mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if conns != after {
		t.Fatalf("conns grew from %d to %d after Close", after, conns)
	}
	if got := channel.Status(); got != ChannelDisconnected {
		t.Fatalf("status=%v, want disconnected", got)
	}
}
