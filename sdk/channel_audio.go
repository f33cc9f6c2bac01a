package tutor

import (
	"encoding/base64"
	"io"
	"strings"

	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core/types"
)

// ClipPlayer renders one decoded audio clip. Play returns a handle that
// stops playback when closed; the channel closes it before starting the
// next clip so only one clip plays at a time.
type ClipPlayer interface {
	Play(mimeType string, audio []byte) (io.Closer, error)
}

// ClipPlayerFunc adapts a function to a ClipPlayer.
type ClipPlayerFunc func(mimeType string, audio []byte) (io.Closer, error)

func (f ClipPlayerFunc) Play(mimeType string, audio []byte) (io.Closer, error) {
	return f(mimeType, audio)
}

// clipMIME maps a frame's audio format to a MIME type.
func clipMIME(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "mp3"
	}
	if format == "mp3" {
		return "audio/mpeg"
	}
	return "audio/" + format
}

func (ch *Channel) playClip(frame types.AudioFrameData) {
	audio, err := base64.StdEncoding.DecodeString(frame.AudioData)
	if err != nil {
		ch.client.logger.Warn("dropping undecodable audio frame", "error", err)
		return
	}

	ch.mu.Lock()
	playing := ch.playing
	ch.playing = nil
	ch.mu.Unlock()
	if playing != nil {
		playing.Close()
	}

	if ch.cfg.Player == nil {
		return
	}
	handle, err := ch.cfg.Player.Play(clipMIME(frame.Format), audio)
	if err != nil {
		ch.client.logger.Warn("audio clip playback failed", "error", err)
		return
	}

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		handle.Close()
		return
	}
	ch.playing = handle
	ch.mu.Unlock()
}
