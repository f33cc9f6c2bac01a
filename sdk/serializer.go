package tutor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

// Voice frame kinds.
const (
	VoiceFrameUserTranscript      = "user_transcript"
	VoiceFrameUserStartedSpeaking = "user_started_speaking"
	VoiceFrameUserStoppedSpeaking = "user_stopped_speaking"
	VoiceFrameBotStartedSpeaking  = "bot_started_speaking"
	VoiceFrameBotStoppedSpeaking  = "bot_stopped_speaking"
	VoiceFrameBotTtsStarted       = "bot_tts_started"
	VoiceFrameBotTtsText          = "bot_tts_text"
	VoiceFrameBotTtsStopped       = "bot_tts_stopped"
	VoiceFrameBotAudio            = "bot_audio"
	VoiceFrameAudioIn             = "audio_in"
)

// VoiceFrame is the decoded form of one pipeline message. Kind selects
// which of the remaining fields are meaningful. An empty Kind marks a frame
// the serializer recognized as valid but has no mapping for; the transport
// drops it without logging.
type VoiceFrame struct {
	Kind   string
	Text   string
	Final  bool
	Audio  []byte
	Format string
}

// FrameSerializer converts between VoiceFrame and the wire encoding of the
// pipeline. The pipeline's native framing differs per deployment, so the
// encoding is injected rather than fixed.
type FrameSerializer interface {
	Encode(frame VoiceFrame) (messageType int, data []byte, err error)
	Decode(messageType int, data []byte) (VoiceFrame, error)
}

// JSONFrameSerializer is the default serializer: one JSON object per text
// message with a type discriminator and base64 audio payloads.
type JSONFrameSerializer struct{}

type jsonVoiceFrame struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Final     bool   `json:"final,omitempty"`
	AudioData string `json:"audio_data,omitempty"`
	Format    string `json:"format,omitempty"`
}

func (JSONFrameSerializer) Encode(frame VoiceFrame) (int, []byte, error) {
	wire := jsonVoiceFrame{
		Type:   frame.Kind,
		Text:   frame.Text,
		Final:  frame.Final,
		Format: frame.Format,
	}
	if len(frame.Audio) > 0 {
		wire.AudioData = base64.StdEncoding.EncodeToString(frame.Audio)
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return 0, nil, fmt.Errorf("encode voice frame: %w", err)
	}
	return websocket.TextMessage, data, nil
}

func (JSONFrameSerializer) Decode(messageType int, data []byte) (VoiceFrame, error) {
	if messageType != websocket.TextMessage {
		return VoiceFrame{}, fmt.Errorf("unexpected message type %d", messageType)
	}
	var wire jsonVoiceFrame
	if err := json.Unmarshal(data, &wire); err != nil {
		return VoiceFrame{}, fmt.Errorf("decode voice frame: %w", err)
	}
	frame := VoiceFrame{
		Kind:   wire.Type,
		Text:   wire.Text,
		Final:  wire.Final,
		Format: wire.Format,
	}
	if wire.AudioData != "" {
		audio, err := base64.StdEncoding.DecodeString(wire.AudioData)
		if err != nil {
			return VoiceFrame{}, fmt.Errorf("decode voice frame audio: %w", err)
		}
		frame.Audio = audio
	}
	return frame, nil
}
