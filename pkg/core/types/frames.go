package types

import "encoding/json"

// Frame kinds on the realtime message channel.
const (
	FrameTranscript = "transcript"
	FrameAudio      = "audio"
	FrameContext    = "context"
)

// ChannelFrame is one inbound frame on the realtime message channel.
// The payload shape depends on Kind.
type ChannelFrame struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// TranscriptFrameData is the payload of a transcript frame.
type TranscriptFrameData struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// AudioFrameData is the payload of an audio frame. AudioData is base64
// encoded; Format is a short tag such as "mp3" or "wav".
type AudioFrameData struct {
	AudioData string `json:"audio_data"`
	Format    string `json:"format"`
}

// ContextFrameData is the payload of a context frame. Context frames are
// informational; no channel state depends on them.
type ContextFrameData struct {
	AudioEnabled *bool   `json:"audio_enabled,omitempty"`
	Language     *string `json:"language,omitempty"`
	ActiveTool   *string `json:"active_tool,omitempty"`
}
