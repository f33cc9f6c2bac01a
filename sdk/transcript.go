package tutor

import (
	"sort"

	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core/types"
)

// MergeTranscript merges persisted history with in-progress live messages
// into one render-ready feed ordered by timestamp. The sort is stable and
// the inputs keep their relative order, so messages sharing a timestamp
// render persisted-first and never swap between calls.
func MergeTranscript(persisted, live []types.TranscriptMessage) []types.DisplayMessage {
	out := make([]types.DisplayMessage, 0, len(persisted)+len(live))
	for _, m := range persisted {
		out = append(out, m.Display())
	}
	for _, m := range live {
		out = append(out, m.Display())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}
