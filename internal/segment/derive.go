package segment

import (
	"log"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/segmento/internal/types"
)

// fallbackMargin is applied to the last cue when the media duration is too
// short to contain it.
const fallbackMargin = 5.0

// Derive converts an ordered cue list plus the total media duration into a
// finalized segment list. Each cue ends where the next one starts; the last
// cue ends at the media duration, pushed out by fallbackMargin when the
// duration is too short. Cues that produce an empty range or start past the
// end of the media are skipped, not fatal.
//
// Derive is a full re-run: callers replace any previous list wholesale
// whenever the cues or the duration change.
func Derive(cues []types.Cue, totalDuration float64) []types.Segment {
	duration := Round2(totalDuration)
	segments := make([]types.Segment, 0, len(cues))

	for i, cue := range cues {
		start := Round2(float64(cue.TimeMs) / 1000)

		var end float64
		fallback := false
		if i+1 < len(cues) {
			end = Round2(float64(cues[i+1].TimeMs) / 1000)
		} else {
			end = duration
			if end <= start {
				end = Round2(start + fallbackMargin)
				fallback = true
			}
		}

		// The fallback range is valid by construction even when the cue
		// sits at or past the media end.
		if start >= end || (!fallback && start >= duration) {
			log.Printf("Skipping cue %d (%q): range %.2f-%.2f outside media duration %.2f",
				i+1, cue.Text, start, end, duration)
			continue
		}

		segments = append(segments, types.Segment{
			ID:    uuid.New().String(),
			Start: start,
			End:   end,
			Label: cue.Text,
		})
	}

	return segments
}
