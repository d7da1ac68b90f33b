package segment

import (
	"fmt"
	"math"
)

// Round2 rounds a time value to 2 decimal places. Every arithmetic step in
// this package goes through it so float drift cannot accumulate across a
// cue sequence.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatTime renders seconds as "MM:SS.xx" for labels and messages.
// Negative or NaN input renders as zero.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		return "00:00.00"
	}
	total := Round2(seconds)

	minutes := int(total) / 60
	secs := total - float64(minutes*60)

	return fmt.Sprintf("%02d:%05.2f", minutes, secs)
}
