package types

// Cue is a single caption entry as read from an uploaded subtitle file.
// Order is significant and is preserved from the source file.
type Cue struct {
	TimeMs int64  `json:"time_ms"`
	Text   string `json:"text"`
}

// Segment is a playable time range with a label, derived from cues or
// created manually in the editor.
type Segment struct {
	ID    string  `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Label string  `json:"label"`
}

// SegmentRecord is the persisted metadata for one saved video+subtitle
// pairing. Filenames are nil until the matching blob has been written.
type SegmentRecord struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	VideoFilename    *string `json:"videoFilename"`
	SubtitleFilename *string `json:"subtitleFilename"`
	CreatedAt        string  `json:"createdAt"`
}
