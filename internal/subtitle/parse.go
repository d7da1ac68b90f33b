package subtitle

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/codebuildervaibhav/segmento/internal/types"
)

var (
	// ErrInvalidFormat means the input could not be parsed into any cues.
	ErrInvalidFormat = errors.New("invalid subtitle format")
	// ErrUnsupportedExtension means the file is neither .json nor .txt.
	ErrUnsupportedExtension = errors.New("unsupported subtitle extension")
)

// ParseFile parses raw subtitle data into an ordered cue list, picking the
// format from the filename extension. The source order of entries is kept
// as-is, even when timestamps are out of order.
func ParseFile(name string, data []byte) ([]types.Cue, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return ParseJSON(data)
	case ".txt":
		return ParseLines(data)
	default:
		return nil, ErrUnsupportedExtension
	}
}

// rawCue uses pointers so that missing or mistyped fields are detectable.
type rawCue struct {
	TimeMs *float64 `json:"time_ms"`
	Text   *string  `json:"text"`
}

// ParseJSON parses a JSON array of {time_ms, text} objects. A single bad
// element rejects the whole input.
func ParseJSON(data []byte) ([]types.Cue, error) {
	var raw []rawCue
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ErrInvalidFormat
	}

	cues := make([]types.Cue, 0, len(raw))
	for _, r := range raw {
		if r.TimeMs == nil || r.Text == nil || strings.TrimSpace(*r.Text) == "" {
			return nil, ErrInvalidFormat
		}
		cues = append(cues, types.Cue{
			TimeMs: int64(*r.TimeMs),
			Text:   *r.Text,
		})
	}

	return cues, nil
}

// ParseLines parses the line-oriented "millis|text" format. Invalid lines
// are skipped with a warning; the input is only rejected when no valid
// line remains.
func ParseLines(data []byte) ([]types.Cue, error) {
	var cues []types.Cue

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for scanner.Scan() {
		line := scanner.Text()
		lineNum++

		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.SplitN(line, "|", 2)
		if len(parts) != 2 {
			log.Printf("Skipping invalid subtitle line %d: %q", lineNum, line)
			continue
		}

		ms, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		text := strings.TrimSpace(parts[1])
		if err != nil || ms < 0 || text == "" {
			log.Printf("Skipping invalid subtitle line %d: %q", lineNum, line)
			continue
		}

		cues = append(cues, types.Cue{TimeMs: ms, Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, ErrInvalidFormat
	}

	if len(cues) == 0 {
		return nil, ErrInvalidFormat
	}
	return cues, nil
}
