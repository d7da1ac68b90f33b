package segment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/segmento/internal/types"
)

var (
	// ErrInvalidRange means start >= end or a negative time was given.
	ErrInvalidRange = errors.New("segment start must be before end and non-negative")
	// ErrOutOfBounds means the end time exceeds the media duration.
	ErrOutOfBounds = errors.New("segment end exceeds media duration")
	// ErrNotFound means no segment with the given id exists in the list.
	ErrNotFound = errors.New("segment not found")
)

// copyPrefix marks a duplicated segment's label.
const copyPrefix = "(Copy) "

// List is the in-memory working set of segments for one editing session.
// It is discarded, not persisted, until an explicit save. Editing carries
// the id currently loaded into the edit form, if any; removing that
// segment clears it.
type List struct {
	Duration float64
	Items    []types.Segment
	Editing  string
}

// NewList starts an editing session over an existing segment list, usually
// the output of Derive or a saved collection loaded from disk.
func NewList(duration float64, items []types.Segment) *List {
	return &List{
		Duration: Round2(duration),
		Items:    items,
	}
}

// validate applies the shared Add/Update rules to an already-rounded range.
func (l *List) validate(start, end float64) error {
	if start < 0 || end < 0 || start >= end {
		return ErrInvalidRange
	}
	if end > l.Duration {
		return ErrOutOfBounds
	}
	return nil
}

// Add appends a new segment. A blank label is synthesized from the
// formatted time range.
func (l *List) Add(start, end float64, label string) (types.Segment, error) {
	start, end = Round2(start), Round2(end)
	if err := l.validate(start, end); err != nil {
		return types.Segment{}, err
	}

	if strings.TrimSpace(label) == "" {
		label = fmt.Sprintf("Segment %d: %s - %s",
			len(l.Items)+1, FormatTime(start), FormatTime(end))
	}

	seg := types.Segment{
		ID:    uuid.New().String(),
		Start: start,
		End:   end,
		Label: label,
	}
	l.Items = append(l.Items, seg)
	return seg, nil
}

// Update replaces the times and label of the segment with the given id,
// keeping its id and list position. A blank label is synthesized unless
// the existing label marks a copy.
func (l *List) Update(id string, start, end float64, label string) (types.Segment, error) {
	start, end = Round2(start), Round2(end)
	if err := l.validate(start, end); err != nil {
		return types.Segment{}, err
	}

	for i, seg := range l.Items {
		if seg.ID != id {
			continue
		}

		if strings.TrimSpace(label) == "" {
			if strings.HasPrefix(seg.Label, copyPrefix) {
				label = seg.Label
			} else {
				label = fmt.Sprintf("Updated segment: %s - %s",
					FormatTime(start), FormatTime(end))
			}
		}

		l.Items[i].Start = start
		l.Items[i].End = end
		l.Items[i].Label = label
		return l.Items[i], nil
	}

	return types.Segment{}, ErrNotFound
}

// Duplicate appends a copy of the segment with the given id under a fresh
// id, with the label prefixed to mark it as a copy.
func (l *List) Duplicate(id string) (types.Segment, error) {
	for _, seg := range l.Items {
		if seg.ID != id {
			continue
		}

		dup := types.Segment{
			ID:    uuid.New().String(),
			Start: seg.Start,
			End:   seg.End,
			Label: copyPrefix + seg.Label,
		}
		l.Items = append(l.Items, dup)
		return dup, nil
	}

	return types.Segment{}, ErrNotFound
}

// Remove deletes the segment with the given id. If that segment was open
// for editing, the edit-in-progress state is cleared.
func (l *List) Remove(id string) error {
	for i, seg := range l.Items {
		if seg.ID != id {
			continue
		}

		l.Items = append(l.Items[:i], l.Items[i+1:]...)
		if l.Editing == id {
			l.Editing = ""
		}
		return nil
	}

	return ErrNotFound
}

// StartEditing loads the segment with the given id into the edit state.
func (l *List) StartEditing(id string) error {
	for _, seg := range l.Items {
		if seg.ID == id {
			l.Editing = id
			return nil
		}
	}
	return ErrNotFound
}
