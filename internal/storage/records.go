package storage

import (
	"errors"

	"github.com/codebuildervaibhav/segmento/internal/types"
)

// ErrNotFound is returned by GetByID when no record has the given id.
var ErrNotFound = errors.New("record not found")

// RecordStore is the canonical owner of the saved SegmentRecord list.
// Put upserts; Delete is idempotent (deleting an absent id is not an
// error). Implementations must serialize concurrent writers.
type RecordStore interface {
	ListAll() ([]types.SegmentRecord, error)
	GetByID(id string) (*types.SegmentRecord, error)
	Put(rec types.SegmentRecord) error
	Delete(id string) error
}
