package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/segmento/internal/types"
)

// SQLiteStore is the RecordStore backing. SQLite serializes concurrent
// writers, so read-modify-write races between requests cannot lose
// updates.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the record database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS segment_records (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		video_filename TEXT,
		subtitle_filename TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_created_at ON segment_records(created_at);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create table: %v", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ListAll returns every saved record, newest first.
func (s *SQLiteStore) ListAll() ([]types.SegmentRecord, error) {
	rows, err := s.db.Query(`
	SELECT id, title, video_filename, subtitle_filename, created_at
	FROM segment_records ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %v", err)
	}
	defer rows.Close()

	records := []types.SegmentRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %v", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetByID returns the record with the given id, or ErrNotFound.
func (s *SQLiteStore) GetByID(id string) (*types.SegmentRecord, error) {
	row := s.db.QueryRow(`
	SELECT id, title, video_filename, subtitle_filename, created_at
	FROM segment_records WHERE id = ?
	`, id)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %v", err)
	}

	return &rec, nil
}

// Put inserts the record, replacing any existing row with the same id.
func (s *SQLiteStore) Put(rec types.SegmentRecord) error {
	_, err := s.db.Exec(`
	INSERT INTO segment_records (id, title, video_filename, subtitle_filename, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		video_filename = excluded.video_filename,
		subtitle_filename = excluded.subtitle_filename,
		created_at = excluded.created_at
	`, rec.ID, rec.Title, rec.VideoFilename, rec.SubtitleFilename, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save record: %v", err)
	}

	return nil
}

// Delete removes the record with the given id. Deleting an absent id is a
// no-op.
func (s *SQLiteStore) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM segment_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete record: %v", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecord(scan func(...any) error) (types.SegmentRecord, error) {
	var rec types.SegmentRecord
	var video, subtitle sql.NullString

	if err := scan(&rec.ID, &rec.Title, &video, &subtitle, &rec.CreatedAt); err != nil {
		return types.SegmentRecord{}, err
	}

	if video.Valid {
		rec.VideoFilename = &video.String
	}
	if subtitle.Valid {
		rec.SubtitleFilename = &subtitle.String
	}
	return rec, nil
}
