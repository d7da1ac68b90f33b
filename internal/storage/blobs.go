package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// BlobStore holds uploaded media and subtitle files under two buckets of a
// fixed uploads root. Filenames are flattened with filepath.Base so a
// crafted name can never escape the root.
type BlobStore struct {
	videosDir    string
	subtitlesDir string
}

// NewBlobStore creates the bucket directories under root if needed.
func NewBlobStore(root string) (*BlobStore, error) {
	bs := &BlobStore{
		videosDir:    filepath.Join(root, "videos"),
		subtitlesDir: filepath.Join(root, "subtitles"),
	}

	for _, dir := range []string{bs.videosDir, bs.subtitlesDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create blob directory %s: %v", dir, err)
		}
	}
	return bs, nil
}

// VideosDir returns the videos bucket directory.
func (bs *BlobStore) VideosDir() string { return bs.videosDir }

// SubtitlesDir returns the subtitles bucket directory.
func (bs *BlobStore) SubtitlesDir() string { return bs.subtitlesDir }

// VideoPath resolves a video filename inside the videos bucket.
func (bs *BlobStore) VideoPath(filename string) string {
	return filepath.Join(bs.videosDir, filepath.Base(filename))
}

// SubtitlePath resolves a subtitle filename inside the subtitles bucket.
func (bs *BlobStore) SubtitlePath(filename string) string {
	return filepath.Join(bs.subtitlesDir, filepath.Base(filename))
}

// WriteSubtitles persists a subtitle payload (UTF-8 JSON text of the
// serialized segment list) under the given filename.
func (bs *BlobStore) WriteSubtitles(filename string, data []byte) error {
	if err := os.WriteFile(bs.SubtitlePath(filename), data, 0644); err != nil {
		return fmt.Errorf("failed to write subtitles %s: %v", filename, err)
	}
	return nil
}

// ReadSubtitles returns the stored subtitle payload.
func (bs *BlobStore) ReadSubtitles(filename string) ([]byte, error) {
	return os.ReadFile(bs.SubtitlePath(filename))
}

// DeleteVideo removes a video blob. Absence is not an error.
func (bs *BlobStore) DeleteVideo(filename string) error {
	return removeIfExists(bs.VideoPath(filename))
}

// DeleteSubtitles removes a subtitle blob. Absence is not an error.
func (bs *BlobStore) DeleteSubtitles(filename string) error {
	return removeIfExists(bs.SubtitlePath(filename))
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
