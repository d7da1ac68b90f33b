package cleanup

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/codebuildervaibhav/segmento/internal/storage"
)

// Scheduler periodically removes blob files that no saved record
// references. Orphans appear when a save fails halfway or a delete could
// not unlink its blobs; a file is only removed once older than the
// configured age so in-flight uploads are never touched.
type Scheduler struct {
	store           storage.RecordStore
	blobs           *storage.BlobStore
	intervalMinutes int
	maxAgeHours     int
	stopChan        chan struct{}
}

// NewScheduler creates a new orphan sweeper.
func NewScheduler(store storage.RecordStore, blobs *storage.BlobStore, intervalMinutes, maxAgeHours int) *Scheduler {
	return &Scheduler{
		store:           store,
		blobs:           blobs,
		intervalMinutes: intervalMinutes,
		maxAgeHours:     maxAgeHours,
		stopChan:        make(chan struct{}),
	}
}

// Start runs one sweep immediately, then sweeps on the configured
// interval until Stop is called.
func (s *Scheduler) Start() {
	log.Println("Running initial orphaned blob sweep...")
	s.sweep()

	ticker := time.NewTicker(time.Duration(s.intervalMinutes) * time.Minute)

	go func() {
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	log.Printf("Orphan sweeper started (interval: %dm, max age: %dh)",
		s.intervalMinutes, s.maxAgeHours)
}

// Stop stops the sweeper.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	log.Println("Orphan sweeper stopped")
}

// sweep deletes unreferenced blobs older than maxAgeHours.
func (s *Scheduler) sweep() {
	records, err := s.store.ListAll()
	if err != nil {
		log.Printf("Orphan sweep skipped, cannot list records: %v", err)
		return
	}

	referenced := make(map[string]bool, len(records)*2)
	for _, rec := range records {
		if rec.VideoFilename != nil {
			referenced[s.blobs.VideoPath(*rec.VideoFilename)] = true
		}
		if rec.SubtitleFilename != nil {
			referenced[s.blobs.SubtitlePath(*rec.SubtitleFilename)] = true
		}
	}

	now := time.Now()
	maxAge := time.Duration(s.maxAgeHours) * time.Hour

	var deletedCount int
	var deletedSize int64

	for _, dir := range []string{s.blobs.VideosDir(), s.blobs.SubtitlesDir()} {
		filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			if referenced[path] {
				return nil
			}

			age := now.Sub(info.ModTime())
			if age <= maxAge {
				return nil
			}

			size := info.Size()
			if err := os.Remove(path); err != nil {
				log.Printf("Failed to delete orphaned blob %s: %v", path, err)
				return nil
			}
			deletedCount++
			deletedSize += size
			log.Printf("Deleted orphaned blob: %s (age: %s, size: %dKB)",
				filepath.Base(path), age.Round(time.Hour), size/1024)
			return nil
		})
	}

	if deletedCount > 0 {
		log.Printf("Orphan sweep complete: %d files deleted, %.2fMB freed",
			deletedCount, float64(deletedSize)/(1024*1024))
	}
}
