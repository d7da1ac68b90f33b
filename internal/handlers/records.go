package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/segmento/internal/segment"
	"github.com/codebuildervaibhav/segmento/internal/storage"
	"github.com/codebuildervaibhav/segmento/internal/subtitle"
	"github.com/codebuildervaibhav/segmento/internal/types"
)

// RecordsHandler owns the segment-collection API: list, create, detail,
// update, delete, and server-side derivation.
type RecordsHandler struct {
	store storage.RecordStore
	blobs *storage.BlobStore
	hub   *Hub
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(store storage.RecordStore, blobs *storage.BlobStore, hub *Hub) *RecordsHandler {
	return &RecordsHandler{store: store, blobs: blobs, hub: hub}
}

// List returns the full saved record list.
func (h *RecordsHandler) List(c *fiber.Ctx) error {
	records, err := h.store.ListAll()
	if err != nil {
		log.Printf("Failed to list records: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to fetch segments",
			"code":  "ERR_STORE",
		})
	}
	return c.JSON(records)
}

// Create accepts a multipart form with an optional video file and an
// optional subtitles JSON payload; at least one is required. The subtitle
// blob is always written so later saves land at a known filename.
func (h *RecordsHandler) Create(c *fiber.Ctx) error {
	videoFile, _ := c.FormFile("video")
	subtitles := c.FormValue("subtitles")

	if videoFile == nil && subtitles == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Provide at least video or subtitles",
			"code":  "ERR_NO_INPUT",
		})
	}

	id := uuid.New().String()
	title := "Untitled Segment (No Video)"

	var videoFilename *string
	if videoFile != nil {
		name := id + filepath.Ext(videoFile.Filename)
		if err := c.SaveFile(videoFile, h.blobs.VideoPath(name)); err != nil {
			log.Printf("Failed to save uploaded video: %v", err)
			return c.Status(500).JSON(fiber.Map{
				"error": "Failed to save video",
				"code":  "ERR_SAVE_FAILED",
			})
		}
		videoFilename = &name
		title = videoFile.Filename
	}

	subtitleFilename := id + ".json"
	payload := subtitles
	if payload == "" {
		payload = "[]"
	}
	if err := h.blobs.WriteSubtitles(subtitleFilename, []byte(payload)); err != nil {
		log.Printf("Failed to save subtitles: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to save subtitles",
			"code":  "ERR_SAVE_FAILED",
		})
	}

	rec := types.SegmentRecord{
		ID:               id,
		Title:            title,
		VideoFilename:    videoFilename,
		SubtitleFilename: &subtitleFilename,
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.store.Put(rec); err != nil {
		log.Printf("Failed to persist record %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to save record",
			"code":  "ERR_STORE",
		})
	}

	h.hub.Broadcast(Event{Type: EventCreated, ID: id})
	return c.JSON(fiber.Map{"success": true, "segment": rec})
}

// recordDetail is a SegmentRecord plus its parsed subtitle payload.
type recordDetail struct {
	types.SegmentRecord
	Subtitles []types.Segment `json:"subtitles"`
}

// Detail returns a record and its stored segment list. A missing or
// unparseable subtitle file yields an empty list, never an error.
func (h *RecordsHandler) Detail(c *fiber.Ctx) error {
	rec, err := h.store.GetByID(c.Params("id"))
	if err != nil {
		return h.recordLookupError(c, err)
	}

	segments := []types.Segment{}
	if rec.SubtitleFilename != nil {
		data, err := h.blobs.ReadSubtitles(*rec.SubtitleFilename)
		if err != nil {
			log.Printf("Failed to read subtitles for %s: %v", rec.ID, err)
		} else if err := json.Unmarshal(data, &segments); err != nil {
			log.Printf("Failed to parse subtitles for %s: %v", rec.ID, err)
			segments = []types.Segment{}
		}
	}

	return c.JSON(recordDetail{SegmentRecord: *rec, Subtitles: segments})
}

// Update replaces the subtitle payload and/or the video blob of an
// existing record. Writes land at the filenames already recorded; a fresh
// filename is generated only when none existed, in which case the record
// is updated.
func (h *RecordsHandler) Update(c *fiber.Ctx) error {
	rec, err := h.store.GetByID(c.Params("id"))
	if err != nil {
		return h.recordLookupError(c, err)
	}

	recordChanged := false

	if subtitles := c.FormValue("subtitles"); subtitles != "" {
		name := rec.ID + ".json"
		if rec.SubtitleFilename != nil {
			name = *rec.SubtitleFilename
		} else {
			rec.SubtitleFilename = &name
			recordChanged = true
		}
		if err := h.blobs.WriteSubtitles(name, []byte(subtitles)); err != nil {
			log.Printf("Failed to update subtitles for %s: %v", rec.ID, err)
			return c.Status(500).JSON(fiber.Map{
				"error": "Update failed",
				"code":  "ERR_SAVE_FAILED",
			})
		}
	}

	if videoFile, _ := c.FormFile("video"); videoFile != nil {
		name := rec.ID + filepath.Ext(videoFile.Filename)
		if rec.VideoFilename != nil {
			name = *rec.VideoFilename
		} else {
			rec.VideoFilename = &name
			recordChanged = true
		}
		if err := c.SaveFile(videoFile, h.blobs.VideoPath(name)); err != nil {
			log.Printf("Failed to update video for %s: %v", rec.ID, err)
			return c.Status(500).JSON(fiber.Map{
				"error": "Update failed",
				"code":  "ERR_SAVE_FAILED",
			})
		}
	}

	if recordChanged {
		if err := h.store.Put(*rec); err != nil {
			log.Printf("Failed to persist record %s: %v", rec.ID, err)
			return c.Status(500).JSON(fiber.Map{
				"error": "Update failed",
				"code":  "ERR_STORE",
			})
		}
	}

	h.hub.Broadcast(Event{Type: EventUpdated, ID: rec.ID})
	return c.JSON(fiber.Map{"success": true, "message": "Updated successfully"})
}

// Delete unlinks both blobs best-effort (absence tolerated, failures
// logged but never abort the sequence), then removes the record.
func (h *RecordsHandler) Delete(c *fiber.Ctx) error {
	rec, err := h.store.GetByID(c.Params("id"))
	if err != nil {
		return h.recordLookupError(c, err)
	}

	if rec.VideoFilename != nil {
		if err := h.blobs.DeleteVideo(*rec.VideoFilename); err != nil {
			log.Printf("Failed to delete video blob for %s: %v", rec.ID, err)
		}
	}
	if rec.SubtitleFilename != nil {
		if err := h.blobs.DeleteSubtitles(*rec.SubtitleFilename); err != nil {
			log.Printf("Failed to delete subtitle blob for %s: %v", rec.ID, err)
		}
	}

	if err := h.store.Delete(rec.ID); err != nil {
		log.Printf("Failed to delete record %s: %v", rec.ID, err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Delete failed",
			"code":  "ERR_STORE",
		})
	}

	h.hub.Broadcast(Event{Type: EventDeleted, ID: rec.ID})
	return c.JSON(fiber.Map{"success": true})
}

// Derive parses an uploaded caption file and returns the segment list
// derived against the given media duration, without persisting anything.
func (h *RecordsHandler) Derive(c *fiber.Ctx) error {
	file, err := c.FormFile("subtitles")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "No subtitle file uploaded",
			"code":  "ERR_NO_FILE",
		})
	}

	duration, err := strconv.ParseFloat(c.FormValue("duration"), 64)
	if err != nil || duration <= 0 {
		return c.Status(400).JSON(fiber.Map{
			"error": "Provide a positive media duration in seconds",
			"code":  "ERR_INVALID_DURATION",
		})
	}

	src, err := file.Open()
	if err != nil {
		log.Printf("Failed to open uploaded subtitle file: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read subtitle file",
			"code":  "ERR_READ_FAILED",
		})
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		log.Printf("Failed to read uploaded subtitle file: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read subtitle file",
			"code":  "ERR_READ_FAILED",
		})
	}

	cues, err := subtitle.ParseFile(file.Filename, data)
	switch {
	case errors.Is(err, subtitle.ErrUnsupportedExtension):
		return c.Status(400).JSON(fiber.Map{
			"error": "Unsupported subtitle format (expected .json or .txt)",
			"code":  "ERR_UNSUPPORTED_EXTENSION",
		})
	case errors.Is(err, subtitle.ErrInvalidFormat):
		return c.Status(400).JSON(fiber.Map{
			"error": "Subtitle file could not be parsed",
			"code":  "ERR_INVALID_FORMAT",
		})
	case err != nil:
		log.Printf("Subtitle parse failed: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Subtitle file could not be parsed",
			"code":  "ERR_INVALID_FORMAT",
		})
	}

	segments := segment.Derive(cues, duration)
	return c.JSON(fiber.Map{
		"segments": segments,
		"count":    len(segments),
	})
}

func (h *RecordsHandler) recordLookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(404).JSON(fiber.Map{
			"error": "Segment not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	log.Printf("Record lookup failed: %v", err)
	return c.Status(500).JSON(fiber.Map{
		"error": "Failed to fetch segment",
		"code":  "ERR_STORE",
	})
}
