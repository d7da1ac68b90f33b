package handlers

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/segmento/internal/storage"
)

// MediaHandler serves uploaded video files with byte-range support so the
// browser's native player can seek.
type MediaHandler struct {
	blobs *storage.BlobStore
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(blobs *storage.BlobStore) *MediaHandler {
	return &MediaHandler{blobs: blobs}
}

// Handle answers GET /api/videos/:filename with 200, 206 or 404. Any stat
// or read failure is reported as 404; the underlying error is only logged.
func (h *MediaHandler) Handle(c *fiber.Ctx) error {
	filename := c.Params("filename")
	path := h.blobs.VideoPath(filename)

	info, err := os.Stat(path)
	if err != nil {
		log.Printf("Video stat failed for %s: %v", filename, err)
		return c.Status(404).JSON(fiber.Map{
			"error": "File not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	size := info.Size()

	rangeHeader := c.Get(fiber.HeaderRange)
	if rangeHeader == "" {
		return h.serveFull(c, path, filename, size)
	}

	start, end, ok := parseRange(rangeHeader, size)
	if !ok {
		// Malformed range syntax: fall back to the full response rather
		// than failing the request.
		log.Printf("Malformed Range header %q for %s, serving full file", rangeHeader, filename)
		return h.serveFull(c, path, filename, size)
	}

	if start > end || start >= size {
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes */%d", size))
		return c.Status(fiber.StatusRequestedRangeNotSatisfiable).JSON(fiber.Map{
			"error": "Range not satisfiable",
			"code":  "ERR_BAD_RANGE",
		})
	}

	chunkSize := end - start + 1
	buf := make([]byte, chunkSize)

	// The handle is scoped to this one read; no descriptor outlives the
	// request.
	f, err := os.Open(path)
	if err != nil {
		log.Printf("Video open failed for %s: %v", filename, err)
		return c.Status(404).JSON(fiber.Map{
			"error": "File not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	_, err = f.ReadAt(buf, start)
	f.Close()
	if err != nil && err != io.EOF {
		log.Printf("Video read failed for %s: %v", filename, err)
		return c.Status(404).JSON(fiber.Map{
			"error": "File not found",
			"code":  "ERR_NOT_FOUND",
		})
	}

	c.Set(fiber.HeaderContentType, mimeByExtension(filename))
	c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Set(fiber.HeaderContentLength, strconv.FormatInt(chunkSize, 10))
	return c.Status(fiber.StatusPartialContent).Send(buf)
}

func (h *MediaHandler) serveFull(c *fiber.Ctx, path, filename string, size int64) error {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Video read failed for %s: %v", filename, err)
		return c.Status(404).JSON(fiber.Map{
			"error": "File not found",
			"code":  "ERR_NOT_FOUND",
		})
	}

	c.Set(fiber.HeaderContentType, mimeByExtension(filename))
	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Set(fiber.HeaderContentLength, strconv.FormatInt(size, 10))
	return c.Status(fiber.StatusOK).Send(data)
}

// parseRange parses "bytes=<start>-[<end>]". The end index defaults to the
// last byte and is clamped to it. ok is false when the syntax is
// unusable.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return 0, 0, false
	}

	parts := strings.SplitN(spec, "-", 2)
	start, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}

	end = size - 1
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		end, err = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return 0, 0, false
		}
		if end > size-1 {
			end = size - 1
		}
	}

	return start, end, true
}

var videoMimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".ts":   "video/mp2t",
	".ogv":  "video/ogg",
}

// mimeByExtension maps a video filename to its MIME type, defaulting to a
// generic binary stream.
func mimeByExtension(filename string) string {
	if mt, ok := videoMimeTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mt
	}
	return "application/octet-stream"
}
