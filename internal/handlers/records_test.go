package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/segmento/internal/storage"
	"github.com/codebuildervaibhav/segmento/internal/types"
)

func newRecordsApp(t *testing.T) (*fiber.App, *storage.SQLiteStore, *storage.BlobStore) {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	blobs, err := storage.NewBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBlobStore() error = %v", err)
	}

	h := NewRecordsHandler(store, blobs, NewHub())
	app := fiber.New()
	app.Get("/api/segments", h.List)
	app.Post("/api/segments", h.Create)
	app.Post("/api/segments/derive", h.Derive)
	app.Get("/api/segments/:id", h.Detail)
	app.Put("/api/segments/:id", h.Update)
	app.Delete("/api/segments/:id", h.Delete)
	return app, store, blobs
}

// multipartBody builds a form with optional text fields and file parts
// (field name -> filename, content).
func multipartBody(t *testing.T, fields map[string]string, files map[string][2]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			t.Fatalf("WriteField(%s) error = %v", name, err)
		}
	}
	for field, f := range files {
		part, err := w.CreateFormFile(field, f[0])
		if err != nil {
			t.Fatalf("CreateFormFile(%s) error = %v", field, err)
		}
		if _, err := part.Write([]byte(f[1])); err != nil {
			t.Fatalf("writing file part: %v", err)
		}
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func decodeJSON(t *testing.T, body io.Reader, dst any) {
	t.Helper()
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

type createResponse struct {
	Success bool                `json:"success"`
	Segment types.SegmentRecord `json:"segment"`
}

func createRecord(t *testing.T, app *fiber.App, fields map[string]string, files map[string][2]string) types.SegmentRecord {
	t.Helper()

	body, contentType := multipartBody(t, fields, files)
	req := httptest.NewRequest("POST", "/api/segments", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("create status = %d, body %s", resp.StatusCode, raw)
	}
	var cr createResponse
	decodeJSON(t, resp.Body, &cr)
	return cr.Segment
}

func TestCreateRequiresInput(t *testing.T) {
	app, _, _ := newRecordsApp(t)

	body, contentType := multipartBody(t, nil, nil)
	req := httptest.NewRequest("POST", "/api/segments", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateWithSubtitlesOnly(t *testing.T) {
	app, _, blobs := newRecordsApp(t)

	payload := `[{"id":"s1","start":0,"end":5,"label":"A"}]`
	rec := createRecord(t, app, map[string]string{"subtitles": payload}, nil)

	if rec.ID == "" {
		t.Fatalf("record id empty")
	}
	if rec.VideoFilename != nil {
		t.Errorf("videoFilename = %v, want nil", *rec.VideoFilename)
	}
	if rec.SubtitleFilename == nil || *rec.SubtitleFilename != rec.ID+".json" {
		t.Errorf("subtitleFilename = %v, want %s.json", rec.SubtitleFilename, rec.ID)
	}
	if rec.Title != "Untitled Segment (No Video)" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.CreatedAt == "" {
		t.Errorf("createdAt empty")
	}

	stored, err := blobs.ReadSubtitles(*rec.SubtitleFilename)
	if err != nil {
		t.Fatalf("ReadSubtitles() error = %v", err)
	}
	if string(stored) != payload {
		t.Errorf("stored subtitles = %q, want %q", stored, payload)
	}
}

func TestCreateWithVideoOnly(t *testing.T) {
	app, _, blobs := newRecordsApp(t)

	rec := createRecord(t, app, nil, map[string][2]string{
		"video": {"lesson.mp4", "fake video bytes"},
	})

	if rec.Title != "lesson.mp4" {
		t.Errorf("title = %q, want lesson.mp4", rec.Title)
	}
	if rec.VideoFilename == nil || *rec.VideoFilename != rec.ID+".mp4" {
		t.Fatalf("videoFilename = %v, want %s.mp4", rec.VideoFilename, rec.ID)
	}
	if _, err := os.Stat(blobs.VideoPath(*rec.VideoFilename)); err != nil {
		t.Errorf("video blob missing: %v", err)
	}

	// Subtitle blob is written eagerly as an empty list.
	stored, err := blobs.ReadSubtitles(rec.ID + ".json")
	if err != nil {
		t.Fatalf("ReadSubtitles() error = %v", err)
	}
	if string(stored) != "[]" {
		t.Errorf("stored subtitles = %q, want []", stored)
	}
}

func TestDetailReturnsParsedSubtitles(t *testing.T) {
	app, _, _ := newRecordsApp(t)

	payload := `[{"id":"s1","start":0,"end":5,"label":"A"},{"id":"s2","start":5,"end":12,"label":"B"}]`
	rec := createRecord(t, app, map[string]string{"subtitles": payload}, nil)

	req := httptest.NewRequest("GET", "/api/segments/"+rec.ID, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var detail recordDetail
	decodeJSON(t, resp.Body, &detail)
	if detail.ID != rec.ID {
		t.Errorf("detail id = %q, want %q", detail.ID, rec.ID)
	}
	if len(detail.Subtitles) != 2 || detail.Subtitles[1].Label != "B" {
		t.Errorf("subtitles = %+v, want 2 parsed segments", detail.Subtitles)
	}
}

func TestDetailSwallowsUnparseableSubtitles(t *testing.T) {
	app, _, blobs := newRecordsApp(t)

	rec := createRecord(t, app, map[string]string{"subtitles": "[]"}, nil)
	if err := blobs.WriteSubtitles(*rec.SubtitleFilename, []byte("not json at all")); err != nil {
		t.Fatalf("WriteSubtitles() error = %v", err)
	}

	req := httptest.NewRequest("GET", "/api/segments/"+rec.ID, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200 despite bad subtitle file", resp.StatusCode)
	}
	var detail recordDetail
	decodeJSON(t, resp.Body, &detail)
	if len(detail.Subtitles) != 0 {
		t.Errorf("subtitles = %+v, want empty list", detail.Subtitles)
	}
}

func TestDetailUnknownID(t *testing.T) {
	app, _, _ := newRecordsApp(t)

	req := httptest.NewRequest("GET", "/api/segments/nope", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUpdateReplacesSubtitlesInPlace(t *testing.T) {
	app, _, blobs := newRecordsApp(t)

	rec := createRecord(t, app, map[string]string{"subtitles": "[]"}, nil)

	replacement := `[{"id":"s9","start":1,"end":2,"label":"edited"}]`
	body, contentType := multipartBody(t, map[string]string{"subtitles": replacement}, nil)
	req := httptest.NewRequest("PUT", "/api/segments/"+rec.ID, body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	stored, err := blobs.ReadSubtitles(*rec.SubtitleFilename)
	if err != nil {
		t.Fatalf("ReadSubtitles() error = %v", err)
	}
	if string(stored) != replacement {
		t.Errorf("stored subtitles = %q, want replacement payload", stored)
	}
}

func TestUpdateAttachesVideoWhenNoneExisted(t *testing.T) {
	app, store, blobs := newRecordsApp(t)

	rec := createRecord(t, app, map[string]string{"subtitles": "[]"}, nil)

	body, contentType := multipartBody(t, nil, map[string][2]string{
		"video": {"late.mov", "bytes"},
	})
	req := httptest.NewRequest("PUT", "/api/segments/"+rec.ID, body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	updated, err := store.GetByID(rec.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if updated.VideoFilename == nil || *updated.VideoFilename != rec.ID+".mov" {
		t.Fatalf("videoFilename = %v, want %s.mov", updated.VideoFilename, rec.ID)
	}
	if _, err := os.Stat(blobs.VideoPath(*updated.VideoFilename)); err != nil {
		t.Errorf("video blob missing: %v", err)
	}
}

func TestUpdateOverwritesExistingVideoFilename(t *testing.T) {
	app, store, blobs := newRecordsApp(t)

	rec := createRecord(t, app, nil, map[string][2]string{
		"video": {"first.mp4", "original bytes"},
	})

	body, contentType := multipartBody(t, nil, map[string][2]string{
		"video": {"second.webm", "replacement bytes"},
	})
	req := httptest.NewRequest("PUT", "/api/segments/"+rec.ID, body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()

	// The replacement lands at the filename already recorded.
	updated, err := store.GetByID(rec.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if *updated.VideoFilename != *rec.VideoFilename {
		t.Errorf("videoFilename changed from %q to %q", *rec.VideoFilename, *updated.VideoFilename)
	}
	data, err := os.ReadFile(blobs.VideoPath(*updated.VideoFilename))
	if err != nil {
		t.Fatalf("reading video blob: %v", err)
	}
	if string(data) != "replacement bytes" {
		t.Errorf("video blob = %q, want replacement bytes", data)
	}
}

func TestDeleteRemovesRecordAndBlobs(t *testing.T) {
	app, store, blobs := newRecordsApp(t)

	rec := createRecord(t, app, map[string]string{"subtitles": "[]"}, map[string][2]string{
		"video": {"gone.mp4", "bytes"},
	})

	req := httptest.NewRequest("DELETE", "/api/segments/"+rec.ID, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if _, err := store.GetByID(rec.ID); err == nil {
		t.Errorf("record still present after delete")
	}
	if _, err := os.Stat(blobs.VideoPath(*rec.VideoFilename)); !os.IsNotExist(err) {
		t.Errorf("video blob still present after delete")
	}
	if _, err := os.Stat(blobs.SubtitlePath(*rec.SubtitleFilename)); !os.IsNotExist(err) {
		t.Errorf("subtitle blob still present after delete")
	}

	// A second delete finds no record.
	req = httptest.NewRequest("DELETE", "/api/segments/"+rec.ID, nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteToleratesMissingBlobs(t *testing.T) {
	app, _, blobs := newRecordsApp(t)

	rec := createRecord(t, app, map[string]string{"subtitles": "[]"}, map[string][2]string{
		"video": {"gone.mp4", "bytes"},
	})
	// Blobs vanish out from under the record.
	os.Remove(blobs.VideoPath(*rec.VideoFilename))
	os.Remove(blobs.SubtitlePath(*rec.SubtitleFilename))

	req := httptest.NewRequest("DELETE", "/api/segments/"+rec.ID, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200 despite missing blobs", resp.StatusCode)
	}
}

func TestListReflectsLifecycle(t *testing.T) {
	app, _, _ := newRecordsApp(t)

	rec := createRecord(t, app, map[string]string{"subtitles": "[]"}, nil)

	listRecords := func() []types.SegmentRecord {
		req := httptest.NewRequest("GET", "/api/segments", nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		defer resp.Body.Close()
		var records []types.SegmentRecord
		decodeJSON(t, resp.Body, &records)
		return records
	}

	if got := listRecords(); len(got) != 1 || got[0].ID != rec.ID {
		t.Fatalf("list = %+v, want the created record", got)
	}

	req := httptest.NewRequest("DELETE", "/api/segments/"+rec.ID, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()

	if got := listRecords(); len(got) != 0 {
		t.Errorf("list after delete = %+v, want empty", got)
	}
}

type deriveResponse struct {
	Count    int             `json:"count"`
	Segments []types.Segment `json:"segments"`
}

func TestDeriveEndpoint(t *testing.T) {
	app, _, _ := newRecordsApp(t)

	body, contentType := multipartBody(t,
		map[string]string{"duration": "15.0"},
		map[string][2]string{"subtitles": {"captions.txt", "0|A\n5000|B\n12000|C\n"}},
	)
	req := httptest.NewRequest("POST", "/api/segments/derive", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
	var dr deriveResponse
	decodeJSON(t, resp.Body, &dr)
	if dr.Count != 3 {
		t.Fatalf("count = %d, want 3", dr.Count)
	}
	want := []struct {
		start, end float64
		label      string
	}{{0, 5, "A"}, {5, 12, "B"}, {12, 15, "C"}}
	for i, w := range want {
		got := dr.Segments[i]
		if got.Start != w.start || got.End != w.end || got.Label != w.label {
			t.Errorf("segment %d = (%.2f, %.2f, %q), want (%.2f, %.2f, %q)",
				i, got.Start, got.End, got.Label, w.start, w.end, w.label)
		}
	}
}

func TestDeriveEndpointRejectsBadInput(t *testing.T) {
	app, _, _ := newRecordsApp(t)

	tests := []struct {
		name     string
		fields   map[string]string
		files    map[string][2]string
		wantCode string
	}{
		{
			name:     "unsupported extension",
			fields:   map[string]string{"duration": "10"},
			files:    map[string][2]string{"subtitles": {"captions.srt", "0|A"}},
			wantCode: "ERR_UNSUPPORTED_EXTENSION",
		},
		{
			name:     "unparseable content",
			fields:   map[string]string{"duration": "10"},
			files:    map[string][2]string{"subtitles": {"captions.txt", "no valid lines"}},
			wantCode: "ERR_INVALID_FORMAT",
		},
		{
			name:     "missing duration",
			files:    map[string][2]string{"subtitles": {"captions.txt", "0|A"}},
			wantCode: "ERR_INVALID_DURATION",
		},
		{
			name:     "missing file",
			fields:   map[string]string{"duration": "10"},
			wantCode: "ERR_NO_FILE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.fields, tt.files)
			req := httptest.NewRequest("POST", "/api/segments/derive", body)
			req.Header.Set("Content-Type", contentType)
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != 400 {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			var errResp struct {
				Code string `json:"code"`
			}
			decodeJSON(t, resp.Body, &errResp)
			if errResp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", errResp.Code, tt.wantCode)
			}
		})
	}
}
