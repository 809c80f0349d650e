package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"regexp"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedrop/service/internal/ratelimit"
	"github.com/filedrop/service/internal/storage"
)

func newTestRouter(store storage.Store, limit int) http.Handler {
	limiter := ratelimit.New(limit, 15*time.Minute)
	svc := NewService(store, limiter, zerolog.Nop())
	h := NewHandler(svc, zerolog.Nop(), true)

	r := chi.NewRouter()
	r.Get("/api/health", h.Health)
	r.Post("/api/upload", h.Upload)
	r.Get("/api/file/*", h.GetFile)
	r.Get("/api/files", h.ListFiles)
	r.NotFound(h.NotFound)
	return r
}

// filePart describes one multipart file part for request building.
type filePart struct {
	field    string
	filename string
	mimeType string
	data     []byte
}

func multipartRequest(t *testing.T, parts ...filePart) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, p := range parts {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		hdr.Set("Content-Type", p.mimeType)
		pw, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = pw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func doRequest(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestUploadSuccess(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, 10)

	rec := doRequest(router, multipartRequest(t, filePart{
		field: "file", filename: "notes.txt", mimeType: "text/plain", data: []byte("ten bytes!"),
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "File uploaded successfully", body["message"])

	fileKey, _ := body["fileKey"].(string)
	assert.Regexp(t, regexp.MustCompile(`^uploads/\d+-[0-9a-f]{8}-notes\.txt$`), fileKey)
	assert.Equal(t, store.PublicURL(fileKey), body["fileUrl"])

	meta, _ := body["metadata"].(map[string]interface{})
	require.NotNil(t, meta)
	assert.Equal(t, "notes.txt", meta["originalName"])
	assert.Equal(t, "text/plain", meta["mimeType"])
	assert.Equal(t, float64(10), meta["size"])
}

func TestUploadOversize(t *testing.T) {
	router := newTestRouter(newFakeStore(), 10)

	rec := doRequest(router, multipartRequest(t, filePart{
		field: "file", filename: "big.png", mimeType: "image/png", data: bytes.Repeat([]byte("a"), 6<<20),
	}))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "File too large")
}

func TestUploadDisallowedType(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, 10)

	rec := doRequest(router, multipartRequest(t, filePart{
		field: "file", filename: "archive.zip", mimeType: "application/zip", data: []byte("zipzip"),
	}))

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Zero(t, store.puts)
}

func TestUploadRateLimited(t *testing.T) {
	router := newTestRouter(newFakeStore(), 10)

	for i := 0; i < 10; i++ {
		rec := doRequest(router, multipartRequest(t, filePart{
			field: "file", filename: "notes.txt", mimeType: "text/plain", data: []byte("hi"),
		}))
		require.Equal(t, http.StatusOK, rec.Code, "upload %d should be admitted", i+1)
	}

	rec := doRequest(router, multipartRequest(t, filePart{
		field: "file", filename: "notes.txt", mimeType: "text/plain", data: []byte("hi"),
	}))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
}

func TestUploadMissingFile(t *testing.T) {
	router := newTestRouter(newFakeStore(), 10)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("note", "no file here"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := doRequest(router, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", decodeBody(t, rec)["message"])
}

func TestUploadMultipleFiles(t *testing.T) {
	router := newTestRouter(newFakeStore(), 10)

	rec := doRequest(router, multipartRequest(t,
		filePart{field: "file", filename: "a.txt", mimeType: "text/plain", data: []byte("a")},
		filePart{field: "file", filename: "b.txt", mimeType: "text/plain", data: []byte("b")},
	))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only one file allowed", decodeBody(t, rec)["message"])
}

func TestUploadNonMultipartBody(t *testing.T) {
	router := newTestRouter(newFakeStore(), 10)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewBufferString(`{"file":"nope"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := doRequest(router, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetFileMetadata(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, 10)

	rec := doRequest(router, multipartRequest(t, filePart{
		field: "file", filename: "notes.txt", mimeType: "text/plain", data: []byte("hello"),
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	fileKey := decodeBody(t, rec)["fileKey"].(string)

	rec = doRequest(router, httptest.NewRequest(http.MethodGet, "/api/file/"+fileKey, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	meta, _ := body["metadata"].(map[string]interface{})
	require.NotNil(t, meta)
	assert.Equal(t, float64(5), meta["size"])
	assert.Equal(t, "text/plain", meta["type"])
	assert.Equal(t, "notes.txt", meta["originalName"])
}

func TestGetFileUnknownKey(t *testing.T) {
	router := newTestRouter(newFakeStore(), 10)

	rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/api/file/unknown-key", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not found", decodeBody(t, rec)["message"])
}

func TestListFiles(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, 30)

	for i := 0; i < 3; i++ {
		rec := doRequest(router, multipartRequest(t, filePart{
			field: "file", filename: fmt.Sprintf("file-%d.txt", i), mimeType: "text/plain", data: []byte("x"),
		}))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	files, _ := body["files"].([]interface{})
	assert.Len(t, files, 3)
	first, _ := files[0].(map[string]interface{})
	require.NotNil(t, first)
	assert.Contains(t, first, "key")
	assert.Contains(t, first, "size")
	assert.Contains(t, first, "lastModified")
	assert.Contains(t, first, "url")
}

func TestHealth(t *testing.T) {
	router := newTestRouter(newFakeStore(), 10)

	rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Server is running", body["message"])
	assert.Contains(t, body, "timestamp")
}

func TestUnknownRouteReturnsJSON(t *testing.T) {
	router := newTestRouter(newFakeStore(), 10)

	rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Endpoint not found", decodeBody(t, rec)["message"])
}
