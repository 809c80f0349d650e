package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/filedrop/service/internal/response"
	"github.com/filedrop/service/internal/storage"
)

// parseOverhead is the extra body allowance beyond MaxFileSize for multipart
// framing and non-file form fields.
const parseOverhead = 1 << 20

// Handler holds HTTP handlers for the upload API.
type Handler struct {
	svc        *Service
	logger     zerolog.Logger
	production bool
}

// NewHandler creates a new upload Handler. In non-production mode internal
// error detail is echoed to the caller to ease local debugging.
func NewHandler(svc *Service, logger zerolog.Logger, production bool) *Handler {
	return &Handler{svc: svc, logger: logger, production: production}
}

type uploadResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	FileURL string   `json:"fileUrl"`
	FileKey string   `json:"fileKey"`
	Meta    Metadata `json:"metadata"`
}

type fileResponse struct {
	Success bool      `json:"success"`
	Meta    *FileInfo `json:"metadata"`
}

type listResponse struct {
	Success bool        `json:"success"`
	Files   []FileEntry `json:"files"`
}

type healthResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Upload handles POST /api/upload: rate admission, multipart parse with a hard
// size cutoff, validation, and the store call, in that order.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	clientID := clientIdentity(r)
	if !h.svc.Admit(clientID) {
		response.TooManyRequests(w, "Too many upload attempts, please try again later.")
		return
	}

	req, err := h.parseMultipart(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	req.ClientID = clientID

	obj, err := h.svc.Store(r.Context(), *req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, uploadResponse{
		Success: true,
		Message: "File uploaded successfully",
		FileURL: obj.URL,
		FileKey: obj.Key,
		Meta:    obj.Metadata,
	})
}

// parseMultipart streams the request body looking for exactly one part named
// "file". The payload is buffered in memory; copying stops as soon as the
// size cutoff is exceeded rather than after the full body has been read.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) (*Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFileSize+parseOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingFile, err)
	}

	var req *Request
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if isBodyTooLarge(err) {
				return nil, ErrFileTooLarge
			}
			return nil, fmt.Errorf("read multipart body: %w", err)
		}

		// Non-file form fields are ignored; any file part beyond the single
		// expected "file" field rejects the whole request.
		if part.FileName() == "" {
			_ = part.Close()
			continue
		}
		if req != nil || part.FormName() != "file" {
			_ = part.Close()
			return nil, ErrMultipleFiles
		}

		parsed, err := readFilePart(part)
		_ = part.Close()
		if err != nil {
			return nil, err
		}
		req = parsed
	}

	if req == nil {
		return nil, ErrMissingFile
	}
	return req, nil
}

// readFilePart buffers one file part, aborting once the cutoff is exceeded.
func readFilePart(part *multipart.Part) (*Request, error) {
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, part, MaxFileSize+1)
	if err != nil && err != io.EOF {
		if isBodyTooLarge(err) {
			return nil, ErrFileTooLarge
		}
		return nil, fmt.Errorf("read file part: %w", err)
	}
	if n > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	mimeType := part.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return &Request{
		OriginalName: part.FileName(),
		MimeType:     mimeType,
		Size:         n,
		Data:         &buf,
	}, nil
}

// writeError maps pipeline failures to the fixed status/message table. Full
// error detail is logged server-side; callers get the generic message unless
// the service runs outside production.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingFile):
		response.BadRequest(w, "No file provided")
	case errors.Is(err, ErrMultipleFiles):
		response.BadRequest(w, "Only one file allowed")
	case errors.Is(err, ErrFileTooLarge):
		response.PayloadTooLarge(w, fmt.Sprintf("File too large. Maximum size is %s", humanize.IBytes(MaxFileSize)))
	case errors.Is(err, ErrUnsupportedType):
		response.UnsupportedMediaType(w, "File type not supported. Please upload images, text files, PDFs, or Word documents.")
	case errors.Is(err, storage.ErrConfiguration):
		h.logger.Error().Err(err).Msg("storage configuration error")
		response.Error(w, http.StatusInternalServerError, "Storage configuration error. Please contact support.")
	default:
		h.logger.Error().Err(err).Msg("upload failed")
		msg := "Upload failed. Please try again."
		if !h.production {
			msg = fmt.Sprintf("%s (%v)", msg, err)
		}
		response.Error(w, http.StatusInternalServerError, msg)
	}
}

// GetFile handles GET /api/file/* and returns head metadata for a stored key.
// The route is a wildcard because generated keys contain a path separator.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		response.NotFound(w, "File not found")
		return
	}

	info, err := h.svc.FileMetadata(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.NotFound(w, "File not found")
			return
		}
		h.logger.Error().Err(err).Str("key", key).Msg("metadata lookup failed")
		response.Error(w, http.StatusInternalServerError, "Failed to retrieve file metadata")
		return
	}

	response.JSON(w, http.StatusOK, fileResponse{Success: true, Meta: info})
}

// ListFiles handles GET /api/files with the most recent uploads first.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.ListRecent(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list files failed")
		response.Error(w, http.StatusInternalServerError, "Failed to retrieve files")
		return
	}

	response.JSON(w, http.StatusOK, listResponse{Success: true, Files: files})
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, healthResponse{
		Success:   true,
		Message:   "Server is running",
		Timestamp: time.Now().UTC(),
	})
}

// NotFound is the JSON fallback for unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	response.NotFound(w, "Endpoint not found")
}

// clientIdentity derives the rate-limit key for a request. Behind the RealIP
// middleware RemoteAddr is already the bare client IP; otherwise the port is
// stripped so one client maps to one identity.
func clientIdentity(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// isBodyTooLarge reports whether err originates from the MaxBytesReader cap.
func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
