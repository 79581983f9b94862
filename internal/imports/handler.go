package imports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/stockbook/internal/platform/blob"
	"github.com/odyssey-erp/stockbook/internal/platform/httpx"
	"github.com/odyssey-erp/stockbook/internal/shared"
)

// Handler exposes upload, preview and reconcile endpoints.
type Handler struct {
	logger   *slog.Logger
	engine   *Engine
	blobs    blob.Store
	maxBytes int64
}

// NewHandler constructs the imports handler. maxBytes caps uploaded files.
func NewHandler(logger *slog.Logger, engine *Engine, blobs blob.Store, maxBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &Handler{logger: logger, engine: engine, blobs: blobs, maxBytes: maxBytes}
}

// MountRoutes registers routes. Callers must mount behind session middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/uploads", h.handleUpload)
	r.Post("/imports/preview", h.handlePreview)
	r.Post("/imports/reconcile", h.handleReconcile)
}

// UploadResponse carries the blob path to pass to reconcile.
type UploadResponse struct {
	FilePath string `json:"filePath"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	name, data, err := h.readFile(w, r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	format, err := DetectFormat(name, data)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	key := UploadPrefix(sess.Organization()) + uuid.NewString() + "-" + safeName(name)
	if err := h.blobs.Put(r.Context(), key, bytes.NewReader(data), contentType(format)); err != nil {
		h.logger.Error("store upload", slog.Any("error", err), slog.String("organization_id", sess.Organization()))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("upload stored", slog.String("organization_id", sess.Organization()), slog.String("file_path", key), slog.Int("bytes", len(data)))
	httpx.JSON(w, http.StatusCreated, UploadResponse{FilePath: key})
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	name, data, err := h.readFile(w, r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scan, err := h.engine.Preview(r.Context(), sess.Organization(), name, data)
	if err != nil {
		if IsFileError(err) {
			httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
			return
		}
		h.logger.Error("preview import", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, scan)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := sess.Authorize(req.UserID, req.OrganizationID); err != nil {
		h.logger.Warn("reconcile rejected", slog.String("session_user", sess.User()), slog.String("organization_id", req.OrganizationID))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrForbidden, err))
		return
	}
	if !OwnsPath(req.FilePath, req.OrganizationID) {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrForbidden, ErrForeignPath))
		return
	}

	// The batch runs to completion even if the client goes away.
	res, err := h.engine.Reconcile(context.WithoutCancel(r.Context()), req)
	switch {
	case errors.Is(err, ErrInvalidRequest):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	case errors.Is(err, ErrImportInProgress):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
		return
	case err != nil:
		h.logger.Error("reconcile import", slog.Any("error", err), slog.String("organization_id", req.OrganizationID))
		httpx.RespondError(w, err)
		return
	}
	rep := Summarize(res)
	httpx.JSON(w, rep.Status, rep)
}

func (h *Handler) readFile(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, httpx.ErrTooLarge
		}
		return "", nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("%w: file field required", httpx.ErrValidation)
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if int64(len(data)) > h.maxBytes {
		return "", nil, httpx.ErrTooLarge
	}
	return header.Filename, data, nil
}

func safeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == '.':
			return r
		default:
			return '_'
		}
	}, base)
	for strings.Contains(cleaned, "..") {
		cleaned = strings.ReplaceAll(cleaned, "..", ".")
	}
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}

func contentType(f Format) string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatXLS:
		return "application/vnd.ms-excel"
	default:
		return "text/csv"
	}
}
