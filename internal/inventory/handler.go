package inventory

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockbook/internal/platform/httpx"
	"github.com/odyssey-erp/stockbook/internal/shared"
)

// Handler wires catalog endpoints consumed by import clients.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes. Callers must mount behind session middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/index", h.handleIndex)
	r.Post("/folders", h.handleCreateFolders)
}

// CreateFoldersRequest names folders to create when missing.
type CreateFoldersRequest struct {
	Names []string `json:"names" validate:"required,min=1,max=500,dive,required,max=120"`
}

// CreateFoldersResponse lists the resolved folders.
type CreateFoldersResponse struct {
	Folders []FolderDTO `json:"folders"`
}

// FolderDTO is the wire shape of a folder.
type FolderDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	idx, err := h.service.Index(r.Context(), sess.Organization())
	if err != nil {
		h.logger.Error("load catalog index", slog.Any("error", err), slog.String("organization_id", sess.Organization()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, idx)
}

func (h *Handler) handleCreateFolders(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req CreateFoldersRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	folders, err := h.service.EnsureFolders(r.Context(), sess.Organization(), req.Names)
	if err != nil {
		h.logger.Error("create folders", slog.Any("error", err), slog.String("organization_id", sess.Organization()))
		httpx.RespondError(w, err)
		return
	}
	resp := CreateFoldersResponse{Folders: make([]FolderDTO, 0, len(folders))}
	for _, f := range folders {
		resp.Folders = append(resp.Folders, FolderDTO{ID: f.ID, Name: f.Name, Color: f.Color})
	}
	httpx.JSON(w, http.StatusOK, resp)
}
