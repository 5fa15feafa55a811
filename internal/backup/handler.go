package backup

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/juckphai/salejuck/internal/platform/httpx"
)

// maxImportBytes caps backup uploads.
const maxImportBytes = 32 << 20

// Handler wires the export and import endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the backup handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers backup routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/export", h.handleExport)
	r.Post("/import", h.handleImport)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	data, encrypted, err := h.service.Export(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filename := "salejuck-backup.json"
	if encrypted {
		filename = "salejuck-backup.enc.json"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleImport accepts the backup file as the request body; the password,
// when needed, travels in a header so the body stays the raw file.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	file, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unreadable body")
		return
	}
	if len(file) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "empty backup file")
		return
	}

	result, err := h.service.Import(r.Context(), file, r.Header.Get("X-Backup-Password"))
	if err != nil {
		if errors.Is(err, ErrWrongPassword) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
