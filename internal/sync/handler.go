package sync

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/juckphai/salejuck/internal/platform/httpx"
)

// Handler exposes synchronization state over HTTP.
type Handler struct {
	logger *slog.Logger
	engine *Engine
}

// NewHandler constructs the sync handler.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	return &Handler{logger: logger, engine: engine}
}

// MountRoutes registers sync routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/status", h.handleStatus)
	r.Get("/events", h.handleEvents)
	r.Put("/view", h.handleSetView)
}

type statusResponse struct {
	Source           string `json:"source"`
	RemoteConfigured bool   `json:"remoteConfigured"`
	ActiveView       string `json:"activeView,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, statusResponse{
		Source:           string(h.engine.LastLoadSource()),
		RemoteConfigured: h.engine.RemoteConfigured(),
		ActiveView:       h.engine.Views().Active(),
	})
}

// handleEvents streams document change notifications as server-sent events
// until the client disconnects.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "streaming unsupported")
		return
	}

	events, cancel := h.engine.Events().Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-events:
			fmt.Fprintf(w, "event: %s\ndata: {}\n\n", event)
			flusher.Flush()
		}
	}
}

type setViewRequest struct {
	View string `json:"view"`
}

func (h *Handler) handleSetView(w http.ResponseWriter, r *http.Request) {
	var req setViewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.View == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "view is required")
		return
	}
	h.engine.Views().SetActive(req.View)
	h.logger.Debug("active view changed", slog.String("view", req.View))
	httpx.NoContent(w)
}
