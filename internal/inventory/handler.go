package inventory

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/juckphai/salejuck/internal/platform/httpx"
	"github.com/juckphai/salejuck/internal/pos"
)

// Handler wires HTTP endpoints for stock movements and consistency checks.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stock-ins", h.handleRecordStockIn)
	r.Put("/stock-ins/{id}", h.handleUpdateStockIn)
	r.Delete("/stock-ins/{id}", h.handleDeleteStockIn)

	r.Post("/stock-outs", h.handleRecordStockOut)
	r.Put("/stock-outs/{id}", h.handleUpdateStockOut)
	r.Delete("/stock-outs/{id}", h.handleDeleteStockOut)

	r.Get("/stock", h.handleSummary)
	r.Get("/stock/check", h.handleCheck)
	r.Post("/stock/repair", h.handleRepair)
}

func (h *Handler) handleRecordStockIn(w http.ResponseWriter, r *http.Request) {
	var input StockInInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	record, err := h.service.RecordStockIn(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) handleUpdateStockIn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input StockInInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	record, err := h.service.UpdateStockIn(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) handleDeleteStockIn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteStockIn(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleRecordStockOut(w http.ResponseWriter, r *http.Request) {
	var input StockOutInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	record, err := h.service.RecordStockOut(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) handleUpdateStockOut(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input StockOutInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	record, err := h.service.UpdateStockOut(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) handleDeleteStockOut(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteStockOut(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	var cutoff *time.Time
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		parsed, ok := pos.ParseDate(raw)
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "asOf must be RFC3339")
			return
		}
		cutoff = &parsed
	}
	rows, err := h.service.Summary(cutoff)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Check()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleRepair(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Repair(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("inventory: bad id: %w", httpx.ErrValidation)
	}
	return id, nil
}
