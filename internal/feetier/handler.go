package feetier

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"movierental/internal/httpapi"
	"movierental/internal/model"
	"movierental/internal/money"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/fee-tiers", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleAdd)
		r.Get("/gaps", h.handleGaps)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleRemove)
	})
}

type tierRequest struct {
	DaysLateStart *int         `json:"daysLateStart" validate:"required,gte=0"`
	DaysLateEnd   *int         `json:"daysLateEnd" validate:"required,gte=0"`
	FeePerDay     *money.Money `json:"feePerDay" validate:"required"`
}

func (req tierRequest) tier(id int64) model.FeeTier {
	return model.FeeTier{
		ID:            id,
		DaysLateStart: *req.DaysLateStart,
		DaysLateEnd:   *req.DaysLateEnd,
		FeePerDay:     *req.FeePerDay,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.service.List(r.Context())
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if tiers == nil {
		tiers = []model.FeeTier{}
	}
	httpapi.WriteJSON(w, http.StatusOK, tiers)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	tier, err := h.service.Add(r.Context(), req.tier(0))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, tier)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req tierRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	tier, err := h.service.Update(r.Context(), req.tier(id))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, tier)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if err := h.service.Remove(r.Context(), id); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGaps(w http.ResponseWriter, r *http.Request) {
	start, err := httpapi.IntQuery(r, "start", 1)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	end, err := httpapi.IntQuery(r, "end", 365)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	gaps, err := h.service.Gaps(r.Context(), start, end)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if gaps == nil {
		gaps = []Range{}
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"start":  start,
		"end":    end,
		"hasGap": len(gaps) > 0,
		"gaps":   gaps,
	})
}
