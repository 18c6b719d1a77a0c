package circulation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"movierental/internal/errs"
	"movierental/internal/httpapi"
	"movierental/internal/model"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the rental endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/rentals", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCheckout)
		r.Get("/active", h.handleListView(model.ActiveRentals))
		r.Get("/overdue", h.handleListView(model.OverdueRentals))
		r.Put("/return/{id}", h.handleReturn)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/return", h.handleReturn)
		r.Get("/{id}/events", h.handleHistory)
	})
	r.Get("/audit", h.handleAudit)
}

type checkoutRequest struct {
	UserID  int64 `json:"userId" validate:"required,gt=0"`
	MovieID int64 `json:"movieId" validate:"required,gt=0"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	rental, err := h.service.Checkout(r.Context(), req.UserID, req.MovieID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, rental)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	rental, err := h.service.Return(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, rental)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	rental, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, rental)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	view, ok := model.ParseRentalView(r.URL.Query().Get("view"))
	if !ok {
		httpapi.WriteError(w, r, errs.Invalid("view", "must be all, active or overdue"))
		return
	}
	h.writeList(w, r, view)
}

func (h *Handler) handleListView(view model.RentalView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeList(w, r, view)
	}
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, view model.RentalView) {
	rentals, err := h.service.List(r.Context(), view)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, rentals)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	events, err := h.service.History(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.Audit(r.Context())
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"consistent":    len(found) == 0,
		"discrepancies": found,
	})
}
