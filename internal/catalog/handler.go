package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"movierental/internal/httpapi"
	"movierental/internal/money"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/titles", func(r chi.Router) {
		r.Get("/", h.handleListTitles)
		r.Post("/", h.handleAddTitle)
		r.Get("/{id}", h.handleGetTitle)
		r.Put("/{id}", h.handleUpdateTitle)
		r.Delete("/{id}", h.handleRemoveTitle)
		r.Post("/{id}/copies", h.handleAddCopies)
		r.Get("/{id}/price", h.handleCurrentPrice)
		r.Put("/{id}/pricing", h.handleAssignPricing)
	})
	r.Route("/pricing-categories", func(r chi.Router) {
		r.Get("/", h.handleListCategories)
		r.Post("/", h.handleCreateCategory)
	})
}

type addTitleRequest struct {
	Name              string `json:"name" validate:"required,max=255"`
	Genre             string `json:"genre" validate:"max=100"`
	Copies            int    `json:"copies" validate:"gte=0"`
	PricingCategoryID int64  `json:"pricingCategoryId" validate:"gte=0"`
}

func (h *Handler) handleAddTitle(w http.ResponseWriter, r *http.Request) {
	var req addTitleRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	title, err := h.service.AddTitle(r.Context(), req.Name, req.Genre, req.Copies, req.PricingCategoryID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, title)
}

func (h *Handler) handleListTitles(w http.ResponseWriter, r *http.Request) {
	titles, err := h.service.ListTitles(r.Context(), r.URL.Query().Get("available") == "true")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, titles)
}

func (h *Handler) handleGetTitle(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	title, err := h.service.GetTitle(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, title)
}

type updateTitleRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Genre string `json:"genre" validate:"max=100"`
}

func (h *Handler) handleUpdateTitle(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req updateTitleRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	title, err := h.service.UpdateTitle(r.Context(), id, req.Name, req.Genre)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, title)
}

func (h *Handler) handleRemoveTitle(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if err := h.service.RemoveTitle(r.Context(), id); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addCopiesRequest struct {
	Copies int `json:"copies" validate:"required,gt=0"`
}

func (h *Handler) handleAddCopies(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req addCopiesRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	title, err := h.service.AddCopies(r.Context(), id, req.Copies)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, title)
}

func (h *Handler) handleCurrentPrice(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	price, err := h.service.CurrentPrice(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"movieId": id, "basePrice": price})
}

type assignPricingRequest struct {
	PricingCategoryID int64 `json:"pricingCategoryId" validate:"required,gt=0"`
}

func (h *Handler) handleAssignPricing(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req assignPricingRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	title, err := h.service.AssignPricing(r.Context(), id, req.PricingCategoryID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, title)
}

type createCategoryRequest struct {
	Name      string       `json:"name" validate:"required,max=100"`
	BasePrice *money.Money `json:"basePrice" validate:"required"`
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	category, err := h.service.CreatePricingCategory(r.Context(), req.Name, *req.BasePrice)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, category)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListPricingCategories(r.Context())
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, categories)
}
