package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nutrifact/console/internal/middleware"
	"github.com/nutrifact/console/internal/pkg/apierrors"
	"github.com/nutrifact/console/internal/pkg/response"
	"github.com/nutrifact/console/internal/service"
)

// FoodsHandler passes nutrition lookups through for the dashboard
// playground.
type FoodsHandler struct {
	foods service.FoodsService
}

// NewFoodsHandler creates a new foods handler.
func NewFoodsHandler(foods service.FoodsService) *FoodsHandler {
	return &FoodsHandler{foods: foods}
}

// Routes returns a chi router with food routes.
func (h *FoodsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireAuth)

	r.Get("/search", h.Search)
	r.Get("/{id}", h.Get)

	return r
}

// Search handles GET /v1/foods/search
func (h *FoodsHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		response.Error(w, apierrors.NewValidationError("q", "search query is required"))
		return
	}

	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	state := middleware.GetSession(r.Context())
	foods, info, err := h.foods.Search(r.Context(), state.Credentials(), query, skip, limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Page(w, http.StatusOK, foods, info.Total, info.Skip, info.Limit)
}

// Get handles GET /v1/foods/{id}
func (h *FoodsHandler) Get(w http.ResponseWriter, r *http.Request) {
	foodID := chi.URLParam(r, "id")

	state := middleware.GetSession(r.Context())
	food, err := h.foods.Get(r.Context(), state.Credentials(), foodID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, food)
}
