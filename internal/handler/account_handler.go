package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nutrifact/console/internal/middleware"
	"github.com/nutrifact/console/internal/pkg/apierrors"
	"github.com/nutrifact/console/internal/pkg/response"
	"github.com/nutrifact/console/internal/service"
)

// AccountHandler handles profile, API key and usage requests.
type AccountHandler struct {
	account  service.AccountService
	auth     service.AuthService
	validate *validator.Validate
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(account service.AccountService, auth service.AuthService) *AccountHandler {
	return &AccountHandler{
		account:  account,
		auth:     auth,
		validate: validator.New(),
	}
}

// Routes returns a chi router with account routes. Everything here
// requires a session.
func (h *AccountHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireAuth)

	r.Put("/profile", h.UpdateProfile)
	r.Get("/api-keys", h.ListAPIKeys)
	r.Post("/api-keys", h.CreateAPIKey)
	r.Delete("/api-keys/{id}", h.RevokeAPIKey)
	r.Get("/usage", h.Usage)

	return r
}

// UpdateProfile handles PUT /v1/account/profile
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, apierrors.NewValidationError("first_name", "names are limited to 100 characters"))
		return
	}

	state := middleware.GetSession(r.Context())
	user, err := h.auth.UpdateProfile(r.Context(), state.AccessToken(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, user)
}

// ListAPIKeys handles GET /v1/account/api-keys
func (h *AccountHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	state := middleware.GetSession(r.Context())

	keys, err := h.account.ListAPIKeys(r.Context(), state.AccessToken())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, keys)
}

// CreateAPIKeyHTTPRequest is the HTTP request body for creating a key.
type CreateAPIKeyHTTPRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// CreateAPIKey handles POST /v1/account/api-keys. The created key's raw
// value appears in this response only; afterwards only the prefix is shown.
func (h *AccountHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, apierrors.NewValidationError("name", "name is required"))
		return
	}

	state := middleware.GetSession(r.Context())
	key, err := h.account.CreateAPIKey(r.Context(), state.AccessToken(), req.Name)
	if err != nil {
		response.Error(w, err)
		return
	}

	// Keep the freshest key in the session for data-plane passthrough.
	if key.Key != "" {
		state.SetAPIKey(key.Key)
		_ = state.Save(r, w)
	}

	response.Created(w, key)
}

// RevokeAPIKey handles DELETE /v1/account/api-keys/{id}
func (h *AccountHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "id")
	if keyID == "" {
		response.Error(w, apierrors.NewValidationError("id", "key id is required"))
		return
	}

	state := middleware.GetSession(r.Context())
	if err := h.account.RevokeAPIKey(r.Context(), state.AccessToken(), keyID); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// Usage handles GET /v1/account/usage. The report may carry warnings in
// place of widgets whose reads failed; the page renders what it gets.
func (h *AccountHandler) Usage(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 365 {
			days = parsed
		}
	}

	state := middleware.GetSession(r.Context())
	report, err := h.account.Usage(r.Context(), state.AccessToken(), days)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, report)
}
