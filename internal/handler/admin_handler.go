package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nutrifact/console/internal/middleware"
	"github.com/nutrifact/console/internal/models"
	"github.com/nutrifact/console/internal/pkg/apierrors"
	"github.com/nutrifact/console/internal/pkg/response"
	"github.com/nutrifact/console/internal/service"
)

// AdminHandler serves the admin console API. Each route group is gated on
// its own capability; route membership never implies access.
type AdminHandler struct {
	admin service.AdminService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(admin service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Routes returns a chi router with admin routes.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.RequirePermission(h.admin, "")).Get("/me", h.Me)
	r.With(middleware.RequirePermission(h.admin, models.PermUsersRead)).Get("/users", h.ListUsers)
	r.With(middleware.RequirePermission(h.admin, models.PermAnalyticsRead)).Get("/analytics", h.Analytics)
	r.With(middleware.RequirePermission(h.admin, models.PermMonitoring)).Get("/monitoring", h.Monitoring)
	r.With(middleware.RequirePermission(h.admin, models.PermSettingsRead)).Get("/settings", h.GetSettings)
	r.With(middleware.RequirePermission(h.admin, models.PermSettingsWrite)).Put("/settings", h.UpdateSettings)
	r.With(middleware.RequirePermission(h.admin, models.PermUsageExport)).Get("/usage/export", h.ExportUsage)

	return r
}

// Me handles GET /v1/admin/me
func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	response.OK(w, middleware.GetAdminProfile(r.Context()))
}

// ListUsers handles GET /v1/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	state := middleware.GetSession(r.Context())
	users, info, err := h.admin.ListUsers(r.Context(), state.AccessToken(), skip, limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Page(w, http.StatusOK, users, info.Total, info.Skip, info.Limit)
}

// Analytics handles GET /v1/admin/analytics
func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	state := middleware.GetSession(r.Context())

	snap, err := h.admin.Analytics(r.Context(), state.AccessToken())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, snap)
}

// Monitoring handles GET /v1/admin/monitoring
func (h *AdminHandler) Monitoring(w http.ResponseWriter, r *http.Request) {
	state := middleware.GetSession(r.Context())

	snap, err := h.admin.Monitoring(r.Context(), state.AccessToken())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, snap)
}

// GetSettings handles GET /v1/admin/settings
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	state := middleware.GetSession(r.Context())

	settings, err := h.admin.GetSettings(r.Context(), state.AccessToken())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, settings)
}

// UpdateSettings handles PUT /v1/admin/settings
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings service.AdminSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}

	state := middleware.GetSession(r.Context())
	updated, err := h.admin.UpdateSettings(r.Context(), state.AccessToken(), settings)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, updated)
}

// ExportUsage handles GET /v1/admin/usage/export, streaming gzip CSV.
func (h *AdminHandler) ExportUsage(w http.ResponseWriter, r *http.Request) {
	state := middleware.GetSession(r.Context())

	filename := "nutrifact-usage-" + time.Now().UTC().Format("2006-01-02") + ".csv.gz"
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := h.admin.ExportUsage(r.Context(), state.AccessToken(), w); err != nil {
		// The backend read happens before the first byte is written, so an
		// error here can still get a proper JSON response.
		w.Header().Del("Content-Disposition")
		response.Error(w, err)
		return
	}
}
