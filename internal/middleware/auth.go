package middleware

import (
	"context"
	"net/http"

	"github.com/nutrifact/console/internal/models"
	"github.com/nutrifact/console/internal/pkg/apierrors"
	"github.com/nutrifact/console/internal/pkg/response"
	"github.com/nutrifact/console/internal/service"
	"github.com/nutrifact/console/internal/session"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// SessionKey is the context key for the decoded session state.
	SessionKey contextKey = "session"
	// AdminProfileKey is the context key for the fetched admin profile.
	AdminProfileKey contextKey = "admin_profile"
)

// Session decodes the cookie session once per request and stores the state
// in the request context. An absent or broken cookie yields an anonymous
// state; downstream guards decide whether that is acceptable.
func Session(manager *session.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := manager.Load(r)
			ctx := context.WithValue(r.Context(), SessionKey, state)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession retrieves the session state stored by the Session middleware.
func GetSession(ctx context.Context) *session.State {
	if v := ctx.Value(SessionKey); v != nil {
		if state, ok := v.(*session.State); ok {
			return state
		}
	}
	return nil
}

// GetAdminProfile retrieves the admin profile stored by RequirePermission.
func GetAdminProfile(ctx context.Context) *models.AdminProfile {
	if v := ctx.Value(AdminProfileKey); v != nil {
		if profile, ok := v.(*models.AdminProfile); ok {
			return profile
		}
	}
	return nil
}

// RequireAuth rejects requests without a stored access token. Token
// validity is the backend's call; this gate only checks presence so
// anonymous requests fail fast without a network round-trip.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := GetSession(r.Context())
		if state == nil || !state.IsAuthenticated() {
			response.Error(w, apierrors.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission gates admin API routes. The admin profile is fetched
// from the backend per request and handed down via context; non-admins get
// a 403, anonymous callers a 401.
func RequirePermission(admin service.AdminService, perm models.Permission) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := GetSession(r.Context())
			if state == nil || !state.IsAuthenticated() {
				response.Error(w, apierrors.ErrUnauthorized)
				return
			}

			profile, err := admin.Profile(r.Context(), state.AccessToken())
			if err != nil {
				response.Error(w, err)
				return
			}

			decision := admin.Authorize(profile, true, perm)
			if !decision.Allowed {
				response.Error(w, apierrors.ErrForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), AdminProfileKey, profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
