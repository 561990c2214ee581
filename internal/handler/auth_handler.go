// Package handler provides HTTP handlers for the console API.
package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nutrifact/console/internal/middleware"
	"github.com/nutrifact/console/internal/pkg/apierrors"
	"github.com/nutrifact/console/internal/pkg/response"
	"github.com/nutrifact/console/internal/service"
)

// AuthHandler handles authentication requests. Tokens issued by the
// backend are written into the cookie session and never returned to the
// browser.
type AuthHandler struct {
	auth     service.AuthService
	validate *validator.Validate
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth service.AuthService) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		validate: validator.New(),
	}
}

// Routes returns a chi router with auth routes.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/login", h.Login)
	r.Post("/register", h.Register)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
	r.Get("/me", h.Me)

	return r
}

// LoginHTTPRequest is the HTTP request body for login.
type LoginHTTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// isFormPost reports whether the request came from a plain HTML form
// rather than the JS client.
func isFormPost(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}

// redirectWithError sends a form submitter back to its page with the
// message in the query string.
func redirectWithError(w http.ResponseWriter, r *http.Request, page, message string) {
	http.Redirect(w, r, page+"?error="+url.QueryEscape(message), http.StatusSeeOther)
}

// Login handles POST /v1/auth/login. Accepts JSON from the client app and
// urlencoded bodies from the server-rendered sign-in form; form submissions
// get redirects instead of JSON.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	formPost := isFormPost(r)

	var req LoginHTTPRequest
	if formPost {
		if err := r.ParseForm(); err != nil {
			response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
			return
		}
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		if formPost {
			redirectWithError(w, r, "/login", "A valid email and password are required")
			return
		}
		response.Error(w, apierrors.NewValidationError("email", "valid email and password are required"))
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if formPost {
			redirectWithError(w, r, "/login", apierrors.AsAPIError(err).Message)
			return
		}
		response.Error(w, err)
		return
	}

	state := middleware.GetSession(r.Context())
	state.SetTokens(result.Tokens.AccessToken, result.Tokens.RefreshToken)
	state.SetUserID(result.User.ID.String())
	if err := state.Save(r, w); err != nil {
		response.Error(w, apierrors.ErrInternal)
		return
	}

	if formPost {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	response.OK(w, result.User)
}

// Register handles POST /v1/auth/register. Same body handling as Login:
// JSON from the client app, urlencoded from the signup form.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	formPost := isFormPost(r)

	var req service.RegisterRequest
	if formPost {
		if err := r.ParseForm(); err != nil {
			response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
			return
		}
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
		req.FirstName = r.PostFormValue("first_name")
		req.LastName = r.PostFormValue("last_name")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		if formPost {
			redirectWithError(w, r, "/signup", "Please fill in every required field")
			return
		}
		fields := make(map[string]string)
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields[fe.Field()] = "failed " + fe.Tag() + " validation"
			}
		}
		response.ValidationErrors(w, fields)
		return
	}

	result, err := h.auth.Register(r.Context(), req)
	if err != nil {
		if formPost {
			redirectWithError(w, r, "/signup", apierrors.AsAPIError(err).Message)
			return
		}
		response.Error(w, err)
		return
	}

	state := middleware.GetSession(r.Context())
	state.SetTokens(result.Tokens.AccessToken, result.Tokens.RefreshToken)
	state.SetUserID(result.User.ID.String())
	if err := state.Save(r, w); err != nil {
		response.Error(w, apierrors.ErrInternal)
		return
	}

	if formPost {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	response.Created(w, result.User)
}

// Me handles GET /v1/auth/me. A rejected token clears the session so the
// next request starts anonymous instead of retrying a dead credential.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	state := middleware.GetSession(r.Context())

	user, err := h.auth.CurrentUser(r.Context(), state.AccessToken())
	if err != nil {
		if apiErr := apierrors.AsAPIError(err); apiErr != nil && apiErr.StatusCode == http.StatusUnauthorized {
			state.Clear()
			_ = state.Save(r, w)
		}
		response.Error(w, err)
		return
	}

	response.OK(w, user)
}

// Refresh handles POST /v1/auth/refresh. Rotation failure is terminal for
// the session: everything is cleared and the caller must log in again.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	state := middleware.GetSession(r.Context())

	tokens, err := h.auth.Refresh(r.Context(), state.RefreshToken())
	if err != nil {
		state.Clear()
		_ = state.Save(r, w)
		response.Error(w, err)
		return
	}

	state.SetTokens(tokens.AccessToken, tokens.RefreshToken)
	if err := state.Save(r, w); err != nil {
		response.Error(w, apierrors.ErrInternal)
		return
	}

	response.NoContent(w)
}

// Logout handles POST /v1/auth/logout. Clears every stored session value
// in one pass regardless of which of them were set.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	state := middleware.GetSession(r.Context())
	state.Clear()
	if err := state.Save(r, w); err != nil {
		response.Error(w, apierrors.ErrInternal)
		return
	}

	response.NoContent(w)
}
