// Package web serves the console's HTML entry points and the OAuth
// browser flow. The dashboard itself is a client-side app talking to the
// /v1 API; these pages are the handful of server-rendered surfaces around
// it.
package web

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nutrifact/console/internal/service"
	"github.com/nutrifact/console/internal/session"
)

// OAuthStateCookie carries the anti-forgery state across the provider
// round-trip.
const OAuthStateCookie = "nutrifact_oauth_state"

// Handler serves the web pages and OAuth routes.
type Handler struct {
	oauth    service.OAuthService
	sessions *session.Manager
}

// NewHandler creates a web handler.
func NewHandler(oauth service.OAuthService, sessions *session.Manager) *Handler {
	return &Handler{oauth: oauth, sessions: sessions}
}

// Routes returns a chi router with the web routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Landing)
	r.Get("/login", h.LoginPage)
	r.Get("/signup", h.SignupPage)
	r.Get("/dashboard", h.Dashboard)
	r.Get("/billing/success", h.CheckoutSuccess)
	r.Get("/billing/cancel", h.CheckoutCancel)

	r.Get("/auth/{provider}", h.OAuthStart)
	r.Get("/auth/{provider}/callback", h.OAuthCallback)

	return r
}

// OAuthStart redirects the browser to the provider's consent screen.
func (h *Handler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	state, err := service.GenerateState()
	if err != nil {
		http.Error(w, "failed to start sign-in", http.StatusInternalServerError)
		return
	}

	authURL, err := h.oauth.GetAuthURL(provider, state)
	if err != nil {
		http.Redirect(w, r, "/login?error="+url.QueryEscape("Sign-in with "+provider+" is not available"), http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     OAuthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// OAuthCallback finishes the provider round-trip and signs the user in.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, "/login?error="+url.QueryEscape("No authorization code"), http.StatusFound)
		return
	}

	stateCookie, err := r.Cookie(OAuthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		http.Redirect(w, r, "/login?error="+url.QueryEscape("Sign-in session expired. Please try again."), http.StatusFound)
		return
	}
	// One-shot cookie.
	http.SetCookie(w, &http.Cookie{Name: OAuthStateCookie, Value: "", Path: "/", MaxAge: -1})

	result, err := h.oauth.HandleCallback(r.Context(), provider, code)
	if err != nil {
		http.Redirect(w, r, "/login?error="+url.QueryEscape("Sign-in failed. Please try again."), http.StatusFound)
		return
	}

	state := h.sessions.Load(r)
	state.SetTokens(result.Tokens.AccessToken, result.Tokens.RefreshToken)
	state.SetUserID(result.User.ID.String())
	if err := state.Save(r, w); err != nil {
		http.Redirect(w, r, "/login?error="+url.QueryEscape("Sign-in failed. Please try again."), http.StatusFound)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusFound)
}
