// Package session wraps cookie-backed session state for the console.
//
// The persisted layout is deliberately tiny: the backend access and refresh
// tokens, the user's data-plane API key, and the user id for fast gating.
// Everything else lives in the backend. Logout clears all of it in one call.
package session

import (
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/nutrifact/console/internal/backend"
	"github.com/nutrifact/console/internal/config"
)

// Session value keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyAPIKey       = "api_key"
	KeyUserID       = "user_id"
)

// Manager creates and loads session state. It is injected at startup; no
// package-level globals.
type Manager struct {
	store sessions.Store
	name  string
}

// NewManager builds a cookie-store manager from configuration.
func NewManager(cfg config.SessionConfig) *Manager {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store, name: cfg.Name}
}

// NewManagerWithStore builds a manager over an existing store (tests).
func NewManagerWithStore(store sessions.Store, name string) *Manager {
	return &Manager{store: store, name: name}
}

// Load returns the session state for a request. A missing or undecodable
// cookie yields a fresh anonymous state rather than an error.
func (m *Manager) Load(r *http.Request) *State {
	s, err := m.store.Get(r, m.name)
	if err != nil || s == nil {
		s = sessions.NewSession(m.store, m.name)
		s.Options = &sessions.Options{Path: "/", HttpOnly: true}
	}
	return &State{s: s}
}

// State is the mutable per-request session view.
type State struct {
	s *sessions.Session
}

func (st *State) value(key string) string {
	if v, ok := st.s.Values[key].(string); ok {
		return v
	}
	return ""
}

// AccessToken returns the stored backend access token, if any.
func (st *State) AccessToken() string { return st.value(KeyAccessToken) }

// RefreshToken returns the stored backend refresh token, if any.
func (st *State) RefreshToken() string { return st.value(KeyRefreshToken) }

// APIKey returns the stored data-plane API key, if any.
func (st *State) APIKey() string { return st.value(KeyAPIKey) }

// UserID returns the stored user id, if any.
func (st *State) UserID() string { return st.value(KeyUserID) }

// IsAuthenticated reports whether an access token is present. Whether the
// token is still valid is only known after a whoami call.
func (st *State) IsAuthenticated() bool { return st.AccessToken() != "" }

// SetTokens stores a fresh token pair after login, register, or refresh.
func (st *State) SetTokens(access, refresh string) {
	st.s.Values[KeyAccessToken] = access
	if refresh != "" {
		st.s.Values[KeyRefreshToken] = refresh
	}
}

// SetUserID records the authenticated user's id.
func (st *State) SetUserID(id string) {
	st.s.Values[KeyUserID] = id
}

// SetAPIKey stores the user's data-plane API key for passthrough reads.
func (st *State) SetAPIKey(key string) {
	st.s.Values[KeyAPIKey] = key
}

// Clear removes every stored value. Used on logout and on token
// verification failure.
func (st *State) Clear() {
	delete(st.s.Values, KeyAccessToken)
	delete(st.s.Values, KeyRefreshToken)
	delete(st.s.Values, KeyAPIKey)
	delete(st.s.Values, KeyUserID)
	st.s.Options.MaxAge = -1
}

// Credentials builds the backend credential set from stored values.
func (st *State) Credentials() backend.Credentials {
	return backend.Credentials{
		AccessToken: st.AccessToken(),
		APIKey:      st.APIKey(),
	}
}

// Save persists the state to the response cookie.
func (st *State) Save(r *http.Request, w http.ResponseWriter) error {
	return st.s.Save(r, w)
}
