package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/nutrifact/console/internal/backend"
	"github.com/nutrifact/console/internal/config"
	"github.com/nutrifact/console/internal/models"
)

// OAuthUserInfo contains user information fetched from OAuth providers.
type OAuthUserInfo struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

// OAuthService defines the OAuth sign-in interface. Providers hand us an
// identity; the backend owns the account and issues the token pair.
type OAuthService interface {
	// GetAuthURL returns the OAuth authorization URL for the given provider.
	GetAuthURL(provider, state string) (string, error)

	// HandleCallback exchanges the code, fetches the provider identity and
	// signs the user into the backend.
	HandleCallback(ctx context.Context, provider, code string) (*models.AuthResult, error)

	// GetSupportedProviders returns a list of configured OAuth providers.
	GetSupportedProviders() []string
}

type oauthService struct {
	configs map[string]*oauth2.Config
	api     *backend.Client
}

// NewOAuthService creates a new OAuth service with the given configuration.
// Providers with missing credentials are left unconfigured rather than failing.
func NewOAuthService(cfg config.OAuthConfig, api *backend.Client) OAuthService {
	configs := make(map[string]*oauth2.Config)

	if cfg.GitHubID != "" && cfg.GitHubSecret != "" {
		configs["github"] = &oauth2.Config{
			ClientID:     cfg.GitHubID,
			ClientSecret: cfg.GitHubSecret,
			Endpoint:     github.Endpoint,
			RedirectURL:  cfg.CallbackURL + "/auth/github/callback",
			Scopes:       []string{"user:email"},
		}
	}

	if cfg.GoogleID != "" && cfg.GoogleSecret != "" {
		configs["google"] = &oauth2.Config{
			ClientID:     cfg.GoogleID,
			ClientSecret: cfg.GoogleSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.CallbackURL + "/auth/google/callback",
			Scopes:       []string{"email", "profile"},
		}
	}

	return &oauthService{
		configs: configs,
		api:     api,
	}
}

// GenerateState returns a random URL-safe state parameter for the OAuth flow.
func GenerateState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *oauthService) GetAuthURL(provider, state string) (string, error) {
	cfg, ok := s.configs[provider]
	if !ok {
		return "", fmt.Errorf("unknown or unconfigured provider: %s", provider)
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

func (s *oauthService) HandleCallback(ctx context.Context, provider, code string) (*models.AuthResult, error) {
	cfg, ok := s.configs[provider]
	if !ok {
		return nil, fmt.Errorf("unknown or unconfigured provider: %s", provider)
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	userInfo, err := s.fetchUserInfo(ctx, provider, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	// The backend matches or creates the account and returns our tokens.
	body := map[string]string{
		"provider":    provider,
		"provider_id": userInfo.ID,
		"email":       userInfo.Email,
		"name":        userInfo.Name,
		"avatar_url":  userInfo.AvatarURL,
	}
	var result models.AuthResult
	if err := s.api.Post(ctx, backend.Anonymous, "auth/oauth", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *oauthService) GetSupportedProviders() []string {
	providers := make([]string, 0, len(s.configs))
	for provider := range s.configs {
		providers = append(providers, provider)
	}
	return providers
}

func (s *oauthService) fetchUserInfo(ctx context.Context, provider string, token *oauth2.Token) (*OAuthUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	switch provider {
	case "github":
		return s.fetchGitHubUser(client)
	case "google":
		return s.fetchGoogleUser(client)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

func (s *oauthService) fetchGitHubUser(client *http.Client) (*OAuthUserInfo, error) {
	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch GitHub user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var data struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode GitHub user response: %w", err)
	}

	// Fetch email if not public
	email := data.Email
	if email == "" {
		emails, err := s.fetchGitHubEmails(client)
		if err == nil && len(emails) > 0 {
			email = emails[0]
		}
	}

	name := data.Name
	if name == "" {
		name = data.Login
	}

	return &OAuthUserInfo{
		ID:        fmt.Sprintf("%d", data.ID),
		Email:     email,
		Name:      name,
		AvatarURL: data.AvatarURL,
	}, nil
}

func (s *oauthService) fetchGitHubEmails(client *http.Client) ([]string, error) {
	resp, err := client.Get("https://api.github.com/user/emails")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub emails API returned status %d", resp.StatusCode)
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return nil, err
	}

	// Prioritize primary verified emails
	var result []string
	for _, e := range emails {
		if e.Verified && e.Primary {
			result = append([]string{e.Email}, result...)
		} else if e.Verified {
			result = append(result, e.Email)
		}
	}
	return result, nil
}

func (s *oauthService) fetchGoogleUser(client *http.Client) (*OAuthUserInfo, error) {
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Google user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Google API returned status %d", resp.StatusCode)
	}

	var data struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode Google user response: %w", err)
	}

	return &OAuthUserInfo{
		ID:        data.ID,
		Email:     data.Email,
		Name:      data.Name,
		AvatarURL: data.Picture,
	}, nil
}
