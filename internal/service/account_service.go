package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/nutrifact/console/internal/backend"
	"github.com/nutrifact/console/internal/models"
)

// AccountService covers the authenticated dashboard surface outside
// billing: API keys and usage reporting.
type AccountService interface {
	ListAPIKeys(ctx context.Context, accessToken string) ([]models.APIKey, error)

	// CreateAPIKey returns the key with its raw value populated. The raw
	// value is never retrievable again; callers must surface it once.
	CreateAPIKey(ctx context.Context, accessToken, name string) (*models.APIKey, error)

	RevokeAPIKey(ctx context.Context, accessToken, keyID string) error

	// Usage fetches the current-period summary and the daily series
	// concurrently. A failing read degrades its widget to a warning instead
	// of failing the whole report; only both reads failing is an error.
	Usage(ctx context.Context, accessToken string, days int) (*models.UsageReport, error)
}

type accountService struct {
	api *backend.Client
}

// NewAccountService creates an account service over the backend client.
func NewAccountService(api *backend.Client) AccountService {
	return &accountService{api: api}
}

func (s *accountService) ListAPIKeys(ctx context.Context, accessToken string) ([]models.APIKey, error) {
	creds := backend.Credentials{AccessToken: accessToken}
	var keys []models.APIKey
	if err := s.api.Get(ctx, creds, "users/api-keys", &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *accountService) CreateAPIKey(ctx context.Context, accessToken, name string) (*models.APIKey, error) {
	creds := backend.Credentials{AccessToken: accessToken}
	body := map[string]string{"name": name}

	var key models.APIKey
	if err := s.api.Post(ctx, creds, "users/api-keys", body, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

func (s *accountService) RevokeAPIKey(ctx context.Context, accessToken, keyID string) error {
	creds := backend.Credentials{AccessToken: accessToken}
	return s.api.Delete(ctx, creds, "users/api-keys/"+keyID, nil)
}

func (s *accountService) Usage(ctx context.Context, accessToken string, days int) (*models.UsageReport, error) {
	if days <= 0 {
		days = 30
	}
	creds := backend.Credentials{AccessToken: accessToken}

	var (
		wg         sync.WaitGroup
		summary    models.UsageSummary
		summaryErr error
		daily      []models.TimeSeriesPoint
		dailyErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		summaryErr = s.api.Get(ctx, creds, "users/usage/summary", &summary)
	}()
	go func() {
		defer wg.Done()
		path := fmt.Sprintf("users/usage/daily?days=%d", days)
		dailyErr = s.api.Get(ctx, creds, path, &daily)
	}()
	wg.Wait()

	if summaryErr != nil && dailyErr != nil {
		return nil, summaryErr
	}

	report := &models.UsageReport{}
	if summaryErr != nil {
		report.Warnings = append(report.Warnings, "Usage summary is temporarily unavailable.")
	} else {
		report.Summary = &summary
	}
	if dailyErr != nil {
		report.Warnings = append(report.Warnings, "Usage history is temporarily unavailable.")
	} else {
		report.Daily = daily
	}
	return report, nil
}
