package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nutrifact/console/internal/models"
)

func TestAccountService_Usage(t *testing.T) {
	ctx := context.Background()

	summary := models.UsageSummary{Requests: 1200, RequestQuota: 10000}
	daily := []models.TimeSeriesPoint{
		{Date: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), Value: 400},
		{Date: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), Value: 800},
	}

	t.Run("returns the full report when both reads succeed", func(t *testing.T) {
		api, _ := testBackendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/v1/users/usage/summary":
				w.Write(envelope(summary))
			case "/api/v1/users/usage/daily":
				if got := r.URL.Query().Get("days"); got != "30" {
					t.Errorf("days = %q, want 30", got)
				}
				w.Write(envelope(daily))
			default:
				http.NotFound(w, r)
			}
		}))
		svc := NewAccountService(api)

		report, err := svc.Usage(ctx, "token", 0)
		if err != nil {
			t.Fatalf("Usage() error = %v", err)
		}
		if report.Summary == nil || report.Summary.Requests != 1200 {
			t.Errorf("Summary = %+v, want 1200 requests used", report.Summary)
		}
		if len(report.Daily) != 2 {
			t.Errorf("len(Daily) = %d, want 2", len(report.Daily))
		}
		if len(report.Warnings) != 0 {
			t.Errorf("Warnings = %v, want none", report.Warnings)
		}
	})

	t.Run("degrades a single failing read to a warning", func(t *testing.T) {
		api, _ := testBackendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/v1/users/usage/summary":
				w.Write(envelope(summary))
			case "/api/v1/users/usage/daily":
				http.Error(w, `{"detail":"timeout"}`, http.StatusBadGateway)
			default:
				http.NotFound(w, r)
			}
		}))
		svc := NewAccountService(api)

		report, err := svc.Usage(ctx, "token", 7)
		if err != nil {
			t.Fatalf("Usage() error = %v, want degraded report", err)
		}
		if report.Summary == nil {
			t.Error("Summary missing; the healthy read must still render")
		}
		if report.Daily != nil {
			t.Errorf("Daily = %v, want nil for the failed read", report.Daily)
		}
		if len(report.Warnings) != 1 {
			t.Fatalf("Warnings = %v, want exactly one", report.Warnings)
		}
	})

	t.Run("fails only when both reads fail", func(t *testing.T) {
		api, _ := testBackendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"down"}`, http.StatusServiceUnavailable)
		}))
		svc := NewAccountService(api)

		if _, err := svc.Usage(ctx, "token", 7); err == nil {
			t.Error("Usage() expected error when both reads fail")
		}
	})
}

func TestAccountService_APIKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("create returns the raw key once", func(t *testing.T) {
		api, _ := testBackendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/users/api-keys" || r.Method != http.MethodPost {
				http.NotFound(w, r)
				return
			}
			w.Write(envelope(models.APIKey{
				ID:        uuid.New(),
				Name:      "ci",
				KeyPrefix: "nf_live_abc",
				Key:       "nf_live_abc123fullsecret",
				Active:    true,
			}))
		}))
		svc := NewAccountService(api)

		key, err := svc.CreateAPIKey(ctx, "token", "ci")
		if err != nil {
			t.Fatalf("CreateAPIKey() error = %v", err)
		}
		if key.Key == "" {
			t.Error("raw key missing from create response")
		}
	})

	t.Run("revoke targets the key id", func(t *testing.T) {
		var path string
		api, _ := testBackendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		}))
		svc := NewAccountService(api)

		if err := svc.RevokeAPIKey(ctx, "token", "key_1"); err != nil {
			t.Fatalf("RevokeAPIKey() error = %v", err)
		}
		if path != "/api/v1/users/api-keys/key_1" {
			t.Errorf("path = %q, want /api/v1/users/api-keys/key_1", path)
		}
	})
}
