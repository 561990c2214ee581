package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v76"

	"github.com/nutrifact/console/internal/backend"
	"github.com/nutrifact/console/internal/config"
	"github.com/nutrifact/console/internal/models"
	"github.com/nutrifact/console/internal/pkg/apierrors"
	"github.com/nutrifact/console/internal/pkg/ulid"
)

// --- Mocks ---

type mockConfirmer struct {
	mu      sync.Mutex
	calls   []string // intent IDs in call order
	ctxs    []context.Context
	results []*stripe.PaymentIntent
	errs    []error
}

func (m *mockConfirmer) Confirm(ctx context.Context, intentID string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.calls)
	m.calls = append(m.calls, intentID)
	m.ctxs = append(m.ctxs, ctx)
	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	if idx < len(m.results) {
		return m.results[idx], nil
	}
	return &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusSucceeded}, nil
}

func (m *mockConfirmer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMockLocker() *mockLocker {
	return &mockLocker{held: make(map[string]bool)}
}

func (m *mockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return false, nil
	}
	m.held[key] = true
	return true, nil
}

func (m *mockLocker) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}

type mockCache struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	sets   int
}

func newMockCache() *mockCache {
	return &mockCache{values: make(map[string]string)}
}

func (m *mockCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.values[key] = fmt.Sprintf("%v", value)
	return nil
}

func (m *mockCache) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// --- Helpers ---

func testBackendClient(t *testing.T, handler http.Handler) (*backend.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := backend.New(config.BackendConfig{
		URL:     srv.URL,
		Prefix:  "/api/v1",
		Timeout: 5 * time.Second,
	}, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	return client, srv
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func envelope(data any) []byte {
	raw, _ := json.Marshal(data)
	out, _ := json.Marshal(map[string]any{"success": true, "data": json.RawMessage(raw)})
	return out
}

var testSubID = uuid.MustParse("6f1c2a1e-8b3d-4b6e-9f2a-0c1d2e3f4a5b")

func subscribeBackend(t *testing.T, clientSecret, intentID string, idemKeys *[]string) *backend.Client {
	t.Helper()
	client, _ := testBackendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/billing/subscribe" {
			http.NotFound(w, r)
			return
		}
		if idemKeys != nil {
			*idemKeys = append(*idemKeys, r.Header.Get("Idempotency-Key"))
		}
		resp := map[string]any{
			"subscription": models.Subscription{ID: testSubID, Status: models.SubscriptionActive},
		}
		if clientSecret != "" {
			resp["client_secret"] = clientSecret
			resp["payment_intent_id"] = intentID
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(envelope(resp))
	}))
	return client
}

func newTestBillingService(api *backend.Client, confirmer *mockConfirmer, locker Locker) BillingService {
	return NewBillingServiceWithConfirmer(api, confirmer, locker, newMockCache(), config.StripeConfig{
		PublishableKey:  "pk_test_123",
		DirectSubscribe: true,
	})
}

// --- Tests ---

func TestBillingService_Subscribe(t *testing.T) {
	ctx := context.Background()
	req := SubscribeRequest{PlanID: "pro", PaymentMethodID: "pm_card_visa"}

	t.Run("completes without confirmation when no client secret", func(t *testing.T) {
		confirmer := &mockConfirmer{}
		api := subscribeBackend(t, "", "", nil)
		svc := newTestBillingService(api, confirmer, newMockLocker())

		result, err := svc.Subscribe(ctx, "token", "user-1", req)
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		if result.Step != StepSuccess {
			t.Errorf("Step = %v, want %v", result.Step, StepSuccess)
		}
		if result.Subscription == nil || result.Subscription.ID != testSubID {
			t.Errorf("Subscription = %+v, want %s", result.Subscription, testSubID)
		}
		if confirmer.callCount() != 0 {
			t.Errorf("Confirm calls = %d, want 0", confirmer.callCount())
		}
	})

	t.Run("confirms once when client secret is present", func(t *testing.T) {
		confirmer := &mockConfirmer{
			results: []*stripe.PaymentIntent{{Status: stripe.PaymentIntentStatusSucceeded}},
		}
		api := subscribeBackend(t, "pi_123_secret_abc", "", nil)
		svc := newTestBillingService(api, confirmer, newMockLocker())

		result, err := svc.Subscribe(ctx, "token", "user-1", req)
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		if result.Step != StepSuccess {
			t.Errorf("Step = %v, want %v", result.Step, StepSuccess)
		}
		if confirmer.callCount() != 1 {
			t.Fatalf("Confirm calls = %d, want 1", confirmer.callCount())
		}
		// Intent id comes out of the client secret when the backend omits it.
		if confirmer.calls[0] != "pi_123" {
			t.Errorf("intent id = %q, want %q", confirmer.calls[0], "pi_123")
		}
	})

	t.Run("runs exactly one extra confirmation on requires_action", func(t *testing.T) {
		confirmer := &mockConfirmer{
			results: []*stripe.PaymentIntent{
				{Status: stripe.PaymentIntentStatusRequiresAction},
				{Status: stripe.PaymentIntentStatusSucceeded},
			},
		}
		api := subscribeBackend(t, "pi_456_secret_def", "pi_456", nil)
		svc := newTestBillingService(api, confirmer, newMockLocker())

		result, err := svc.Subscribe(ctx, "token", "user-1", req)
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		if result.Step != StepSuccess {
			t.Errorf("Step = %v, want %v", result.Step, StepSuccess)
		}
		if confirmer.callCount() != 2 {
			t.Errorf("Confirm calls = %d, want 2", confirmer.callCount())
		}
	})

	t.Run("does not confirm a third time when authentication keeps failing", func(t *testing.T) {
		confirmer := &mockConfirmer{
			results: []*stripe.PaymentIntent{
				{Status: stripe.PaymentIntentStatusRequiresAction},
				{Status: stripe.PaymentIntentStatusRequiresAction},
			},
		}
		api := subscribeBackend(t, "pi_789_secret_ghi", "pi_789", nil)
		svc := newTestBillingService(api, confirmer, newMockLocker())

		result, err := svc.Subscribe(ctx, "token", "user-1", req)
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		if result.Step != StepPayment {
			t.Errorf("Step = %v, want %v", result.Step, StepPayment)
		}
		if result.Message == "" {
			t.Error("expected a user-facing message for failed authentication")
		}
		if confirmer.callCount() != 2 {
			t.Errorf("Confirm calls = %d, want 2", confirmer.callCount())
		}
	})

	t.Run("maps card decline to a friendly message", func(t *testing.T) {
		confirmer := &mockConfirmer{
			errs: []error{&stripe.Error{
				Type: stripe.ErrorTypeCard,
				Code: stripe.ErrorCodeCardDeclined,
			}},
		}
		api := subscribeBackend(t, "pi_123_secret_abc", "pi_123", nil)
		svc := newTestBillingService(api, confirmer, newMockLocker())

		result, err := svc.Subscribe(ctx, "token", "user-1", req)
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		if result.Step != StepPayment {
			t.Errorf("Step = %v, want %v", result.Step, StepPayment)
		}
		want := "Your card was declined. Please try a different payment method."
		if result.Message != want {
			t.Errorf("Message = %q, want %q", result.Message, want)
		}
	})

	t.Run("rejects a second submission while one is in flight", func(t *testing.T) {
		locker := newMockLocker()
		locker.held["billing:subscribe:user-1"] = true

		confirmer := &mockConfirmer{}
		api := subscribeBackend(t, "", "", nil)
		svc := newTestBillingService(api, confirmer, locker)

		_, err := svc.Subscribe(ctx, "token", "user-1", req)
		if err == nil {
			t.Fatal("Subscribe() expected conflict error")
		}
		apiErr := apierrors.AsAPIError(err)
		if apiErr == nil || apiErr.Code != "conflict" {
			t.Errorf("error = %v, want conflict", err)
		}
	})

	t.Run("releases the lock after completion", func(t *testing.T) {
		locker := newMockLocker()
		confirmer := &mockConfirmer{}
		api := subscribeBackend(t, "", "", nil)
		svc := newTestBillingService(api, confirmer, locker)

		if _, err := svc.Subscribe(ctx, "token", "user-1", req); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		if locker.held["billing:subscribe:user-1"] {
			t.Error("lock still held after Subscribe returned")
		}
	})

	t.Run("returns to payment step on connectivity failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close() // refuse all connections

		api := backend.New(config.BackendConfig{
			URL:     srv.URL,
			Prefix:  "/api/v1",
			Timeout: time.Second,
		}, slog.New(slog.NewTextHandler(testWriter{t}, nil)))

		confirmer := &mockConfirmer{}
		svc := newTestBillingService(api, confirmer, newMockLocker())

		result, err := svc.Subscribe(ctx, "token", "user-1", req)
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		if result.Step != StepPayment {
			t.Errorf("Step = %v, want %v", result.Step, StepPayment)
		}
		if result.Message != apierrors.ErrConnectivity.Message {
			t.Errorf("Message = %q, want %q", result.Message, apierrors.ErrConnectivity.Message)
		}
		if confirmer.callCount() != 0 {
			t.Errorf("Confirm calls = %d, want 0", confirmer.callCount())
		}
	})

	t.Run("is rejected when direct card payments are disabled", func(t *testing.T) {
		var keys []string
		api := subscribeBackend(t, "", "", &keys)
		confirmer := &mockConfirmer{}
		svc := NewBillingServiceWithConfirmer(api, confirmer, newMockLocker(), newMockCache(), config.StripeConfig{
			PublishableKey:  "pk_test_123",
			DirectSubscribe: false,
		})

		_, err := svc.Subscribe(ctx, "token", "user-1", req)
		if err == nil {
			t.Fatal("Subscribe() expected an error with direct payments disabled")
		}
		apiErr := apierrors.AsAPIError(err)
		if apiErr.StatusCode != http.StatusForbidden {
			t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
		}
		if len(keys) != 0 {
			t.Errorf("backend hits = %d, want 0", len(keys))
		}
		if confirmer.callCount() != 0 {
			t.Errorf("Confirm calls = %d, want 0", confirmer.callCount())
		}
	})

	t.Run("confirmation calls carry the request context", func(t *testing.T) {
		type ctxKey struct{}
		confirmer := &mockConfirmer{
			results: []*stripe.PaymentIntent{
				{Status: stripe.PaymentIntentStatusRequiresAction},
				{Status: stripe.PaymentIntentStatusSucceeded},
			},
		}
		api := subscribeBackend(t, "pi_456_secret_def", "pi_456", nil)
		svc := newTestBillingService(api, confirmer, newMockLocker())

		tagged := context.WithValue(ctx, ctxKey{}, "checkout")
		if _, err := svc.Subscribe(tagged, "token", "user-1", req); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		if confirmer.callCount() != 2 {
			t.Fatalf("Confirm calls = %d, want 2", confirmer.callCount())
		}
		for i, got := range confirmer.ctxs {
			if got.Value(ctxKey{}) != "checkout" {
				t.Errorf("Confirm call %d did not receive the request context", i)
			}
		}
	})

	t.Run("sends an idempotency key with the subscription request", func(t *testing.T) {
		var keys []string
		api := subscribeBackend(t, "", "", &keys)
		svc := newTestBillingService(api, &mockConfirmer{}, newMockLocker())

		if _, err := svc.Subscribe(ctx, "token", "user-1", req); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		if len(keys) != 1 {
			t.Fatalf("backend hits = %d, want 1", len(keys))
		}
		if !ulid.IsValid(keys[0]) {
			t.Errorf("Idempotency-Key = %q, want a valid ULID", keys[0])
		}
	})
}

func TestBillingService_Plans(t *testing.T) {
	ctx := context.Background()

	var hits int
	plans := []models.Plan{
		{ID: uuid.New(), Name: "Free", Slug: "free"},
		{ID: uuid.New(), Name: "Pro", Slug: "pro", PriceMonthly: 2900},
	}
	api, _ := testBackendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		w.Write(envelope(plans))
	}))

	svc := NewBillingServiceWithConfirmer(api, &mockConfirmer{}, newMockLocker(), newMockCache(), config.StripeConfig{})

	first, err := svc.Plans(ctx)
	if err != nil {
		t.Fatalf("Plans() error = %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("len(plans) = %d, want 2", len(first))
	}

	second, err := svc.Plans(ctx)
	if err != nil {
		t.Fatalf("Plans() second call error = %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("len(plans) = %d, want 2", len(second))
	}
	if hits != 1 {
		t.Errorf("backend hits = %d, want 1 (second read served from cache)", hits)
	}
}

func TestBillingService_PlansCacheFailure(t *testing.T) {
	ctx := context.Background()

	var hits int
	api, _ := testBackendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		w.Write(envelope([]models.Plan{{ID: uuid.New(), Slug: "free"}}))
	}))

	cache := newMockCache()
	cache.getErr = errors.New("connection refused")
	svc := NewBillingServiceWithConfirmer(api, &mockConfirmer{}, newMockLocker(), cache, config.StripeConfig{})

	plans, err := svc.Plans(ctx)
	if err != nil {
		t.Fatalf("Plans() error = %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("len(plans) = %d, want 1", len(plans))
	}
	if hits != 1 {
		t.Errorf("backend hits = %d, want 1", hits)
	}
	// A failing cache is read around and not written back to; only a plain
	// miss earns a write.
	if cache.setCount() != 0 {
		t.Errorf("cache writes = %d, want 0", cache.setCount())
	}

	cache.getErr = nil
	if _, err := svc.Plans(ctx); err != nil {
		t.Fatalf("Plans() after recovery error = %v", err)
	}
	if cache.setCount() != 1 {
		t.Errorf("cache writes = %d, want 1 after a miss", cache.setCount())
	}
}

func TestPaymentErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "card declined",
			err:  &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined},
			want: "Your card was declined. Please try a different payment method.",
		},
		{
			name: "insufficient funds",
			err:  &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeInsufficientFunds},
			want: "Your card has insufficient funds.",
		},
		{
			name: "expired card",
			err:  &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeExpiredCard},
			want: "Your card has expired. Please use a different card.",
		},
		{
			name: "incorrect cvc",
			err:  &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeIncorrectCVC},
			want: "Your card's security code is incorrect.",
		},
		{
			name: "unknown card code falls back to the card message",
			err:  &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCode("processing_error")},
			want: "Your card could not be charged. Please try a different payment method.",
		},
		{
			name: "invalid request passes the processor message through",
			err:  &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "No such payment_method: pm_bogus"},
			want: "No such payment_method: pm_bogus",
		},
		{
			name: "api error reads as a network problem",
			err:  &stripe.Error{Type: stripe.ErrorTypeAPI},
			want: apierrors.ErrConnectivity.Message,
		},
		{
			name: "non-stripe error gets the generic message",
			err:  errors.New("boom"),
			want: "Something went wrong processing your payment.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PaymentErrorMessage(tt.err); got != tt.want {
				t.Errorf("PaymentErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIntentIDFromClientSecret(t *testing.T) {
	if got := intentIDFromClientSecret("pi_abc_secret_xyz"); got != "pi_abc" {
		t.Errorf("got %q, want %q", got, "pi_abc")
	}
	if got := intentIDFromClientSecret("garbage"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
	if got := intentIDFromClientSecret("_secret_xyz"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
