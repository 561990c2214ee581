package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"github.com/nutrifact/console/internal/backend"
	"github.com/nutrifact/console/internal/config"
	"github.com/nutrifact/console/internal/database"
	"github.com/nutrifact/console/internal/models"
	"github.com/nutrifact/console/internal/pkg/apierrors"
	"github.com/nutrifact/console/internal/pkg/ulid"
)

// Step is the position of a direct-subscription attempt in the checkout
// state machine. Any step can fall back to StepPayment with a message.
type Step string

const (
	StepPayment    Step = "payment"    // collecting card details
	StepProcessing Step = "processing" // subscription request in flight
	StepConfirming Step = "confirming" // awaiting payment authentication
	StepSuccess    Step = "success"
)

// SubscribeRequest is the direct in-page subscription payload. The payment
// method id comes from client-side tokenization; no raw card data ever
// reaches this service.
type SubscribeRequest struct {
	PlanID          string `json:"plan_id" validate:"required"`
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
}

// SubscribeResult reports where a subscription attempt ended up. A result
// at StepPayment carries the user-facing message to render next to the
// card form.
type SubscribeResult struct {
	Step         Step                 `json:"step"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
	Message      string               `json:"message,omitempty"`
}

// BillingService orchestrates plan selection, subscription lifecycle, and
// payment confirmation. The subscription state machine itself lives in the
// payment processor; status transitions reach the backend via webhooks and
// this service only reads the last-known status and triggers mutations.
type BillingService interface {
	Plans(ctx context.Context) ([]models.Plan, error)
	GetSubscription(ctx context.Context, accessToken string) (*models.Subscription, error)
	Subscribe(ctx context.Context, accessToken, userID string, req SubscribeRequest) (*SubscribeResult, error)
	ChangePlan(ctx context.Context, accessToken, planID string) (*models.Subscription, error)
	CancelSubscription(ctx context.Context, accessToken string) error
	ListInvoices(ctx context.Context, accessToken string) ([]models.Invoice, error)
	ListPaymentMethods(ctx context.Context, accessToken string) ([]models.PaymentMethod, error)
	CreateCheckoutSession(ctx context.Context, accessToken, planID, successURL, cancelURL string) (string, error)
	CreatePortalSession(ctx context.Context, accessToken, returnURL string) (string, error)
	PublishableKey() string
}

// PaymentConfirmer confirms a payment intent with the processor. Split out
// so the confirmation protocol is testable without Stripe.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, intentID string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
}

// Locker provides a best-effort mutual exclusion primitive keyed by string.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Cache is the subset of the redis wrapper used for reference-data caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// stripeConfirmer is the production PaymentConfirmer.
type stripeConfirmer struct{}

func (stripeConfirmer) Confirm(ctx context.Context, intentID string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	return paymentintent.Confirm(intentID, params)
}

const (
	planCacheKey = "billing:plans"
	planCacheTTL = 5 * time.Minute

	subscribeLockTTL = 30 * time.Second
)

type billingService struct {
	api       *backend.Client
	confirmer PaymentConfirmer
	locker    Locker
	cache     Cache
	cfg       config.StripeConfig
}

// NewBillingService creates a billing service. The locker guards against
// concurrent subscription submissions per user; the cache holds the
// read-only plan list.
func NewBillingService(api *backend.Client, locker Locker, cache Cache, cfg config.StripeConfig) BillingService {
	stripe.Key = cfg.SecretKey
	return &billingService{
		api:       api,
		confirmer: stripeConfirmer{},
		locker:    locker,
		cache:     cache,
		cfg:       cfg,
	}
}

// NewBillingServiceWithConfirmer injects a custom confirmer (tests).
func NewBillingServiceWithConfirmer(api *backend.Client, confirmer PaymentConfirmer, locker Locker, cache Cache, cfg config.StripeConfig) BillingService {
	svc := &billingService{
		api:       api,
		confirmer: confirmer,
		locker:    locker,
		cache:     cache,
		cfg:       cfg,
	}
	return svc
}

func (s *billingService) Plans(ctx context.Context) ([]models.Plan, error) {
	cacheUsable := s.cache != nil
	if cacheUsable {
		cached, err := s.cache.Get(ctx, planCacheKey)
		if err == nil && cached != "" {
			var plans []models.Plan
			if err := json.Unmarshal([]byte(cached), &plans); err == nil {
				return plans, nil
			}
		}
		// A missing key is a plain miss; anything else means the cache is
		// failing and the write-back below is skipped too.
		if err != nil && !database.IsNil(err) {
			cacheUsable = false
		}
	}

	var plans []models.Plan
	if err := s.api.Get(ctx, backend.Anonymous, "billing/plans", &plans); err != nil {
		return nil, err
	}

	if cacheUsable {
		if raw, err := json.Marshal(plans); err == nil {
			_ = s.cache.Set(ctx, planCacheKey, string(raw), planCacheTTL)
		}
	}
	return plans, nil
}

func (s *billingService) GetSubscription(ctx context.Context, accessToken string) (*models.Subscription, error) {
	creds := backend.Credentials{AccessToken: accessToken}
	var sub models.Subscription
	if err := s.api.Get(ctx, creds, "billing/subscription", &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// subscribeResponse is the backend's answer to billing/subscribe. A present
// client secret means the payment needs confirmation (possibly 3-D Secure).
type subscribeResponse struct {
	Subscription    models.Subscription `json:"subscription"`
	ClientSecret    string              `json:"client_secret,omitempty"`
	PaymentIntentID string              `json:"payment_intent_id,omitempty"`
}

func (s *billingService) Subscribe(ctx context.Context, accessToken, userID string, req SubscribeRequest) (*SubscribeResult, error) {
	if !s.cfg.DirectSubscribe {
		return nil, apierrors.ErrForbidden.WithMessage("Direct card payments are disabled. Use the hosted checkout instead.")
	}

	lockKey := fmt.Sprintf("billing:subscribe:%s", userID)
	if s.locker != nil {
		acquired, err := s.locker.Acquire(ctx, lockKey, subscribeLockTTL)
		if err == nil && !acquired {
			return nil, apierrors.NewConflictError("A payment is already in progress. Please wait.")
		}
		// A locker failure is not a reason to block checkout; the backend
		// still deduplicates through the idempotency key.
		if err == nil {
			defer s.locker.Release(context.WithoutCancel(ctx), lockKey)
		}
	}

	creds := backend.Credentials{AccessToken: accessToken}
	body := map[string]string{
		"plan_id":           req.PlanID,
		"payment_method_id": req.PaymentMethodID,
	}

	var resp subscribeResponse
	err := s.api.Post(ctx, creds, "billing/subscribe", body, &resp, backend.WithIdempotencyKey(ulid.New()))
	if err != nil {
		if apierrors.IsConnectivity(err) {
			return &SubscribeResult{Step: StepPayment, Message: apierrors.ErrConnectivity.Message}, nil
		}
		return nil, err
	}

	// No client secret: payment settled on the default path, done.
	if resp.ClientSecret == "" {
		return &SubscribeResult{Step: StepSuccess, Subscription: &resp.Subscription}, nil
	}

	return s.confirmPayment(ctx, &resp, req.PaymentMethodID)
}

// confirmPayment drives the confirming step: one confirmation call, plus at
// most one more when the processor asks for additional authentication.
func (s *billingService) confirmPayment(ctx context.Context, resp *subscribeResponse, paymentMethodID string) (*SubscribeResult, error) {
	intentID := resp.PaymentIntentID
	if intentID == "" {
		intentID = intentIDFromClientSecret(resp.ClientSecret)
	}
	if intentID == "" {
		return &SubscribeResult{Step: StepPayment, Message: genericPaymentMessage}, nil
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}

	pi, err := s.confirmer.Confirm(ctx, intentID, params)
	if err != nil {
		return &SubscribeResult{Step: StepPayment, Message: PaymentErrorMessage(err)}, nil
	}

	if pi.Status == stripe.PaymentIntentStatusRequiresAction {
		// Exactly one additional confirmation round-trip.
		pi, err = s.confirmer.Confirm(ctx, intentID, &stripe.PaymentIntentConfirmParams{})
		if err != nil {
			return &SubscribeResult{Step: StepPayment, Message: PaymentErrorMessage(err)}, nil
		}
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusProcessing:
		return &SubscribeResult{Step: StepSuccess, Subscription: &resp.Subscription}, nil
	case stripe.PaymentIntentStatusRequiresAction:
		return &SubscribeResult{Step: StepPayment, Message: "We couldn't authenticate your card. Please try again or use a different payment method."}, nil
	default:
		return &SubscribeResult{Step: StepPayment, Message: genericPaymentMessage}, nil
	}
}

func (s *billingService) ChangePlan(ctx context.Context, accessToken, planID string) (*models.Subscription, error) {
	creds := backend.Credentials{AccessToken: accessToken}
	body := map[string]string{"plan_id": planID}

	var sub models.Subscription
	if err := s.api.Put(ctx, creds, "billing/subscription", body, &sub, backend.WithIdempotencyKey(ulid.New())); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *billingService) CancelSubscription(ctx context.Context, accessToken string) error {
	creds := backend.Credentials{AccessToken: accessToken}
	return s.api.Delete(ctx, creds, "billing/subscription", nil)
}

func (s *billingService) ListInvoices(ctx context.Context, accessToken string) ([]models.Invoice, error) {
	creds := backend.Credentials{AccessToken: accessToken}
	var invoices []models.Invoice
	if err := s.api.Get(ctx, creds, "billing/invoices", &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *billingService) ListPaymentMethods(ctx context.Context, accessToken string) ([]models.PaymentMethod, error) {
	creds := backend.Credentials{AccessToken: accessToken}
	var methods []models.PaymentMethod
	if err := s.api.Get(ctx, creds, "billing/payment-methods", &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

func (s *billingService) CreateCheckoutSession(ctx context.Context, accessToken, planID, successURL, cancelURL string) (string, error) {
	creds := backend.Credentials{AccessToken: accessToken}
	body := map[string]string{
		"plan_id":     planID,
		"success_url": successURL,
		"cancel_url":  cancelURL,
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := s.api.Post(ctx, creds, "billing/checkout-sessions", body, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", apierrors.ErrUpstream.WithDetails("checkout session response carried no URL")
	}
	return out.URL, nil
}

func (s *billingService) CreatePortalSession(ctx context.Context, accessToken, returnURL string) (string, error) {
	creds := backend.Credentials{AccessToken: accessToken}
	body := map[string]string{"return_url": returnURL}

	var out struct {
		URL string `json:"url"`
	}
	if err := s.api.Post(ctx, creds, "billing/customer-portal", body, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", apierrors.ErrUpstream.WithDetails("portal session response carried no URL")
	}
	return out.URL, nil
}

func (s *billingService) PublishableKey() string {
	return s.cfg.PublishableKey
}

// intentIDFromClientSecret extracts the payment intent id from a client
// secret of the form "pi_xxx_secret_yyy".
func intentIDFromClientSecret(secret string) string {
	idx := strings.Index(secret, "_secret_")
	if idx <= 0 {
		return ""
	}
	return secret[:idx]
}

const genericPaymentMessage = "Something went wrong processing your payment."

// cardErrorMessages maps processor decline codes to the friendliest
// available message.
var cardErrorMessages = map[stripe.ErrorCode]string{
	stripe.ErrorCodeCardDeclined:      "Your card was declined. Please try a different payment method.",
	stripe.ErrorCodeInsufficientFunds: "Your card has insufficient funds.",
	stripe.ErrorCodeExpiredCard:       "Your card has expired. Please use a different card.",
	stripe.ErrorCodeIncorrectCVC:      "Your card's security code is incorrect.",
}

// PaymentErrorMessage maps a processor error to a user-facing message:
// card errors through the decline-code table, validation errors pass the
// processor's own message through, API-level errors read as a network
// problem, and anything unrecognized falls back to a generic string.
func PaymentErrorMessage(err error) string {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		if apierrors.IsConnectivity(err) {
			return apierrors.ErrConnectivity.Message
		}
		return genericPaymentMessage
	}

	switch stripeErr.Type {
	case stripe.ErrorTypeCard:
		if msg, ok := cardErrorMessages[stripeErr.Code]; ok {
			return msg
		}
		return "Your card could not be charged. Please try a different payment method."
	case stripe.ErrorTypeInvalidRequest:
		if stripeErr.Msg != "" {
			return stripeErr.Msg
		}
		return genericPaymentMessage
	case stripe.ErrorTypeAPI:
		return apierrors.ErrConnectivity.Message
	default:
		return genericPaymentMessage
	}
}

// Compile-time check to ensure billingService implements BillingService.
var _ BillingService = (*billingService)(nil)
