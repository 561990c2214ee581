package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nutrifact/console/internal/middleware"
	"github.com/nutrifact/console/internal/pkg/apierrors"
	"github.com/nutrifact/console/internal/pkg/response"
	"github.com/nutrifact/console/internal/service"
)

// BillingHandler handles plan and subscription requests.
type BillingHandler struct {
	billing  service.BillingService
	validate *validator.Validate
}

// NewBillingHandler creates a new billing handler.
func NewBillingHandler(billing service.BillingService) *BillingHandler {
	return &BillingHandler{
		billing:  billing,
		validate: validator.New(),
	}
}

// Routes returns a chi router with billing routes. Plans are public; the
// rest requires a session.
func (h *BillingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/plans", h.ListPlans)
	r.Get("/config", h.Config)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/subscription", h.GetSubscription)
		r.Post("/subscribe", h.Subscribe)
		r.Put("/subscription", h.ChangePlan)
		r.Delete("/subscription", h.CancelSubscription)
		r.Get("/invoices", h.ListInvoices)
		r.Get("/payment-methods", h.ListPaymentMethods)
		r.Post("/checkout-sessions", h.CreateCheckoutSession)
		r.Post("/portal-sessions", h.CreatePortalSession)
	})

	return r
}

// ListPlans handles GET /v1/billing/plans
func (h *BillingHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.billing.Plans(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, plans)
}

// Config handles GET /v1/billing/config. The publishable key is safe to
// expose; card tokenization happens in the browser against it.
func (h *BillingHandler) Config(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"publishable_key": h.billing.PublishableKey(),
	})
}

// GetSubscription handles GET /v1/billing/subscription
func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	state := middleware.GetSession(r.Context())

	sub, err := h.billing.GetSubscription(r.Context(), state.AccessToken())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, sub)
}

// Subscribe handles POST /v1/billing/subscribe. The response always tells
// the page which checkout step to render next; payment failures come back
// as a step with a message, not an HTTP error.
func (h *BillingHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req service.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, apierrors.NewValidationError("plan_id", "plan_id and payment_method_id are required"))
		return
	}

	state := middleware.GetSession(r.Context())
	result, err := h.billing.Subscribe(r.Context(), state.AccessToken(), state.UserID(), req)
	if err != nil {
		response.Error(w, err)
		return
	}

	middleware.RecordSubscription(string(result.Step))
	response.OK(w, result)
}

// ChangePlanHTTPRequest is the HTTP request body for a plan change.
type ChangePlanHTTPRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// ChangePlan handles PUT /v1/billing/subscription
func (h *BillingHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	var req ChangePlanHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, apierrors.NewValidationError("plan_id", "plan_id is required"))
		return
	}

	state := middleware.GetSession(r.Context())
	sub, err := h.billing.ChangePlan(r.Context(), state.AccessToken(), req.PlanID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, sub)
}

// CancelSubscription handles DELETE /v1/billing/subscription
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	state := middleware.GetSession(r.Context())

	if err := h.billing.CancelSubscription(r.Context(), state.AccessToken()); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// ListInvoices handles GET /v1/billing/invoices
func (h *BillingHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	state := middleware.GetSession(r.Context())

	invoices, err := h.billing.ListInvoices(r.Context(), state.AccessToken())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, invoices)
}

// ListPaymentMethods handles GET /v1/billing/payment-methods
func (h *BillingHandler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	state := middleware.GetSession(r.Context())

	methods, err := h.billing.ListPaymentMethods(r.Context(), state.AccessToken())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, methods)
}

// CheckoutSessionHTTPRequest is the HTTP request body for hosted checkout.
type CheckoutSessionHTTPRequest struct {
	PlanID     string `json:"plan_id" validate:"required"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// CreateCheckoutSession handles POST /v1/billing/checkout-sessions. The
// response carries the hosted checkout URL; navigation is the page's job.
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req CheckoutSessionHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, apierrors.NewValidationError("plan_id", "plan_id, success_url and cancel_url are required"))
		return
	}

	state := middleware.GetSession(r.Context())
	url, err := h.billing.CreateCheckoutSession(r.Context(), state.AccessToken(), req.PlanID, req.SuccessURL, req.CancelURL)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"url": url})
}

// PortalSessionHTTPRequest is the HTTP request body for the billing portal.
type PortalSessionHTTPRequest struct {
	ReturnURL string `json:"return_url" validate:"required,url"`
}

// CreatePortalSession handles POST /v1/billing/portal-sessions
func (h *BillingHandler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	var req PortalSessionHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, apierrors.NewValidationError("return_url", "return_url is required"))
		return
	}

	state := middleware.GetSession(r.Context())
	url, err := h.billing.CreatePortalSession(r.Context(), state.AccessToken(), req.ReturnURL)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"url": url})
}
