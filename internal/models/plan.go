// Package models defines the data shapes mirrored from the NutriFact backend
// and the payment processor. None of these records are owned by this
// application: they are fetched, displayed, and mutated through backend
// calls only.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a priced tier sold to API consumers. Read-only reference data.
type Plan struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	PriceMonthly  int64     `json:"price_monthly"` // cents
	MonthlyQuota  int64     `json:"monthly_quota"`
	RateLimit     int       `json:"rate_limit"` // requests per minute
	StripePriceID string    `json:"stripe_price_id"`
	Features      []string  `json:"features"`
}

// SubscriptionStatus is the payment processor's subscription state, synced
// to the backend via webhooks. This application only ever reads the
// backend's last-known value.
type SubscriptionStatus string

const (
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
	SubscriptionTrialing   SubscriptionStatus = "trialing"
)

// Subscription links a user to a plan plus the processor-side identifiers.
type Subscription struct {
	ID                   uuid.UUID          `json:"id"`
	UserID               uuid.UUID          `json:"user_id"`
	PlanID               uuid.UUID          `json:"plan_id"`
	Plan                 *Plan              `json:"plan,omitempty"`
	StripeSubscriptionID string             `json:"stripe_subscription_id"`
	Status               SubscriptionStatus `json:"status"`
	CurrentPeriodStart   time.Time          `json:"current_period_start"`
	CurrentPeriodEnd     time.Time          `json:"current_period_end"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end"`
}
