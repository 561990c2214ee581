package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is a credential for programmatic access to the NutriFact data API.
// The raw key value is surfaced exactly once, in the creation response;
// afterwards only the masked prefix is available.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"` // nf_xxxx (for display)
	Key        string     `json:"key,omitempty"`
	Active     bool       `json:"active"`
	UsageCount int64      `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
