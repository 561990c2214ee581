package models

import "time"

// Invoice is a read-only projection of a payment-processor invoice,
// fetched for display only.
type Invoice struct {
	ID          string    `json:"id"`
	Number      string    `json:"number"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	AmountDue   int64     `json:"amount_due"` // cents
	Currency    string    `json:"currency"`
	Paid        bool      `json:"paid"`
	PDFURL      string    `json:"pdf_url,omitempty"`
}

// PaymentMethod is a read-only projection of a stored card.
type PaymentMethod struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	ExpMonth  int64  `json:"exp_month"`
	ExpYear   int64  `json:"exp_year"`
	IsDefault bool   `json:"is_default"`
}
