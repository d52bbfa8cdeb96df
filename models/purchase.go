package models

import (
	"strings"
	"time"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
)

type Purchase struct {
	ID              string         `json:"id"`
	Email           string         `json:"email"`
	AccountID       *int           `json:"account_id,omitempty"`
	BundleType      string         `json:"bundle_type"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	Status          PurchaseStatus `json:"status"`
	StripeSessionID string         `json:"stripe_session_id"`
	IncludesAddon   bool           `json:"includes_addon"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type CheckoutRequest struct {
	Email         string `json:"email"`
	UserID        string `json:"userId"`
	BundleType    string `json:"bundleType" binding:"required"`
	IncludesAddon bool   `json:"includesAddon"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

type VerifyRequest struct {
	Email      string `json:"email" binding:"required"`
	BundleType string `json:"bundleType" binding:"required"`
}

type VerifyResponse struct {
	HasValidPurchase bool      `json:"hasValidPurchase"`
	Purchase         *Purchase `json:"purchase"`
}

type PurchaseEvent struct {
	PurchaseID    string `json:"purchase_id"`
	Email         string `json:"email"`
	BundleType    string `json:"bundle_type"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	IncludesAddon bool   `json:"includes_addon"`
	EventType     string `json:"event_type"` // purchase_completed
}

// NormalizeEmail is applied everywhere an email enters the system, so a
// purchase made with "A@Example.com" still verifies for "a@example.com".
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
