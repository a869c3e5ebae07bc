package repo

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice types.
const (
	InvoiceNew     = "new"
	InvoiceRenewal = "renewal"
	InvoiceUpgrade = "upgrade"
)

// Billing cycles.
const (
	CycleMonthly = "monthly"
	CycleAnnual  = "annual"
)

// Subscription statuses.
const (
	SubscriptionTrial     = "trial"
	SubscriptionActive    = "active"
	SubscriptionPastDue   = "past_due"
	SubscriptionExpired   = "expired"
	SubscriptionCancelled = "cancelled"
)

// Payment methods.
const (
	MethodManualMobileMoney = "manual_mobile_money"
	MethodGateway           = "gateway"
)

// ManualPayment holds the verification state of a tenant-submitted payment claim.
type ManualPayment struct {
	PendingVerification bool       `json:"pending_verification"`
	VerifiedAt          *time.Time `json:"verified_at,omitempty"`
	VerifiedBy          string     `json:"verified_by,omitempty"`
	VerificationNotes   string     `json:"verification_notes,omitempty"`
	RejectionReason     string     `json:"rejection_reason,omitempty"`
	SenderPhone         string     `json:"sender_phone,omitempty"`
	SenderName          string     `json:"sender_name,omitempty"`
	ProofURL            string     `json:"proof_url,omitempty"`
	SubmittedAt         *time.Time `json:"submitted_at,omitempty"`
}

// Invoice is a billable subscription charge.
type Invoice struct {
	ID               string          `json:"id"`
	ShopID           string          `json:"shop_id"`
	SubscriptionID   *string         `json:"subscription_id,omitempty"`
	Type             string          `json:"type"`
	Status           string          `json:"status"`
	PlanCode         string          `json:"plan_code"`
	BillingCycle     string          `json:"billing_cycle"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         string          `json:"currency"`
	ReceiptReference string          `json:"receipt_reference,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	ActivatedAt      *time.Time      `json:"activated_at,omitempty"`
	ManualPayment    ManualPayment   `json:"manual_payment"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// PaymentAttempt is one submission through a payment channel.
type PaymentAttempt struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoice_id"`
	Status      string          `json:"status"`
	Method      string          `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	ProviderRef string          `json:"provider_ref,omitempty"`
	ApprovedBy  string          `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PendingUpgrade marks a plan change awaiting payment confirmation.
type PendingUpgrade struct {
	TargetPlan  string    `json:"target_plan"`
	InvoiceID   string    `json:"invoice_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Subscription is a shop's plan membership.
type Subscription struct {
	ID                 string          `json:"id"`
	ShopID             string          `json:"shop_id"`
	PlanCode           string          `json:"plan_code"`
	Status             string          `json:"status"`
	BillingCycle       string          `json:"billing_cycle"`
	CurrentPeriodStart *time.Time      `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time      `json:"current_period_end,omitempty"`
	PendingUpgrade     *PendingUpgrade `json:"pending_upgrade,omitempty"`
	LastInvoiceID      string          `json:"last_invoice_id,omitempty"`
	Version            int64           `json:"version"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// AuditEntry is an immutable record of one administrative action attempt.
type AuditEntry struct {
	ID         string          `json:"id"`
	Category   string          `json:"category"`
	Action     string          `json:"action"`
	ActorID    string          `json:"actor_id"`
	ActorEmail string          `json:"actor_email"`
	ActorType  string          `json:"actor_type"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	ShopID     string          `json:"shop_id,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Outcome    string          `json:"outcome"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Shop is the directory view of a tenant.
type Shop struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ShopAdmin is the primary administrator of a shop.
type ShopAdmin struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	DeviceTokens []string `json:"-"`
}
