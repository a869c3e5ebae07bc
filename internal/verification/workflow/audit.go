package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
)

// Audit vocabulary.
const (
	CategoryPaymentVerification = "payment_verification"

	ActionVerifyPayment          = "verify_payment"
	ActionRejectPayment          = "reject_payment"
	ActionForceActivateUpgrade   = "force_activate_upgrade"
	ActionActivatePendingUpgrade = "activate_pending_upgrade"
	ActionSubmitPayment          = "submit_payment"

	TargetInvoice      = "invoice"
	TargetSubscription = "subscription"
	TargetShop         = "shop"

	OutcomeSuccess = "success"
	OutcomeNoop    = "noop"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// AuditMetadata is the per-action payload stored with an audit entry.
type AuditMetadata interface {
	Kind() string
}

// VerifyMetadata snapshots a verify attempt.
type VerifyMetadata struct {
	Amount           string `json:"amount,omitempty"`
	Currency         string `json:"currency,omitempty"`
	ReceiptReference string `json:"receipt_reference,omitempty"`
	Notes            string `json:"notes,omitempty"`
	InvoiceType      string `json:"invoice_type,omitempty"`
	PreviousStatus   string `json:"previous_status,omitempty"`
	AttemptUpdated   bool   `json:"attempt_updated"`
	Activation       string `json:"activation,omitempty"`
}

// Kind implements AuditMetadata.
func (VerifyMetadata) Kind() string { return ActionVerifyPayment }

// RejectMetadata snapshots a reject attempt.
type RejectMetadata struct {
	Amount           string `json:"amount,omitempty"`
	ReceiptReference string `json:"receipt_reference,omitempty"`
	Reason           string `json:"reason"`
	InvoiceType      string `json:"invoice_type,omitempty"`
	PreviousStatus   string `json:"previous_status,omitempty"`
	UpgradeCancelled bool   `json:"upgrade_cancelled"`
}

// Kind implements AuditMetadata.
func (RejectMetadata) Kind() string { return ActionRejectPayment }

// ForceActivateMetadata snapshots a forced upgrade, including the marker it consumed.
type ForceActivateMetadata struct {
	Reason         string               `json:"reason"`
	PendingUpgrade *repo.PendingUpgrade `json:"pending_upgrade,omitempty"`
	PreviousPlan   string               `json:"previous_plan,omitempty"`
	ActivatedPlan  string               `json:"activated_plan,omitempty"`
}

// Kind implements AuditMetadata.
func (ForceActivateMetadata) Kind() string { return ActionForceActivateUpgrade }

// ActivateUpgradeMetadata snapshots a direct pending-upgrade activation.
type ActivateUpgradeMetadata struct {
	PendingUpgrade *repo.PendingUpgrade `json:"pending_upgrade,omitempty"`
	ActivatedPlan  string               `json:"activated_plan,omitempty"`
}

// Kind implements AuditMetadata.
func (ActivateUpgradeMetadata) Kind() string { return ActionActivatePendingUpgrade }

// SubmitMetadata snapshots a tenant payment claim.
type SubmitMetadata struct {
	Amount           string `json:"amount,omitempty"`
	ReceiptReference string `json:"receipt_reference"`
	SenderPhone      string `json:"sender_phone,omitempty"`
	Method           string `json:"method"`
	ProofStored      bool   `json:"proof_stored"`
}

// Kind implements AuditMetadata.
func (SubmitMetadata) Kind() string { return ActionSubmitPayment }

type taggedMetadata struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodeMetadata serializes m as {"kind": ..., "data": ...}.
func EncodeMetadata(m AuditMetadata) (json.RawMessage, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taggedMetadata{Kind: m.Kind(), Data: data})
}

// DecodeMetadata restores the concrete metadata type from its tagged form.
func DecodeMetadata(raw json.RawMessage) (AuditMetadata, error) {
	var tagged taggedMetadata
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, err
	}
	var m AuditMetadata
	switch tagged.Kind {
	case ActionVerifyPayment:
		m = &VerifyMetadata{}
	case ActionRejectPayment:
		m = &RejectMetadata{}
	case ActionForceActivateUpgrade:
		m = &ForceActivateMetadata{}
	case ActionActivatePendingUpgrade:
		m = &ActivateUpgradeMetadata{}
	case ActionSubmitPayment:
		m = &SubmitMetadata{}
	default:
		return nil, fmt.Errorf("unknown audit metadata kind %q", tagged.Kind)
	}
	if err := json.Unmarshal(tagged.Data, m); err != nil {
		return nil, err
	}
	return m, nil
}

// auditRecord accumulates one entry while an action runs. finish writes it exactly once.
type auditRecord struct {
	entry    repo.AuditEntry
	metadata AuditMetadata
	outcome  string
	written  bool
}

func (w *Workflow) startAudit(action string, actor Actor, targetType, targetID string, metadata AuditMetadata) *auditRecord {
	return &auditRecord{
		entry: repo.AuditEntry{
			ID:         uuid.NewString(),
			Category:   CategoryPaymentVerification,
			Action:     action,
			ActorID:    actor.ID,
			ActorEmail: actor.Email,
			ActorType:  actor.kind(),
			TargetType: targetType,
			TargetID:   targetID,
		},
		metadata: metadata,
	}
}

// finish appends the entry. A failed append is logged and counted; it never
// changes the result of an action whose state is already committed. It
// reports whether the entry was stored.
func (w *Workflow) finish(ctx context.Context, rec *auditRecord, opErr error) bool {
	if rec.written {
		return true
	}
	rec.written = true

	e := rec.entry
	e.Outcome = rec.outcome
	if opErr != nil {
		// partial: the status write committed before the step that failed
		if e.Outcome != OutcomePartial {
			e.Outcome = OutcomeFailed
		}
		e.Error = opErr.Error()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeSuccess
	}
	e.CreatedAt = w.now()

	logger := w.logger.With("action", e.Action, "target_id", e.TargetID, "audit_id", e.ID)
	if rec.metadata != nil {
		raw, err := EncodeMetadata(rec.metadata)
		if err != nil {
			logger.Error("encode audit metadata", "error", err)
		} else {
			e.Metadata = raw
		}
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.AuditTimeout)
	defer cancel()
	if err := w.audit.Append(auditCtx, e); err != nil {
		logger.Error("AUDIT WRITE FAILED for payment action", "outcome", e.Outcome, "shop_id", e.ShopID, "error", err)
		w.metrics.AuditFailure()
		return false
	}
	w.metrics.Action(e.Action, e.Outcome)
	return true
}
