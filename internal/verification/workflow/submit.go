package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/fsm"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
)

const maxProofBytes = 5 << 20

// SubmitRequest is a tenant's claim that an invoice has been paid.
type SubmitRequest struct {
	InvoiceID        string
	ShopID           string
	ReceiptReference string
	SenderPhone      string
	SenderName       string
	Method           string
	Proof            []byte
	ProofName        string
}

// SubmitResult is returned by SubmitPayment.
type SubmitResult struct {
	Success         bool   `json:"success"`
	Status          string `json:"status"`
	Message         string `json:"message"`
	AuditIncomplete bool   `json:"audit_incomplete,omitempty"`
}

func (req SubmitRequest) validate() error {
	switch {
	case strings.TrimSpace(req.InvoiceID) == "":
		return invalid("invoice_id", "is required")
	case strings.TrimSpace(req.ShopID) == "":
		return invalid("shop_id", "is required")
	case strings.TrimSpace(req.ReceiptReference) == "":
		return invalid("receipt_reference", "is required")
	case len(req.Proof) > maxProofBytes:
		return invalid("proof", "exceeds 5MB")
	}
	switch req.Method {
	case "", repo.MethodManualMobileMoney, repo.MethodGateway:
	default:
		return invalid("method", "unsupported payment method "+req.Method)
	}
	return nil
}

// SubmitPayment records a tenant's payment claim and moves the invoice into
// verification. Resubmitting the same receipt for an invoice already awaiting
// verification is a no-op.
func (w *Workflow) SubmitPayment(ctx context.Context, req SubmitRequest, actor Actor) (res SubmitResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	defer cancel()

	if req.Method == "" {
		req.Method = repo.MethodManualMobileMoney
	}
	meta := &SubmitMetadata{
		ReceiptReference: strings.TrimSpace(req.ReceiptReference),
		SenderPhone:      strings.TrimSpace(req.SenderPhone),
		Method:           req.Method,
	}
	rec := w.startAudit(ActionSubmitPayment, actor, TargetInvoice, req.InvoiceID, meta)
	rec.entry.ShopID = req.ShopID
	defer func() {
		if !w.finish(ctx, rec, err) && err == nil {
			res.AuditIncomplete = true
		}
	}()
	logger := w.logger.With("op", ActionSubmitPayment, "invoice_id", req.InvoiceID, "shop_id", req.ShopID)

	if err = req.validate(); err != nil {
		return SubmitResult{}, err
	}
	inv, err := w.loadInvoice(ctx, req.InvoiceID)
	if err != nil {
		return SubmitResult{}, err
	}
	if inv.ShopID != req.ShopID {
		return SubmitResult{}, notFound(TargetInvoice, req.InvoiceID)
	}
	meta.Amount = inv.TotalAmount.StringFixed(2)

	switch inv.Status {
	case fsm.StatusPendingVerification:
		if inv.ReceiptReference == meta.ReceiptReference {
			rec.outcome = OutcomeNoop
			return SubmitResult{Success: true, Status: inv.Status, Message: "payment already submitted"}, nil
		}
		return SubmitResult{}, invalidState("submit", TargetInvoice, inv.ID, inv.Status)
	case fsm.StatusDraft:
	default:
		return SubmitResult{}, invalidState("submit", TargetInvoice, inv.ID, inv.Status)
	}

	var proofURL string
	if len(req.Proof) > 0 && w.proofs != nil {
		name := fmt.Sprintf("%s/%s%s", inv.ShopID, uuid.NewString(), filepath.Ext(req.ProofName))
		proofURL, err = w.proofs.Upload(ctx, req.Proof, name)
		if err != nil {
			logger.Warn("proof upload failed, continuing without proof", "error", err)
			proofURL, err = "", nil
		}
	}
	meta.ProofStored = proofURL != ""

	now := w.now()
	next, err := w.transition(ctx, MarkSubmitted(inv, req, proofURL, now), fsm.StatusDraft)
	if errors.Is(err, ErrConcurrencyNoOp) {
		rec.outcome = OutcomeNoop
		return SubmitResult{Success: true, Status: next.Status, Message: "payment already submitted"}, nil
	}
	if err != nil {
		return SubmitResult{}, err
	}
	rec.outcome = OutcomeSuccess

	attempt := repo.PaymentAttempt{
		ID:          uuid.NewString(),
		InvoiceID:   inv.ID,
		Status:      fsm.AttemptPending,
		Method:      req.Method,
		Amount:      inv.TotalAmount,
		ProviderRef: meta.ReceiptReference,
		CreatedAt:   now,
	}
	if attemptErr := w.attempts.Create(ctx, attempt); attemptErr != nil {
		logger.Error("record payment attempt", "error", attemptErr)
		rec.outcome = OutcomePartial
	}

	w.afterSubmit(next)
	return SubmitResult{Success: true, Status: next.Status, Message: "payment submitted for verification"}, nil
}
