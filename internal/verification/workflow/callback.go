package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/fsm"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/pay"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
)

// GatewayActorID identifies the payment gateway in audit entries.
const GatewayActorID = "payment-gateway"

// CallbackResult is returned by HandleCallback.
type CallbackResult struct {
	InvoiceID string `json:"invoice_id"`
	Status    string `json:"status"`
	Activated bool   `json:"activated"`
	Message   string `json:"message"`
}

// HandleCallback applies an authenticated gateway notification. A draft
// invoice is first claimed with the provider reference, then verified or
// rejected through the same paths an administrator uses.
func (w *Workflow) HandleCallback(ctx context.Context, cb pay.Callback) (CallbackResult, error) {
	actor := System(GatewayActorID)
	inv, err := w.loadInvoice(ctx, cb.InvoiceID)
	if err != nil {
		return CallbackResult{}, err
	}

	if inv.Status == fsm.StatusDraft {
		_, err := w.SubmitPayment(ctx, SubmitRequest{
			InvoiceID:        inv.ID,
			ShopID:           inv.ShopID,
			ReceiptReference: cb.ProviderRef,
			Method:           repo.MethodGateway,
		}, actor)
		var stateErr *InvalidStateError
		if err != nil && !errors.As(err, &stateErr) {
			return CallbackResult{}, err
		}
	}

	switch cb.Status {
	case pay.CallbackSuccess:
		res, err := w.VerifyPayment(ctx, inv.ID, actor, "confirmed by gateway "+cb.ProviderRef)
		if err != nil {
			return CallbackResult{}, err
		}
		return CallbackResult{InvoiceID: inv.ID, Status: fsm.StatusPaid, Activated: res.Activated, Message: res.Message}, nil
	case pay.CallbackFailed:
		reason := "gateway reported payment failure"
		if cb.Message != "" {
			reason = fmt.Sprintf("%s: %s", reason, cb.Message)
		}
		res, err := w.RejectPayment(ctx, inv.ID, actor, reason)
		if err != nil {
			return CallbackResult{}, err
		}
		return CallbackResult{InvoiceID: inv.ID, Status: fsm.StatusFailed, Message: res.Message}, nil
	default:
		return CallbackResult{}, invalid("status", "unknown callback status "+cb.Status)
	}
}
