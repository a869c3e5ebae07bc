package workflow

import (
	"strings"
	"time"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/fsm"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
)

// MarkPaid returns inv as verified paid by actor at now. inv is not modified.
func MarkPaid(inv repo.Invoice, actor Actor, notes string, now time.Time) repo.Invoice {
	next := inv
	at := now.UTC()
	next.Status = fsm.StatusPaid
	next.PaidAt = &at
	next.ManualPayment.PendingVerification = false
	next.ManualPayment.VerifiedAt = &at
	next.ManualPayment.VerifiedBy = actor.ID
	next.ManualPayment.VerificationNotes = strings.TrimSpace(notes)
	return next
}

// MarkFailed returns inv as rejected by actor with reason.
func MarkFailed(inv repo.Invoice, actor Actor, reason string, now time.Time) repo.Invoice {
	next := inv
	at := now.UTC()
	next.Status = fsm.StatusFailed
	next.ManualPayment.PendingVerification = false
	next.ManualPayment.VerifiedAt = &at
	next.ManualPayment.VerifiedBy = actor.ID
	next.ManualPayment.RejectionReason = strings.TrimSpace(reason)
	return next
}

// MarkSubmitted returns inv as claimed paid by the tenant and awaiting verification.
func MarkSubmitted(inv repo.Invoice, req SubmitRequest, proofURL string, now time.Time) repo.Invoice {
	next := inv
	at := now.UTC()
	next.Status = fsm.StatusPendingVerification
	next.ReceiptReference = strings.TrimSpace(req.ReceiptReference)
	next.ManualPayment.PendingVerification = true
	next.ManualPayment.SenderPhone = strings.TrimSpace(req.SenderPhone)
	next.ManualPayment.SenderName = strings.TrimSpace(req.SenderName)
	next.ManualPayment.ProofURL = proofURL
	next.ManualPayment.SubmittedAt = &at
	return next
}
