package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/fsm"
)

const invoiceColumns = `id, shop_id, subscription_id, type, status, plan_code, billing_cycle, total_amount, currency,
	receipt_reference, paid_at, activated_at, mp_pending, mp_verified_at, mp_verified_by, mp_notes,
	mp_rejection_reason, mp_sender_phone, mp_sender_name, mp_proof_url, mp_submitted_at, created_at, updated_at`

// InvoicesRepo stores invoices.
type InvoicesRepo struct {
	db *DB
}

// NewInvoicesRepo creates repo.
func NewInvoicesRepo(db *DB) *InvoicesRepo { return &InvoicesRepo{db: db} }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var (
		inv                                        Invoice
		subID, receipt, verifiedBy, notes, reason  sql.NullString
		phone, sender, proof                       sql.NullString
		paidAt, activatedAt, verifiedAt, submitted sql.NullTime
	)
	err := row.Scan(&inv.ID, &inv.ShopID, &subID, &inv.Type, &inv.Status, &inv.PlanCode, &inv.BillingCycle,
		&inv.TotalAmount, &inv.Currency, &receipt, &paidAt, &activatedAt, &inv.ManualPayment.PendingVerification,
		&verifiedAt, &verifiedBy, &notes, &reason, &phone, &sender, &proof, &submitted, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	inv.SubscriptionID = stringPtr(subID)
	inv.ReceiptReference = receipt.String
	inv.PaidAt = timePtr(paidAt)
	inv.ActivatedAt = timePtr(activatedAt)
	inv.ManualPayment.VerifiedAt = timePtr(verifiedAt)
	inv.ManualPayment.VerifiedBy = verifiedBy.String
	inv.ManualPayment.VerificationNotes = notes.String
	inv.ManualPayment.RejectionReason = reason.String
	inv.ManualPayment.SenderPhone = phone.String
	inv.ManualPayment.SenderName = sender.String
	inv.ManualPayment.ProofURL = proof.String
	inv.ManualPayment.SubmittedAt = timePtr(submitted)
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return inv, nil
}

// Create inserts a new invoice.
func (r *InvoicesRepo) Create(ctx context.Context, inv Invoice) error {
	if !fsm.Known(inv.Status) {
		return fmt.Errorf("create invoice: unknown status %q", inv.Status)
	}
	if !inv.TotalAmount.IsPositive() {
		return errors.New("create invoice: total amount must be positive")
	}
	now := time.Now().UTC()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	if inv.UpdatedAt.IsZero() {
		inv.UpdatedAt = inv.CreatedAt
	}
	if inv.Currency == "" {
		inv.Currency = "KES"
	}
	if inv.BillingCycle == "" {
		inv.BillingCycle = CycleMonthly
	}
	mp := inv.ManualPayment
	_, err := r.db.exec(ctx, `INSERT INTO invoices (`+invoiceColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		inv.ID, inv.ShopID, nullStringPtr(inv.SubscriptionID), inv.Type, inv.Status, inv.PlanCode, inv.BillingCycle,
		inv.TotalAmount, inv.Currency, nullString(inv.ReceiptReference), nullTime(inv.PaidAt), nullTime(inv.ActivatedAt),
		mp.PendingVerification, nullTime(mp.VerifiedAt), nullString(mp.VerifiedBy), nullString(mp.VerificationNotes),
		nullString(mp.RejectionReason), nullString(mp.SenderPhone), nullString(mp.SenderName), nullString(mp.ProofURL),
		nullTime(mp.SubmittedAt), inv.CreatedAt.UTC(), inv.UpdatedAt.UTC())
	return err
}

// Get loads an invoice by id.
func (r *InvoicesRepo) Get(ctx context.Context, id string) (Invoice, error) {
	row := r.db.queryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	return inv, err
}

// UpdateIfStatus persists next only if the stored status still equals expected.
// It returns ErrStaleStatus when another writer changed the status first.
func (r *InvoicesRepo) UpdateIfStatus(ctx context.Context, next Invoice, expected string) error {
	if err := fsm.Check(expected, next.Status); err != nil {
		return err
	}
	mp := next.ManualPayment
	res, err := r.db.exec(ctx, `UPDATE invoices SET status = ?, receipt_reference = ?, paid_at = ?, mp_pending = ?,
		mp_verified_at = ?, mp_verified_by = ?, mp_notes = ?, mp_rejection_reason = ?, mp_sender_phone = ?,
		mp_sender_name = ?, mp_proof_url = ?, mp_submitted_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		next.Status, nullString(next.ReceiptReference), nullTime(next.PaidAt), mp.PendingVerification,
		nullTime(mp.VerifiedAt), nullString(mp.VerifiedBy), nullString(mp.VerificationNotes),
		nullString(mp.RejectionReason), nullString(mp.SenderPhone), nullString(mp.SenderName),
		nullString(mp.ProofURL), nullTime(mp.SubmittedAt), time.Now().UTC(), next.ID, expected)
	if err != nil {
		return err
	}
	return affected(res, ErrStaleStatus)
}

// MarkActivated records that a paid invoice has been applied to its subscription.
func (r *InvoicesRepo) MarkActivated(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.exec(ctx, `UPDATE invoices SET activated_at = ? WHERE id = ? AND status = ? AND activated_at IS NULL`,
		at.UTC(), id, fsm.StatusPaid)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// RecordActivationFailure counts a failed activation of a paid invoice and
// keeps its cause. A blocked invoice is never retried automatically.
func (r *InvoicesRepo) RecordActivationFailure(ctx context.Context, id, cause string, blocked bool, at time.Time) error {
	res, err := r.db.exec(ctx, `UPDATE invoices SET activation_attempts = activation_attempts + 1,
		activation_blocked = (activation_blocked OR ?), last_activation_error = ?, last_activation_at = ?
		WHERE id = ? AND activated_at IS NULL`, blocked, nullString(cause), at.UTC(), id)
	if err != nil {
		return err
	}
	return affected(res, ErrNotFound)
}

// ListAwaitingActivation returns paid new/renewal invoices that were never
// applied and are not blocked, least-retried first.
func (r *InvoicesRepo) ListAwaitingActivation(ctx context.Context, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.query(ctx, `SELECT `+invoiceColumns+` FROM invoices
		WHERE status = ? AND type IN (?, ?) AND activated_at IS NULL AND activation_blocked = ?
		ORDER BY activation_attempts ASC, paid_at ASC LIMIT ?`, fsm.StatusPaid, InvoiceNew, InvoiceRenewal, false, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

// ListByShop returns invoices of a shop, newest first.
func (r *InvoicesRepo) ListByShop(ctx context.Context, shopID string, limit, offset int) ([]Invoice, error) {
	rows, err := r.db.query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE shop_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, shopID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func collectInvoices(rows *sql.Rows) ([]Invoice, error) {
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ParseAmount parses a positive decimal amount.
func ParseAmount(v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, errors.New("amount must be positive")
	}
	return d, nil
}
