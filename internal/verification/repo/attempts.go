package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/fsm"
)

// AttemptsRepo stores payment attempts.
type AttemptsRepo struct {
	db *DB
}

// NewAttemptsRepo creates repo.
func NewAttemptsRepo(db *DB) *AttemptsRepo { return &AttemptsRepo{db: db} }

// Create inserts a payment attempt.
func (r *AttemptsRepo) Create(ctx context.Context, a PaymentAttempt) error {
	if a.Status == "" {
		a.Status = fsm.AttemptPending
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.exec(ctx, `INSERT INTO payment_attempts (id, invoice_id, status, method, amount, provider_ref,
		approved_by, approved_at, completed_at, created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.InvoiceID, a.Status, a.Method, a.Amount, nullString(a.ProviderRef), nullString(a.ApprovedBy),
		nullTime(a.ApprovedAt), nullTime(a.CompletedAt), a.CreatedAt.UTC())
	return err
}

// ResolveLatest moves the newest pending attempt of an invoice to status.
// It reports false when the invoice has no pending attempt.
func (r *AttemptsRepo) ResolveLatest(ctx context.Context, invoiceID, status, approvedBy string, at time.Time) (bool, error) {
	var id string
	err := r.db.queryRow(ctx, `SELECT id FROM payment_attempts WHERE invoice_id = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1`, invoiceID, fsm.AttemptPending).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	at = at.UTC()
	res, err := r.db.exec(ctx, `UPDATE payment_attempts SET status = ?, approved_by = ?, approved_at = ?, completed_at = ?
		WHERE id = ? AND status = ?`, status, nullString(approvedBy), at, at, id, fsm.AttemptPending)
	if err != nil {
		return false, err
	}
	if err := affected(res, ErrStaleStatus); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListByInvoice returns all attempts for an invoice, oldest first.
func (r *AttemptsRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]PaymentAttempt, error) {
	rows, err := r.db.query(ctx, `SELECT id, invoice_id, status, method, amount, provider_ref, approved_by, approved_at,
		completed_at, created_at FROM payment_attempts WHERE invoice_id = ? ORDER BY created_at ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PaymentAttempt
	for rows.Next() {
		var (
			a                      PaymentAttempt
			providerRef, approver  sql.NullString
			approvedAt, completeAt sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.InvoiceID, &a.Status, &a.Method, &a.Amount, &providerRef, &approver,
			&approvedAt, &completeAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.ProviderRef = providerRef.String
		a.ApprovedBy = approver.String
		a.ApprovedAt = timePtr(approvedAt)
		a.CompletedAt = timePtr(completeAt)
		out = append(out, a)
	}
	return out, rows.Err()
}
