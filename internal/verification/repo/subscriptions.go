package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const subscriptionColumns = `id, shop_id, plan_code, status, billing_cycle, current_period_start, current_period_end,
	pending_target_plan, pending_invoice_id, pending_requested_at, last_invoice_id, version, updated_at`

// SubscriptionsRepo stores shop subscriptions.
type SubscriptionsRepo struct {
	db *DB
}

// NewSubscriptionsRepo creates repo.
func NewSubscriptionsRepo(db *DB) *SubscriptionsRepo { return &SubscriptionsRepo{db: db} }

func scanSubscription(row rowScanner) (Subscription, error) {
	var (
		s                      Subscription
		periodStart, periodEnd sql.NullTime
		target, pendingInvoice sql.NullString
		requestedAt            sql.NullTime
		lastInvoice            sql.NullString
	)
	err := row.Scan(&s.ID, &s.ShopID, &s.PlanCode, &s.Status, &s.BillingCycle, &periodStart, &periodEnd,
		&target, &pendingInvoice, &requestedAt, &lastInvoice, &s.Version, &s.UpdatedAt)
	if err != nil {
		return Subscription{}, err
	}
	s.CurrentPeriodStart = timePtr(periodStart)
	s.CurrentPeriodEnd = timePtr(periodEnd)
	s.LastInvoiceID = lastInvoice.String
	if target.Valid {
		s.PendingUpgrade = &PendingUpgrade{
			TargetPlan: target.String,
			InvoiceID:  pendingInvoice.String,
		}
		if requestedAt.Valid {
			s.PendingUpgrade.RequestedAt = requestedAt.Time.UTC()
		}
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func pendingColumns(p *PendingUpgrade) (sql.NullString, sql.NullString, sql.NullTime) {
	if p == nil {
		return sql.NullString{}, sql.NullString{}, sql.NullTime{}
	}
	at := p.RequestedAt
	return nullString(p.TargetPlan), nullString(p.InvoiceID), nullTime(&at)
}

// Create inserts a subscription.
func (r *SubscriptionsRepo) Create(ctx context.Context, s Subscription) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	if s.BillingCycle == "" {
		s.BillingCycle = CycleMonthly
	}
	target, invoice, requested := pendingColumns(s.PendingUpgrade)
	_, err := r.db.exec(ctx, `INSERT INTO subscriptions (`+subscriptionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.ShopID, s.PlanCode, s.Status, s.BillingCycle, nullTime(s.CurrentPeriodStart), nullTime(s.CurrentPeriodEnd),
		target, invoice, requested, nullString(s.LastInvoiceID), s.Version, s.UpdatedAt.UTC())
	return err
}

// Get loads a subscription by id.
func (r *SubscriptionsRepo) Get(ctx context.Context, id string) (Subscription, error) {
	s, err := scanSubscription(r.db.queryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	return s, err
}

// GetByShop loads the subscription owned by a shop.
func (r *SubscriptionsRepo) GetByShop(ctx context.Context, shopID string) (Subscription, error) {
	s, err := scanSubscription(r.db.queryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE shop_id = ?`, shopID))
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	return s, err
}

// Update writes next if the stored version still equals next.Version and bumps it.
// It returns ErrVersionConflict when another writer got there first.
func (r *SubscriptionsRepo) Update(ctx context.Context, next Subscription) (Subscription, error) {
	target, invoice, requested := pendingColumns(next.PendingUpgrade)
	now := time.Now().UTC()
	res, err := r.db.exec(ctx, `UPDATE subscriptions SET plan_code = ?, status = ?, billing_cycle = ?,
		current_period_start = ?, current_period_end = ?, pending_target_plan = ?, pending_invoice_id = ?,
		pending_requested_at = ?, last_invoice_id = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		next.PlanCode, next.Status, next.BillingCycle, nullTime(next.CurrentPeriodStart), nullTime(next.CurrentPeriodEnd),
		target, invoice, requested, nullString(next.LastInvoiceID), now, next.ID, next.Version)
	if err != nil {
		return Subscription{}, err
	}
	if err := affected(res, ErrVersionConflict); err != nil {
		return Subscription{}, err
	}
	next.Version++
	next.UpdatedAt = now
	return next, nil
}

// ListUpgradesByInvoiceStatus returns subscriptions whose pending upgrade
// references an upgrade invoice in invoiceStatus.
func (r *SubscriptionsRepo) ListUpgradesByInvoiceStatus(ctx context.Context, invoiceStatus string, limit int) ([]Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.query(ctx, `SELECT s.id, s.shop_id, s.plan_code, s.status, s.billing_cycle, s.current_period_start,
		s.current_period_end, s.pending_target_plan, s.pending_invoice_id, s.pending_requested_at, s.last_invoice_id,
		s.version, s.updated_at
		FROM subscriptions s JOIN invoices i ON i.id = s.pending_invoice_id
		WHERE s.pending_target_plan IS NOT NULL AND i.status = ? AND i.type = ?
		ORDER BY s.pending_requested_at ASC LIMIT ?`, invoiceStatus, InvoiceUpgrade, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
