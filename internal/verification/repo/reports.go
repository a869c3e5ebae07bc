package repo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/fsm"
)

// PendingVerification is an invoice awaiting an administrator decision.
type PendingVerification struct {
	Invoice     Invoice `json:"invoice"`
	ShopName    string  `json:"shop_name"`
	ShopEmail   string  `json:"shop_email"`
	CurrentPlan string  `json:"current_plan,omitempty"`
	TargetPlan  string  `json:"target_plan,omitempty"`
}

// PendingUpgradeView is a subscription with an in-flight plan change.
type PendingUpgradeView struct {
	SubscriptionID string         `json:"subscription_id"`
	ShopID         string         `json:"shop_id"`
	ShopName       string         `json:"shop_name"`
	CurrentPlan    string         `json:"current_plan"`
	Upgrade        PendingUpgrade `json:"pending_upgrade"`
	InvoiceStatus  string         `json:"invoice_status,omitempty"`
}

// StatusTotals aggregates invoices sharing one status.
type StatusTotals struct {
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// Stats summarises verification activity. ActivationBlocked counts paid
// invoices whose activation needs manual attention.
type Stats struct {
	ByStatus          map[string]StatusTotals `json:"by_status"`
	VerifiedSince     StatusTotals            `json:"verified_since"`
	Since             time.Time               `json:"since"`
	PendingUpgrades   int64                   `json:"pending_upgrades"`
	ActivationBlocked int64                   `json:"activation_blocked"`
}

// ReportsRepo serves read-only views over the verification tables.
type ReportsRepo struct {
	db *DB
}

// NewReportsRepo creates repo.
func NewReportsRepo(db *DB) *ReportsRepo { return &ReportsRepo{db: db} }

func prefixed(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// PendingVerifications lists invoices in pending_verification, oldest claim first.
func (r *ReportsRepo) PendingVerifications(ctx context.Context, limit, offset int) ([]PendingVerification, error) {
	rows, err := r.db.query(ctx, `SELECT `+prefixed(invoiceColumns, "i")+`,
		COALESCE(sh.name, ''), COALESCE(sh.email, ''), COALESCE(s.plan_code, ''), COALESCE(s.pending_target_plan, '')
		FROM invoices i
		LEFT JOIN shops sh ON sh.id = i.shop_id
		LEFT JOIN subscriptions s ON s.shop_id = i.shop_id
		WHERE i.status = ?
		ORDER BY i.created_at ASC LIMIT ? OFFSET ?`, fsm.StatusPendingVerification, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingVerification
	for rows.Next() {
		var pv PendingVerification
		inv, err := scanInvoice(scanFunc(func(dest ...interface{}) error {
			return rows.Scan(append(dest, &pv.ShopName, &pv.ShopEmail, &pv.CurrentPlan, &pv.TargetPlan)...)
		}))
		if err != nil {
			return nil, err
		}
		pv.Invoice = inv
		out = append(out, pv)
	}
	return out, rows.Err()
}

type scanFunc func(dest ...interface{}) error

func (f scanFunc) Scan(dest ...interface{}) error { return f(dest...) }

// PendingUpgrades lists subscriptions with a pending upgrade marker.
func (r *ReportsRepo) PendingUpgrades(ctx context.Context, limit, offset int) ([]PendingUpgradeView, error) {
	rows, err := r.db.query(ctx, `SELECT s.id, s.shop_id, COALESCE(sh.name, ''), s.plan_code, s.pending_target_plan,
		COALESCE(s.pending_invoice_id, ''), s.pending_requested_at, COALESCE(i.status, '')
		FROM subscriptions s
		LEFT JOIN shops sh ON sh.id = s.shop_id
		LEFT JOIN invoices i ON i.id = s.pending_invoice_id
		WHERE s.pending_target_plan IS NOT NULL
		ORDER BY s.pending_requested_at ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingUpgradeView
	for rows.Next() {
		var (
			v           PendingUpgradeView
			requestedAt sql.NullTime
		)
		if err := rows.Scan(&v.SubscriptionID, &v.ShopID, &v.ShopName, &v.CurrentPlan, &v.Upgrade.TargetPlan,
			&v.Upgrade.InvoiceID, &requestedAt, &v.InvoiceStatus); err != nil {
			return nil, err
		}
		if requestedAt.Valid {
			v.Upgrade.RequestedAt = requestedAt.Time.UTC()
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Stats aggregates invoice counts and amounts; VerifiedSince covers invoices paid at or after since.
func (r *ReportsRepo) Stats(ctx context.Context, since time.Time) (Stats, error) {
	stats := Stats{ByStatus: make(map[string]StatusTotals), Since: since.UTC()}

	rows, err := r.db.query(ctx, `SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0) FROM invoices GROUP BY status`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			totals StatusTotals
		)
		if err := rows.Scan(&status, &totals.Count, &totals.Amount); err != nil {
			return Stats{}, err
		}
		stats.ByStatus[status] = totals
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	err = r.db.queryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(total_amount), 0) FROM invoices WHERE status = ? AND paid_at >= ?`,
		fsm.StatusPaid, since.UTC()).Scan(&stats.VerifiedSince.Count, &stats.VerifiedSince.Amount)
	if err != nil {
		return Stats{}, err
	}

	err = r.db.queryRow(ctx, `SELECT COUNT(*) FROM subscriptions WHERE pending_target_plan IS NOT NULL`).
		Scan(&stats.PendingUpgrades)
	if err != nil {
		return Stats{}, err
	}

	err = r.db.queryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE status = ? AND activated_at IS NULL AND activation_blocked = ?`,
		fsm.StatusPaid, true).Scan(&stats.ActivationBlocked)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}
