package activation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/fsm"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
)

const maxVersionRetries = 3

var (
	// ErrInvoiceNotPaid is returned when activation is requested for an unpaid invoice.
	ErrInvoiceNotPaid = errors.New("activation: invoice is not paid")
	// ErrUpgradeInvoice is returned when an upgrade invoice is sent down the new/renewal path.
	ErrUpgradeInvoice = errors.New("activation: upgrade invoices activate through the pending upgrade")
)

// ActivationError reports a failed activation of a paid invoice. The invoice
// stays paid and the activation may be retried.
type ActivationError struct {
	InvoiceID string
	Err       error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activate invoice %s: %v", e.InvoiceID, e.Err)
}

func (e *ActivationError) Unwrap() error { return e.Err }

// SubscriptionStore is the persistence needed by the activator.
type SubscriptionStore interface {
	Get(ctx context.Context, id string) (repo.Subscription, error)
	GetByShop(ctx context.Context, shopID string) (repo.Subscription, error)
	Update(ctx context.Context, next repo.Subscription) (repo.Subscription, error)
}

// InvoiceStore is the invoice access needed by the activator.
type InvoiceStore interface {
	Get(ctx context.Context, id string) (repo.Invoice, error)
	MarkActivated(ctx context.Context, id string, at time.Time) error
	RecordActivationFailure(ctx context.Context, id, cause string, blocked bool, at time.Time) error
}

// Activator turns verified payments into subscription state.
type Activator struct {
	subs     SubscriptionStore
	invoices InvoiceStore
	catalog  Catalog
	logger   *slog.Logger
	now      func() time.Time
}

// NewActivator constructs an Activator. A nil catalog disables amount checks.
func NewActivator(subs SubscriptionStore, invoices InvoiceStore, catalog Catalog, logger *slog.Logger) *Activator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activator{
		subs:     subs,
		invoices: invoices,
		catalog:  catalog,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// mutate re-reads and rewrites the subscription until the version guard passes.
func (a *Activator) mutate(ctx context.Context, load func() (repo.Subscription, error), fn func(repo.Subscription) (repo.Subscription, bool, error)) (repo.Subscription, bool, error) {
	for attempt := 0; ; attempt++ {
		current, err := load()
		if err != nil {
			return repo.Subscription{}, false, err
		}
		next, changed, err := fn(current)
		if err != nil || !changed {
			return current, false, err
		}
		saved, err := a.subs.Update(ctx, next)
		if err == nil {
			return saved, true, nil
		}
		if !errors.Is(err, repo.ErrVersionConflict) || attempt+1 >= maxVersionRetries {
			return repo.Subscription{}, false, err
		}
	}
}

// ownsMarker reports whether invoiceID may act on the pending upgrade p. A nil
// invoiceID, or a marker without an invoice, matches any marker.
func ownsMarker(p *repo.PendingUpgrade, invoiceID *string) bool {
	return p == nil || invoiceID == nil || p.InvoiceID == "" || p.InvoiceID == *invoiceID
}

// ActivatePendingUpgrade applies the shop's pending upgrade. It returns nil when
// no upgrade is pending. A non-nil invoiceID restricts it to the marker that
// invoice created.
func (a *Activator) ActivatePendingUpgrade(ctx context.Context, shopID string, invoiceID *string) (*repo.Subscription, error) {
	logger := a.logger.With("op", "activate_pending_upgrade", "shop_id", shopID)
	if invoiceID != nil {
		logger = logger.With("invoice_id", *invoiceID)
	}

	sub, changed, err := a.mutate(ctx,
		func() (repo.Subscription, error) { return a.subs.GetByShop(ctx, shopID) },
		func(s repo.Subscription) (repo.Subscription, bool, error) {
			if !ownsMarker(s.PendingUpgrade, invoiceID) {
				logger.Warn("pending upgrade references a different invoice, left in place", "marker_invoice_id", s.PendingUpgrade.InvoiceID)
				return s, false, nil
			}
			next, ok := ApplyUpgrade(s)
			return next, ok, nil
		})
	if err != nil {
		return nil, fmt.Errorf("activate pending upgrade for shop %s: %w", shopID, err)
	}
	if !changed {
		return nil, nil
	}
	logger.Info("pending upgrade activated", "plan", sub.PlanCode)
	return &sub, nil
}

// CancelPendingUpgrade clears the shop's pending upgrade without touching the
// plan. A non-nil invoiceID leaves a marker created by another invoice alone.
// It reports whether a marker was cleared.
func (a *Activator) CancelPendingUpgrade(ctx context.Context, shopID string, invoiceID *string) (bool, error) {
	logger := a.logger.With("op", "cancel_pending_upgrade", "shop_id", shopID)
	_, changed, err := a.mutate(ctx,
		func() (repo.Subscription, error) { return a.subs.GetByShop(ctx, shopID) },
		func(s repo.Subscription) (repo.Subscription, bool, error) {
			if !ownsMarker(s.PendingUpgrade, invoiceID) {
				logger.Info("pending upgrade belongs to another invoice, kept", "invoice_id", *invoiceID,
					"marker_invoice_id", s.PendingUpgrade.InvoiceID)
				return s, false, nil
			}
			next, ok := ClearUpgrade(s)
			return next, ok, nil
		})
	if err != nil {
		return false, fmt.Errorf("cancel pending upgrade for shop %s: %w", shopID, err)
	}
	if changed {
		logger.Info("pending upgrade cancelled")
	}
	return changed, nil
}

// recordFailure keeps the cause of a failed activation on the invoice. Plan
// and amount mismatches cannot succeed on retry, so they block the invoice.
func (a *Activator) recordFailure(ctx context.Context, logger *slog.Logger, invoiceID string, cause error) {
	blocked := errors.Is(cause, ErrUnderpaid) || errors.Is(cause, ErrUnknownPlan)
	if err := a.invoices.RecordActivationFailure(ctx, invoiceID, cause.Error(), blocked, a.now()); err != nil {
		logger.Warn("record activation failure", "error", err)
	}
	if blocked {
		logger.Error("activation blocked, manual review required", "error", cause)
	}
}

// ActivateFromPaidInvoice applies a paid new or renewal invoice to its subscription.
// Every failure is an *ActivationError.
func (a *Activator) ActivateFromPaidInvoice(ctx context.Context, invoiceID, actorID string) error {
	logger := a.logger.With("op", "activate_from_paid_invoice", "invoice_id", invoiceID, "actor_id", actorID)
	fail := func(err error) error { return &ActivationError{InvoiceID: invoiceID, Err: err} }

	inv, err := a.invoices.Get(ctx, invoiceID)
	if err != nil {
		return fail(err)
	}
	if inv.Status != fsm.StatusPaid {
		return fail(ErrInvoiceNotPaid)
	}
	if inv.Type == repo.InvoiceUpgrade {
		return fail(ErrUpgradeInvoice)
	}
	if inv.ActivatedAt != nil {
		return nil
	}

	load := func() (repo.Subscription, error) {
		if inv.SubscriptionID != nil && *inv.SubscriptionID != "" {
			return a.subs.Get(ctx, *inv.SubscriptionID)
		}
		return a.subs.GetByShop(ctx, inv.ShopID)
	}
	now := a.now()
	sub, changed, err := a.mutate(ctx, load, func(s repo.Subscription) (repo.Subscription, bool, error) {
		if a.catalog != nil {
			plan := inv.PlanCode
			if plan == "" {
				plan = s.PlanCode
			}
			if err := a.catalog.CheckAmount(plan, inv.BillingCycle, inv.TotalAmount); err != nil {
				return s, false, err
			}
		}
		next, ok := ApplyPaidInvoice(s, inv, now)
		return next, ok, nil
	})
	if err != nil {
		a.recordFailure(ctx, logger, inv.ID, err)
		return fail(err)
	}
	if err := a.invoices.MarkActivated(ctx, inv.ID, now); err != nil {
		a.recordFailure(ctx, logger, inv.ID, err)
		return fail(err)
	}
	if changed {
		logger.Info("subscription activated", "subscription_id", sub.ID, "plan", sub.PlanCode, "period_end", sub.CurrentPeriodEnd)
	}
	return nil
}
