// Package sweeper retries subscription activations that a verification left pending.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/fsm"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/metrics"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/workflow"
)

// ActorID identifies the sweeper in audit entries.
const ActorID = "activation-sweeper"

const batchSize = 100

// InvoiceLister finds paid invoices never applied to their subscription.
type InvoiceLister interface {
	ListAwaitingActivation(ctx context.Context, limit int) ([]repo.Invoice, error)
}

// UpgradeLister finds subscriptions whose pending upgrade invoice reached a status.
type UpgradeLister interface {
	ListUpgradesByInvoiceStatus(ctx context.Context, invoiceStatus string, limit int) ([]repo.Subscription, error)
}

// Activator applies and cancels subscription changes.
type Activator interface {
	ActivateFromPaidInvoice(ctx context.Context, invoiceID, actorID string) error
	CancelPendingUpgrade(ctx context.Context, shopID string, invoiceID *string) (bool, error)
}

// UpgradeActivator applies a pending upgrade with an audit entry.
type UpgradeActivator interface {
	ActivatePendingUpgrade(ctx context.Context, shopID string, actor workflow.Actor) (*repo.Subscription, error)
}

// Config controls the sweep cadence.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Sweeper periodically reconciles paid invoices with subscription state.
type Sweeper struct {
	invoices  InvoiceLister
	upgrades  UpgradeLister
	activator Activator
	workflow  UpgradeActivator
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Result counts what one pass did.
type Result struct {
	Activated int
	Upgraded  int
	Cancelled int
	Failed    int
}

// New builds a Sweeper.
func New(invoices InvoiceLister, upgrades UpgradeLister, activator Activator, wf UpgradeActivator, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		invoices:  invoices,
		upgrades:  upgrades,
		activator: activator,
		workflow:  wf,
		cfg:       cfg,
		logger:    logger.With("component", "activation_sweeper"),
		metrics:   m,
	}
}

// Start runs a pass immediately and then on every tick until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.runOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

func (s *Sweeper) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	res := s.Sweep(runCtx)
	if res.Activated+res.Upgraded+res.Cancelled+res.Failed > 0 {
		s.logger.Info("sweep finished", "activated", res.Activated, "upgraded", res.Upgraded,
			"cancelled", res.Cancelled, "failed", res.Failed)
	}
}

// Sweep performs one reconciliation pass.
func (s *Sweeper) Sweep(ctx context.Context) Result {
	var res Result

	invoices, err := s.invoices.ListAwaitingActivation(ctx, batchSize)
	if err != nil {
		s.logger.Error("list invoices awaiting activation", "error", err)
	}
	for _, inv := range invoices {
		if err := s.activator.ActivateFromPaidInvoice(ctx, inv.ID, ActorID); err != nil {
			s.logger.Warn("activation retry failed", "invoice_id", inv.ID, "shop_id", inv.ShopID, "error", err)
			s.metrics.ActivationFailure("sweeper")
			res.Failed++
			continue
		}
		res.Activated++
	}

	paid, err := s.upgrades.ListUpgradesByInvoiceStatus(ctx, fsm.StatusPaid, batchSize)
	if err != nil {
		s.logger.Error("list paid upgrades", "error", err)
	}
	for _, sub := range paid {
		updated, err := s.workflow.ActivatePendingUpgrade(ctx, sub.ShopID, workflow.System(ActorID))
		if err != nil {
			s.logger.Warn("upgrade retry failed", "shop_id", sub.ShopID, "error", err)
			s.metrics.ActivationFailure("sweeper")
			res.Failed++
			continue
		}
		if updated != nil {
			res.Upgraded++
		}
	}

	rejected, err := s.upgrades.ListUpgradesByInvoiceStatus(ctx, fsm.StatusFailed, batchSize)
	if err != nil {
		s.logger.Error("list rejected upgrades", "error", err)
	}
	for _, sub := range rejected {
		if sub.PendingUpgrade == nil {
			continue
		}
		invoiceID := sub.PendingUpgrade.InvoiceID
		cleared, err := s.activator.CancelPendingUpgrade(ctx, sub.ShopID, &invoiceID)
		if err != nil {
			s.logger.Warn("cancel stale upgrade failed", "shop_id", sub.ShopID, "invoice_id", invoiceID, "error", err)
			res.Failed++
			continue
		}
		if cleared {
			res.Cancelled++
		}
	}
	return res
}
