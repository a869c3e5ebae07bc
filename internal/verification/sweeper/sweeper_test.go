package sweeper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/activation"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/fsm"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo/repotest"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/workflow"
)

type discardRunner struct{}

func (discardRunner) Submit(string, func(context.Context) error) bool { return true }

type env struct {
	invoices  *repo.InvoicesRepo
	subs      *repo.SubscriptionsRepo
	audit     *repo.AuditRepo
	activator *activation.Activator
	workflow  *workflow.Workflow
	sweeper   *Sweeper
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := repotest.Open(t)
	e := &env{
		invoices: repo.NewInvoicesRepo(db),
		subs:     repo.NewSubscriptionsRepo(db),
		audit:    repo.NewAuditRepo(db),
	}
	e.activator = activation.NewActivator(e.subs, e.invoices, activation.DefaultCatalog, nil)
	wf, err := workflow.New(workflow.Deps{
		Invoices:      e.invoices,
		Attempts:      repo.NewAttemptsRepo(db),
		Subscriptions: e.subs,
		Audit:         e.audit,
		Activator:     e.activator,
		Runner:        discardRunner{},
	})
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}
	e.workflow = wf
	e.sweeper = New(e.invoices, e.subs, e.activator, wf, Config{}, nil, nil)
	return e
}

func TestSweepReconcilesPaidAndRejectedInvoices(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	invoices, subs, audit := e.invoices, e.subs, e.audit

	requested := time.Now().UTC().Add(-time.Hour)
	for _, s := range []repo.Subscription{
		{ID: "SUB-A", ShopID: "shop-a", PlanCode: "starter", Status: repo.SubscriptionTrial},
		{ID: "SUB-B", ShopID: "shop-b", PlanCode: "basic", Status: repo.SubscriptionActive,
			PendingUpgrade: &repo.PendingUpgrade{TargetPlan: "pro", InvoiceID: "INV-B", RequestedAt: requested}},
		{ID: "SUB-C", ShopID: "shop-c", PlanCode: "basic", Status: repo.SubscriptionActive,
			PendingUpgrade: &repo.PendingUpgrade{TargetPlan: "enterprise", InvoiceID: "INV-C", RequestedAt: requested}},
	} {
		if err := subs.Create(ctx, s); err != nil {
			t.Fatalf("create subscription %s: %v", s.ID, err)
		}
	}
	for _, inv := range []repo.Invoice{
		{ID: "INV-A", ShopID: "shop-a", Type: repo.InvoiceNew, Status: fsm.StatusPaid, PlanCode: "basic", BillingCycle: repo.CycleMonthly, TotalAmount: decimal.NewFromInt(2500)},
		{ID: "INV-B", ShopID: "shop-b", Type: repo.InvoiceUpgrade, Status: fsm.StatusPaid, PlanCode: "pro", TotalAmount: decimal.NewFromInt(2500)},
		{ID: "INV-C", ShopID: "shop-c", Type: repo.InvoiceUpgrade, Status: fsm.StatusFailed, PlanCode: "enterprise", TotalAmount: decimal.NewFromInt(12500)},
	} {
		if err := invoices.Create(ctx, inv); err != nil {
			t.Fatalf("create invoice %s: %v", inv.ID, err)
		}
	}

	s := e.sweeper
	res := s.Sweep(ctx)
	if res.Activated != 1 || res.Upgraded != 1 || res.Cancelled != 1 || res.Failed != 0 {
		t.Fatalf("unexpected sweep result %+v", res)
	}

	a, _ := subs.GetByShop(ctx, "shop-a")
	if a.Status != repo.SubscriptionActive || a.PlanCode != "basic" {
		t.Fatalf("shop-a not activated: %+v", a)
	}
	b, _ := subs.GetByShop(ctx, "shop-b")
	if b.PlanCode != "pro" || b.PendingUpgrade != nil {
		t.Fatalf("shop-b upgrade not applied: %+v", b)
	}
	c, _ := subs.GetByShop(ctx, "shop-c")
	if c.PlanCode != "basic" || c.PendingUpgrade != nil {
		t.Fatalf("shop-c marker not cleared: %+v", c)
	}

	if again := s.Sweep(ctx); again != (Result{}) {
		t.Fatalf("second sweep should be idempotent, got %+v", again)
	}

	entries, err := audit.List(ctx, repo.AuditFilter{ShopID: "shop-b"})
	if err != nil || len(entries) != 1 || entries[0].ActorID != ActorID {
		t.Fatalf("upgrade not audited: %+v %v", entries, err)
	}
}

func TestSweepSkipsInvoicesThatCannotActivate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	for _, sub := range []repo.Subscription{
		{ID: "SUB-U", ShopID: "shop-under", PlanCode: "basic", Status: repo.SubscriptionActive},
		{ID: "SUB-G", ShopID: "shop-good", PlanCode: "starter", Status: repo.SubscriptionTrial},
	} {
		if err := e.subs.Create(ctx, sub); err != nil {
			t.Fatalf("create subscription: %v", err)
		}
	}
	old := time.Now().UTC().Add(-48 * time.Hour)
	for i := 0; i < batchSize+5; i++ {
		paidAt := old.Add(time.Duration(i) * time.Second)
		inv := repo.Invoice{ID: fmt.Sprintf("INV-U%03d", i), ShopID: "shop-under", Type: repo.InvoiceRenewal,
			Status: fsm.StatusPaid, PlanCode: "basic", TotalAmount: decimal.NewFromInt(100), PaidAt: &paidAt}
		if err := e.invoices.Create(ctx, inv); err != nil {
			t.Fatalf("create invoice: %v", err)
		}
	}
	paidAt := time.Now().UTC()
	if err := e.invoices.Create(ctx, repo.Invoice{ID: "INV-GOOD", ShopID: "shop-good", Type: repo.InvoiceNew,
		Status: fsm.StatusPaid, PlanCode: "basic", TotalAmount: decimal.NewFromInt(2500), PaidAt: &paidAt}); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	first := e.sweeper.Sweep(ctx)
	if first.Failed != batchSize || first.Activated != 0 {
		t.Fatalf("unexpected first sweep %+v", first)
	}
	second := e.sweeper.Sweep(ctx)
	if second.Activated != 1 || second.Failed != 5 {
		t.Fatalf("unexpected second sweep %+v", second)
	}
	good, _ := e.subs.GetByShop(ctx, "shop-good")
	if good.Status != repo.SubscriptionActive || good.PlanCode != "basic" {
		t.Fatalf("valid invoice starved by blocked ones: %+v", good)
	}
	if third := e.sweeper.Sweep(ctx); third != (Result{}) {
		t.Fatalf("blocked invoices must not be retried, got %+v", third)
	}
}

// staleLister serves a snapshot of rejected upgrades taken before the shop
// requested a new one.
type staleLister struct {
	UpgradeLister
	rejected []repo.Subscription
}

func (l staleLister) ListUpgradesByInvoiceStatus(ctx context.Context, status string, limit int) ([]repo.Subscription, error) {
	if status == fsm.StatusFailed {
		return l.rejected, nil
	}
	return l.UpgradeLister.ListUpgradesByInvoiceStatus(ctx, status, limit)
}

func TestSweepLeavesMarkerOfAnotherInvoice(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	requested := time.Now().UTC().Add(-time.Hour)
	if err := e.subs.Create(ctx, repo.Subscription{ID: "SUB-1", ShopID: "shop-1", PlanCode: "basic", Status: repo.SubscriptionActive,
		PendingUpgrade: &repo.PendingUpgrade{TargetPlan: "pro", InvoiceID: "INV-NEW", RequestedAt: requested}}); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	for _, inv := range []repo.Invoice{
		{ID: "INV-OLD", ShopID: "shop-1", Type: repo.InvoiceUpgrade, Status: fsm.StatusFailed, PlanCode: "enterprise", TotalAmount: decimal.NewFromInt(12500)},
		{ID: "INV-NEW", ShopID: "shop-1", Type: repo.InvoiceUpgrade, Status: fsm.StatusPendingVerification, PlanCode: "pro", TotalAmount: decimal.NewFromInt(2500)},
	} {
		if err := e.invoices.Create(ctx, inv); err != nil {
			t.Fatalf("create invoice %s: %v", inv.ID, err)
		}
	}

	snapshot := []repo.Subscription{{ID: "SUB-1", ShopID: "shop-1", PlanCode: "basic",
		PendingUpgrade: &repo.PendingUpgrade{TargetPlan: "enterprise", InvoiceID: "INV-OLD", RequestedAt: requested.Add(-time.Hour)}}}
	s := New(e.invoices, staleLister{UpgradeLister: e.subs, rejected: snapshot}, e.activator, e.workflow, Config{}, nil, nil)

	if res := s.Sweep(ctx); res != (Result{}) {
		t.Fatalf("unexpected sweep %+v", res)
	}
	sub, _ := e.subs.GetByShop(ctx, "shop-1")
	if sub.PendingUpgrade == nil || sub.PendingUpgrade.InvoiceID != "INV-NEW" {
		t.Fatalf("marker of a pending invoice cleared: %+v", sub.PendingUpgrade)
	}
}
