package verification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/fsm"
	verifyhttp "github.com/DTBbuilds/SmartDuka-sub007/internal/verification/http"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo/repotest"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/workflow"
)

func TestModuleVerifiesThroughHTTP(t *testing.T) {
	t.Setenv("ACTIVATION_SWEEP_SECONDS", "3600")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	db := repotest.Open(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	reg := prometheus.NewRegistry()

	ctx := context.Background()
	subs := repo.NewSubscriptionsRepo(db)
	invoices := repo.NewInvoicesRepo(db)
	if err := subs.Create(ctx, repo.Subscription{ID: "SUB-1", ShopID: "shop-1", PlanCode: "basic", Status: repo.SubscriptionActive,
		PendingUpgrade: &repo.PendingUpgrade{TargetPlan: "pro", InvoiceID: "INV-1", RequestedAt: time.Now().UTC()}}); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if err := invoices.Create(ctx, repo.Invoice{ID: "INV-1", ShopID: "shop-1", Type: repo.InvoiceUpgrade,
		Status: fsm.StatusPendingVerification, PlanCode: "pro", TotalAmount: decimal.NewFromInt(2500)}); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	deps := &Deps{DB: db, RDB: rdb, Registry: reg, Config: cfg}
	mux := pat.New()
	admin := alice.New(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := verifyhttp.Principal{Actor: workflow.Admin("adm-1", "ops@smartduka.co.ke")}
			next.ServeHTTP(w, r.WithContext(verifyhttp.WithPrincipal(r.Context(), p)))
		})
	})
	if err := RegisterVerificationRoutes(mux, verifyhttp.Chains{Public: alice.New(), Admin: admin, Shop: admin}, deps); err != nil {
		t.Fatalf("RegisterVerificationRoutes: %v", err)
	}
	workerCtx, cancel := context.WithCancel(ctx)
	stop, err := StartVerificationWorkers(workerCtx, deps)
	if err != nil {
		t.Fatalf("StartVerificationWorkers: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		stop()
	})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/invoices/INV-1/verify", strings.NewReader(`{"notes":"ok"}`)))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"upgrade_activated":true`) {
		t.Fatalf("verify: %d %s", rr.Code, rr.Body.String())
	}

	sub, _ := subs.GetByShop(ctx, "shop-1")
	if sub.PlanCode != "pro" {
		t.Fatalf("plan = %q", sub.PlanCode)
	}
	if n, err := testutil.GatherAndCount(reg, "smartduka_verification_actions_total"); err != nil || n != 1 {
		t.Fatalf("actions metric series = %d, %v", n, err)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/verifications/history?target_id=INV-1", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), workflow.ActionVerifyPayment) {
		t.Fatalf("history: %d %s", rr.Code, rr.Body.String())
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("NOTIFY_WORKERS", "zero")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected parse error")
	}
	t.Setenv("NOTIFY_WORKERS", "2")
	t.Setenv("VERIFY_REQUEST_TIMEOUT_SECONDS", "-1")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected non-positive timeout error")
	}
	t.Setenv("VERIFY_REQUEST_TIMEOUT_SECONDS", "7")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RequestTimeout != 7*time.Second || cfg.NotifyWorkers != 2 || cfg.EventsChannel != defaultEventsChannel {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
