package verification

import (
	"context"
	"net/http"

	"github.com/bmizerany/pat"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/activation"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/cache"
	verifyhttp "github.com/DTBbuilds/SmartDuka-sub007/internal/verification/http"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/metrics"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/notify"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/sweeper"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/workflow"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/ws"
)

type moduleState struct {
	invoices  *repo.InvoicesRepo
	subs      *repo.SubscriptionsRepo
	audit     *repo.AuditRepo
	metrics   *metrics.Metrics
	runner    *notify.Runner
	hub       *ws.AdminHub
	stats     *cache.StatsCache
	activator *activation.Activator
	workflow  *workflow.Workflow
	sweeper   *sweeper.Sweeper
	server    *verifyhttp.Server
}

func ensureModule(deps *Deps) (*moduleState, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	if deps.module != nil {
		return deps.module, nil
	}
	cfg := deps.Config
	logger := deps.Logger

	invoices := repo.NewInvoicesRepo(deps.DB)
	attempts := repo.NewAttemptsRepo(deps.DB)
	subs := repo.NewSubscriptionsRepo(deps.DB)
	audit := repo.NewAuditRepo(deps.DB)
	directory := repo.NewDirectoryRepo(deps.DB)
	reports := repo.NewReportsRepo(deps.DB)

	m := metrics.New(deps.Registry)
	runner := notify.NewRunner(notify.RunnerConfig{
		Workers:   cfg.NotifyWorkers,
		QueueSize: cfg.NotifyQueue,
		Timeout:   cfg.NotifyTimeout,
	}, logger, m)
	hub := ws.NewAdminHub(logger)
	stats := cache.NewStatsCache(deps.RDB, reports, cfg.StatsCacheTTL, logger)

	// With Redis every instance's hub receives events through Relay, so the
	// hub is only a direct target when running without Redis.
	events := notify.Fanout{stats}
	if deps.RDB != nil {
		events = append(events, notify.NewRedisPublisher(deps.RDB, cfg.EventsChannel))
	} else {
		events = append(events, hub)
	}

	activator := activation.NewActivator(subs, invoices, activation.DefaultCatalog, logger)
	wfDeps := workflow.Deps{
		Invoices:      invoices,
		Attempts:      attempts,
		Subscriptions: subs,
		Audit:         audit,
		Activator:     activator,
		Runner:        runner,
		Shops:         directory,
		Users:         directory,
		Events:        events,
		Proofs:        deps.Proofs,
		Logger:        logger,
		Metrics:       m,
		Config: workflow.Config{
			RequestTimeout: cfg.RequestTimeout,
			AuditTimeout:   cfg.AuditTimeout,
			DashboardURL:   cfg.DashboardURL,
		},
	}
	if deps.Mailer != nil {
		wfDeps.Mailer = deps.Mailer
	}
	if deps.Push != nil {
		wfDeps.Push = deps.Push
	}
	wf, err := workflow.New(wfDeps)
	if err != nil {
		return nil, err
	}

	sw := sweeper.New(invoices, subs, activator, wf, sweeper.Config{
		Interval: cfg.SweepInterval,
		Timeout:  cfg.RequestTimeout * 12,
	}, logger, m)

	server := verifyhttp.NewServer(verifyhttp.Config{
		CallbackSecret: cfg.CallbackSecret,
		ReadTimeout:    cfg.RequestTimeout,
		Location:       cfg.Location,
	}, logger, wf, reports, stats, audit, adminSocket(hub))

	deps.module = &moduleState{
		invoices:  invoices,
		subs:      subs,
		audit:     audit,
		metrics:   m,
		runner:    runner,
		hub:       hub,
		stats:     stats,
		activator: activator,
		workflow:  wf,
		sweeper:   sw,
		server:    server,
	}
	return deps.module, nil
}

// adminSocket identifies the connection by the authenticated admin.
func adminSocket(hub *ws.AdminHub) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del("X-Admin-Id")
		if p, ok := verifyhttp.PrincipalFromContext(r.Context()); ok {
			r.Header.Set("X-Admin-Id", p.Actor.ID)
		}
		hub.ServeWS(w, r)
	})
}

// RegisterVerificationRoutes wires the HTTP and WebSocket routes into the provided mux.
func RegisterVerificationRoutes(mux *pat.PatternServeMux, chains verifyhttp.Chains, deps *Deps) error {
	module, err := ensureModule(deps)
	if err != nil {
		return err
	}
	module.server.Register(mux, chains)
	return nil
}

// StartVerificationWorkers launches the side-effect runner, the event relay
// and the activation sweeper. The returned function drains the runner.
func StartVerificationWorkers(ctx context.Context, deps *Deps) (func(), error) {
	module, err := ensureModule(deps)
	if err != nil {
		return nil, err
	}
	module.runner.Start(ctx)
	if deps.RDB != nil {
		go module.hub.Relay(ctx, deps.RDB, deps.Config.EventsChannel)
	}
	module.sweeper.Start(ctx)
	return module.runner.Stop, nil
}

// Workflow exposes the configured workflow to other in-process callers.
func Workflow(deps *Deps) (*workflow.Workflow, error) {
	module, err := ensureModule(deps)
	if err != nil {
		return nil, err
	}
	return module.workflow, nil
}
