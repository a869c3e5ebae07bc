// Package http exposes the payment verification workflow over HTTP.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/pay"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/workflow"
)

// Workflow is the subset of the verification workflow served over HTTP.
type Workflow interface {
	VerifyPayment(ctx context.Context, invoiceID string, actor workflow.Actor, notes string) (workflow.VerifyResult, error)
	RejectPayment(ctx context.Context, invoiceID string, actor workflow.Actor, reason string) (workflow.RejectResult, error)
	ForceActivateUpgrade(ctx context.Context, subscriptionID string, actor workflow.Actor, reason string) (workflow.ForceActivateResult, error)
	ActivatePendingUpgrade(ctx context.Context, shopID string, actor workflow.Actor) (*repo.Subscription, error)
	SubmitPayment(ctx context.Context, req workflow.SubmitRequest, actor workflow.Actor) (workflow.SubmitResult, error)
	HandleCallback(ctx context.Context, cb pay.Callback) (workflow.CallbackResult, error)
}

// Reports serves the pending queues.
type Reports interface {
	PendingVerifications(ctx context.Context, limit, offset int) ([]repo.PendingVerification, error)
	PendingUpgrades(ctx context.Context, limit, offset int) ([]repo.PendingUpgradeView, error)
}

// StatsSource serves aggregate counters.
type StatsSource interface {
	Stats(ctx context.Context, since time.Time) (repo.Stats, error)
}

// History lists audit entries.
type History interface {
	List(ctx context.Context, f repo.AuditFilter) ([]repo.AuditEntry, error)
}

// Config is the subset of runtime configuration required by the handlers.
type Config struct {
	CallbackSecret string
	ReadTimeout    time.Duration
	MaxUploadBytes int64
	Location       *time.Location
}

// Chains are the middleware stacks applied per audience.
type Chains struct {
	Public alice.Chain
	Admin  alice.Chain
	Shop   alice.Chain
}

// Server provides HTTP handlers for payment verification.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	workflow Workflow
	reports  Reports
	stats    StatsSource
	history  History
	hub      http.Handler
}

// NewServer constructs a Server. hub may be nil when the admin socket is disabled.
func NewServer(cfg Config, logger *slog.Logger, wf Workflow, reports Reports, stats StatsSource, history History, hub http.Handler) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 6 << 20
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Server{
		cfg:      cfg,
		logger:   logger.With("component", "verification_http"),
		workflow: wf,
		reports:  reports,
		stats:    stats,
		history:  history,
		hub:      hub,
	}
}

// Register mounts verification routes on the mux.
func (s *Server) Register(mux *pat.PatternServeMux, chains Chains) {
	mux.Post("/admin/invoices/:id/verify", chains.Admin.ThenFunc(s.handleVerify))
	mux.Post("/admin/invoices/:id/reject", chains.Admin.ThenFunc(s.handleReject))
	mux.Post("/admin/subscriptions/:id/force-activate", chains.Admin.ThenFunc(s.handleForceActivate))
	mux.Post("/admin/shops/:id/activate-upgrade", chains.Admin.ThenFunc(s.handleActivateUpgrade))
	mux.Get("/admin/verifications/pending", chains.Admin.ThenFunc(s.handlePendingVerifications))
	mux.Get("/admin/verifications/stats", chains.Admin.ThenFunc(s.handleStats))
	mux.Get("/admin/verifications/history", chains.Admin.ThenFunc(s.handleHistory))
	mux.Get("/admin/upgrades/pending", chains.Admin.ThenFunc(s.handlePendingUpgrades))

	mux.Post("/shops/:shop_id/invoices/:id/payment", chains.Shop.ThenFunc(s.handleSubmitPayment))
	mux.Post("/payments/callback", chains.Public.ThenFunc(s.handleCallback))

	if s.hub != nil {
		mux.Get("/admin/ws", chains.Admin.Then(s.hub))
	}
}
