package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/fsm"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/metrics"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
)

const (
	minRejectReason = 10
	minForceReason  = 20
)

// InvoiceStore is the invoice persistence used by the workflow.
type InvoiceStore interface {
	Get(ctx context.Context, id string) (repo.Invoice, error)
	UpdateIfStatus(ctx context.Context, next repo.Invoice, expected string) error
}

// AttemptStore is the payment attempt persistence used by the workflow.
type AttemptStore interface {
	Create(ctx context.Context, a repo.PaymentAttempt) error
	ResolveLatest(ctx context.Context, invoiceID, status, approvedBy string, at time.Time) (bool, error)
}

// SubscriptionReader loads subscriptions.
type SubscriptionReader interface {
	Get(ctx context.Context, id string) (repo.Subscription, error)
	GetByShop(ctx context.Context, shopID string) (repo.Subscription, error)
}

// AuditSink durably appends audit entries.
type AuditSink interface {
	Append(ctx context.Context, e repo.AuditEntry) error
}

// Activator applies verified payments to subscriptions.
type Activator interface {
	ActivatePendingUpgrade(ctx context.Context, shopID string, invoiceID *string) (*repo.Subscription, error)
	CancelPendingUpgrade(ctx context.Context, shopID string, invoiceID *string) (bool, error)
	ActivateFromPaidInvoice(ctx context.Context, invoiceID, actorID string) error
}

// ShopDirectory looks up shops.
type ShopDirectory interface {
	GetShop(ctx context.Context, id string) (repo.Shop, error)
}

// UserDirectory looks up shop administrators.
type UserDirectory interface {
	FindShopAdmin(ctx context.Context, shopID string) (repo.ShopAdmin, error)
}

// NotificationDispatcher sends templated email.
type NotificationDispatcher interface {
	SendTemplateEmail(ctx context.Context, to, template string, vars map[string]interface{}) error
}

// EventPublisher emits real-time events.
type EventPublisher interface {
	Emit(ctx context.Context, name string, payload interface{}) error
}

// PushNotifier sends mobile push notifications.
type PushNotifier interface {
	Notify(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// TaskRunner runs best-effort side effects outside the request path.
type TaskRunner interface {
	Submit(name string, run func(ctx context.Context) error) bool
}

// ProofStore keeps uploaded payment proof files.
type ProofStore interface {
	Upload(ctx context.Context, data []byte, name string) (string, error)
}

// Config bounds the workflow's operations.
type Config struct {
	RequestTimeout time.Duration
	AuditTimeout   time.Duration
	DashboardURL   string
}

// Deps groups the collaborators of a Workflow. Side-effect collaborators are optional.
type Deps struct {
	Invoices      InvoiceStore
	Attempts      AttemptStore
	Subscriptions SubscriptionReader
	Audit         AuditSink
	Activator     Activator
	Runner        TaskRunner

	Shops  ShopDirectory
	Users  UserDirectory
	Mailer NotificationDispatcher
	Push   PushNotifier
	Events EventPublisher
	Proofs ProofStore

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Config  Config
}

// Workflow orchestrates payment verification, rejection and forced activation.
type Workflow struct {
	invoices  InvoiceStore
	attempts  AttemptStore
	subs      SubscriptionReader
	audit     AuditSink
	activator Activator
	runner    TaskRunner

	shops  ShopDirectory
	users  UserDirectory
	mailer NotificationDispatcher
	push   PushNotifier
	events EventPublisher
	proofs ProofStore

	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     Config
	now     func() time.Time
}

// New validates d and builds a Workflow.
func New(d Deps) (*Workflow, error) {
	switch {
	case d.Invoices == nil:
		return nil, errors.New("workflow: invoice store is required")
	case d.Attempts == nil:
		return nil, errors.New("workflow: attempt store is required")
	case d.Subscriptions == nil:
		return nil, errors.New("workflow: subscription store is required")
	case d.Audit == nil:
		return nil, errors.New("workflow: audit sink is required")
	case d.Activator == nil:
		return nil, errors.New("workflow: activator is required")
	case d.Runner == nil:
		return nil, errors.New("workflow: task runner is required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Config.RequestTimeout <= 0 {
		d.Config.RequestTimeout = 5 * time.Second
	}
	if d.Config.AuditTimeout <= 0 {
		d.Config.AuditTimeout = 3 * time.Second
	}
	return &Workflow{
		invoices:  d.Invoices,
		attempts:  d.Attempts,
		subs:      d.Subscriptions,
		audit:     d.Audit,
		activator: d.Activator,
		runner:    d.Runner,
		shops:     d.Shops,
		users:     d.Users,
		mailer:    d.Mailer,
		push:      d.Push,
		events:    d.Events,
		proofs:    d.Proofs,
		logger:    d.Logger.With("component", "verification_workflow"),
		metrics:   d.Metrics,
		cfg:       d.Config,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// VerifyResult is returned by VerifyPayment.
type VerifyResult struct {
	Success               bool   `json:"success"`
	Activated             bool   `json:"activated"`
	UpgradeActivated      bool   `json:"upgrade_activated"`
	SubscriptionActivated bool   `json:"subscription_activated"`
	Message               string `json:"message"`
	AuditIncomplete       bool   `json:"audit_incomplete,omitempty"`
}

// RejectResult is returned by RejectPayment.
type RejectResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	AuditIncomplete bool   `json:"audit_incomplete,omitempty"`
}

// ForceActivateResult is returned by ForceActivateUpgrade.
type ForceActivateResult struct {
	Success         bool   `json:"success"`
	ActivatedPlan   string `json:"activated_plan,omitempty"`
	Message         string `json:"message"`
	AuditIncomplete bool   `json:"audit_incomplete,omitempty"`
}

const msgAlreadyPaid = "already paid"

func (w *Workflow) loadInvoice(ctx context.Context, id string) (repo.Invoice, error) {
	inv, err := w.invoices.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return repo.Invoice{}, notFound(TargetInvoice, id)
	}
	if err != nil {
		return repo.Invoice{}, fmt.Errorf("load invoice %s: %w", id, err)
	}
	return inv, nil
}

// transition writes next guarded on expected. When another writer got there
// first it reloads the invoice and returns ErrConcurrencyNoOp if the stored
// status equals next.Status, or the reloaded invoice for the caller to judge.
func (w *Workflow) transition(ctx context.Context, next repo.Invoice, expected string) (repo.Invoice, error) {
	err := w.invoices.UpdateIfStatus(ctx, next, expected)
	if err == nil {
		return next, nil
	}
	if !errors.Is(err, repo.ErrStaleStatus) {
		return repo.Invoice{}, fmt.Errorf("update invoice %s: %w", next.ID, err)
	}
	current, loadErr := w.loadInvoice(ctx, next.ID)
	if loadErr != nil {
		return repo.Invoice{}, loadErr
	}
	if current.Status == next.Status {
		return current, ErrConcurrencyNoOp
	}
	return current, invalidState("update", TargetInvoice, current.ID, current.Status)
}

// VerifyPayment marks a pending invoice paid, resolves its payment attempt and
// activates the subscription change it pays for. Verifying an already paid
// invoice, or losing a race to another verifier, returns the idempotent
// "already paid" result without side effects. An activation failure after the
// invoice is paid is logged and left for retry; it is not returned.
func (w *Workflow) VerifyPayment(ctx context.Context, invoiceID string, actor Actor, notes string) (res VerifyResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	defer cancel()

	meta := &VerifyMetadata{Notes: strings.TrimSpace(notes)}
	rec := w.startAudit(ActionVerifyPayment, actor, TargetInvoice, invoiceID, meta)
	defer func() {
		if !w.finish(ctx, rec, err) && err == nil {
			res.AuditIncomplete = true
		}
	}()
	logger := w.logger.With("op", ActionVerifyPayment, "invoice_id", invoiceID, "actor_id", actor.ID)

	if strings.TrimSpace(invoiceID) == "" {
		return VerifyResult{}, invalid("invoice_id", "is required")
	}
	inv, err := w.loadInvoice(ctx, invoiceID)
	if err != nil {
		return VerifyResult{}, err
	}
	rec.entry.ShopID = inv.ShopID
	meta.Amount = inv.TotalAmount.StringFixed(2)
	meta.Currency = inv.Currency
	meta.ReceiptReference = inv.ReceiptReference
	meta.InvoiceType = inv.Type
	meta.PreviousStatus = inv.Status

	switch inv.Status {
	case fsm.StatusPaid:
		rec.outcome = OutcomeNoop
		return VerifyResult{Success: true, Message: msgAlreadyPaid}, nil
	case fsm.StatusPendingVerification:
	default:
		return VerifyResult{}, invalidState("verify", TargetInvoice, inv.ID, inv.Status)
	}

	now := w.now()
	paid, err := w.transition(ctx, MarkPaid(inv, actor, notes, now), fsm.StatusPendingVerification)
	if errors.Is(err, ErrConcurrencyNoOp) {
		logger.Info("invoice verified concurrently")
		rec.outcome = OutcomeNoop
		return VerifyResult{Success: true, Message: msgAlreadyPaid}, nil
	}
	if err != nil {
		return VerifyResult{}, err
	}
	rec.outcome = OutcomeSuccess

	updated, attemptErr := w.attempts.ResolveLatest(ctx, inv.ID, fsm.AttemptSuccess, actor.ID, now)
	if attemptErr != nil {
		logger.Error("resolve payment attempt", "error", attemptErr)
		rec.outcome = OutcomePartial
	}
	meta.AttemptUpdated = updated

	res = VerifyResult{Success: true}
	var (
		activatedPlan string
		noMarker      bool
	)
	if inv.Type == repo.InvoiceUpgrade {
		sub, actErr := w.activator.ActivatePendingUpgrade(ctx, inv.ShopID, &inv.ID)
		switch {
		case actErr != nil:
			logger.Warn("upgrade activation failed, invoice stays paid", "error", actErr)
			w.metrics.ActivationFailure("upgrade")
			meta.Activation = "failed: " + actErr.Error()
			rec.outcome = OutcomePartial
		case sub != nil:
			res.UpgradeActivated = true
			activatedPlan = sub.PlanCode
			meta.Activation = "upgrade:" + sub.PlanCode
		default:
			noMarker = true
			meta.Activation = "no pending upgrade"
		}
	} else {
		if actErr := w.activator.ActivateFromPaidInvoice(ctx, inv.ID, actor.ID); actErr != nil {
			logger.Warn("subscription activation failed, invoice stays paid", "error", actErr)
			w.metrics.ActivationFailure(inv.Type)
			meta.Activation = "failed: " + actErr.Error()
			rec.outcome = OutcomePartial
		} else {
			res.SubscriptionActivated = true
			activatedPlan = inv.PlanCode
			meta.Activation = "subscription:" + inv.Type
		}
	}
	res.Activated = res.UpgradeActivated || res.SubscriptionActivated

	switch {
	case res.UpgradeActivated:
		res.Message = "payment verified and upgrade activated"
	case res.SubscriptionActivated:
		res.Message = "payment verified and subscription activated"
	case noMarker:
		res.Message = "payment verified; no pending upgrade"
	default:
		res.Message = "payment verified; subscription activation pending"
	}

	w.afterVerify(paid, res, activatedPlan)
	return res, nil
}

// RejectPayment marks a pending invoice failed and cancels the upgrade it was
// paying for. Rejecting an already failed invoice is a no-op; rejecting a paid
// invoice is an InvalidStateError.
func (w *Workflow) RejectPayment(ctx context.Context, invoiceID string, actor Actor, reason string) (res RejectResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	defer cancel()

	reason = strings.TrimSpace(reason)
	meta := &RejectMetadata{Reason: reason}
	rec := w.startAudit(ActionRejectPayment, actor, TargetInvoice, invoiceID, meta)
	defer func() {
		if !w.finish(ctx, rec, err) && err == nil {
			res.AuditIncomplete = true
		}
	}()
	logger := w.logger.With("op", ActionRejectPayment, "invoice_id", invoiceID, "actor_id", actor.ID)

	if utf8.RuneCountInString(reason) < minRejectReason {
		return RejectResult{}, invalid("reason", fmt.Sprintf("must be at least %d characters", minRejectReason))
	}
	if strings.TrimSpace(invoiceID) == "" {
		return RejectResult{}, invalid("invoice_id", "is required")
	}
	inv, err := w.loadInvoice(ctx, invoiceID)
	if err != nil {
		return RejectResult{}, err
	}
	rec.entry.ShopID = inv.ShopID
	meta.Amount = inv.TotalAmount.StringFixed(2)
	meta.ReceiptReference = inv.ReceiptReference
	meta.InvoiceType = inv.Type
	meta.PreviousStatus = inv.Status

	switch inv.Status {
	case fsm.StatusFailed:
		rec.outcome = OutcomeNoop
		return RejectResult{Success: true, Message: "already rejected"}, nil
	case fsm.StatusPendingVerification:
	default:
		return RejectResult{}, invalidState("reject", TargetInvoice, inv.ID, inv.Status)
	}

	now := w.now()
	failed, err := w.transition(ctx, MarkFailed(inv, actor, reason, now), fsm.StatusPendingVerification)
	if errors.Is(err, ErrConcurrencyNoOp) {
		rec.outcome = OutcomeNoop
		return RejectResult{Success: true, Message: "already rejected"}, nil
	}
	if err != nil {
		return RejectResult{}, err
	}
	rec.outcome = OutcomeSuccess

	if _, attemptErr := w.attempts.ResolveLatest(ctx, inv.ID, fsm.AttemptFailed, actor.ID, now); attemptErr != nil {
		logger.Error("resolve payment attempt", "error", attemptErr)
		rec.outcome = OutcomePartial
	}

	if inv.Type == repo.InvoiceUpgrade {
		cleared, cancelErr := w.activator.CancelPendingUpgrade(ctx, inv.ShopID, &inv.ID)
		if cancelErr != nil {
			w.metrics.ActivationFailure("cancel_upgrade")
			rec.outcome = OutcomePartial
			w.afterReject(failed)
			return RejectResult{}, fmt.Errorf("invoice rejected but pending upgrade not cleared: %w", cancelErr)
		}
		meta.UpgradeCancelled = cleared
	}

	w.afterReject(failed)
	return RejectResult{Success: true, Message: "payment rejected"}, nil
}

// ForceActivateUpgrade applies a subscription's pending upgrade without a
// verified payment. The audit entry keeps the full prior marker.
func (w *Workflow) ForceActivateUpgrade(ctx context.Context, subscriptionID string, actor Actor, reason string) (res ForceActivateResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	defer cancel()

	reason = strings.TrimSpace(reason)
	meta := &ForceActivateMetadata{Reason: reason}
	rec := w.startAudit(ActionForceActivateUpgrade, actor, TargetSubscription, subscriptionID, meta)
	defer func() {
		if !w.finish(ctx, rec, err) && err == nil {
			res.AuditIncomplete = true
		}
	}()

	if utf8.RuneCountInString(reason) < minForceReason {
		return ForceActivateResult{}, invalid("reason", fmt.Sprintf("must be at least %d characters", minForceReason))
	}
	sub, err := w.subs.Get(ctx, subscriptionID)
	if errors.Is(err, repo.ErrNotFound) {
		return ForceActivateResult{}, notFound(TargetSubscription, subscriptionID)
	}
	if err != nil {
		return ForceActivateResult{}, fmt.Errorf("load subscription %s: %w", subscriptionID, err)
	}
	rec.entry.ShopID = sub.ShopID
	meta.PreviousPlan = sub.PlanCode
	meta.PendingUpgrade = sub.PendingUpgrade
	if sub.PendingUpgrade == nil {
		return ForceActivateResult{}, invalidState("force-activate", TargetSubscription, sub.ID, "no_pending_upgrade")
	}

	updated, err := w.activator.ActivatePendingUpgrade(ctx, sub.ShopID, nil)
	if err != nil {
		return ForceActivateResult{}, err
	}
	if updated == nil {
		rec.outcome = OutcomeNoop
		return ForceActivateResult{Success: true, Message: "upgrade already activated"}, nil
	}
	meta.ActivatedPlan = updated.PlanCode
	rec.outcome = OutcomeSuccess

	w.afterUpgrade(*updated)
	return ForceActivateResult{Success: true, ActivatedPlan: updated.PlanCode, Message: "upgrade activated"}, nil
}

// ActivatePendingUpgrade applies a shop's pending upgrade on behalf of actor.
// It returns nil when nothing is pending.
func (w *Workflow) ActivatePendingUpgrade(ctx context.Context, shopID string, actor Actor) (sub *repo.Subscription, err error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	defer cancel()

	meta := &ActivateUpgradeMetadata{}
	rec := w.startAudit(ActionActivatePendingUpgrade, actor, TargetShop, shopID, meta)
	rec.entry.ShopID = shopID
	defer func() { w.finish(ctx, rec, err) }()

	if current, loadErr := w.subs.GetByShop(ctx, shopID); loadErr == nil {
		meta.PendingUpgrade = current.PendingUpgrade
	} else if errors.Is(loadErr, repo.ErrNotFound) {
		return nil, notFound(TargetSubscription, "shop:"+shopID)
	}

	sub, err = w.activator.ActivatePendingUpgrade(ctx, shopID, nil)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		rec.outcome = OutcomeNoop
		return nil, nil
	}
	meta.ActivatedPlan = sub.PlanCode
	rec.outcome = OutcomeSuccess
	w.afterUpgrade(*sub)
	return sub, nil
}
