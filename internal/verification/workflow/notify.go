package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/notify"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
)

var errNoRecipient = errors.New("no recipient for shop")

// recipient resolves who should hear about a shop's billing.
func (w *Workflow) recipient(ctx context.Context, shopID string) (repo.Shop, repo.ShopAdmin, error) {
	var shop repo.Shop
	if w.shops != nil {
		s, err := w.shops.GetShop(ctx, shopID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return repo.Shop{}, repo.ShopAdmin{}, fmt.Errorf("load shop %s: %w", shopID, err)
		}
		shop = s
	}
	var admin repo.ShopAdmin
	if w.users != nil {
		a, err := w.users.FindShopAdmin(ctx, shopID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return repo.Shop{}, repo.ShopAdmin{}, fmt.Errorf("find admin for shop %s: %w", shopID, err)
		}
		admin = a
	}
	if admin.Email == "" {
		admin.Email = shop.Email
	}
	if admin.Name == "" {
		admin.Name = shop.Name
	}
	return shop, admin, nil
}

func (w *Workflow) invoiceVars(inv repo.Invoice, shop repo.Shop, admin repo.ShopAdmin) map[string]interface{} {
	return map[string]interface{}{
		"InvoiceID":        inv.ID,
		"AdminName":        admin.Name,
		"Amount":           inv.TotalAmount.StringFixed(2),
		"Currency":         inv.Currency,
		"ShopName":         shop.Name,
		"ReceiptReference": inv.ReceiptReference,
		"DashboardURL":     w.cfg.DashboardURL,
	}
}

// email renders template for the shop's admin and sends it. The directory
// lookup runs inside the task so it never delays the caller.
func (w *Workflow) email(shopID, template string, extra func(vars map[string]interface{}), inv *repo.Invoice) {
	if w.mailer == nil {
		return
	}
	w.runner.Submit("email:"+template, func(ctx context.Context) error {
		shop, admin, err := w.recipient(ctx, shopID)
		if err != nil {
			return err
		}
		if admin.Email == "" {
			return fmt.Errorf("%w %s", errNoRecipient, shopID)
		}
		vars := map[string]interface{}{
			"AdminName":    admin.Name,
			"ShopName":     shop.Name,
			"DashboardURL": w.cfg.DashboardURL,
		}
		if inv != nil {
			vars = w.invoiceVars(*inv, shop, admin)
		}
		if extra != nil {
			extra(vars)
		}
		if err := w.mailer.SendTemplateEmail(ctx, admin.Email, template, vars); err != nil {
			return err
		}
		if w.push != nil && len(admin.DeviceTokens) > 0 {
			title := "SmartDuka billing"
			if subject, ok := vars["PushTitle"].(string); ok {
				title = subject
			}
			body, _ := vars["PushBody"].(string)
			if body != "" {
				if err := w.push.Notify(ctx, admin.DeviceTokens, title, body, map[string]string{"shop_id": shopID, "type": template}); err != nil {
					w.logger.Warn("push notification failed", "shop_id", shopID, "error", err)
				}
			}
		}
		return nil
	})
}

func (w *Workflow) emit(name string, payload interface{}) {
	if w.events == nil {
		return
	}
	w.runner.Submit("event:"+name, func(ctx context.Context) error {
		return w.events.Emit(ctx, name, payload)
	})
}

type invoiceEvent struct {
	InvoiceID string `json:"invoice_id"`
	ShopID    string `json:"shop_id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Activated bool   `json:"activated,omitempty"`
	PlanCode  string `json:"plan_code,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func newInvoiceEvent(inv repo.Invoice) invoiceEvent {
	return invoiceEvent{
		InvoiceID: inv.ID,
		ShopID:    inv.ShopID,
		Type:      inv.Type,
		Status:    inv.Status,
		Amount:    inv.TotalAmount.StringFixed(2),
	}
}

type subscriptionEvent struct {
	SubscriptionID string `json:"subscription_id"`
	ShopID         string `json:"shop_id"`
	PlanCode       string `json:"plan_code"`
	Status         string `json:"status"`
}

func (w *Workflow) afterVerify(inv repo.Invoice, res VerifyResult, plan string) {
	w.email(inv.ShopID, notify.TemplatePaymentVerified, func(vars map[string]interface{}) {
		vars["Activated"] = res.Activated
		vars["PlanCode"] = plan
		vars["PushTitle"] = "Payment verified"
		vars["PushBody"] = fmt.Sprintf("Your payment of %s %s was confirmed.", inv.Currency, inv.TotalAmount.StringFixed(2))
	}, &inv)

	ev := newInvoiceEvent(inv)
	ev.Activated = res.Activated
	ev.PlanCode = plan
	w.emit(notify.EventPaymentVerified, ev)
	if res.Activated {
		w.emit(notify.EventSubscriptionUpdated, subscriptionEvent{ShopID: inv.ShopID, PlanCode: plan, Status: repo.SubscriptionActive})
	}
}

func (w *Workflow) afterReject(inv repo.Invoice) {
	reason := inv.ManualPayment.RejectionReason
	w.email(inv.ShopID, notify.TemplatePaymentRejected, func(vars map[string]interface{}) {
		vars["Reason"] = reason
		vars["PushTitle"] = "Payment not verified"
		vars["PushBody"] = "We could not verify your payment. Check your email for details."
	}, &inv)

	ev := newInvoiceEvent(inv)
	ev.Reason = reason
	w.emit(notify.EventPaymentRejected, ev)
}

func (w *Workflow) afterUpgrade(sub repo.Subscription) {
	w.email(sub.ShopID, notify.TemplateUpgradeActivated, func(vars map[string]interface{}) {
		vars["PlanCode"] = sub.PlanCode
	}, nil)
	w.emit(notify.EventSubscriptionUpdated, subscriptionEvent{
		SubscriptionID: sub.ID,
		ShopID:         sub.ShopID,
		PlanCode:       sub.PlanCode,
		Status:         sub.Status,
	})
}

func (w *Workflow) afterSubmit(inv repo.Invoice) {
	w.emit(notify.EventPaymentSubmitted, newInvoiceEvent(inv))
}
