package activation

import (
	"time"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
)

// ApplyUpgrade moves the subscription onto its pending target plan and clears the marker.
// It reports false when there is no pending upgrade.
func ApplyUpgrade(sub repo.Subscription) (repo.Subscription, bool) {
	if sub.PendingUpgrade == nil {
		return sub, false
	}
	next := sub
	next.PlanCode = sub.PendingUpgrade.TargetPlan
	next.PendingUpgrade = nil
	return next, true
}

// ClearUpgrade drops the pending upgrade marker and leaves the plan unchanged.
func ClearUpgrade(sub repo.Subscription) (repo.Subscription, bool) {
	if sub.PendingUpgrade == nil {
		return sub, false
	}
	next := sub
	next.PendingUpgrade = nil
	return next, true
}

// ApplyPaidInvoice activates or extends sub for a paid new or renewal invoice.
// It reports false when the invoice was already applied.
func ApplyPaidInvoice(sub repo.Subscription, inv repo.Invoice, now time.Time) (repo.Subscription, bool) {
	if sub.LastInvoiceID == inv.ID {
		return sub, false
	}
	now = now.UTC()
	months := Months(inv.BillingCycle)
	next := sub

	switch inv.Type {
	case repo.InvoiceNew:
		start := now
		end := now.AddDate(0, months, 0)
		next.CurrentPeriodStart = &start
		next.CurrentPeriodEnd = &end
		if inv.PlanCode != "" {
			next.PlanCode = inv.PlanCode
		}
	default:
		base := now
		if sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(now) {
			base = *sub.CurrentPeriodEnd
		} else {
			start := now
			next.CurrentPeriodStart = &start
		}
		end := base.AddDate(0, months, 0)
		next.CurrentPeriodEnd = &end
	}

	if inv.BillingCycle != "" {
		next.BillingCycle = inv.BillingCycle
	}
	next.Status = repo.SubscriptionActive
	next.LastInvoiceID = inv.ID
	return next, true
}
