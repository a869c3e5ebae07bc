package activation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
)

var (
	// ErrUnknownPlan is returned when an invoice names a plan missing from the catalog.
	ErrUnknownPlan = errors.New("activation: unknown plan")
	// ErrUnderpaid is returned when the paid amount does not cover the plan price.
	ErrUnderpaid = errors.New("activation: amount below plan price")
)

// Plan is a sellable subscription tier.
type Plan struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
	AnnualPrice  decimal.Decimal `json:"annual_price"`
}

// Catalog maps plan codes to plans.
type Catalog map[string]Plan

// DefaultCatalog is the plan list shipped with the service. Prices are KES.
var DefaultCatalog = Catalog{
	"starter": {
		Code:         "starter",
		Name:         "Starter",
		MonthlyPrice: decimal.NewFromInt(1000),
		AnnualPrice:  decimal.NewFromInt(10000),
	},
	"basic": {
		Code:         "basic",
		Name:         "Basic",
		MonthlyPrice: decimal.NewFromInt(2500),
		AnnualPrice:  decimal.NewFromInt(25000),
	},
	"pro": {
		Code:         "pro",
		Name:         "Pro",
		MonthlyPrice: decimal.NewFromInt(5000),
		AnnualPrice:  decimal.NewFromInt(50000),
	},
	"enterprise": {
		Code:         "enterprise",
		Name:         "Enterprise",
		MonthlyPrice: decimal.NewFromInt(15000),
		AnnualPrice:  decimal.NewFromInt(150000),
	},
}

// Months returns the length of a billing cycle.
func Months(cycle string) int {
	if cycle == repo.CycleAnnual {
		return 12
	}
	return 1
}

// Price returns the price of code for one billing cycle.
func (c Catalog) Price(code, cycle string) (decimal.Decimal, error) {
	p, ok := c[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownPlan, code)
	}
	if cycle == repo.CycleAnnual {
		return p.AnnualPrice, nil
	}
	return p.MonthlyPrice, nil
}

// CheckAmount verifies amount covers one cycle of the plan.
func (c Catalog) CheckAmount(code, cycle string, amount decimal.Decimal) error {
	price, err := c.Price(code, cycle)
	if err != nil {
		return err
	}
	if amount.LessThan(price) {
		return fmt.Errorf("%w: paid %s, plan %s costs %s", ErrUnderpaid, amount.StringFixed(2), code, price.StringFixed(2))
	}
	return nil
}
