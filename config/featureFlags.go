package config

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// ExpectedProfitMargin is the fixed margin booked against cost at the time
// stock is consumed. The 0.30 default matches the books the shop has always
// kept; it is a policy parameter, not a tax or accounting rule.
//
// Set via env:
// - EXPECTED_PROFIT_MARGIN=0.30
func ExpectedProfitMargin() decimal.Decimal {
	v := strings.TrimSpace(os.Getenv("EXPECTED_PROFIT_MARGIN"))
	if v == "" {
		return decimal.NewFromFloat(0.30)
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return decimal.NewFromFloat(0.30)
	}
	return d
}

// RestockOnPurchase controls what happens to remaining_quantity when an
// already-known item is purchased again.
//
// true (default): remaining_quantity is reset to the new total_quantity,
// matching the historical ledgers this backend replaced. Note this restores
// previously consumed stock. Pending clarification from the shop owners it
// stays behind this flag rather than being silently corrected.
//
// false: remaining_quantity is incremented by the purchased quantity only.
//
// Set via env:
// - RESTOCK_ON_PURCHASE=false
func RestockOnPurchase() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("RESTOCK_ON_PURCHASE")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
