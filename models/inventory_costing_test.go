package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestBlendPurchaseCost_FirstPurchaseUsesPurchasePrice(t *testing.T) {
	total, cost := blendPurchaseCost(decimal.Zero, decimal.Zero, d("10"), d("2.5"))

	if !total.Equal(d("10")) {
		t.Fatalf("total = %s, want 10", total)
	}
	if !cost.Equal(d("2.5")) {
		t.Fatalf("cost = %s, want 2.5", cost)
	}
}

func TestBlendPurchaseCost_WeightedAverage(t *testing.T) {
	tests := []struct {
		name     string
		oldQty   string
		oldCost  string
		qty      string
		price    string
		wantQty  string
		wantCost string
	}{
		{"equal quantities blend to midpoint", "10", "2", "10", "4", "20", "3"},
		{"small restock barely moves the average", "100", "2", "1", "12", "101", "2.099009900990099"},
		{"same price keeps the average", "30", "1.5", "70", "1.5", "100", "1.5"},
		{"zero-quantity history adopts new price", "0", "7", "5", "3", "5", "3"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			total, cost := blendPurchaseCost(d(tc.oldQty), d(tc.oldCost), d(tc.qty), d(tc.price))
			if !total.Equal(d(tc.wantQty)) {
				t.Errorf("total = %s, want %s", total, tc.wantQty)
			}
			// Div keeps 16 decimal places; compare at a cent tolerance.
			if cost.Sub(d(tc.wantCost)).Abs().GreaterThan(d("0.0000001")) {
				t.Errorf("cost = %s, want %s", cost, tc.wantCost)
			}
		})
	}
}

func TestRestockedRemaining_ResetPolicyRestoresConsumedStock(t *testing.T) {
	// 50 purchased, 30 consumed, then 10 more purchased: the reset policy
	// snaps remaining back to the full running total.
	remaining := restockedRemaining(d("20"), d("60"), d("10"), true)
	if !remaining.Equal(d("60")) {
		t.Fatalf("remaining = %s, want 60", remaining)
	}
}

func TestRestockedRemaining_AdditivePolicyKeepsConsumption(t *testing.T) {
	remaining := restockedRemaining(d("20"), d("60"), d("10"), false)
	if !remaining.Equal(d("30")) {
		t.Fatalf("remaining = %s, want 30", remaining)
	}
}

func TestUsageCharges_DefaultMargin(t *testing.T) {
	costUsed, expectedProfit := usageCharges(d("10"), d("2"), d("0.30"))

	if !costUsed.Equal(d("20")) {
		t.Fatalf("costUsed = %s, want 20", costUsed)
	}
	if !expectedProfit.Equal(d("6")) {
		t.Fatalf("expectedProfit = %s, want 6", expectedProfit)
	}
}

func TestUsageCharges_ZeroMargin(t *testing.T) {
	costUsed, expectedProfit := usageCharges(d("4"), d("1.25"), decimal.Zero)

	if !costUsed.Equal(d("5")) {
		t.Fatalf("costUsed = %s, want 5", costUsed)
	}
	if !expectedProfit.IsZero() {
		t.Fatalf("expectedProfit = %s, want 0", expectedProfit)
	}
}
