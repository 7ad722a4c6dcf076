package models

import (
	"testing"
	"time"
)

// The report and the dashboard deliberately disagree: the report's net
// profit adds the projected margin back, the dashboard balance does not.
// These tests pin both formulas against the same period.
func periodFixture() PeriodRecords {
	return PeriodRecords{
		Sales: []*DailySale{
			{TotalAmount: d("60")},
			{TotalAmount: d("40")},
		},
		Purchases: []*MarketPurchase{
			{TotalAmountSpent: d("40")},
		},
		Usages: []*InventoryUsage{
			{CostUsed: d("20"), ExpectedProfit: d("6")},
		},
	}
}

func TestSummarizeProfitLoss_NetProfitAddsExpectedProfitBack(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	summary := summarizeProfitLoss(start, end, periodFixture())

	if !summary.TotalRevenue.Equal(d("100")) {
		t.Errorf("TotalRevenue = %s, want 100", summary.TotalRevenue)
	}
	if !summary.TotalExpenses.Equal(d("40")) {
		t.Errorf("TotalExpenses = %s, want 40", summary.TotalExpenses)
	}
	if !summary.TotalCostUsed.Equal(d("20")) {
		t.Errorf("TotalCostUsed = %s, want 20", summary.TotalCostUsed)
	}
	if !summary.TotalExpectedProfit.Equal(d("6")) {
		t.Errorf("TotalExpectedProfit = %s, want 6", summary.TotalExpectedProfit)
	}
	// 100 - 40 - 20 + 6
	if !summary.NetProfit.Equal(d("46")) {
		t.Errorf("NetProfit = %s, want 46", summary.NetProfit)
	}
}

func TestSummarizeDashboard_BalanceExcludesExpectedProfit(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	summary := summarizeDashboard(start, end, periodFixture())

	// 100 - 40 - 20, no add-back
	if !summary.Balance.Equal(d("40")) {
		t.Errorf("Balance = %s, want 40", summary.Balance)
	}
	if !summary.TotalIncome.Equal(d("100")) {
		t.Errorf("TotalIncome = %s, want 100", summary.TotalIncome)
	}
}

func TestSummarizeProfitLoss_EmptyPeriodIsAllZeros(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	summary := summarizeProfitLoss(start, end, PeriodRecords{})

	if !summary.TotalRevenue.IsZero() || !summary.TotalExpenses.IsZero() ||
		!summary.TotalCostUsed.IsZero() || !summary.TotalExpectedProfit.IsZero() ||
		!summary.NetProfit.IsZero() {
		t.Fatalf("empty period should be all zeros, got %+v", summary)
	}
	if !summary.StartDate.Equal(start) || !summary.EndDate.Equal(end) {
		t.Fatalf("dates not carried through: %+v", summary)
	}
}
