package models

import (
	"context"
	"time"

	"bitbucket.org/speantag/bakery_backend/utils"
	"github.com/shopspring/decimal"
)

// ProfitLossSummary is the period report shown on the reports page and in
// exports.
//
// NetProfit intentionally adds the projected margin back on top of revenue
// minus costs:
//
//	net_profit = revenue - expenses - cost_used + expected_profit
//
// The dashboard balance below uses a different formula; the two figures are
// kept separate on purpose so report and export paths agree with the books
// the shop has always kept.
type ProfitLossSummary struct {
	StartDate           time.Time       `json:"start_date"`
	EndDate             time.Time       `json:"end_date"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	TotalExpenses       decimal.Decimal `json:"total_expenses"`
	TotalCostUsed       decimal.Decimal `json:"total_cost_used"`
	TotalExpectedProfit decimal.Decimal `json:"total_expected_profit"`
	NetProfit           decimal.Decimal `json:"net_profit"`
}

// DashboardSummary is the admin view aggregate:
//
//	balance = income - expenses - cost_used
//
// with no expected-profit add-back.
type DashboardSummary struct {
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	TotalCostUsed decimal.Decimal `json:"total_cost_used"`
	Balance       decimal.Decimal `json:"balance"`
}

// PeriodRecords is everything the aggregator and the exports read for a
// date range. Fetching is separated from the pure summarize step below so
// both stay testable without a database.
type PeriodRecords struct {
	Sales     []*DailySale
	Purchases []*MarketPurchase
	Usages    []*InventoryUsage
}

func summarizeProfitLoss(start, end time.Time, records PeriodRecords) ProfitLossSummary {
	summary := ProfitLossSummary{
		StartDate:           start,
		EndDate:             end,
		TotalRevenue:        decimal.Zero,
		TotalExpenses:       decimal.Zero,
		TotalCostUsed:       decimal.Zero,
		TotalExpectedProfit: decimal.Zero,
	}
	for _, sale := range records.Sales {
		summary.TotalRevenue = summary.TotalRevenue.Add(sale.TotalAmount)
	}
	for _, purchase := range records.Purchases {
		summary.TotalExpenses = summary.TotalExpenses.Add(purchase.TotalAmountSpent)
	}
	for _, usage := range records.Usages {
		summary.TotalCostUsed = summary.TotalCostUsed.Add(usage.CostUsed)
		summary.TotalExpectedProfit = summary.TotalExpectedProfit.Add(usage.ExpectedProfit)
	}
	summary.NetProfit = summary.TotalRevenue.
		Sub(summary.TotalExpenses).
		Sub(summary.TotalCostUsed).
		Add(summary.TotalExpectedProfit)
	return summary
}

func summarizeDashboard(start, end time.Time, records PeriodRecords) DashboardSummary {
	pl := summarizeProfitLoss(start, end, records)
	return DashboardSummary{
		StartDate:     start,
		EndDate:       end,
		TotalIncome:   pl.TotalRevenue,
		TotalExpenses: pl.TotalExpenses,
		TotalCostUsed: pl.TotalCostUsed,
		Balance:       pl.TotalRevenue.Sub(pl.TotalExpenses).Sub(pl.TotalCostUsed),
	}
}

// GetPeriodRecords range-fetches sales, purchases, and usages for [start, end].
func GetPeriodRecords(ctx context.Context, start, end time.Time) (PeriodRecords, error) {
	var records PeriodRecords
	if end.Before(start) {
		return records, utils.NewValidationError("end date must not be before start date")
	}

	var err error
	if records.Sales, err = GetDailySales(ctx, start, end); err != nil {
		return records, err
	}
	if records.Purchases, err = GetMarketPurchases(ctx, start, end); err != nil {
		return records, err
	}
	if records.Usages, err = GetInventoryUsages(ctx, start, end); err != nil {
		return records, err
	}
	return records, nil
}

// GetProfitLossSummary computes the period report. Read-only.
func GetProfitLossSummary(ctx context.Context, start, end time.Time) (*ProfitLossSummary, error) {
	records, err := GetPeriodRecords(ctx, start, end)
	if err != nil {
		return nil, err
	}
	summary := summarizeProfitLoss(start, end, records)
	return &summary, nil
}

// GetDashboardSummary computes the admin dashboard aggregate. Read-only.
func GetDashboardSummary(ctx context.Context, start, end time.Time) (*DashboardSummary, error) {
	records, err := GetPeriodRecords(ctx, start, end)
	if err != nil {
		return nil, err
	}
	summary := summarizeDashboard(start, end, records)
	return &summary, nil
}
