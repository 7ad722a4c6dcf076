package reports

import (
	"fmt"
	"net/http"
	"time"

	"bitbucket.org/speantag/bakery_backend/models"
	"bitbucket.org/speantag/bakery_backend/utils"
	"github.com/xuri/excelize/v2"
)

const dateLayout = "2006-01-02"

// BuildPeriodWorkbook renders the period report as a spreadsheet: a Summary
// sheet plus one sheet each for Sales, Purchases, and Inventory Usage —
// the same sections the reports page shows. itemNames maps inventory item
// ids to display names for the usage sheet.
func BuildPeriodWorkbook(summary *models.ProfitLossSummary, records models.PeriodRecords, itemNames map[int]string) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return nil, err
	}
	writeSummarySheet(f, summary)

	if _, err := f.NewSheet("Sales"); err != nil {
		return nil, err
	}
	writeSalesSheet(f, records.Sales)

	if _, err := f.NewSheet("Purchases"); err != nil {
		return nil, err
	}
	writePurchasesSheet(f, records.Purchases)

	if _, err := f.NewSheet("Inventory Usage"); err != nil {
		return nil, err
	}
	writeUsageSheet(f, records.Usages, itemNames)

	return f, nil
}

func writeSummarySheet(f *excelize.File, summary *models.ProfitLossSummary) {
	sheet := "Summary"
	rows := [][]interface{}{
		{"Period", summary.StartDate.Format(dateLayout) + " to " + summary.EndDate.Format(dateLayout)},
		{"Total Revenue", summary.TotalRevenue},
		{"Total Expenses", summary.TotalExpenses},
		{"Total Cost Used", summary.TotalCostUsed},
		{"Total Expected Profit", summary.TotalExpectedProfit},
		{"Net Profit", summary.NetProfit},
	}
	for i, row := range rows {
		f.SetCellValue(sheet, "A"+fmt.Sprint(i+1), row[0])
		f.SetCellValue(sheet, "B"+fmt.Sprint(i+1), fmt.Sprint(row[1]))
	}
}

func writeSalesSheet(f *excelize.File, sales []*models.DailySale) {
	sheet := "Sales"

	f.SetCellValue(sheet, "A1", "Date")
	f.SetCellValue(sheet, "B1", "Item")
	f.SetCellValue(sheet, "C1", "Quantity")
	f.SetCellValue(sheet, "D1", "Unit Price")
	f.SetCellValue(sheet, "E1", "Total Amount")

	for i, sale := range sales {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheet, "A"+row, sale.SaleDate.Format(dateLayout))
		f.SetCellValue(sheet, "B"+row, sale.ItemName)
		f.SetCellValue(sheet, "C"+row, sale.QuantitySold.String())
		f.SetCellValue(sheet, "D"+row, sale.UnitPrice.String())
		f.SetCellValue(sheet, "E"+row, sale.TotalAmount.String())
	}
}

func writePurchasesSheet(f *excelize.File, purchases []*models.MarketPurchase) {
	sheet := "Purchases"

	f.SetCellValue(sheet, "A1", "Date")
	f.SetCellValue(sheet, "B1", "Amount Taken")
	f.SetCellValue(sheet, "C1", "Amount Spent")
	f.SetCellValue(sheet, "D1", "Remaining Balance")

	for i, purchase := range purchases {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheet, "A"+row, purchase.PurchaseDate.Format(dateLayout))
		f.SetCellValue(sheet, "B"+row, purchase.TotalAmountTaken.String())
		f.SetCellValue(sheet, "C"+row, purchase.TotalAmountSpent.String())
		f.SetCellValue(sheet, "D"+row, purchase.RemainingBalance.String())
	}
}

func writeUsageSheet(f *excelize.File, usages []*models.InventoryUsage, itemNames map[int]string) {
	sheet := "Inventory Usage"

	f.SetCellValue(sheet, "A1", "Date")
	f.SetCellValue(sheet, "B1", "Item")
	f.SetCellValue(sheet, "C1", "Quantity Used")
	f.SetCellValue(sheet, "D1", "Cost Used")
	f.SetCellValue(sheet, "E1", "Expected Profit")

	for i, usage := range usages {
		name, ok := itemNames[usage.InventoryItemId]
		if !ok {
			name = "Unknown"
		}
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheet, "A"+row, usage.UsageDate.Format(dateLayout))
		f.SetCellValue(sheet, "B"+row, name)
		f.SetCellValue(sheet, "C"+row, usage.QuantityUsed.String())
		f.SetCellValue(sheet, "D"+row, usage.CostUsed.String())
		f.SetCellValue(sheet, "E"+row, usage.ExpectedProfit.String())
	}
}

// WritePeriodReport streams the workbook as an attachment.
func WritePeriodReport(w http.ResponseWriter, f *excelize.File, start, end time.Time) error {
	filename := fmt.Sprintf("bakery_report_%s_to_%s.xlsx", start.Format(utils.DateOnlyLayout), end.Format(utils.DateOnlyLayout))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	return f.Write(w)
}
