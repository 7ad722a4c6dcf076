// inventory-recost rebuilds every inventory item's totals and
// weighted-average cost from the purchase-item history, and recomputes
// remaining stock as total purchased minus total used. Intended for repair
// after manual DB edits; booked usages are never touched.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	go run ./cmd/inventory-recost [--dry-run]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/speantag/bakery_backend/config"
	"bitbucket.org/speantag/bakery_backend/models"
	"github.com/shopspring/decimal"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "print the recomputed values without writing")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	var items []*models.InventoryItem
	if err := db.WithContext(ctx).Order("item_name").Find(&items).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list inventory items: %v\n", err)
		os.Exit(1)
	}

	var fixed int
	for _, item := range items {
		var lines []*models.PurchaseItem
		err := db.WithContext(ctx).
			Where("item_name = ?", item.ItemName).
			Order("id").
			Find(&lines).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load purchase history for %q: %v\n", item.ItemName, err)
			os.Exit(1)
		}

		totalQty := decimal.Zero
		totalCost := decimal.Zero
		for _, line := range lines {
			totalQty = totalQty.Add(line.QuantityPurchased)
			totalCost = totalCost.Add(line.TotalPrice)
		}
		costPerUnit := item.CostPerUnit
		if !totalQty.IsZero() {
			costPerUnit = totalCost.Div(totalQty)
		}

		var usedRow struct {
			TotalUsed decimal.Decimal
		}
		err = db.WithContext(ctx).Model(&models.InventoryUsage{}).
			Select("COALESCE(SUM(quantity_used), 0) AS total_used").
			Where("inventory_item_id = ?", item.ID).
			Scan(&usedRow).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to sum usage for %q: %v\n", item.ItemName, err)
			os.Exit(1)
		}

		remaining := totalQty.Sub(usedRow.TotalUsed)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}

		unchanged := item.TotalQuantity.Equal(totalQty) &&
			item.CostPerUnit.Equal(costPerUnit) &&
			item.RemainingQuantity.Equal(remaining)
		if unchanged {
			continue
		}

		fmt.Printf("%s: total %s -> %s, cost %s -> %s, remaining %s -> %s\n",
			item.ItemName,
			item.TotalQuantity, totalQty,
			item.CostPerUnit, costPerUnit,
			item.RemainingQuantity, remaining)
		fixed++

		if *dryRun {
			continue
		}
		err = db.WithContext(ctx).Model(item).Updates(map[string]interface{}{
			"TotalQuantity":     totalQty,
			"CostPerUnit":       costPerUnit,
			"RemainingQuantity": remaining,
			"LastUpdated":       time.Now().UTC(),
		}).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to update %q: %v\n", item.ItemName, err)
			os.Exit(1)
		}
	}

	if *dryRun {
		fmt.Printf("dry run: %d of %d items would change\n", fixed, len(items))
	} else {
		fmt.Printf("recosted %d of %d items\n", fixed, len(items))
	}
}
