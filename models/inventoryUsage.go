package models

import (
	"context"
	"time"

	"bitbucket.org/speantag/bakery_backend/config"
	"bitbucket.org/speantag/bakery_backend/utils"
	"github.com/shopspring/decimal"
)

// InventoryUsage books stock consumed for production. Cost is taken from
// the item's weighted-average cost at the time of recording; later
// purchases never retroactively change a booked usage. Immutable once
// created.
type InventoryUsage struct {
	ID              int             `gorm:"primary_key" json:"id"`
	InventoryItemId int             `gorm:"index;not null" json:"inventory_item_id"`
	QuantityUsed    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_used"`
	CostUsed        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"cost_used"`
	ExpectedProfit  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"expected_profit"`
	UsageDate       time.Time       `gorm:"index;not null" json:"usage_date"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewInventoryUsage struct {
	InventoryItemId int             `json:"inventory_item_id" binding:"required"`
	QuantityUsed    decimal.Decimal `json:"quantity_used"`
	UsageDate       time.Time       `json:"usage_date" binding:"required"`
}

// usageCharges is the pure costing step: cost consumed and the fixed-margin
// profit projection booked at consumption time.
func usageCharges(quantity, costPerUnit, margin decimal.Decimal) (costUsed, expectedProfit decimal.Decimal) {
	costUsed = quantity.Mul(costPerUnit)
	expectedProfit = costUsed.Mul(margin)
	return costUsed, expectedProfit
}

// CreateInventoryUsage consumes stock and appends the usage record in one
// transaction. A rejected usage never decrements inventory.
func CreateInventoryUsage(ctx context.Context, input *NewInventoryUsage) (*InventoryUsage, error) {
	if !input.QuantityUsed.IsPositive() {
		return nil, utils.NewValidationError("quantity used must be greater than zero")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, utils.NewStorageError("begin usage transaction", tx.Error)
	}

	var item InventoryItem
	if err := tx.First(&item, input.InventoryItemId).Error; err != nil {
		tx.Rollback()
		return nil, utils.NewNotFoundError("inventory item", input.InventoryItemId)
	}

	if input.QuantityUsed.GreaterThan(item.RemainingQuantity) {
		tx.Rollback()
		return nil, &utils.InsufficientInventoryError{
			ItemName:  item.ItemName,
			Requested: input.QuantityUsed,
			Remaining: item.RemainingQuantity,
		}
	}

	costUsed, expectedProfit := usageCharges(input.QuantityUsed, item.CostPerUnit, config.ExpectedProfitMargin())

	err := tx.Model(&item).Updates(map[string]interface{}{
		"RemainingQuantity": item.RemainingQuantity.Sub(input.QuantityUsed),
		"LastUpdated":       time.Now().UTC(),
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, utils.NewStorageError("decrement inventory", err)
	}

	usage := InventoryUsage{
		InventoryItemId: item.ID,
		QuantityUsed:    input.QuantityUsed,
		CostUsed:        costUsed,
		ExpectedProfit:  expectedProfit,
		UsageDate:       input.UsageDate,
	}
	if err := tx.Create(&usage).Error; err != nil {
		tx.Rollback()
		return nil, utils.NewStorageError("create inventory usage", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.NewStorageError("commit inventory usage", err)
	}

	invalidateInventoryCache()
	return &usage, nil
}

// GetInventoryUsages returns usage records whose usage_date falls in
// [start, end], newest first.
func GetInventoryUsages(ctx context.Context, start time.Time, end time.Time) ([]*InventoryUsage, error) {
	if end.Before(start) {
		return nil, utils.NewValidationError("end date must not be before start date")
	}

	db := config.GetDB()
	var results []*InventoryUsage
	err := db.WithContext(ctx).
		Where("usage_date BETWEEN ? AND ?", start, utils.EndOfDay(end)).
		Order("usage_date DESC").
		Find(&results).Error
	if err != nil {
		return nil, utils.NewStorageError("query inventory usages", err)
	}
	return results, nil
}

// GetRecentInventoryUsages returns the latest usage records for the entry page.
func GetRecentInventoryUsages(ctx context.Context, limit int) ([]*InventoryUsage, error) {
	if limit <= 0 {
		limit = 20
	}

	db := config.GetDB()
	var results []*InventoryUsage
	err := db.WithContext(ctx).
		Order("usage_date DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, utils.NewStorageError("query recent inventory usages", err)
	}
	return results, nil
}
