package models

import (
	"context"
	"time"

	"bitbucket.org/speantag/bakery_backend/config"
	"bitbucket.org/speantag/bakery_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

/*
caches:
	InventoryItemList
*/

// InventoryItem carries the running weighted-average cost for one item name.
// Created on the first purchase of a never-before-seen name, updated in
// place on every later purchase or usage.
type InventoryItem struct {
	ID                int             `gorm:"primary_key" json:"id"`
	ItemName          string          `gorm:"size:100;not null;unique" json:"item_name"`
	TotalQuantity     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_quantity"`
	CostPerUnit       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_per_unit"`
	RemainingQuantity decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"remaining_quantity"`
	LastUpdated       time.Time       `gorm:"not null" json:"last_updated"`
}

// blendPurchaseCost applies the weighted-average costing rule: the new
// purchase blends its price into the running per-unit cost proportional to
// quantities.
//
//	newTotal = oldQty + qty
//	newCost  = (oldQty*oldCost + qty*price) / newTotal
func blendPurchaseCost(oldQty, oldCost, qty, price decimal.Decimal) (newTotal, newCost decimal.Decimal) {
	newTotal = oldQty.Add(qty)
	if newTotal.IsZero() {
		return newTotal, oldCost
	}
	newCost = oldQty.Mul(oldCost).Add(qty.Mul(price)).Div(newTotal)
	return newTotal, newCost
}

// restockedRemaining is the remaining quantity after a purchase of qty units.
// The faithful policy resets remaining to the new total, which restores any
// previously consumed stock; the additive policy only adds the purchased
// quantity. See config.RestockOnPurchase.
func restockedRemaining(oldRemaining, newTotal, qty decimal.Decimal, restockOnPurchase bool) decimal.Decimal {
	if restockOnPurchase {
		return newTotal
	}
	return oldRemaining.Add(qty)
}

// applyPurchaseToInventory creates or updates the inventory item for one
// purchase line, inside the caller's transaction.
func applyPurchaseToInventory(tx *gorm.DB, itemName string, quantity, unitPrice decimal.Decimal, now time.Time) (*InventoryItem, error) {
	if !quantity.IsPositive() {
		return nil, utils.NewValidationError("purchased quantity must be greater than zero")
	}
	if unitPrice.IsNegative() {
		return nil, utils.NewValidationError("unit price must not be negative")
	}

	var item InventoryItem
	err := tx.Where("item_name = ?", itemName).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		item = InventoryItem{
			ItemName:          itemName,
			TotalQuantity:     quantity,
			CostPerUnit:       unitPrice,
			RemainingQuantity: quantity,
			LastUpdated:       now,
		}
		if err := tx.Create(&item).Error; err != nil {
			return nil, utils.NewStorageError("create inventory item", err)
		}
		return &item, nil
	}
	if err != nil {
		return nil, utils.NewStorageError("lookup inventory item", err)
	}

	newTotal, newCost := blendPurchaseCost(item.TotalQuantity, item.CostPerUnit, quantity, unitPrice)
	item.RemainingQuantity = restockedRemaining(item.RemainingQuantity, newTotal, quantity, config.RestockOnPurchase())
	item.TotalQuantity = newTotal
	item.CostPerUnit = newCost
	item.LastUpdated = now

	err = tx.Model(&item).Updates(map[string]interface{}{
		"TotalQuantity":     item.TotalQuantity,
		"CostPerUnit":       item.CostPerUnit,
		"RemainingQuantity": item.RemainingQuantity,
		"LastUpdated":       item.LastUpdated,
	}).Error
	if err != nil {
		return nil, utils.NewStorageError("update inventory item", err)
	}
	return &item, nil
}

func GetInventoryItem(ctx context.Context, id int) (*InventoryItem, error) {
	db := config.GetDB()

	var result InventoryItem
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.NewNotFoundError("inventory item", id)
	}
	return &result, nil
}

// ListInventoryItems returns every item, redis-cached.
func ListInventoryItems(ctx context.Context) ([]*InventoryItem, error) {
	var results []*InventoryItem
	exists, err := config.GetRedisObject("InventoryItemList", &results)
	if err == nil && exists {
		return results, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Order("item_name").Find(&results).Error; err != nil {
		return nil, utils.NewStorageError("query inventory items", err)
	}
	if err := config.SetRedisObject("InventoryItemList", results, time.Minute); err != nil {
		config.LogError(config.GetLogger(), "models", "ListInventoryItems", "cache inventory list", nil, err)
	}
	return results, nil
}

// ListAvailableInventoryItems returns items with stock on hand, for the
// usage entry form.
func ListAvailableInventoryItems(ctx context.Context) ([]*InventoryItem, error) {
	db := config.GetDB()

	var results []*InventoryItem
	err := db.WithContext(ctx).
		Where("remaining_quantity > 0").
		Order("item_name").
		Find(&results).Error
	if err != nil {
		return nil, utils.NewStorageError("query available inventory items", err)
	}
	return results, nil
}

func invalidateInventoryCache() {
	if err := config.RemoveRedisKey("InventoryItemList"); err != nil {
		config.LogError(config.GetLogger(), "models", "invalidateInventoryCache", "remove cache key", nil, err)
	}
}
