package models

import (
	"context"
	"time"

	"bitbucket.org/speantag/bakery_backend/config"
	"bitbucket.org/speantag/bakery_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
)

// MarketPurchase is one market trip: cash taken along, what was spent on
// line items, and the change brought back. amount spent always equals the
// sum of its items' totals.
type MarketPurchase struct {
	ID               int             `gorm:"primary_key" json:"id"`
	TotalAmountTaken decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_amount_taken"`
	TotalAmountSpent decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_amount_spent"`
	RemainingBalance decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"remaining_balance"`
	PurchaseDate     time.Time       `gorm:"index;not null" json:"purchase_date"`
	Items            []*PurchaseItem `gorm:"foreignKey:MarketPurchaseId;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type PurchaseItem struct {
	ID                int             `gorm:"primary_key" json:"id"`
	MarketPurchaseId  int             `gorm:"index;not null" json:"market_purchase_id"`
	ItemName          string          `gorm:"size:100;not null" json:"item_name"`
	QuantityPurchased decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_purchased"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	TotalPrice        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_price"`
}

type NewMarketPurchase struct {
	TotalAmountTaken decimal.Decimal    `json:"total_amount_taken"`
	PurchaseDate     time.Time          `json:"purchase_date" binding:"required"`
	Items            []*NewPurchaseItem `json:"items" binding:"dive"`
}

type NewPurchaseItem struct {
	ItemName          string          `json:"item_name" binding:"required"`
	QuantityPurchased decimal.Decimal `json:"quantity_purchased"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
}

func (input *NewMarketPurchase) validate() error {
	if input.TotalAmountTaken.IsNegative() {
		return utils.NewValidationError("total amount taken must not be negative")
	}
	for _, item := range input.Items {
		if item.ItemName == "" {
			return utils.NewValidationError("item name is required")
		}
		if !item.QuantityPurchased.IsPositive() {
			return utils.NewValidationError("purchased quantity of %s must be greater than zero", item.ItemName)
		}
		if item.UnitPrice.IsNegative() {
			return utils.NewValidationError("unit price of %s must not be negative", item.ItemName)
		}
	}
	return nil
}

// CreateMarketPurchase stores the purchase, its items, and the resulting
// inventory updates in a single transaction. A best-effort redis lock keeps
// two clerks from interleaving inventory updates for the same shop; if the
// lock cannot be obtained the DB transaction still serializes correctness.
func CreateMarketPurchase(ctx context.Context, input *NewMarketPurchase) (*MarketPurchase, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	if redisLock := config.GetRedisLock(); redisLock != nil {
		lock, err := redisLock.Obtain(ctx, "lock:market-purchase", 30*time.Second, nil)
		if err == nil {
			defer lock.Release(ctx)
		} else if err != redislock.ErrNotObtained {
			config.LogError(config.GetLogger(), "models", "CreateMarketPurchase", "obtain redis lock", nil, err)
		}
	}

	now := time.Now().UTC()
	purchase := MarketPurchase{
		TotalAmountTaken: input.TotalAmountTaken,
		TotalAmountSpent: decimal.Zero,
		RemainingBalance: input.TotalAmountTaken,
		PurchaseDate:     input.PurchaseDate,
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, utils.NewStorageError("begin purchase transaction", tx.Error)
	}

	if err := tx.Create(&purchase).Error; err != nil {
		tx.Rollback()
		return nil, utils.NewStorageError("create market purchase", err)
	}

	totalSpent := decimal.Zero
	for _, line := range input.Items {
		totalPrice := line.QuantityPurchased.Mul(line.UnitPrice)
		totalSpent = totalSpent.Add(totalPrice)

		item := PurchaseItem{
			MarketPurchaseId:  purchase.ID,
			ItemName:          line.ItemName,
			QuantityPurchased: line.QuantityPurchased,
			UnitPrice:         line.UnitPrice,
			TotalPrice:        totalPrice,
		}
		if err := tx.Create(&item).Error; err != nil {
			tx.Rollback()
			return nil, utils.NewStorageError("create purchase item", err)
		}
		purchase.Items = append(purchase.Items, &item)

		if _, err := applyPurchaseToInventory(tx, line.ItemName, line.QuantityPurchased, line.UnitPrice, now); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	purchase.TotalAmountSpent = totalSpent
	purchase.RemainingBalance = input.TotalAmountTaken.Sub(totalSpent)
	err := tx.Model(&purchase).Updates(map[string]interface{}{
		"TotalAmountSpent": purchase.TotalAmountSpent,
		"RemainingBalance": purchase.RemainingBalance,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, utils.NewStorageError("update purchase totals", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.NewStorageError("commit market purchase", err)
	}

	invalidateInventoryCache()
	return &purchase, nil
}

func GetMarketPurchase(ctx context.Context, id int) (*MarketPurchase, error) {
	db := config.GetDB()

	var result MarketPurchase
	if err := db.WithContext(ctx).Preload("Items").First(&result, id).Error; err != nil {
		return nil, utils.NewNotFoundError("market purchase", id)
	}
	return &result, nil
}

// GetMarketPurchases returns purchases whose purchase_date falls in
// [start, end], newest first, items preloaded.
func GetMarketPurchases(ctx context.Context, start time.Time, end time.Time) ([]*MarketPurchase, error) {
	if end.Before(start) {
		return nil, utils.NewValidationError("end date must not be before start date")
	}

	db := config.GetDB()
	var results []*MarketPurchase
	err := db.WithContext(ctx).
		Preload("Items").
		Where("purchase_date BETWEEN ? AND ?", start, utils.EndOfDay(end)).
		Order("purchase_date DESC").
		Find(&results).Error
	if err != nil {
		return nil, utils.NewStorageError("query market purchases", err)
	}
	return results, nil
}
