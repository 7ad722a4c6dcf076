package models

import (
	"context"
	"time"

	"bitbucket.org/speantag/bakery_backend/config"
	"bitbucket.org/speantag/bakery_backend/utils"
	"github.com/shopspring/decimal"
)

// DailySale is one counter sale. Immutable once created except for deletion.
type DailySale struct {
	ID           int             `gorm:"primary_key" json:"id"`
	ItemName     string          `gorm:"size:100;not null" json:"item_name" binding:"required"`
	QuantitySold decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_sold"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_amount"`
	SaleDate     time.Time       `gorm:"index;not null" json:"sale_date"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewDailySale struct {
	ItemName     string          `json:"item_name" binding:"required"`
	QuantitySold decimal.Decimal `json:"quantity_sold"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	SaleDate     time.Time       `json:"sale_date" binding:"required"`
}

func (input *NewDailySale) validate() error {
	if input.QuantitySold.IsNegative() {
		return utils.NewValidationError("quantity sold must not be negative")
	}
	if input.UnitPrice.IsNegative() {
		return utils.NewValidationError("unit price must not be negative")
	}
	return nil
}

func CreateDailySale(ctx context.Context, input *NewDailySale) (*DailySale, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	sale := DailySale{
		ItemName:     input.ItemName,
		QuantitySold: input.QuantitySold,
		UnitPrice:    input.UnitPrice,
		TotalAmount:  input.QuantitySold.Mul(input.UnitPrice),
		SaleDate:     input.SaleDate,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&sale).Error; err != nil {
		return nil, utils.NewStorageError("create daily sale", err)
	}
	return &sale, nil
}

func DeleteDailySale(ctx context.Context, id int) (*DailySale, error) {
	db := config.GetDB()

	var result DailySale
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.NewNotFoundError("sale", id)
	}
	if err := db.WithContext(ctx).Delete(&result).Error; err != nil {
		return nil, utils.NewStorageError("delete daily sale", err)
	}
	return &result, nil
}

func GetDailySale(ctx context.Context, id int) (*DailySale, error) {
	db := config.GetDB()

	var result DailySale
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.NewNotFoundError("sale", id)
	}
	return &result, nil
}

// GetDailySales returns sales whose sale_date falls in [start, end], newest first.
func GetDailySales(ctx context.Context, start time.Time, end time.Time) ([]*DailySale, error) {
	if end.Before(start) {
		return nil, utils.NewValidationError("end date must not be before start date")
	}

	db := config.GetDB()
	var results []*DailySale
	err := db.WithContext(ctx).
		Where("sale_date BETWEEN ? AND ?", start, utils.EndOfDay(end)).
		Order("sale_date DESC").
		Find(&results).Error
	if err != nil {
		return nil, utils.NewStorageError("query daily sales", err)
	}
	return results, nil
}
