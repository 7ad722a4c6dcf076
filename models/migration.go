package models

import (
	"log"

	"bitbucket.org/speantag/bakery_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&DailySale{},
		&MarketPurchase{}, &PurchaseItem{},
		&InventoryItem{}, &InventoryUsage{},
		&ActivityLog{}, &FraudAlert{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
