// seed-admin creates or updates the admin console user.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	ADMIN_USERNAME=bakeryAdmin ADMIN_PASSWORD=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/speantag/bakery_backend/config"
	"bitbucket.org/speantag/bakery_backend/models"
	"bitbucket.org/speantag/bakery_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultAdminUsername = "bakeryAdmin"
	defaultAdminName     = "Bakery Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = defaultAdminUsername
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD is required")
		os.Exit(1)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Where("username = ?", username).Take(&existing).Error
	switch err {
	case nil:
		err = db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"Password": string(hashed),
			"Role":     models.UserRoleAdmin,
			"IsActive": utils.NewTrue(),
		}).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("updated admin user %q (id=%d)\n", username, existing.ID)
	case gorm.ErrRecordNotFound:
		admin := models.User{
			Username: username,
			Name:     defaultAdminName,
			Password: string(hashed),
			IsActive: utils.NewTrue(),
			Role:     models.UserRoleAdmin,
		}
		if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created admin user %q (id=%d)\n", username, admin.ID)
	default:
		fmt.Fprintf(os.Stderr, "failed to lookup admin user: %v\n", err)
		os.Exit(1)
	}
}
