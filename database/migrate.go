package database

import (
	"fmt"

	"newsletter-backend/models"

	"gorm.io/gorm"
)

// Migrate creates or updates every table the backend owns. AutoMigrate is
// non-destructive, so running it on each start is safe.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Subscription{},
		&models.IdempotencyRecord{},
		&models.NewsletterIssue{},
		&models.IssueDeliveryQueueItem{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}
