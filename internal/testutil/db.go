// Package testutil builds isolated fixtures for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"newsletter-backend/config"
	"newsletter-backend/database"
	"newsletter-backend/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// NewDB returns a migrated SQLite database private to t. The pool is limited
// to one connection, so code under test must do all work inside an open
// transaction through that transaction.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(config.DatabaseSettings{
		Driver:       "sqlite",
		DSN:          path + "?_busy_timeout=5000",
		MaxOpenConns: 1,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// AddSubscriber inserts a subscription with the given status.
func AddSubscriber(t *testing.T, db *gorm.DB, email, status string) models.Subscription {
	t.Helper()
	sub := models.Subscription{Email: email, Name: email, Status: status}
	require.NoError(t, db.Create(&sub).Error)
	return sub
}

// AddAdmin inserts a user with a cheap password hash.
func AddAdmin(t *testing.T, db *gorm.DB, username, password string) models.User {
	t.Helper()
	user := models.User{Username: username}
	require.NoError(t, user.SetPasswordWithCost(password, bcrypt.MinCost))
	require.NoError(t, db.Create(&user).Error)
	return user
}

// QueueLen counts pending deliveries.
func QueueLen(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.IssueDeliveryQueueItem{}).Count(&n).Error)
	return n
}

// IssueCount counts stored newsletter issues.
func IssueCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.NewsletterIssue{}).Count(&n).Error)
	return n
}
