package newsletter

import (
	"context"

	"newsletter-backend/apperror"
	"newsletter-backend/models"

	"gorm.io/gorm"
)

// RecipientProvider returns the addresses an issue is published to. It is
// read through the publishing transaction, so the result is the snapshot the
// queue rows are created from.
type RecipientProvider interface {
	Recipients(ctx context.Context, tx *gorm.DB) ([]string, error)
}

// ConfirmedSubscribers selects every subscription that completed
// confirmation. Addresses are returned as stored; they are validated when
// the delivery is attempted.
type ConfirmedSubscribers struct{}

func (ConfirmedSubscribers) Recipients(ctx context.Context, tx *gorm.DB) ([]string, error) {
	var emails []string
	err := tx.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status = ?", models.SubscriptionConfirmed).
		Order("email").
		Pluck("email", &emails).Error
	if err != nil {
		return nil, apperror.Storage("select confirmed subscribers", err)
	}
	return emails, nil
}
