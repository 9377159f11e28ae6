// Package newsletter records issues and their pending deliveries. Everything
// is written through the caller's transaction so an issue and its queue rows
// appear atomically with whatever else that transaction commits.
package newsletter

import (
	"context"

	"newsletter-backend/apperror"
	"newsletter-backend/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const queueBatchSize = 500

// Content is the body of an issue.
type Content struct {
	Title string
	Text  string
	HTML  string
}

type Publisher struct {
	recipients RecipientProvider
	logger     *zap.Logger
}

// NewPublisher returns a Publisher that snapshots recipients with rp. A nil
// logger disables logging.
func NewPublisher(rp RecipientProvider, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{recipients: rp, logger: logger}
}

// PublishToConfirmed snapshots the current recipients inside tx and
// publishes content to them.
func (p *Publisher) PublishToConfirmed(ctx context.Context, tx *gorm.DB, content Content) (string, error) {
	recipients, err := p.recipients.Recipients(ctx, tx)
	if err != nil {
		return "", err
	}
	return p.PublishIssue(ctx, tx, content, recipients)
}

// PublishIssue inserts the issue and one queue row per distinct recipient.
// It does not commit; a failure leaves tx to be rolled back by the caller.
func (p *Publisher) PublishIssue(ctx context.Context, tx *gorm.DB, content Content, recipients []string) (string, error) {
	tx = tx.WithContext(ctx)

	issue := models.NewsletterIssue{
		Title:       content.Title,
		TextContent: content.Text,
		HTMLContent: content.HTML,
	}
	if err := tx.Create(&issue).Error; err != nil {
		return "", apperror.Storage("insert newsletter issue", err)
	}

	items := make([]models.IssueDeliveryQueueItem, 0, len(recipients))
	seen := make(map[string]struct{}, len(recipients))
	for _, email := range recipients {
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		items = append(items, models.IssueDeliveryQueueItem{
			NewsletterIssueID: issue.ID,
			SubscriberEmail:   email,
		})
	}

	if len(items) > 0 {
		if err := tx.CreateInBatches(&items, queueBatchSize).Error; err != nil {
			return "", apperror.Storage("enqueue delivery tasks", err)
		}
	}

	p.logger.Info("newsletter issue recorded",
		zap.String("newsletter_issue_id", issue.ID),
		zap.Int("recipients", len(items)))
	return issue.ID, nil
}
