package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewsletterIssue is immutable once created.
type NewsletterIssue struct {
	ID          string    `json:"id" gorm:"column:newsletter_issue_id;primaryKey;size:36"`
	Title       string    `json:"title" gorm:"not null"`
	TextContent string    `json:"text_content" gorm:"type:text;not null"`
	HTMLContent string    `json:"html_content" gorm:"column:html_content;type:text;not null"`
	PublishedAt time.Time `json:"published_at" gorm:"not null"`
}

func (issue *NewsletterIssue) BeforeCreate(tx *gorm.DB) (err error) {
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	if issue.PublishedAt.IsZero() {
		issue.PublishedAt = time.Now().UTC()
	}
	return
}

// IssueDeliveryQueueItem is a pending (issue, recipient) delivery. The row
// exists until a worker has attempted the send.
type IssueDeliveryQueueItem struct {
	NewsletterIssueID string `gorm:"primaryKey;size:36"`
	SubscriberEmail   string `gorm:"primaryKey;size:320"`
}

func (IssueDeliveryQueueItem) TableName() string { return "issue_delivery_queue" }
