package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SubscriptionPending   = "pending_confirmation"
	SubscriptionConfirmed = "confirmed"
)

type Subscription struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Email        string    `json:"email" gorm:"size:320;uniqueIndex;not null"`
	Name         string    `json:"name" gorm:"not null"`
	SubscribedAt time.Time `json:"subscribed_at" gorm:"not null"`
	Status       string    `json:"status" gorm:"size:32;index;not null"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SubscribedAt.IsZero() {
		s.SubscribedAt = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = SubscriptionPending
	}
	return
}
