package models

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// PasswordCost is the bcrypt work factor for stored admin passwords.
const PasswordCost = 12

// User is an admin allowed to publish newsletter issues. Its Id scopes the
// idempotency keys it submits.
type User struct {
	Id           string `json:"id" gorm:"primaryKey;size:36"`
	Username     string `json:"username" gorm:"size:128;uniqueIndex;not null"`
	PasswordHash []byte `json:"-" gorm:"not null"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.Id == "" {
		user.Id = uuid.NewString()
	}
	return
}

func (user *User) SetPassword(password string) error {
	return user.SetPasswordWithCost(password, PasswordCost)
}

func (user *User) SetPasswordWithCost(password string, cost int) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}
	user.PasswordHash = hashed
	return nil
}

func (user *User) ComparePassword(password string) error {
	return bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password))
}
