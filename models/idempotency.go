package models

import "time"

// IdempotencyRecord caches the response produced for one (user, key) pair.
// The composite primary key arbitrates concurrent claims. A row whose
// response columns are NULL is still being processed by the transaction
// that inserted it. Headers are kept as the opaque bytes produced by the
// store's header codec.
type IdempotencyRecord struct {
	UserID             string    `gorm:"primaryKey;size:36"`
	IdempotencyKey     string    `gorm:"primaryKey;size:128"`
	ResponseStatusCode *int      `gorm:"column:response_status_code"`
	ResponseHeaders    []byte    `gorm:"column:response_headers"`
	ResponseBody       []byte    `gorm:"column:response_body"`
	CreatedAt          time.Time `gorm:"not null"`
}

func (IdempotencyRecord) TableName() string { return "idempotency" }

// Completed reports whether the response columns have been populated.
func (r IdempotencyRecord) Completed() bool {
	return r.ResponseStatusCode != nil
}
