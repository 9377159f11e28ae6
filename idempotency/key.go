package idempotency

import (
	"errors"
	"strings"
	"unicode/utf8"

	"newsletter-backend/apperror"
)

// MaxKeyLength bounds a key in characters.
const MaxKeyLength = 128

var (
	ErrEmptyKey   = errors.New("idempotency key cannot be empty")
	ErrKeyTooLong = errors.New("idempotency key is too long")
	ErrKeyPadding = errors.New("idempotency key has leading or trailing whitespace")
)

// Key is a validated client-supplied idempotency key. It is only unique
// together with the id of the user that sent it.
type Key struct {
	value string
}

// ParseKey validates s. Failures are *apperror.ValidationError.
func ParseKey(s string) (Key, error) {
	switch {
	case s == "":
		return Key{}, apperror.Validation("idempotency_key", s, ErrEmptyKey)
	case utf8.RuneCountInString(s) > MaxKeyLength:
		return Key{}, apperror.Validation("idempotency_key", s, ErrKeyTooLong)
	case strings.TrimSpace(s) != s:
		return Key{}, apperror.Validation("idempotency_key", s, ErrKeyPadding)
	}
	return Key{value: strings.Clone(s)}, nil
}

func (k Key) String() string { return k.value }
