package email

import (
	"errors"

	"newsletter-backend/apperror"

	"github.com/go-playground/validator/v10"
)

var (
	validate = validator.New()

	ErrInvalidAddress = errors.New("not a valid email address")
)

// Address is a syntactically valid email address.
type Address struct {
	value string
}

// ParseAddress validates s. Failures are *apperror.ValidationError.
func ParseAddress(s string) (Address, error) {
	if err := validate.Var(s, "required,email,max=320"); err != nil {
		return Address{}, apperror.Validation("email", s, ErrInvalidAddress)
	}
	return Address{value: s}, nil
}

func (a Address) String() string { return a.value }
