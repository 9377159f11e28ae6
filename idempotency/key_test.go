package idempotency

import (
	"strings"
	"testing"

	"newsletter-backend/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{name: "uuid", in: "3f0c5b0e-2a47-4d9e-9c2c-0d8f5b1c7a11"},
		{name: "max length", in: strings.Repeat("k", MaxKeyLength)},
		{name: "multibyte counts runes", in: strings.Repeat("é", MaxKeyLength)},
		{name: "empty", in: "", wantErr: ErrEmptyKey},
		{name: "too long", in: strings.Repeat("k", MaxKeyLength+1), wantErr: ErrKeyTooLong},
		{name: "leading space", in: " abc", wantErr: ErrKeyPadding},
		{name: "trailing newline", in: "abc\n", wantErr: ErrKeyPadding},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, err := ParseKey(tc.in)
			if tc.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, tc.in, key.String())
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
			assert.True(t, apperror.IsValidation(err))
		})
	}
}
