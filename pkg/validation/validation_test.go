package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "qrpass/pkg/domain-errors"
)

type sampleRequest struct {
	Name   string `json:"name" validate:"required,notblank,min=2"`
	Mobile string `json:"mobile" validate:"required,mobile"`
	Days   int    `json:"expiry_days" validate:"min=1,max=90"`
}

func TestValidate(t *testing.T) {
	t.Run("valid request", func(t *testing.T) {
		require.NoError(t, Validate(sampleRequest{Name: "Asha", Mobile: "9876543210", Days: 7}))
	})

	tests := []struct {
		name string
		req  sampleRequest
		want string
	}{
		{"missing name", sampleRequest{Mobile: "9876543210", Days: 7}, "name is required"},
		{"short mobile", sampleRequest{Name: "Asha", Mobile: "98765", Days: 7}, "mobile must be exactly 10 digits"},
		{"letters in mobile", sampleRequest{Name: "Asha", Mobile: "98765abcde", Days: 7}, "mobile must be exactly 10 digits"},
		{"days too large", sampleRequest{Name: "Asha", Mobile: "9876543210", Days: 91}, "expiry_days must be at most 90"},
		{"days zero", sampleRequest{Name: "Asha", Mobile: "9876543210", Days: 0}, "expiry_days must be at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestIsMobile(t *testing.T) {
	assert.True(t, IsMobile("0123456789"))
	assert.False(t, IsMobile("012345678"))
	assert.False(t, IsMobile("01234567890"))
	assert.False(t, IsMobile("+123456789"))
	assert.False(t, IsMobile(""))
}
