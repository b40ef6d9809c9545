package validation

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learncenter/internal/apperr"
)

type sample struct {
	Phone string `json:"phone_number" validate:"required,phone"`
	Count int    `json:"count" validate:"min=1,max=10"`
}

func TestStruct(t *testing.T) {
	v := New()

	require.NoError(t, v.Struct(sample{Phone: "010-1234-5678", Count: 3}))

	err := v.Struct(sample{Phone: "", Count: 11})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	got := map[string]string{}
	for _, f := range appErr.Fields {
		got[f.Field] = f.Error
	}
	assert.Equal(t, "phone_number is required", got["phone_number"])
	assert.Contains(t, got, "count")
}

func TestPhoneTag(t *testing.T) {
	v := New()
	err := v.Struct(sample{Phone: "call me", Count: 1})
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "phone_number must be a phone number", appErr.Fields[0].Error)
}

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"01012345678":       "01012345678",
		" 010-1234-5678 ":   "01012345678",
		"(010) 1234.5678":   "01012345678",
		"+20 10 1234 5678":  "+201012345678",
		"":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}
