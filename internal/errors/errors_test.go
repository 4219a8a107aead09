package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := NotFound("session not found")
		assert.Equal(t, "session not found", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := stderrors.New("connection refused")
		err := Wrap(cause, ErrCodeInternal, "lookup failed")
		assert.Equal(t, "lookup failed: connection refused", err.Error())
	})
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := Wrap(cause, ErrCodeConflict, "duplicate")

	require.ErrorIs(t, err, cause)
	assert.Nil(t, NotFound("x").Unwrap())
}

func TestWrap_NilCause(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing happened"))
}

func TestValidationf(t *testing.T) {
	err := Validationf("code must be %d digits", 6)
	assert.Equal(t, ErrCodeValidation, err.Code)
	assert.Equal(t, "code must be 6 digits", err.Message)
}

func TestPredicates(t *testing.T) {
	conflict := Wrap(stderrors.New("dup"), ErrCodeConflict, "already exists")
	timeout := Wrap(stderrors.New("slow"), ErrCodeTimeout, "took too long")

	tests := []struct {
		name string
		err  error
		fn   func(error) bool
		want bool
	}{
		{"not found matches", NotFound("x"), IsNotFound, true},
		{"not found rejects other code", Internal("x"), IsNotFound, false},
		{"conflict matches", conflict, IsConflict, true},
		{"validation matches", Validationf("x"), IsValidation, true},
		{"timeout matches", timeout, IsTimeout, true},
		{"plain error never matches", stderrors.New("x"), IsNotFound, false},
		{"nil never matches", nil, IsNotFound, false},
		{"wrapped app error matches", fmt.Errorf("outer: %w", NotFound("x")), IsNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.err))
		})
	}
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, GetCode(NotFound("x")))
	assert.Equal(t, ErrorCode(""), GetCode(stderrors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetCode(nil))
}
