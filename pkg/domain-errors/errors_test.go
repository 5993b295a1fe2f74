package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeDuplicateStudy, "study already registered")
		assert.True(t, HasCode(err, CodeDuplicateStudy))
		assert.False(t, HasCode(err, CodeStudyNotFound))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("register: %w", New(CodeDuplicateStudy, "study already registered"))
		assert.True(t, HasCode(err, CodeDuplicateStudy))
	})

	t.Run("matches inner code of nested domain errors", func(t *testing.T) {
		inner := New(CodeInsufficientBalance, "insufficient balance")
		outer := Wrap(inner, CodeExternalTransferFailed, "token transfer failed")
		assert.True(t, HasCode(outer, CodeExternalTransferFailed))
		assert.True(t, HasCode(outer, CodeInsufficientBalance))
		assert.Equal(t, CodeExternalTransferFailed, CodeOf(outer))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "nothing"))

	cause := errors.New("connection refused")
	err := Wrap(cause, CodeExternalTransferFailed, "token transfer failed")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "token transfer failed: connection refused", err.Error())
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeLengthMismatch:         http.StatusBadRequest,
		CodeStudyNotFound:          http.StatusNotFound,
		CodeDuplicateStudy:         http.StatusConflict,
		CodeInsufficientBalance:    http.StatusUnprocessableEntity,
		CodePayloadTooLarge:        http.StatusRequestEntityTooLarge,
		CodeExternalTransferFailed: http.StatusBadGateway,
		CodeUnauthorized:           http.StatusUnauthorized,
		Code("unknown"):            http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}
