package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsMatchByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", conflictError("already friends"))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "already friends", PublicMessage(err))
}

func TestStorageErrorsHideCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := storageError("append message", cause)

	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "internal error", PublicMessage(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestForeignErrorsCountAsStorage(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindStorage, KindOf(err))
	assert.Equal(t, "internal error", PublicMessage(err))
}
