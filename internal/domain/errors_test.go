package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeHelpers(t *testing.T) {
	t.Run("is_code_matches_wrapped_errors", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", ErrInsufficientBalance)
		assert.True(t, IsCode(err, ErrorCodeInsufficientBalance))
		assert.False(t, IsCode(err, ErrorCodeIntentNotFound))
	})

	t.Run("code_of_plain_error_is_empty", func(t *testing.T) {
		assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	})

	t.Run("wrap_error_preserves_cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := WrapError(ErrorCodeProviderTimeout, "provider call failed", cause)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, ErrorCodeProviderTimeout, CodeOf(err))
	})

	t.Run("with_detail_returns_same_error", func(t *testing.T) {
		err := NewError(ErrorCodeRefundExceedsAmount, "too much").
			WithDetail("requested", int64(500)).
			WithDetail("remaining", int64(100))
		assert.Equal(t, int64(500), err.Details["requested"])
		assert.Equal(t, int64(100), err.Details["remaining"])
	})
}

func TestErrorClassification(t *testing.T) {
	t.Run("not_found", func(t *testing.T) {
		assert.True(t, IsNotFound(ErrIntentNotFound))
		assert.True(t, IsNotFound(ErrRefundNotFound))
		assert.True(t, IsNotFound(ErrPayoutNotFound))
		assert.True(t, IsNotFound(ErrStoreNotFound))
		assert.False(t, IsNotFound(ErrInsufficientBalance))
	})

	t.Run("business_rejection", func(t *testing.T) {
		assert.True(t, IsBusinessRejection(ErrRefundExceedsAmount))
		assert.True(t, IsBusinessRejection(ErrPayoutExceedsDailyCap))
		assert.True(t, IsBusinessRejection(ErrReadOnlyModeEnabled))
		assert.False(t, IsBusinessRejection(ErrLedgerUnbalanced))
		assert.False(t, IsBusinessRejection(ErrOptimisticLockConflict))
	})

	t.Run("retryable", func(t *testing.T) {
		assert.True(t, IsRetryable(ErrOptimisticLockConflict))
		assert.False(t, IsRetryable(ErrIdempotencyConflict))
		assert.False(t, IsRetryable(ErrInsufficientBalance))
	})
}
