package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions(maxRetries int) Options {
	return Options{MaxRetries: maxRetries, BaseDelay: time.Millisecond}
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("Always Failing Makes MaxRetries Plus One Attempts", func(t *testing.T) {
		attempts := 0
		_, err := Do(ctx, fastOptions(3), func(context.Context) (int, error) {
			attempts++
			return 0, errors.New("boom")
		}, nil)

		require.Error(t, err)
		assert.Equal(t, 4, attempts)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("Satisfied Condition Stops After One Attempt", func(t *testing.T) {
		attempts := 0
		result, err := Do(ctx, fastOptions(5), func(context.Context) (string, error) {
			attempts++
			return "ready", nil
		}, func(s string) bool { return false })

		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
		assert.Equal(t, "ready", result)
	})

	t.Run("Retries While Condition Holds", func(t *testing.T) {
		attempts := 0
		result, err := Do(ctx, fastOptions(5), func(context.Context) (*string, error) {
			attempts++
			if attempts < 3 {
				return nil, nil
			}
			s := "found"
			return &s, nil
		}, func(s *string) bool { return s == nil })

		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
		require.NotNil(t, result)
		assert.Equal(t, "found", *result)
	})

	t.Run("Budget Exhausted With Unsatisfactory Result Returns Last Result", func(t *testing.T) {
		attempts := 0
		result, err := Do(ctx, fastOptions(2), func(context.Context) (*string, error) {
			attempts++
			return nil, nil
		}, func(s *string) bool { return s == nil })

		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.Nil(t, result)
	})

	t.Run("Error Then Success Recovers", func(t *testing.T) {
		attempts := 0
		result, err := Do(ctx, fastOptions(3), func(context.Context) (int, error) {
			attempts++
			if attempts == 1 {
				return 0, errors.New("transient")
			}
			return 42, nil
		}, nil)

		require.NoError(t, err)
		assert.Equal(t, 2, attempts)
		assert.Equal(t, 42, result)
	})

	t.Run("Invalid Options", func(t *testing.T) {
		_, err := Do(ctx, Options{MaxRetries: -1, BaseDelay: time.Millisecond}, func(context.Context) (int, error) {
			return 0, nil
		}, nil)
		assert.Error(t, err)

		_, err = Do(ctx, Options{MaxRetries: 1}, func(context.Context) (int, error) {
			return 0, nil
		}, nil)
		assert.Error(t, err)
	})

	t.Run("Cancelled Context Stops Retrying", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		attempts := 0
		_, err := Do(cancelCtx, Options{MaxRetries: 5, BaseDelay: time.Hour}, func(context.Context) (int, error) {
			attempts++
			cancel()
			return 0, errors.New("boom")
		}, nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})
}
