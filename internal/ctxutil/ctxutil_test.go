package ctxutil_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/forge/internal/ctxutil"
)

func TestCanceled(t *testing.T) {
	t.Parallel()

	t.Run("returns nil for active context", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, ctxutil.Canceled(context.Background()))
	})

	t.Run("returns error for canceled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := ctxutil.Canceled(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("returns error for deadline exceeded", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithTimeout(context.Background(), 0)
		defer cancel()
		<-ctx.Done()
		err := ctxutil.Canceled(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}

func TestSleep(t *testing.T) {
	t.Parallel()

	t.Run("elapses full duration", func(t *testing.T) {
		t.Parallel()
		start := time.Now()
		err := ctxutil.Sleep(context.Background(), 20*time.Millisecond)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("interrupted by cancellation", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		err := ctxutil.Sleep(ctx, 5*time.Second)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("zero duration returns immediately", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, ctxutil.Sleep(context.Background(), 0))
	})
}
