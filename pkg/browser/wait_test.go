package browser

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitFor_Immediate(t *testing.T) {
	err := waitFor(context.Background(), time.Second, time.Millisecond, func() bool { return true })
	assert.NoError(t, err)
}

func TestWaitFor_Eventually(t *testing.T) {
	var calls atomic.Int32
	err := waitFor(context.Background(), time.Second, time.Millisecond, func() bool {
		return calls.Add(1) >= 3
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestWaitFor_Timeout(t *testing.T) {
	err := waitFor(context.Background(), 20*time.Millisecond, 5*time.Millisecond, func() bool { return false })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestWaitFor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := waitFor(ctx, time.Second, 5*time.Millisecond, func() bool { return false })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMillis(t *testing.T) {
	assert.Equal(t, 9000.0, *millis(9*time.Second))
	assert.Equal(t, 100.0, *millis(100*time.Millisecond))
}
