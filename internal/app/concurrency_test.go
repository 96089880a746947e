package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

func testConcurrencyConfig(ops, downloads int) domain.ConcurrencyConfig {
	return domain.ConcurrencyConfig{
		MaxOperations:   ops,
		MaxDownloads:    downloads,
		MaxConnsPerHost: 2,
		IdleConnTimeout: time.Second,
	}
}

func TestController_BoundsConcurrentOperations(t *testing.T) {
	c := NewConcurrencyController(testConcurrencyConfig(2, 1))

	var current, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.RunOperation(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&current, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestController_CancelledWaiterGivesUpSlot(t *testing.T) {
	c := NewConcurrencyController(testConcurrencyConfig(2, 1))

	holding := make(chan struct{})
	release := make(chan struct{})
	go c.RunDownload(context.Background(), func(ctx context.Context) error {
		close(holding)
		<-release
		return nil
	})
	<-holding

	// The pool is full; a cancelled waiter must error out without running
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := c.RunDownload(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, ran)

	// Releasing the holder frees the slot for the next caller
	close(release)
	err = c.RunDownload(context.Background(), func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestController_SlotReleasedOnPanicFreeError(t *testing.T) {
	c := NewConcurrencyController(testConcurrencyConfig(1, 1))

	for i := 0; i < 3; i++ {
		err := c.RunOperation(context.Background(), func(ctx context.Context) error {
			return context.DeadlineExceeded
		})
		assert.Error(t, err)
	}
}

func TestController_SharedHTTPClient(t *testing.T) {
	c := NewConcurrencyController(testConcurrencyConfig(1, 1))
	require.NotNil(t, c.HTTPClient())
	assert.Same(t, c.HTTPClient(), c.HTTPClient())
	c.CloseIdleConnections()
}
