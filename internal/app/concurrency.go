package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

// ConcurrencyController bounds how many logical requests are in the
// "doing actual I/O" phase at once. Metadata operations and downloads
// draw from separate semaphores since downloads are bandwidth-heavy.
// Waiters are admitted in FIFO order. The shared HTTP client keeps a
// per-host-capped keep-alive connection pool, bounded independently of
// the logical limits so OS sockets are never exhausted.
type ConcurrencyController struct {
	operations *semaphore.Weighted
	downloads  *semaphore.Weighted
	client     *http.Client
}

// NewConcurrencyController creates a controller from config
func NewConcurrencyController(cfg domain.ConcurrencyConfig) *ConcurrencyController {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
	}
	return &ConcurrencyController{
		operations: semaphore.NewWeighted(int64(cfg.MaxOperations)),
		downloads:  semaphore.NewWeighted(int64(cfg.MaxDownloads)),
		client:     &http.Client{Transport: transport},
	}
}

// RunOperation admits fn into the metadata operation pool, waiting in FIFO
// order for a slot. Cancelling ctx while waiting gives the slot up; the
// slot is always released when fn returns.
func (c *ConcurrencyController) RunOperation(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.operations.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.operations.Release(1)
	return fn(ctx)
}

// RunDownload admits fn into the smaller download pool
func (c *ConcurrencyController) RunDownload(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.downloads.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.downloads.Release(1)
	return fn(ctx)
}

// HTTPClient exposes the pooled client for transports that need it
func (c *ConcurrencyController) HTTPClient() *http.Client {
	return c.client
}

// CloseIdleConnections drops idle pooled connections, used on shutdown
func (c *ConcurrencyController) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}
