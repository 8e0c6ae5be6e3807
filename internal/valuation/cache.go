// Package valuation caches externally fetched item prices.
package valuation

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrNoData is returned by a source that has no price for a kind.
var ErrNoData = errors.New("no price data")

// State is the lifecycle state of one cache entry.
type State int

const (
	Unknown State = iota
	Pending
	Failed
	Known
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Failed:
		return "failed"
	case Known:
		return "known"
	default:
		return "unknown"
	}
}

// Entry is the cached valuation of one kind id.
type Entry struct {
	State     State
	Value     float64
	UpdatedAt time.Time
}

// PriceSource fetches the unit market price of an item kind.
type PriceSource interface {
	FetchPrice(ctx context.Context, kindID string) (float64, error)
}

// PriceSourceFunc adapts a function to PriceSource.
type PriceSourceFunc func(ctx context.Context, kindID string) (float64, error)

func (f PriceSourceFunc) FetchPrice(ctx context.Context, kindID string) (float64, error) {
	return f(ctx, kindID)
}

// Options tunes refresh behavior. Zero values disable each gate.
type Options struct {
	// FetchTimeout bounds a single fetch.
	FetchTimeout time.Duration
	// MaxConcurrent limits parallel fetches within one batch.
	MaxConcurrent int
	// MinInterval drops refresh requests arriving this soon after the last batch started.
	MinInterval time.Duration
	// StaleAfter makes Known entries eligible for re-fetch once they are this old.
	StaleAfter time.Duration
	// FailedRetryAfter delays retries of Failed entries.
	FailedRetryAfter time.Duration
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		FetchTimeout:  10 * time.Second,
		MaxConcurrent: 8,
	}
}

// Cache holds unit prices keyed by kind id. Reads never block on the
// network; RequestRefresh fills the cache in the background.
type Cache struct {
	source PriceSource
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry

	busy      atomic.Bool
	batchMu   sync.Mutex
	lastBatch time.Time
	inflight  sync.WaitGroup
}

// NewCache creates a cache backed by source.
func NewCache(source PriceSource, opts Options, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		source:  source,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
}

// Read returns the unit price of kindID when it is known.
func (c *Cache) Read(kindID string) (float64, bool) {
	c.mu.RLock()
	e, ok := c.entries[kindID]
	c.mu.RUnlock()
	if !ok || e.State != Known {
		return 0, false
	}
	return e.Value, true
}

// Entry returns the current entry for kindID. Missing ids report Unknown.
func (c *Cache) Entry(kindID string) Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[kindID]
}

// Len returns the number of tracked kind ids.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Busy reports whether a refresh batch is running.
func (c *Cache) Busy() bool {
	return c.busy.Load()
}

// RequestRefresh starts fetching prices for kindIDs in the background and
// returns immediately. It returns false when the request was dropped because
// a batch is already running, the batch interval gate is closed, or no id
// needed fetching. Cancelling ctx does not stop a started batch.
func (c *Cache) RequestRefresh(ctx context.Context, kindIDs []string) bool {
	if c.source == nil || len(kindIDs) == 0 {
		return false
	}
	if !c.busy.CompareAndSwap(false, true) {
		c.logger.Debug("price refresh already running, request dropped")
		return false
	}

	now := c.now()
	c.batchMu.Lock()
	gated := c.opts.MinInterval > 0 && !c.lastBatch.IsZero() && now.Sub(c.lastBatch) < c.opts.MinInterval
	c.batchMu.Unlock()
	if gated {
		c.busy.Store(false)
		return false
	}

	ids := c.claim(kindIDs, now)
	if len(ids) == 0 {
		c.busy.Store(false)
		return false
	}
	c.batchMu.Lock()
	c.lastBatch = now
	c.batchMu.Unlock()

	c.logger.Debug("price refresh started", slog.Int("kinds", len(ids)))
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer c.busy.Store(false)
		c.fetchAll(context.WithoutCancel(ctx), ids)
	}()
	return true
}

// Wait blocks until the running refresh batch, if any, has finished.
func (c *Cache) Wait() {
	c.inflight.Wait()
}

// claim moves every eligible id to Pending and returns them.
func (c *Cache) claim(kindIDs []string, now time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool, len(kindIDs))
	ids := make([]string, 0, len(kindIDs))
	for _, id := range kindIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if !c.eligible(c.entries[id], now) {
			continue
		}
		c.entries[id] = Entry{State: Pending, UpdatedAt: now}
		ids = append(ids, id)
	}
	return ids
}

func (c *Cache) eligible(e Entry, now time.Time) bool {
	switch e.State {
	case Unknown:
		return true
	case Pending:
		return false
	case Failed:
		return c.opts.FailedRetryAfter <= 0 || now.Sub(e.UpdatedAt) >= c.opts.FailedRetryAfter
	case Known:
		return c.opts.StaleAfter > 0 && now.Sub(e.UpdatedAt) >= c.opts.StaleAfter
	}
	return false
}

func (c *Cache) fetchAll(ctx context.Context, ids []string) {
	var g errgroup.Group
	if c.opts.MaxConcurrent > 0 {
		g.SetLimit(c.opts.MaxConcurrent)
	}
	for _, id := range ids {
		g.Go(func() error {
			c.fetchOne(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Cache) fetchOne(ctx context.Context, kindID string) {
	if c.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.FetchTimeout)
		defer cancel()
	}

	value, err := c.source.FetchPrice(ctx, kindID)
	if err == nil && (value < 0 || math.IsNaN(value) || math.IsInf(value, 0)) {
		err = errors.New("invalid price value")
	}

	entry := Entry{State: Known, Value: value, UpdatedAt: c.now()}
	if err != nil {
		c.logger.Warn("price fetch failed", slog.String("kind", kindID), slog.String("error", err.Error()))
		entry = Entry{State: Failed, UpdatedAt: c.now()}
	}

	c.mu.Lock()
	c.entries[kindID] = entry
	c.mu.Unlock()
}
