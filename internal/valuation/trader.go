package valuation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// SupplyData is what one trader pays for each item kind.
type SupplyData struct {
	TraderID  string
	Prices    map[string]float64
	FetchedAt time.Time
}

// SupplySource fetches a trader's supply data.
type SupplySource interface {
	FetchSupplyData(ctx context.Context, traderID string) (SupplyData, error)
}

// TraderBook keeps the latest supply data per trader.
type TraderBook struct {
	source SupplySource
	logger *slog.Logger
	group  singleflight.Group

	mu     sync.RWMutex
	supply map[string]SupplyData
}

// NewTraderBook creates a trader book backed by source.
func NewTraderBook(source SupplySource, logger *slog.Logger) *TraderBook {
	if logger == nil {
		logger = slog.Default()
	}
	return &TraderBook{
		source: source,
		logger: logger,
		supply: make(map[string]SupplyData),
	}
}

// Update downloads supply data for a trader. Concurrent calls for the same
// trader share one fetch. On failure the previous data is kept.
func (b *TraderBook) Update(ctx context.Context, traderID string) error {
	if b.source == nil {
		return fmt.Errorf("no supply source configured")
	}
	_, err, _ := b.group.Do(traderID, func() (any, error) {
		data, err := b.source.FetchSupplyData(ctx, traderID)
		if err != nil {
			return nil, err
		}
		data.TraderID = traderID
		if data.FetchedAt.IsZero() {
			data.FetchedAt = time.Now()
		}
		b.mu.Lock()
		b.supply[traderID] = data
		b.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		b.logger.Error("failed to download supply data", slog.String("trader", traderID), slog.String("error", err.Error()))
		return fmt.Errorf("supply data %s: %w", traderID, err)
	}
	return nil
}

// Supply returns the stored supply data for a trader.
func (b *TraderBook) Supply(traderID string) (SupplyData, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.supply[traderID]
	return d, ok
}

// TraderPrice returns the best price any known trader pays for kindID.
func (b *TraderBook) TraderPrice(kindID string) (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	best, found := 0.0, false
	for _, d := range b.supply {
		if p, ok := d.Prices[kindID]; ok && (!found || p > best) {
			best, found = p, true
		}
	}
	return best, found
}
