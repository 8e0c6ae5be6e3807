// Package manager ties valuation, consolidation and ranking into the sort
// workflow the host triggers.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rcliao/stash-manager/internal/config"
	"github.com/rcliao/stash-manager/internal/consolidate"
	"github.com/rcliao/stash-manager/internal/model"
	"github.com/rcliao/stash-manager/internal/ranking"
	"github.com/rcliao/stash-manager/internal/valuation"
)

// ErrDisabled is returned by Sort when sorting is switched off.
var ErrDisabled = errors.New("sorting is disabled")

// Result is the outcome of one Sort call.
type Result struct {
	Simulated      bool                    `json:"simulated"`
	RefreshStarted bool                    `json:"refresh_started"`
	Folded         []string                `json:"folded,omitempty"`
	Merges         []consolidate.MergeStep `json:"merges,omitempty"`
}

// Manager is the entry point the host calls when the player sorts a container.
type Manager struct {
	settings config.Sorting
	rankCfg  ranking.Config
	tax      ranking.Taxonomy

	cache   *valuation.Cache
	traders *valuation.TraderBook
	cons    *consolidate.Consolidator
	logger  *slog.Logger

	active atomic.Bool
	quick  atomic.Pointer[ranking.Config]
}

// New creates a Manager. cache and traders may be nil when no price source
// is configured; value criteria then rank every item as zero.
func New(settings config.Sorting, cache *valuation.Cache, traders *valuation.TraderBook, exec consolidate.Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		settings: settings,
		rankCfg:  settings.Ranking(),
		tax:      settings.Taxonomy(),
		cache:    cache,
		traders:  traders,
		cons:     consolidate.New(exec, logger),
		logger:   logger,
	}
}

// RequestValuationRefresh starts a background market price refresh for the
// items' kinds. It returns false when no refresh was started.
func (m *Manager) RequestValuationRefresh(ctx context.Context, items []model.Item) bool {
	if m.cache == nil {
		return false
	}
	kinds := model.KindIDs(items)
	if len(kinds) == 0 {
		return false
	}
	started := m.cache.RequestRefresh(ctx, kinds)
	m.logger.Debug("valuation refresh requested", slog.Int("kinds", len(kinds)), slog.Bool("started", started))
	return started
}

// Sort refreshes valuations in the background, then folds and merges as
// configured. On success the display hook starts ranking until Finish.
func (m *Manager) Sort(ctx context.Context, grids []model.Grid, simulate bool) (Result, error) {
	res := Result{Simulated: simulate}
	if !m.settings.Enabled {
		return res, ErrDisabled
	}
	res.RefreshStarted = m.RequestValuationRefresh(ctx, model.GridItems(grids))

	if m.settings.FoldItems {
		rep, err := m.cons.FoldAll(ctx, grids, simulate)
		res.Folded = rep.Folded
		if err != nil {
			return res, fmt.Errorf("fold: %w", err)
		}
	}
	if m.settings.MergeItems {
		rep, err := m.cons.MergeAll(ctx, grids, simulate)
		res.Merges = rep.Merges
		if err != nil {
			return res, fmt.Errorf("merge: %w", err)
		}
	}

	m.active.Store(true)
	m.logger.Info("sort prepared",
		slog.Bool("simulate", simulate),
		slog.Int("folded", len(res.Folded)),
		slog.Int("merges", len(res.Merges)))
	return res, nil
}

// QuickSort runs Sort with only key enabled, descending. The configured
// criteria apply again once the sort finishes or fails.
func (m *Manager) QuickSort(ctx context.Context, grids []model.Grid, key ranking.Key, simulate bool) (Result, error) {
	preset := m.rankCfg.Only(key)
	m.quick.Store(&preset)
	res, err := m.Sort(ctx, grids, simulate)
	if err != nil {
		m.quick.Store(nil)
	}
	return res, err
}

// Finish ends the sort started by Sort or QuickSort.
func (m *Manager) Finish() {
	m.active.Store(false)
	m.quick.Store(nil)
}

// RankConfig returns the ranking configuration in effect.
func (m *Manager) RankConfig() ranking.Config {
	if q := m.quick.Load(); q != nil {
		return *q
	}
	return m.rankCfg
}

// Active reports whether a sort is in progress.
func (m *Manager) Active() bool {
	return m.active.Load()
}

// Rank is the display hook. It orders items while a sort is active, or for
// trader windows when trader sorting is on; otherwise it returns items as is.
func (m *Manager) Rank(items []model.Item) []model.Item {
	if len(items) == 0 {
		return items
	}
	switch {
	case m.active.Load():
	case m.settings.SortTraders && model.InTrader(items[0]):
	default:
		return items
	}
	return ranking.Rank(items, m.RankConfig().For(items), m.View(), m.tax)
}

// View returns the valuation snapshot ranking reads from.
func (m *Manager) View() valuation.View {
	return valuation.View{Market: m.cache, Traders: m.traders}
}

// RefreshTraders updates supply data for each trader. Every trader is tried;
// the returned error joins the individual failures.
func (m *Manager) RefreshTraders(ctx context.Context, traderIDs []string) (int, error) {
	if m.traders == nil {
		return 0, errors.New("no trader source configured")
	}
	var errs []error
	ok := 0
	for _, id := range traderIDs {
		if err := m.traders.Update(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		ok++
	}
	return ok, errors.Join(errs...)
}

// Wait blocks until a background valuation refresh has finished.
func (m *Manager) Wait() {
	if m.cache != nil {
		m.cache.Wait()
	}
}
