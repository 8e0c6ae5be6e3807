package cli

import (
	"context"
	"io"
	"os"

	"github.com/rcliao/stash-manager/internal/host"
	"github.com/rcliao/stash-manager/internal/journal"
	"github.com/rcliao/stash-manager/internal/manager"
	"github.com/rcliao/stash-manager/internal/pricefeed"
	"github.com/rcliao/stash-manager/internal/valuation"
)

type priceSources interface {
	valuation.PriceSource
	valuation.SupplySource
	io.Closer
}

// openSources connects to the configured price source.
func openSources(ctx context.Context) (priceSources, error) {
	if cfg.Prices.Source == "ws" {
		return pricefeed.Dial(ctx, cfg.Prices.WSURL, logger)
	}
	return openStore()
}

// openInventory loads a snapshot from path, or stdin when path is "-".
func openInventory(path string) (*host.Inventory, error) {
	if path == "-" {
		return host.Load(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return host.Load(f)
}

// saveInventory writes the snapshot to path; "-" means stdout and "" skips.
func saveInventory(path string, inv *host.Inventory) error {
	switch path {
	case "":
		return nil
	case "-":
		return inv.Encode(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := inv.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// openRecorder returns the journal writer, or nil when no journal dir is set.
func openRecorder() (host.Recorder, func()) {
	if cfg.Journal.Dir == "" {
		return nil, func() {}
	}
	w := journal.NewWriter(cfg.Journal.Dir, cfg.Journal.Prefix)
	return w, func() {
		if err := w.Close(); err != nil {
			logger.Warn("close journal", "error", err)
		}
	}
}

// session bundles everything a sort, rank or consolidate command needs.
type session struct {
	inv     *host.Inventory
	exec    *host.Executor
	mgr     *manager.Manager
	cleanup []func()
}

func (s *session) Close() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
	s.cleanup = nil
}

// keepPartial saves the snapshot, prints the report and closes the session.
// A pass that fails partway has no rollback, so whatever it applied is kept.
func keepPartial(out string, sess *session, report any) {
	if err := saveInventory(out, sess.inv); err != nil {
		logger.Warn("write inventory", "error", err)
	}
	if out != "-" {
		printJSON(report)
	}
	sess.Close()
}

func openSession(ctx context.Context, inventoryPath string) *session {
	inv, err := openInventory(inventoryPath)
	if err != nil {
		exitErr("load inventory", err)
	}
	s := &session{inv: inv}

	rec, closeRec := openRecorder()
	s.cleanup = append(s.cleanup, closeRec)
	s.exec = host.NewExecutor(inv, rec, logger)

	src, err := openSources(ctx)
	if err != nil {
		// Sorting still works without prices; value criteria rank as zero.
		logger.Warn("price source unavailable", "source", cfg.Prices.Source, "error", err)
		s.mgr = manager.New(cfg.Sorting, nil, nil, s.exec, logger)
		return s
	}
	s.cleanup = append(s.cleanup, func() { src.Close() })

	cache := valuation.NewCache(src, cfg.Valuation.Options(), logger)
	traders := valuation.NewTraderBook(src, logger)
	s.mgr = manager.New(cfg.Sorting, cache, traders, s.exec, logger)
	return s
}
