package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rcliao/stash-manager/internal/consolidate"
	"github.com/rcliao/stash-manager/internal/journal"
	"github.com/rcliao/stash-manager/internal/model"
)

var (
	ErrItemNotFound = errors.New("item not found")
	ErrNotFoldable  = errors.New("item cannot be folded")
	ErrIncompatible = errors.New("stacks are not compatible")
	ErrStackFull    = errors.New("target stack is full")
)

// Recorder receives one entry per accepted transaction.
type Recorder interface {
	Append(journal.Entry) error
}

// Executor applies fold and merge transactions to an Inventory.
type Executor struct {
	inv    *Inventory
	rec    Recorder
	logger *slog.Logger

	mu sync.Mutex
}

var _ consolidate.Executor = (*Executor)(nil)

// NewExecutor creates an Executor. rec may be nil.
func NewExecutor(inv *Inventory, rec Recorder, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{inv: inv, rec: rec, logger: logger}
}

// Apply validates op and, unless simulate is set, commits it.
func (e *Executor) Apply(ctx context.Context, op consolidate.Operation, simulate bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var entry journal.Entry
	switch op.Kind {
	case consolidate.OpFold:
		it, err := e.lookup(op.Item)
		if err != nil {
			return err
		}
		if it.fold != model.Unfolded {
			return fmt.Errorf("%s is %s: %w", it.id, it.fold, ErrNotFoldable)
		}
		if !simulate {
			it.fold = model.Folded
		}
		entry = journal.Entry{Op: op.Kind.String(), Item: it.id}

	case consolidate.OpMerge:
		units, err := e.merge(op, simulate)
		if err != nil {
			return err
		}
		entry = journal.Entry{Op: op.Kind.String(), Source: op.Source.ID(), Target: op.Target.ID(), Units: units}

	default:
		return fmt.Errorf("unknown operation %d", op.Kind)
	}

	entry.Simulated = simulate
	e.record(entry)
	return nil
}

func (e *Executor) merge(op consolidate.Operation, simulate bool) (int, error) {
	src, err := e.lookup(op.Source)
	if err != nil {
		return 0, err
	}
	dst, err := e.lookup(op.Target)
	if err != nil {
		return 0, err
	}
	if src == dst || src.kindID != dst.kindID || src.session != dst.session {
		return 0, fmt.Errorf("%s into %s: %w", src.id, dst.id, ErrIncompatible)
	}
	room := dst.capacity - dst.count
	if room <= 0 {
		return 0, fmt.Errorf("%s: %w", dst.id, ErrStackFull)
	}

	units := min(src.count, room)
	if simulate {
		return units, nil
	}
	dst.count += units
	src.count -= units
	if src.count == 0 {
		e.inv.remove(src)
	}
	return units, nil
}

func (e *Executor) lookup(ref model.Item) (*Item, error) {
	if ref == nil {
		return nil, ErrItemNotFound
	}
	it, ok := e.inv.Find(ref.ID())
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref.ID(), ErrItemNotFound)
	}
	return it, nil
}

// record never fails the transaction. A journal error is only logged.
func (e *Executor) record(entry journal.Entry) {
	if e.rec == nil {
		return
	}
	if err := e.rec.Append(entry); err != nil {
		e.logger.Warn("journal append failed", slog.String("op", entry.Op), slog.String("error", err.Error()))
	}
}
