// Package consolidate saves grid space by folding items and merging partial stacks.
package consolidate

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcliao/stash-manager/internal/model"
)

// ErrNoProgress is returned when the host accepts a merge but the stack
// counts it reports do not move toward a fixed point.
var ErrNoProgress = errors.New("merge made no progress")

// OpKind distinguishes transaction types.
type OpKind int

const (
	OpFold OpKind = iota
	OpMerge
)

func (k OpKind) String() string {
	if k == OpMerge {
		return "merge"
	}
	return "fold"
}

// Operation is one mutation requested from the host.
type Operation struct {
	Kind OpKind
	// Item is the fold target.
	Item model.Item
	// Source and Target are the merge stacks. Units is how many units the
	// engine expects to move.
	Source model.Item
	Target model.Item
	Units  int
}

// Fold builds a fold operation.
func Fold(item model.Item) Operation {
	return Operation{Kind: OpFold, Item: item}
}

// Merge builds a transfer-or-merge operation.
func Merge(source, target model.Item, units int) Operation {
	return Operation{Kind: OpMerge, Source: source, Target: target, Units: units}
}

func (op Operation) String() string {
	if op.Kind == OpMerge {
		return fmt.Sprintf("merge %d of %s into %s", op.Units, itemID(op.Source), itemID(op.Target))
	}
	return fmt.Sprintf("fold %s", itemID(op.Item))
}

func itemID(it model.Item) string {
	if it == nil {
		return "<nil>"
	}
	return it.ID()
}

// Executor applies operations through the host's transaction layer. When
// simulate is set the host validates and computes the result without
// committing it.
type Executor interface {
	Apply(ctx context.Context, op Operation, simulate bool) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, op Operation, simulate bool) error

func (f ExecutorFunc) Apply(ctx context.Context, op Operation, simulate bool) error {
	return f(ctx, op, simulate)
}

// TransactionError reports a mutation the host rejected.
type TransactionError struct {
	Op  Operation
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
