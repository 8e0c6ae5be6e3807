package consolidate

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/rcliao/stash-manager/internal/model"
)

// MergeStep records one merge the pass performed.
type MergeStep struct {
	GridID   string `json:"grid_id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Units    int    `json:"units"`
}

// Report summarizes a consolidation pass.
type Report struct {
	Simulated bool        `json:"simulated"`
	Folded    []string    `json:"folded,omitempty"`
	Merges    []MergeStep `json:"merges,omitempty"`
}

// Consolidator runs fold and merge passes against a host executor.
type Consolidator struct {
	exec   Executor
	logger *slog.Logger
}

// New creates a Consolidator.
func New(exec Executor, logger *slog.Logger) *Consolidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consolidator{exec: exec, logger: logger}
}

// FoldAll folds every foldable, unfolded item. Smaller grids go first. Folds
// run one at a time and the first failure stops the pass.
func (c *Consolidator) FoldAll(ctx context.Context, grids []model.Grid, simulate bool) (Report, error) {
	report := Report{Simulated: simulate}

	ordered := slices.Clone(grids)
	slices.SortStableFunc(ordered, func(a, b model.Grid) int {
		return cmp.Compare(model.Area(a), model.Area(b))
	})

	for _, g := range ordered {
		for _, it := range g.Items() {
			if it.FoldState() != model.Unfolded {
				continue
			}
			c.logger.Debug("folding item", slog.String("item", it.ID()), slog.String("grid", g.ID()))
			op := Fold(it)
			if err := c.exec.Apply(ctx, op, simulate); err != nil {
				c.logger.Error("error folding items", slog.String("item", it.ID()), slog.String("error", err.Error()))
				return report, &TransactionError{Op: op, Err: err}
			}
			report.Folded = append(report.Folded, it.ID())
		}
	}
	return report, nil
}

// MergeAll combines partial stacks of the same kind and session within each
// grid until at most one partial stack per group remains. Merges already
// applied stay applied when a later one fails.
func (c *Consolidator) MergeAll(ctx context.Context, grids []model.Grid, simulate bool) (Report, error) {
	report := Report{Simulated: simulate}
	for _, g := range grids {
		for _, group := range mergeGroups(g.Items()) {
			steps, err := c.mergeGroup(ctx, g.ID(), group, simulate)
			report.Merges = append(report.Merges, steps...)
			if err != nil {
				c.logger.Error("error merging items", slog.String("grid", g.ID()), slog.String("error", err.Error()))
				return report, err
			}
		}
	}
	return report, nil
}

type groupKey struct {
	kind    string
	session string
}

// mergeGroups groups non-full stacks by kind and session, keeping groups with
// more than one member, in first-seen order.
func mergeGroups(items []model.Item) [][]model.Item {
	index := make(map[groupKey]int)
	var groups [][]model.Item
	for _, it := range items {
		if it.StackCount() >= it.StackCapacity() {
			continue
		}
		k := groupKey{kind: it.KindID(), session: it.SessionTag()}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], it)
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// stack is the engine's view of one group member's count.
type stack struct {
	item  model.Item
	count int
}

func (c *Consolidator) mergeGroup(ctx context.Context, gridID string, members []model.Item, simulate bool) ([]MergeStep, error) {
	stacks := make([]*stack, len(members))
	for i, it := range members {
		stacks[i] = &stack{item: it, count: it.StackCount()}
	}

	var steps []MergeStep
	// Every merge either fills the target or empties the source.
	limit := 2 * len(stacks)
	for iter := 0; ; iter++ {
		candidates := make([]*stack, 0, len(stacks))
		for _, s := range stacks {
			if s.count > 0 {
				candidates = append(candidates, s)
			}
		}
		if len(candidates) <= 1 {
			return steps, nil
		}
		slices.SortStableFunc(candidates, func(a, b *stack) int {
			return cmp.Compare(b.count, a.count)
		})

		var target *stack
		for _, s := range candidates {
			if s.count < s.item.StackCapacity() {
				target = s
				break
			}
		}
		source := candidates[len(candidates)-1]
		if target == nil || source == target {
			return steps, nil
		}
		if iter >= limit {
			return steps, &TransactionError{Op: Merge(source.item, target.item, 0), Err: ErrNoProgress}
		}

		units := min(source.count, target.item.StackCapacity()-target.count)
		c.logger.Debug("merging stacks",
			slog.String("source", source.item.ID()), slog.Int("source_count", source.count),
			slog.String("target", target.item.ID()), slog.Int("target_count", target.count))

		op := Merge(source.item, target.item, units)
		if err := c.exec.Apply(ctx, op, simulate); err != nil {
			return steps, &TransactionError{Op: op, Err: err}
		}
		steps = append(steps, MergeStep{GridID: gridID, SourceID: source.item.ID(), TargetID: target.item.ID(), Units: units})

		if simulate {
			source.count -= units
			target.count += units
			continue
		}
		for _, s := range stacks {
			s.count = s.item.StackCount()
		}
	}
}
