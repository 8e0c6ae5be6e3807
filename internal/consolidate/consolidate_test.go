package consolidate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/rcliao/stash-manager/internal/model"
)

type fakeItem struct {
	id      string
	kind    string
	session string
	count   int
	cap     int
	fold    model.FoldState
}

func (i *fakeItem) ID() string                 { return i.id }
func (i *fakeItem) KindID() string             { return i.kind }
func (i *fakeItem) SessionTag() string         { return i.session }
func (i *fakeItem) StackCount() int            { return i.count }
func (i *fakeItem) StackCapacity() int         { return i.cap }
func (i *fakeItem) ContainerSize() int         { return 0 }
func (i *fakeItem) CellSize() int              { return 1 }
func (i *fakeItem) Weight() float64            { return 0 }
func (i *fakeItem) FoldState() model.FoldState { return i.fold }
func (i *fakeItem) Category() string           { return "" }
func (i *fakeItem) Owner() model.Owner         { return model.Owner{} }
func (i *fakeItem) Parent() model.Item         { return nil }

type fakeGrid struct {
	id    string
	w, h  int
	items []*fakeItem
}

func (g *fakeGrid) ID() string  { return g.id }
func (g *fakeGrid) Width() int  { return g.w }
func (g *fakeGrid) Height() int { return g.h }
func (g *fakeGrid) Items() []model.Item {
	out := make([]model.Item, len(g.items))
	for i, it := range g.items {
		out[i] = it
	}
	return out
}

// fakeHost applies operations to fakeItems and records them.
type fakeHost struct {
	applied []string
	failOn  func(op Operation) error
	inert   bool
}

func (h *fakeHost) Apply(ctx context.Context, op Operation, simulate bool) error {
	if h.failOn != nil {
		if err := h.failOn(op); err != nil {
			return err
		}
	}
	h.applied = append(h.applied, op.String())
	if simulate || h.inert {
		return nil
	}
	switch op.Kind {
	case OpFold:
		op.Item.(*fakeItem).fold = model.Folded
	case OpMerge:
		src, dst := op.Source.(*fakeItem), op.Target.(*fakeItem)
		n := min(src.count, dst.cap-dst.count)
		src.count -= n
		dst.count += n
	}
	return nil
}

func newTestConsolidator(exec Executor) *Consolidator {
	return New(exec, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func grids(gs ...*fakeGrid) []model.Grid {
	out := make([]model.Grid, len(gs))
	for i, g := range gs {
		out[i] = g
	}
	return out
}

func TestMergeAmmoScenario(t *testing.T) {
	a := &fakeItem{id: "A", kind: "ammo", count: 10, cap: 30}
	b := &fakeItem{id: "B", kind: "ammo", count: 5, cap: 30}
	g := &fakeGrid{id: "g1", w: 10, h: 10, items: []*fakeItem{a, b}}
	host := &fakeHost{}

	report, err := newTestConsolidator(host).MergeAll(context.Background(), grids(g), false)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if a.count != 15 || b.count != 0 {
		t.Errorf("expected A=15 B=0, got A=%d B=%d", a.count, b.count)
	}
	want := []MergeStep{{GridID: "g1", SourceID: "B", TargetID: "A", Units: 5}}
	if !slices.Equal(report.Merges, want) {
		t.Errorf("expected %v, got %v", want, report.Merges)
	}
}

func TestMergeSimulateLeavesStateAndTerminates(t *testing.T) {
	items := []*fakeItem{
		{id: "1", kind: "ammo", count: 20, cap: 30},
		{id: "2", kind: "ammo", count: 20, cap: 30},
		{id: "3", kind: "ammo", count: 5, cap: 30},
	}
	g := &fakeGrid{id: "g", w: 4, h: 4, items: items}
	host := &fakeHost{}

	report, err := newTestConsolidator(host).MergeAll(context.Background(), grids(g), true)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !report.Simulated {
		t.Error("expected simulated report")
	}
	if items[0].count != 20 || items[1].count != 20 || items[2].count != 5 {
		t.Errorf("simulate mutated state: %d %d %d", items[0].count, items[1].count, items[2].count)
	}
	// 5 from #3 into #1, then 5 from #2 tops #1 up.
	want := []MergeStep{
		{GridID: "g", SourceID: "3", TargetID: "1", Units: 5},
		{GridID: "g", SourceID: "2", TargetID: "1", Units: 5},
	}
	if !slices.Equal(report.Merges, want) {
		t.Errorf("expected %v, got %v", want, report.Merges)
	}
}

func TestMergeTerminatesWithOnePartialStackPerGroup(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		cap    int
	}{
		{"two partial", []int{1, 1}, 10},
		{"many small", []int{3, 3, 3, 3, 3, 3, 3}, 5},
		{"mixed", []int{9, 1, 7, 2, 8, 4}, 10},
		{"with empties", []int{0, 4, 0, 6, 3}, 6},
		{"single unit caps", []int{1, 1, 1}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items []*fakeItem
			total := 0
			for i, c := range tt.counts {
				items = append(items, &fakeItem{id: fmt.Sprint(i), kind: "k", count: c, cap: tt.cap})
				total += c
			}
			g := &fakeGrid{id: "g", w: 8, h: 8, items: items}

			if _, err := newTestConsolidator(&fakeHost{}).MergeAll(context.Background(), grids(g), false); err != nil {
				t.Fatalf("merge: %v", err)
			}

			partial, after := 0, 0
			for _, it := range items {
				after += it.count
				if it.count > 0 && it.count < it.cap {
					partial++
				}
			}
			if partial > 1 {
				t.Errorf("expected at most one partial stack, got %d", partial)
			}
			if after != total {
				t.Errorf("units not conserved: %d -> %d", total, after)
			}
		})
	}
}

func TestMergeRespectsSessionAndFullStacks(t *testing.T) {
	items := []*fakeItem{
		{id: "raid", kind: "ammo", session: "s1", count: 5, cap: 30},
		{id: "stash", kind: "ammo", session: "s2", count: 5, cap: 30},
		{id: "full", kind: "ammo", session: "s1", count: 30, cap: 30},
		{id: "other", kind: "meds", session: "s1", count: 1, cap: 5},
	}
	g := &fakeGrid{id: "g", w: 4, h: 4, items: items}
	host := &fakeHost{}

	report, err := newTestConsolidator(host).MergeAll(context.Background(), grids(g), false)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(report.Merges) != 0 || len(host.applied) != 0 {
		t.Errorf("expected no merges, got %v", host.applied)
	}
}

func TestMergeGridsAreIndependent(t *testing.T) {
	g1 := &fakeGrid{id: "g1", w: 2, h: 2, items: []*fakeItem{{id: "a", kind: "k", count: 1, cap: 10}}}
	g2 := &fakeGrid{id: "g2", w: 2, h: 2, items: []*fakeItem{{id: "b", kind: "k", count: 1, cap: 10}}}

	report, err := newTestConsolidator(&fakeHost{}).MergeAll(context.Background(), grids(g1, g2), false)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(report.Merges) != 0 {
		t.Errorf("stacks in different grids must not merge: %v", report.Merges)
	}
}

func TestMergeErrorAbortsPassKeepingAppliedMerges(t *testing.T) {
	g1 := &fakeGrid{id: "g1", w: 2, h: 2, items: []*fakeItem{
		{id: "a1", kind: "k", count: 4, cap: 10},
		{id: "a2", kind: "k", count: 2, cap: 10},
	}}
	g2 := &fakeGrid{id: "g2", w: 2, h: 2, items: []*fakeItem{
		{id: "b1", kind: "k", count: 4, cap: 10},
		{id: "b2", kind: "k", count: 2, cap: 10},
	}}
	g3 := &fakeGrid{id: "g3", w: 2, h: 2, items: []*fakeItem{
		{id: "c1", kind: "k", count: 4, cap: 10},
		{id: "c2", kind: "k", count: 2, cap: 10},
	}}
	rejected := errors.New("rejected by server")
	host := &fakeHost{failOn: func(op Operation) error {
		if op.Kind == OpMerge && op.Source.ID() == "b2" {
			return rejected
		}
		return nil
	}}

	report, err := newTestConsolidator(host).MergeAll(context.Background(), grids(g1, g2, g3), false)
	var txErr *TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("expected TransactionError, got %v", err)
	}
	if !errors.Is(err, rejected) || txErr.Op.Source.ID() != "b2" {
		t.Errorf("unexpected error %v", err)
	}
	if g1.items[0].count != 6 {
		t.Errorf("first merge should stay committed, got %d", g1.items[0].count)
	}
	if g3.items[0].count != 4 {
		t.Errorf("grid after the failure must not be touched, got %d", g3.items[0].count)
	}
	if len(report.Merges) != 1 {
		t.Errorf("expected 1 recorded merge, got %v", report.Merges)
	}
}

func TestMergeDetectsHostWithoutProgress(t *testing.T) {
	g := &fakeGrid{id: "g", w: 2, h: 2, items: []*fakeItem{
		{id: "a", kind: "k", count: 4, cap: 10},
		{id: "b", kind: "k", count: 2, cap: 10},
	}}

	_, err := newTestConsolidator(&fakeHost{inert: true}).MergeAll(context.Background(), grids(g), false)
	if !errors.Is(err, ErrNoProgress) {
		t.Fatalf("expected ErrNoProgress, got %v", err)
	}
}

func TestFoldOrderAndSkips(t *testing.T) {
	big := &fakeGrid{id: "big", w: 10, h: 10, items: []*fakeItem{
		{id: "rifle", fold: model.Unfolded},
		{id: "box", fold: model.NotFoldable},
	}}
	small := &fakeGrid{id: "small", w: 2, h: 2, items: []*fakeItem{
		{id: "smg", fold: model.Unfolded},
		{id: "pistol", fold: model.Folded},
	}}
	host := &fakeHost{}

	report, err := newTestConsolidator(host).FoldAll(context.Background(), grids(big, small), false)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if !slices.Equal(report.Folded, []string{"smg", "rifle"}) {
		t.Errorf("expected smallest grid first, got %v", report.Folded)
	}

	report, err = newTestConsolidator(host).FoldAll(context.Background(), grids(big, small), false)
	if err != nil {
		t.Fatalf("second fold: %v", err)
	}
	if len(report.Folded) != 0 {
		t.Errorf("second pass should fold nothing, got %v", report.Folded)
	}
}

func TestFoldSimulateDoesNotMutate(t *testing.T) {
	rifle := &fakeItem{id: "rifle", fold: model.Unfolded}
	g := &fakeGrid{id: "g", w: 4, h: 4, items: []*fakeItem{rifle}}

	report, err := newTestConsolidator(&fakeHost{}).FoldAll(context.Background(), grids(g), true)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if rifle.fold != model.Unfolded || len(report.Folded) != 1 {
		t.Errorf("simulate should report without folding: state=%v report=%v", rifle.fold, report.Folded)
	}
}

func TestFoldErrorStopsPass(t *testing.T) {
	g := &fakeGrid{id: "g", w: 4, h: 4, items: []*fakeItem{
		{id: "a", fold: model.Unfolded},
		{id: "b", fold: model.Unfolded},
		{id: "c", fold: model.Unfolded},
	}}
	host := &fakeHost{failOn: func(op Operation) error {
		if op.Item.ID() == "b" {
			return errors.New("jammed")
		}
		return nil
	}}

	report, err := newTestConsolidator(host).FoldAll(context.Background(), grids(g), false)
	var txErr *TransactionError
	if !errors.As(err, &txErr) || txErr.Op.Kind != OpFold {
		t.Fatalf("expected fold TransactionError, got %v", err)
	}
	if !slices.Equal(report.Folded, []string{"a"}) {
		t.Errorf("expected only a folded, got %v", report.Folded)
	}
	if g.items[2].fold != model.Unfolded {
		t.Error("items after the failure must not be folded")
	}
}
