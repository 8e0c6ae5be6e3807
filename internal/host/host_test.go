package host

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/rcliao/stash-manager/internal/consolidate"
	"github.com/rcliao/stash-manager/internal/journal"
	"github.com/rcliao/stash-manager/internal/model"
)

const stashJSON = `{
  "id": "stash",
  "owner": {"id": "hideout", "type": "stash"},
  "grids": [
    {"id": "main", "width": 10, "height": 4, "items": [
      {"id": "ammoA", "kind_id": "545", "category": "ammo", "count": 10, "capacity": 30},
      {"id": "bag", "kind_id": "bp1", "category": "backpack", "width": 3, "height": 3, "fold": "unfolded",
       "grids": [{"id": "bag-main", "width": 4, "height": 5, "items": [
         {"id": "inner", "kind_id": "med", "count": 1}
       ]}]},
      {"id": "ammoB", "kind_id": "545", "category": "ammo", "count": 5, "capacity": 30}
    ]}
  ]
}`

type memRecorder struct {
	entries []journal.Entry
	err     error
}

func (r *memRecorder) Append(e journal.Entry) error {
	r.entries = append(r.entries, e)
	return r.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadStash(t *testing.T) *Inventory {
	t.Helper()
	inv, err := Load(strings.NewReader(stashJSON))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return inv
}

func TestLoadBuildsTree(t *testing.T) {
	inv := loadStash(t)

	bag, ok := inv.Find("bag")
	if !ok {
		t.Fatal("bag not found")
	}
	if bag.ContainerSize() != 20 || bag.CellSize() != 9 || bag.FoldState() != model.Unfolded {
		t.Errorf("unexpected bag %d %d %v", bag.ContainerSize(), bag.CellSize(), bag.FoldState())
	}

	inner, ok := inv.Find("inner")
	if !ok {
		t.Fatal("inner not found")
	}
	if inner.Parent() == nil || inner.Parent().ID() != "bag" {
		t.Errorf("expected inner to be parented by bag, got %v", inner.Parent())
	}
	if !model.InStash(inner) {
		t.Error("expected inner to be in the stash")
	}
	if inner.StackCapacity() != 1 {
		t.Errorf("expected default capacity 1, got %d", inner.StackCapacity())
	}
	if got := len(inv.Items()); got != 3 {
		t.Errorf("expected 3 top-level items, got %d", got)
	}
}

func TestLoadRejectsInvalidSnapshot(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing grids", `{"id":"x"}`},
		{"zero width", `{"id":"x","grids":[{"id":"g","width":0,"height":1}]}`},
		{"negative count", `{"id":"x","grids":[{"id":"g","width":1,"height":1,"items":[{"id":"i","kind_id":"k","count":-1}]}]}`},
		{"bad fold", `{"id":"x","grids":[{"id":"g","width":1,"height":1,"items":[{"id":"i","kind_id":"k","fold":"maybe"}]}]}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	doc := `{"id":"x","grids":[{"id":"g","width":2,"height":1,"items":[
	  {"id":"i","kind_id":"k"},{"id":"i","kind_id":"k"}]}]}`
	if _, err := Load(strings.NewReader(doc)); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate id error, got %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	inv := loadStash(t)
	var buf bytes.Buffer
	if err := inv.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	again, err := Load(&buf)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Owner != inv.Owner {
		t.Errorf("owner changed: %+v", again.Owner)
	}
	if _, ok := again.Find("inner"); !ok {
		t.Error("nested item lost")
	}
}

func TestExecutorMergeAmmoScenario(t *testing.T) {
	inv := loadStash(t)
	rec := &memRecorder{}
	c := consolidate.New(NewExecutor(inv, rec, quietLogger()), quietLogger())

	report, err := c.MergeAll(context.Background(), inv.ModelGrids(), false)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	a, _ := inv.Find("ammoA")
	if a.StackCount() != 15 {
		t.Errorf("expected ammoA at 15, got %d", a.StackCount())
	}
	if _, ok := inv.Find("ammoB"); ok {
		t.Error("expected empty ammoB to be removed")
	}
	if len(report.Merges) != 1 || report.Merges[0].Units != 5 {
		t.Errorf("unexpected merges %+v", report.Merges)
	}
	if len(rec.entries) != 1 || rec.entries[0].Op != "merge" || rec.entries[0].Simulated {
		t.Errorf("unexpected journal %+v", rec.entries)
	}
}

func TestExecutorSimulateDoesNotMutate(t *testing.T) {
	inv := loadStash(t)
	rec := &memRecorder{}
	exec := NewExecutor(inv, rec, quietLogger())
	c := consolidate.New(exec, quietLogger())

	if _, err := c.FoldAll(context.Background(), inv.ModelGrids(), true); err != nil {
		t.Fatalf("fold: %v", err)
	}
	if _, err := c.MergeAll(context.Background(), inv.ModelGrids(), true); err != nil {
		t.Fatalf("merge: %v", err)
	}

	a, _ := inv.Find("ammoA")
	b, ok := inv.Find("ammoB")
	bag, _ := inv.Find("bag")
	if a.StackCount() != 10 || !ok || b.StackCount() != 5 || bag.FoldState() != model.Unfolded {
		t.Error("simulation mutated the inventory")
	}
	for _, e := range rec.entries {
		if !e.Simulated {
			t.Errorf("expected simulated entry, got %+v", e)
		}
	}
}

func TestExecutorFold(t *testing.T) {
	inv := loadStash(t)
	exec := NewExecutor(inv, nil, quietLogger())
	bag, _ := inv.Find("bag")

	if err := exec.Apply(context.Background(), consolidate.Fold(bag), false); err != nil {
		t.Fatalf("fold: %v", err)
	}
	if bag.FoldState() != model.Folded {
		t.Errorf("expected folded, got %v", bag.FoldState())
	}
	err := exec.Apply(context.Background(), consolidate.Fold(bag), false)
	if !errors.Is(err, ErrNotFoldable) {
		t.Errorf("expected ErrNotFoldable on second fold, got %v", err)
	}
}

func TestExecutorRejectsBadMerges(t *testing.T) {
	inv := New("x", model.Owner{})
	g := inv.AddGrid("g", 4, 1)
	full := inv.Add(g, ItemSpec{ID: "full", KindID: "k", Count: 30, Capacity: 30})
	part := inv.Add(g, ItemSpec{ID: "part", KindID: "k", Count: 3, Capacity: 30})
	other := inv.Add(g, ItemSpec{ID: "other", KindID: "j", Count: 3, Capacity: 30})
	fir := inv.Add(g, ItemSpec{ID: "fir", KindID: "k", Session: "raid", Count: 3, Capacity: 30})
	exec := NewExecutor(inv, nil, quietLogger())
	ctx := context.Background()

	if err := exec.Apply(ctx, consolidate.Merge(part, full, 3), false); !errors.Is(err, ErrStackFull) {
		t.Errorf("expected ErrStackFull, got %v", err)
	}
	if err := exec.Apply(ctx, consolidate.Merge(other, part, 3), false); !errors.Is(err, ErrIncompatible) {
		t.Errorf("expected ErrIncompatible for kinds, got %v", err)
	}
	if err := exec.Apply(ctx, consolidate.Merge(fir, part, 3), false); !errors.Is(err, ErrIncompatible) {
		t.Errorf("expected ErrIncompatible for sessions, got %v", err)
	}
	if err := exec.Apply(ctx, consolidate.Merge(part, part, 3), false); !errors.Is(err, ErrIncompatible) {
		t.Errorf("expected ErrIncompatible for self merge, got %v", err)
	}

	ghost := &Item{id: "ghost"}
	if err := exec.Apply(ctx, consolidate.Merge(ghost, part, 1), false); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestExecutorJournalFailureIsNotFatal(t *testing.T) {
	inv := loadStash(t)
	rec := &memRecorder{err: errors.New("disk full")}
	exec := NewExecutor(inv, rec, quietLogger())
	bag, _ := inv.Find("bag")

	if err := exec.Apply(context.Background(), consolidate.Fold(bag), false); err != nil {
		t.Fatalf("expected fold to succeed, got %v", err)
	}
	if bag.FoldState() != model.Folded {
		t.Error("expected fold to be committed")
	}
}

func TestExecutorHonorsCancelledContext(t *testing.T) {
	inv := loadStash(t)
	exec := NewExecutor(inv, nil, quietLogger())
	bag, _ := inv.Find("bag")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := exec.Apply(ctx, consolidate.Fold(bag), false); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
