package host

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/rcliao/stash-manager/internal/model"
)

const schemaURL = "https://stash-manager.local/inventory.schema.json"

//go:embed schema/inventory.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Snapshot is the JSON form of an inventory.
type Snapshot struct {
	ID    string     `json:"id"`
	Owner *OwnerJSON `json:"owner,omitempty"`
	Grids []GridJSON `json:"grids"`
}

type OwnerJSON struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type GridJSON struct {
	ID     string     `json:"id"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Items  []ItemJSON `json:"items,omitempty"`
}

type ItemJSON struct {
	ID       string     `json:"id"`
	KindID   string     `json:"kind_id"`
	Name     string     `json:"name,omitempty"`
	Category string     `json:"category,omitempty"`
	Session  string     `json:"session,omitempty"`
	Count    int        `json:"count"`
	Capacity int        `json:"capacity,omitempty"`
	Width    int        `json:"width,omitempty"`
	Height   int        `json:"height,omitempty"`
	Weight   float64    `json:"weight,omitempty"`
	Fold     string     `json:"fold,omitempty"`
	Grids    []GridJSON `json:"grids,omitempty"`
}

// Load reads and validates an inventory snapshot.
func Load(r io.Reader) (*Inventory, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse inventory: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid inventory: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse inventory: %w", err)
	}
	return FromSnapshot(snap)
}

// FromSnapshot builds an inventory. Item ids must be unique across all grids.
func FromSnapshot(snap Snapshot) (*Inventory, error) {
	var owner model.Owner
	if snap.Owner != nil {
		owner = model.Owner{ID: snap.Owner.ID, Type: model.ParseOwnerType(snap.Owner.Type)}
	}
	inv := New(snap.ID, owner)
	for _, gj := range snap.Grids {
		g := inv.AddGrid(gj.ID, gj.Width, gj.Height)
		if err := inv.fill(g, gj.Items); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

func (inv *Inventory) fill(g *Grid, items []ItemJSON) error {
	for _, ij := range items {
		if _, dup := inv.items[ij.ID]; dup {
			return fmt.Errorf("duplicate item id %q", ij.ID)
		}
		it := inv.Add(g, ItemSpec{
			ID:       ij.ID,
			KindID:   ij.KindID,
			Name:     ij.Name,
			Category: ij.Category,
			Session:  ij.Session,
			Count:    ij.Count,
			Capacity: ij.Capacity,
			Width:    ij.Width,
			Height:   ij.Height,
			Weight:   ij.Weight,
			Fold:     model.ParseFoldState(ij.Fold),
		})
		for _, cj := range ij.Grids {
			child := it.AddChildGrid(cj.ID, cj.Width, cj.Height)
			if err := inv.fill(child, cj.Items); err != nil {
				return err
			}
		}
	}
	return nil
}

// Snapshot returns the JSON form of the inventory's current state.
func (inv *Inventory) Snapshot() Snapshot {
	snap := Snapshot{ID: inv.ID, Grids: make([]GridJSON, 0, len(inv.Grids))}
	if inv.Owner != (model.Owner{}) {
		snap.Owner = &OwnerJSON{ID: inv.Owner.ID, Type: inv.Owner.Type.String()}
	}
	for _, g := range inv.Grids {
		snap.Grids = append(snap.Grids, g.snapshot())
	}
	return snap
}

func (g *Grid) snapshot() GridJSON {
	gj := GridJSON{ID: g.id, Width: g.width, Height: g.height}
	for _, it := range g.items {
		ij := ItemJSON{
			ID:       it.id,
			KindID:   it.kindID,
			Name:     it.name,
			Category: it.category,
			Session:  it.session,
			Count:    it.count,
			Capacity: it.capacity,
			Width:    it.width,
			Height:   it.height,
			Weight:   it.weight,
		}
		if it.fold != model.NotFoldable {
			ij.Fold = it.fold.String()
		}
		for _, child := range it.grids {
			ij.Grids = append(ij.Grids, child.snapshot())
		}
		gj.Items = append(gj.Items, ij)
	}
	return gj
}

// Encode writes the inventory as indented JSON.
func (inv *Inventory) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(inv.Snapshot())
}
