// Package host is an in-memory inventory that implements the item query
// surface and transaction executor the sorter consumes.
package host

import (
	"github.com/rcliao/stash-manager/internal/model"
)

// Inventory is a root container with one or more grids.
type Inventory struct {
	ID    string
	Owner model.Owner
	Grids []*Grid

	items map[string]*Item
}

// Grid is a rectangular compartment holding items.
type Grid struct {
	id     string
	width  int
	height int
	items  []*Item
	parent *Item
}

// Item is a mutable inventory item.
type Item struct {
	id       string
	kindID   string
	name     string
	category string
	session  string
	count    int
	capacity int
	width    int
	height   int
	weight   float64
	fold     model.FoldState
	grids    []*Grid

	inv  *Inventory
	grid *Grid
}

// ItemSpec describes an item to add to a grid.
type ItemSpec struct {
	ID       string
	KindID   string
	Name     string
	Category string
	Session  string
	Count    int
	Capacity int
	Width    int
	Height   int
	Weight   float64
	Fold     model.FoldState
}

// New creates an empty inventory.
func New(id string, owner model.Owner) *Inventory {
	return &Inventory{ID: id, Owner: owner, items: make(map[string]*Item)}
}

// AddGrid appends a top-level grid.
func (inv *Inventory) AddGrid(id string, width, height int) *Grid {
	g := &Grid{id: id, width: width, height: height}
	inv.Grids = append(inv.Grids, g)
	return g
}

// Add places a new item in grid g. Capacity defaults to max(count, 1).
func (inv *Inventory) Add(g *Grid, spec ItemSpec) *Item {
	it := &Item{
		id:       spec.ID,
		kindID:   spec.KindID,
		name:     spec.Name,
		category: spec.Category,
		session:  spec.Session,
		count:    spec.Count,
		capacity: spec.Capacity,
		width:    max(spec.Width, 1),
		height:   max(spec.Height, 1),
		weight:   spec.Weight,
		fold:     spec.Fold,
		inv:      inv,
		grid:     g,
	}
	if it.capacity < 1 {
		it.capacity = max(it.count, 1)
	}
	g.items = append(g.items, it)
	inv.items[it.id] = it
	return it
}

// AddChildGrid gives an item an internal grid (a backpack compartment, for example).
func (it *Item) AddChildGrid(id string, width, height int) *Grid {
	g := &Grid{id: id, width: width, height: height, parent: it}
	it.grids = append(it.grids, g)
	return g
}

// Find returns the item with the given id anywhere in the inventory.
func (inv *Inventory) Find(id string) (*Item, bool) {
	it, ok := inv.items[id]
	return it, ok
}

// ModelGrids returns the top-level grids as model.Grid values.
func (inv *Inventory) ModelGrids() []model.Grid {
	out := make([]model.Grid, len(inv.Grids))
	for i, g := range inv.Grids {
		out[i] = g
	}
	return out
}

// Items returns top-level items in grid order.
func (inv *Inventory) Items() []model.Item {
	return model.GridItems(inv.ModelGrids())
}

func (inv *Inventory) remove(it *Item) {
	g := it.grid
	for i, x := range g.items {
		if x == it {
			g.items = append(g.items[:i], g.items[i+1:]...)
			break
		}
	}
	delete(inv.items, it.id)
	it.grid = nil
}

func (g *Grid) ID() string  { return g.id }
func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) Items() []model.Item {
	out := make([]model.Item, len(g.items))
	for i, it := range g.items {
		out[i] = it
	}
	return out
}

func (it *Item) ID() string                 { return it.id }
func (it *Item) KindID() string             { return it.kindID }
func (it *Item) Name() string               { return it.name }
func (it *Item) SessionTag() string         { return it.session }
func (it *Item) StackCount() int            { return it.count }
func (it *Item) StackCapacity() int         { return it.capacity }
func (it *Item) CellSize() int              { return it.width * it.height }
func (it *Item) Weight() float64            { return it.weight }
func (it *Item) FoldState() model.FoldState { return it.fold }
func (it *Item) Category() string           { return it.category }

// ContainerSize is the total cell count of the item's internal grids.
func (it *Item) ContainerSize() int {
	n := 0
	for _, g := range it.grids {
		n += g.width * g.height
	}
	return n
}

func (it *Item) Owner() model.Owner {
	if it.inv == nil {
		return model.Owner{}
	}
	return it.inv.Owner
}

// Parent returns the item whose grid holds this one. Items in the
// inventory's own grids have no parent.
func (it *Item) Parent() model.Item {
	if it.grid == nil || it.grid.parent == nil {
		return nil
	}
	return it.grid.parent
}
