// Package model defines the inventory types the sorter reads from its host.
package model

import "strings"

// FoldState describes whether an item can collapse to a compact form.
type FoldState int

const (
	NotFoldable FoldState = iota
	Unfolded
	Folded
)

func (s FoldState) String() string {
	switch s {
	case Unfolded:
		return "unfolded"
	case Folded:
		return "folded"
	default:
		return "none"
	}
}

// ParseFoldState maps a snapshot string to a FoldState. Unknown values are NotFoldable.
func ParseFoldState(s string) FoldState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unfolded":
		return Unfolded
	case "folded":
		return Folded
	default:
		return NotFoldable
	}
}

// OwnerType classifies who owns the container an item lives in.
type OwnerType int

const (
	OwnerOther OwnerType = iota
	OwnerStash
	OwnerPlayer
	OwnerTrader
)

func (o OwnerType) String() string {
	switch o {
	case OwnerStash:
		return "stash"
	case OwnerPlayer:
		return "player"
	case OwnerTrader:
		return "trader"
	default:
		return "other"
	}
}

// ParseOwnerType maps a snapshot string to an OwnerType.
func ParseOwnerType(s string) OwnerType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stash":
		return OwnerStash
	case "player":
		return OwnerPlayer
	case "trader":
		return OwnerTrader
	default:
		return OwnerOther
	}
}

// Item is a handle to an inventory item owned by the host. The sorter only
// reads it; mutations go through the host's transaction executor.
type Item interface {
	ID() string
	// KindID is shared by every instance of the same item definition.
	KindID() string
	// SessionTag separates items acquired in different sessions. Items with
	// different tags never merge.
	SessionTag() string
	StackCount() int
	StackCapacity() int
	// ContainerSize is the number of cells inside the item's own grids.
	ContainerSize() int
	// CellSize is the number of cells the item occupies in its parent grid.
	CellSize() int
	Weight() float64
	FoldState() FoldState
	// Category is the taxonomy key used by the item-kind criterion.
	Category() string
	Owner() Owner
	// Parent returns the item that contains this one, or nil at the root.
	Parent() Item
}

// Owner identifies the owner of an item's container.
type Owner struct {
	ID   string    `json:"id"`
	Type OwnerType `json:"type"`
}

// Grid is one rectangular compartment of a container.
type Grid interface {
	ID() string
	Width() int
	Height() int
	Items() []Item
}

// Area returns the number of cells in a grid.
func Area(g Grid) int {
	return g.Width() * g.Height()
}
