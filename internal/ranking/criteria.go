// Package ranking orders inventory items by a chain of weighted criteria.
package ranking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/stash-manager/internal/model"
)

// ErrUnknownKey is returned when a criterion key cannot be parsed.
var ErrUnknownKey = errors.New("unknown criterion key")

// Key selects the item attribute a criterion sorts by.
type Key int

const (
	ContainerSize Key = iota
	ItemKind
	CellOrWeight
	TraderValue
	MarketValue
)

var keyNames = []string{
	ContainerSize: "container_size",
	ItemKind:      "item_kind",
	CellOrWeight:  "cell_or_weight",
	TraderValue:   "trader_value",
	MarketValue:   "market_value",
}

func (k Key) String() string {
	if k < 0 || int(k) >= len(keyNames) {
		return fmt.Sprintf("key(%d)", int(k))
	}
	return keyNames[k]
}

// ParseKey accepts the snake_case names plus a few aliases used by older configs.
func ParseKey(s string) (Key, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "container_size", "containersize":
		return ContainerSize, nil
	case "item_kind", "itemkind", "item_type", "itemtype":
		return ItemKind, nil
	case "cell_or_weight", "cellorweight", "cell_size", "cellsize", "weight":
		return CellOrWeight, nil
	case "trader_value", "tradervalue", "value":
		return TraderValue, nil
	case "market_value", "marketvalue", "flea_value", "fleavalue":
		return MarketValue, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKey, s)
}

// Criterion is one sort axis.
type Criterion struct {
	Key        Key
	Enabled    bool
	Descending bool
}

// Config is an ordered criteria chain plus global modifiers. Earlier criteria
// take priority; later ones only break ties.
type Config struct {
	Criteria      []Criterion
	FlipDirection bool
	// SkipRows leaves the first SkipRows*RowWidth items in place.
	SkipRows int
	// RowWidth is the host's item count per visual row. Values below 1 mean 1.
	RowWidth int
	// UseCellCount makes CellOrWeight read cell count instead of weight.
	UseCellCount bool
}

// Enabled returns the enabled criteria in priority order.
func (c Config) Enabled() []Criterion {
	out := make([]Criterion, 0, len(c.Criteria))
	for _, cr := range c.Criteria {
		if cr.Enabled {
			out = append(out, cr)
		}
	}
	return out
}

// Only returns a copy of c with every criterion disabled except key, which is
// enabled and descending. CellOrWeight reads weight. c is not modified.
func (c Config) Only(key Key) Config {
	out := c
	out.Criteria = make([]Criterion, 0, len(c.Criteria)+1)
	found := false
	for _, cr := range c.Criteria {
		cr.Enabled = cr.Key == key
		if cr.Enabled {
			cr.Descending = true
			found = true
		}
		out.Criteria = append(out.Criteria, cr)
	}
	if !found {
		out.Criteria = append(out.Criteria, Criterion{Key: key, Enabled: true, Descending: true})
	}
	if key == CellOrWeight {
		out.UseCellCount = false
	}
	return out
}

// For returns c adjusted to where items are shown. Skip rows only applies
// inside the player stash.
func (c Config) For(items []model.Item) Config {
	if len(items) == 0 || !model.InStash(items[0]) {
		c.SkipRows = 0
	}
	return c
}

func (c Config) skipCount() int {
	if c.SkipRows <= 0 {
		return 0
	}
	w := c.RowWidth
	if w < 1 {
		w = 1
	}
	return c.SkipRows * w
}
