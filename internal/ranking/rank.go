package ranking

import (
	"slices"

	"github.com/rcliao/stash-manager/internal/model"
)

// Valuations is a point-in-time view of price data.
type Valuations interface {
	MarketPrice(kindID string) (float64, bool)
	TraderPrice(kindID string) (float64, bool)
}

type keyedItem struct {
	item model.Item
	keys []float64
}

// Rank returns items ordered by the enabled criteria of cfg. The sort is
// stable: items equal on every key keep their input order. The first
// SkipRows*RowWidth items are left where they are. items is not modified.
func Rank(items []model.Item, cfg Config, vals Valuations, tax Taxonomy) []model.Item {
	out := slices.Clone(items)
	criteria := cfg.Enabled()
	if len(criteria) == 0 || len(out) < 2 {
		return out
	}

	skip := min(cfg.skipCount(), len(out))
	tail := out[skip:]

	keyed := make([]keyedItem, len(tail))
	for i, it := range tail {
		keyed[i] = keyedItem{item: it, keys: sortKeys(it, criteria, cfg, vals, tax)}
	}
	slices.SortStableFunc(keyed, func(a, b keyedItem) int {
		return slices.Compare(a.keys, b.keys)
	})
	for i, k := range keyed {
		tail[i] = k.item
	}
	return out
}

// Keys returns the raw (unsigned) key values an item would be ranked by, in
// criterion order. MarketValue contributes stack value then unit price.
func Keys(item model.Item, cfg Config, vals Valuations, tax Taxonomy) []float64 {
	var keys []float64
	for _, cr := range cfg.Enabled() {
		keys = append(keys, criterionKeys(item, cr.Key, cfg, vals, tax)...)
	}
	return keys
}

func sortKeys(item model.Item, criteria []Criterion, cfg Config, vals Valuations, tax Taxonomy) []float64 {
	keys := make([]float64, 0, len(criteria)+1)
	for _, cr := range criteria {
		desc := cr.Descending != cfg.FlipDirection
		for _, v := range criterionKeys(item, cr.Key, cfg, vals, tax) {
			if desc {
				v = -v
			}
			keys = append(keys, v)
		}
	}
	return keys
}

func criterionKeys(item model.Item, key Key, cfg Config, vals Valuations, tax Taxonomy) []float64 {
	switch key {
	case ContainerSize:
		return []float64{float64(item.ContainerSize())}
	case ItemKind:
		return []float64{float64(tax.Rank(item.Category()))}
	case CellOrWeight:
		if cfg.UseCellCount {
			return []float64{float64(item.CellSize())}
		}
		return []float64{item.Weight()}
	case TraderValue:
		return []float64{lookup(vals, item.KindID(), Valuations.TraderPrice)}
	case MarketValue:
		unit := lookup(vals, item.KindID(), Valuations.MarketPrice)
		return []float64{unit * float64(item.StackCount()), unit}
	}
	return nil
}

func lookup(vals Valuations, kindID string, get func(Valuations, string) (float64, bool)) float64 {
	if vals == nil {
		return 0
	}
	v, ok := get(vals, kindID)
	if !ok {
		return 0
	}
	return v
}
