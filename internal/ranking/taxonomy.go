package ranking

import "strings"

// Taxonomy assigns a stable rank to item categories. Categories listed
// earlier rank lower; unlisted categories rank after all listed ones.
type Taxonomy struct {
	order map[string]int
}

// DefaultCategories is the category order used when none is configured.
var DefaultCategories = []string{
	"weapon",
	"weapon_part",
	"ammo",
	"magazine",
	"armor",
	"headwear",
	"rig",
	"backpack",
	"container",
	"medical",
	"food",
	"barter",
	"key",
	"info",
	"money",
}

// NewTaxonomy builds a taxonomy from an ordered category list. Duplicates keep
// their first position.
func NewTaxonomy(categories []string) Taxonomy {
	order := make(map[string]int, len(categories))
	for _, c := range categories {
		c = normalizeCategory(c)
		if _, ok := order[c]; !ok && c != "" {
			order[c] = len(order)
		}
	}
	return Taxonomy{order: order}
}

// Rank returns the category's position.
func (t Taxonomy) Rank(category string) int {
	if r, ok := t.order[normalizeCategory(category)]; ok {
		return r
	}
	return len(t.order)
}

func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
