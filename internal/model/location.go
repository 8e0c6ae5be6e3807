package model

const (
	StashOwnerID = "hideout"
	StashKindID  = "566abbc34bdc2d92178b4576"
)

// maxAncestorDepth bounds parent walks so a cyclic host graph cannot hang.
const maxAncestorDepth = 64

// InStash reports whether the item, or any container above it, is the player stash.
func InStash(item Item) bool {
	depth := 0
	for it := item; it != nil && depth < maxAncestorDepth; it = it.Parent() {
		if isStash(it) {
			return true
		}
		depth++
	}
	return false
}

func isStash(it Item) bool {
	owner := it.Owner()
	return it.KindID() == StashKindID || owner.ID == StashOwnerID || owner.Type == OwnerStash
}

// InTrader reports whether the item is shown in a trader window.
func InTrader(item Item) bool {
	if item == nil {
		return false
	}
	return item.Owner().Type == OwnerTrader
}

// KindIDs returns the distinct kind ids of items in first-seen order.
func KindIDs(items []Item) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		k := it.KindID()
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// GridItems flattens the items of all grids in grid order.
func GridItems(grids []Grid) []Item {
	var out []Item
	for _, g := range grids {
		out = append(out, g.Items()...)
	}
	return out
}
