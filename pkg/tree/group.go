package tree

import "github.com/fruitsalade/webdrive/pkg/models"

// CountChildren counts, for every folder, the items whose resolved parent is
// that folder. items is the whole loaded collection (files and folders).
//
// The returned map has an entry for every folder id, zero included. The
// returned folders are copies with ItemCount overwritten by the computed
// count; backend counts are discarded. Neither input slice is modified.
// Items pointing at folders that are not loaded are counted nowhere.
func CountChildren(items, folders []models.Item) (map[string]int, []models.Item) {
	perParent := make(map[string]int, len(folders))
	for _, it := range items {
		if it.ParentID != "" {
			perParent[it.ParentID]++
		}
	}

	counts := make(map[string]int, len(folders))
	out := make([]models.Item, len(folders))
	for i, f := range folders {
		n := perParent[f.ID]
		counts[f.ID] = n
		f.ItemCount = n
		out[i] = f
	}
	return counts, out
}

// Index maps ids to items, for lookups by the navigator and the CLI.
func Index(items ...[]models.Item) map[string]models.Item {
	n := 0
	for _, s := range items {
		n += len(s)
	}
	idx := make(map[string]models.Item, n)
	for _, s := range items {
		for _, it := range s {
			idx[it.ID] = it
		}
	}
	return idx
}
