package tree

import "github.com/fruitsalade/webdrive/pkg/models"

// Root is the parent id meaning "top level". It is distinct from a parent
// id that references a folder that is not loaded.
const Root = ""

// Scope selects the navigation policy.
type Scope int

const (
	// ScopeLive browses the live hierarchy. The root view holds items
	// without a resolved parent, or whose parent is not loaded.
	ScopeLive Scope = iota
	// ScopeTrash browses the trash collection. The root view holds every
	// trashed item regardless of parent.
	ScopeTrash
)

func (s Scope) String() string {
	if s == ScopeTrash {
		return "trash"
	}
	return "live"
}

// Level is one level of the hierarchy, ready to display.
type Level struct {
	Parent  string
	Files   []models.Item
	Folders []models.Item
}

// Len returns the number of items in the level.
func (l Level) Len() int {
	return len(l.Files) + len(l.Folders)
}

// Navigate returns the children of parent within the loaded collections. It
// never fetches anything; callers browsing the live hierarchy load the
// folder first. Folder counts are recomputed over the whole collection.
func Navigate(scope Scope, parent string, files, folders []models.Item) Level {
	all := make([]models.Item, 0, len(files)+len(folders))
	all = append(all, files...)
	all = append(all, folders...)
	_, counted := CountChildren(all, folders)

	loaded := make(map[string]bool, len(folders))
	for _, f := range folders {
		loaded[f.ID] = true
	}

	return Level{
		Parent:  parent,
		Files:   Children(scope, parent, files, loaded),
		Folders: Children(scope, parent, counted, loaded),
	}
}

// Children filters items to the direct children of parent. loaded holds the
// ids of the folders in the collection and is only consulted for the live
// root. The result is never nil.
func Children(scope Scope, parent string, items []models.Item, loaded map[string]bool) []models.Item {
	out := make([]models.Item, 0)
	for _, it := range items {
		if isChild(scope, parent, it, loaded) {
			out = append(out, it)
		}
	}
	return out
}

func isChild(scope Scope, parent string, it models.Item, loaded map[string]bool) bool {
	if parent != Root {
		return it.ParentID == parent
	}
	if scope == ScopeTrash {
		return true
	}
	return it.ParentID == Root || !loaded[it.ParentID]
}
