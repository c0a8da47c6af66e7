package dashboard

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/fruitsalade/webdrive/pkg/models"
	"github.com/fruitsalade/webdrive/pkg/protocol"
)

// SortKey is the field the displayed items are ordered by.
type SortKey string

const (
	SortName     SortKey = "name"
	SortModified SortKey = "modified"
	SortSize     SortKey = "size"
	SortType     SortKey = "type"
)

// ParseSortKey parses a sort key name. Unknown names report false.
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(s); k {
	case SortName, SortModified, SortSize, SortType:
		return k, true
	}
	return SortName, false
}

// SortSpec is a sort key and direction.
type SortSpec struct {
	Key   SortKey
	Order protocol.SortOrder
}

// Filter restricts the displayed items to one kind.
type Filter int

const (
	FilterAll Filter = iota
	FilterFiles
	FilterFolders
)

// ParseFilter parses "all", "files" or "folders".
func ParseFilter(s string) (Filter, bool) {
	switch s {
	case "all", "":
		return FilterAll, true
	case "files", "file":
		return FilterFiles, true
	case "folders", "folder":
		return FilterFolders, true
	}
	return FilterAll, false
}

// sortItems returns a sorted copy of items. Ties keep backend order, and an
// empty key keeps it entirely.
func sortItems(items []models.Item, spec SortSpec) []models.Item {
	out := slices.Clone(items)
	if out == nil {
		out = []models.Item{}
	}
	if spec.Key == "" {
		return out
	}

	col := collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
	var cmp func(a, b models.Item) int
	switch spec.Key {
	case SortModified:
		cmp = func(a, b models.Item) int { return a.ModTime().Compare(b.ModTime()) }
	case SortSize:
		cmp = func(a, b models.Item) int {
			switch {
			case a.Size < b.Size:
				return -1
			case a.Size > b.Size:
				return 1
			}
			return 0
		}
	case SortType:
		cmp = func(a, b models.Item) int { return col.CompareString(typeOf(a), typeOf(b)) }
	default:
		cmp = func(a, b models.Item) int { return col.CompareString(a.Name, b.Name) }
	}

	if spec.Order == protocol.Desc {
		slices.SortStableFunc(out, func(a, b models.Item) int { return cmp(b, a) })
	} else {
		slices.SortStableFunc(out, cmp)
	}
	return out
}

func typeOf(it models.Item) string {
	if it.MimeType != "" {
		return it.MimeType
	}
	return it.Kind.String()
}
