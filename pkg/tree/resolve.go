package tree

import "github.com/tidwall/gjson"

// Probes is an ordered list of gjson paths. The first path that is present
// and not null wins; later paths are never consulted, even if they disagree.
type Probes []string

// Resolve returns the value of the first matching path. Numbers are
// returned in their JSON spelling. An empty string is a match.
func (p Probes) Resolve(rec gjson.Result) (string, bool) {
	v := p.Lookup(rec)
	if !v.Exists() {
		return "", false
	}
	return v.String(), true
}

// Lookup returns the first present, non-null value, or a zero Result.
func (p Probes) Lookup(rec gjson.Result) gjson.Result {
	for _, path := range p {
		if v := rec.Get(path); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

// All returns the value of every present path, in probe order, without
// duplicates.
func (p Probes) All(rec gjson.Result) []string {
	var out []string
	seen := make(map[string]bool)
	for _, path := range p {
		v := rec.Get(path)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		s := v.String()
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ParentProbes lists every field the backend has used for "the folder this
// record lives in". Trash records use the original/previous/source variants
// or nest the reference under trashInfo, trash, deleted or meta.
var ParentProbes = Probes{
	"parentId", "parent_id",
	"folderId", "folder_id",
	"parent.id",
	"directoryId", "directory_id",
	"originalParentId", "original_parent_id",
	"originalFolderId", "original_folder_id",
	"previousParentId", "previous_parent_id",
	"previousFolderId", "previous_folder_id",
	"sourceParentId", "source_parent_id",
	"sourceFolderId", "source_folder_id",
	"movedFromId", "moved_from_id",
	"oldParentId", "old_parent_id",
	"parentFolderId", "parent_folder_id",
	"originParentId", "origin_parent_id",
	"original.parentId", "original.parent_id",
	"trashInfo.parentId", "trashInfo.parent_id",
	"trash.parentId", "trash.parent_id",
	"deleted.parentId", "deleted.parent_id",
	"meta.parentId", "meta.parent_id",
}

// FolderIDProbes lists the primary key aliases of a folder record.
var FolderIDProbes = Probes{
	"id", "_id", "uuid",
	"folderId", "folder_id",
	"originalId", "original_id",
	"sourceId", "source_id",
	"previousId", "previous_id",
	"deleted.id", "trash.id", "meta.id",
}

// FileIDProbes lists the primary key aliases of a file record.
var FileIDProbes = Probes{"id", "_id", "uuid", "fileId", "file_id"}

// ResolveParent returns the record's parent folder id. ok is false when no
// parent field is present; the record then lives at root. A present empty
// string also means root.
func ResolveParent(rec gjson.Result) (id string, ok bool) {
	return ParentProbes.Resolve(rec)
}

// ResolveFolderID returns the folder's own id, or "" when it has none.
func ResolveFolderID(rec gjson.Result) string {
	id, _ := FolderIDProbes.Resolve(rec)
	return id
}

// FolderIDAliases returns every id the folder record carries. Trash records
// sometimes hold both a trash entry id and the id of the original folder.
func FolderIDAliases(rec gjson.Result) []string {
	return FolderIDProbes.All(rec)
}
