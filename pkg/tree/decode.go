package tree

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"

	"github.com/fruitsalade/webdrive/pkg/models"
)

// GoogleFolderMime is the folder mime type some imported records carry.
const GoogleFolderMime = "application/vnd.google-apps.folder"

var (
	nameProbes    = Probes{"name", "originalName", "original_name", "filename", "title"}
	createdProbes = Probes{"createdAt", "created_at"}
	updatedProbes = Probes{"updatedAt", "updated_at", "modifiedAt", "modified_at"}
	deletedProbes = Probes{"deletedAt", "deleted_at", "trashedAt", "trashed_at", "trashInfo.deletedAt"}
	mimeProbes    = Probes{"mimeType", "mime_type"}
	sizeProbes    = Probes{"size", "fileSize", "file_size"}
	countProbes   = Probes{"itemCount", "item_count"}
	starProbes    = Probes{"isStarred", "starred", "is_starred", "star"}
	sharedProbes  = Probes{"isShared", "is_shared", "shared"}
	urlProbes     = Probes{"url", "downloadUrl", "download_url"}
)

type decodeOptions struct {
	defaultParent string
}

// Option adjusts how records are decoded.
type Option func(*decodeOptions)

// DefaultParent sets the parent of records that carry no parent field. Use it
// when the records were fetched for a known folder.
func DefaultParent(id string) Option {
	return func(o *decodeOptions) { o.defaultParent = id }
}

// Decode converts one record into an Item of the given kind.
func Decode(rec gjson.Result, kind models.Kind, opts ...Option) models.Item {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	it := models.Item{Kind: kind, Raw: json.RawMessage(rec.Raw)}
	if kind == models.KindFolder {
		it.ID = ResolveFolderID(rec)
	} else {
		it.ID, _ = FileIDProbes.Resolve(rec)
	}
	if parent, ok := ResolveParent(rec); ok {
		it.ParentID = parent
	} else {
		it.ParentID = o.defaultParent
	}

	it.Name, _ = nameProbes.Resolve(rec)
	it.CreatedAt = probeTime(rec, createdProbes)
	it.UpdatedAt = probeTime(rec, updatedProbes)
	if t := probeTime(rec, deletedProbes); !t.IsZero() {
		it.DeletedAt = &t
	}

	if kind == models.KindFile {
		it.MimeType, _ = mimeProbes.Resolve(rec)
		if v := sizeProbes.Lookup(rec); v.Exists() && v.Int() > 0 {
			it.Size = v.Int()
		}
	} else {
		it.ItemCount = int(countProbes.Lookup(rec).Int())
	}

	it.URL, _ = urlProbes.Resolve(rec)
	it.Starred = Starred(rec)
	it.Shared = sharedProbes.Lookup(rec).Bool()
	return it
}

// DecodeAll decodes every record as kind. Records without an id are
// skipped. The result is never nil.
func DecodeAll(recs []gjson.Result, kind models.Kind, opts ...Option) []models.Item {
	out := make([]models.Item, 0, len(recs))
	for _, rec := range recs {
		it := Decode(rec, kind, opts...)
		if it.ID == "" {
			continue
		}
		out = append(out, it)
	}
	return out
}

// DecodeMixed classifies and decodes records of unknown kind. Records that
// are neither file-like nor folder-like are dropped.
func DecodeMixed(recs []gjson.Result, opts ...Option) (files, folders []models.Item) {
	files = []models.Item{}
	folders = []models.Item{}
	for _, rec := range recs {
		kind, ok := Classify(rec)
		if !ok {
			continue
		}
		it := Decode(rec, kind, opts...)
		if it.ID == "" {
			continue
		}
		if kind == models.KindFolder {
			folders = append(folders, it)
		} else {
			files = append(files, it)
		}
	}
	return files, folders
}

// Classify decides the kind of a record from a mixed list. An explicit
// "type" wins; then folder markers; then file markers (mime type or size);
// then a bare named record is taken as a folder.
func Classify(rec gjson.Result) (models.Kind, bool) {
	if k, ok := models.ParseKind(rec.Get("type").String()); ok {
		return k, true
	}
	mime, hasMime := mimeProbes.Resolve(rec)
	if rec.Get("isFolder").Bool() || mime == GoogleFolderMime {
		return models.KindFolder, true
	}
	if hasMime || sizeProbes.Lookup(rec).Exists() {
		return models.KindFile, true
	}
	if _, ok := nameProbes.Resolve(rec); ok {
		return models.KindFolder, true
	}
	return models.KindFile, false
}

// Starred reports the starred flag the backend declared for the record,
// under any of its known spellings.
func Starred(rec gjson.Result) bool {
	if starProbes.Lookup(rec).Bool() {
		return true
	}
	if rec.Get("flags.starred").Bool() || rec.Get("metadata.starred").Bool() {
		return true
	}
	for _, l := range rec.Get("labels").Array() {
		if l.String() == "starred" {
			return true
		}
	}
	return false
}

// probeTime accepts RFC 3339 strings and unix milliseconds.
func probeTime(rec gjson.Result, p Probes) time.Time {
	v := p.Lookup(rec)
	switch v.Type {
	case gjson.String:
		if t, err := time.Parse(time.RFC3339Nano, v.String()); err == nil {
			return t
		}
	case gjson.Number:
		return time.UnixMilli(v.Int()).UTC()
	}
	return time.Time{}
}
