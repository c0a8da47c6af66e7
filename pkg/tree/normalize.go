// Package tree rebuilds a browsable file/folder hierarchy from the flat,
// inconsistently shaped list responses of the storage API.
//
// A payload goes through a Normalizer (find the record array), the probes in
// resolve.go (find each record's id and parent), CountChildren (per-folder
// counts) and finally Navigate (one level of the hierarchy).
package tree

import (
	"github.com/tidwall/gjson"

	"github.com/fruitsalade/webdrive/pkg/models"
)

// A Decoder tries to find the record array for kind inside payload. It
// returns nil when its shape does not apply.
type Decoder func(payload gjson.Result, kind models.Kind) []gjson.Result

// Normalizer runs its decoders in order and keeps the first non-empty result.
type Normalizer struct {
	decoders []Decoder
}

// NewNormalizer returns a Normalizer trying decoders in the given order.
func NewNormalizer(decoders ...Decoder) *Normalizer {
	return &Normalizer{decoders: decoders}
}

// With returns a copy of n with extra decoders appended. Earlier decoders
// keep their priority.
func (n *Normalizer) With(decoders ...Decoder) *Normalizer {
	out := make([]Decoder, 0, len(n.decoders)+len(decoders))
	out = append(out, n.decoders...)
	out = append(out, decoders...)
	return &Normalizer{decoders: out}
}

// Normalize extracts the record array for kind from a raw response body.
// A "data" envelope is unwrapped first. The result is never nil; invalid
// JSON and unknown shapes both give an empty slice.
func (n *Normalizer) Normalize(raw []byte, kind models.Kind) []gjson.Result {
	if !gjson.ValidBytes(raw) {
		return []gjson.Result{}
	}
	return n.NormalizeResult(Unwrap(gjson.ParseBytes(raw)), kind)
}

// NormalizeResult is Normalize for an already parsed and unwrapped payload.
func (n *Normalizer) NormalizeResult(payload gjson.Result, kind models.Kind) []gjson.Result {
	for _, dec := range n.decoders {
		if recs := dec(payload, kind); len(recs) > 0 {
			return recs
		}
	}
	return []gjson.Result{}
}

// Items normalizes raw and decodes every record as kind.
func (n *Normalizer) Items(raw []byte, kind models.Kind, opts ...Option) []models.Item {
	return DecodeAll(n.Normalize(raw, kind), kind, opts...)
}

// Unwrap returns payload.data when present and non-null, else payload.
func Unwrap(payload gjson.Result) gjson.Result {
	if d := payload.Get("data"); d.Exists() && d.Type != gjson.Null {
		return d
	}
	return payload
}

// Array matches a payload that is itself an array.
func Array(payload gjson.Result, _ models.Kind) []gjson.Result {
	if payload.IsArray() {
		return payload.Array()
	}
	return nil
}

// Field matches an array stored under name, unfiltered.
func Field(name string) Decoder {
	return func(payload gjson.Result, _ models.Kind) []gjson.Result {
		if !payload.IsObject() {
			return nil
		}
		if v := payload.Get(name); v.IsArray() {
			return v.Array()
		}
		return nil
	}
}

// KindField matches the array named after the kind ("files" or "folders").
func KindField(payload gjson.Result, kind models.Kind) []gjson.Result {
	return Field(kind.String()+"s")(payload, kind)
}

// Discriminated matches the array under name and keeps only the records whose
// "type" equals the kind's wire name. Records without a type are dropped.
func Discriminated(name string) Decoder {
	field := Field(name)
	return func(payload gjson.Result, kind models.Kind) []gjson.Result {
		all := field(payload, kind)
		if len(all) == 0 {
			return nil
		}
		var out []gjson.Result
		for _, rec := range all {
			if rec.Get("type").String() == kind.String() {
				out = append(out, rec)
			}
		}
		return out
	}
}

// Live is the pipeline for /files and /folders responses.
var Live = NewNormalizer(
	Array,
	KindField,
	Discriminated("items"),
	Discriminated("results"),
)

// Merged matches every named array and concatenates them in order.
func Merged(names ...string) Decoder {
	return func(payload gjson.Result, kind models.Kind) []gjson.Result {
		var out []gjson.Result
		for _, name := range names {
			out = append(out, Field(name)(payload, kind)...)
		}
		return out
	}
}

// trashKindField matches "trashFiles" or "trashFolders".
func trashKindField(payload gjson.Result, kind models.Kind) []gjson.Result {
	if kind == models.KindFolder {
		return Field("trashFolders")(payload, kind)
	}
	return Field("trashFiles")(payload, kind)
}

// Trash is the pipeline for /trash?type=file|folder responses. Generic
// containers are not filtered by kind since the request already was.
var Trash = NewNormalizer(
	Array,
	KindField,
	Field("items"),
	Field("trash"),
	Field("trashItems"),
	trashKindField,
)

// TrashAll is the pipeline for /trash?type=all. The records are mixed and
// must be separated with Classify.
var TrashAll = NewNormalizer(
	Array,
	Field("items"),
	Field("trash"),
	Field("trashItems"),
	Merged("files", "folders"),
	Merged("trashFiles", "trashFolders"),
)

// Shares is the pipeline for /sharing/my-shares responses. Some backends
// nest the list one "data" level deeper.
var Shares = NewNormalizer(
	Array,
	Field("results"),
	Field("items"),
	Field("shares"),
	Field("data.results"),
	Field("data.items"),
	Field("data.shares"),
)

// Results is the pipeline for a mixed /search result list.
var Results = NewNormalizer(
	Array,
	Field("results"),
	Field("items"),
)
