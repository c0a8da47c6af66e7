// Package models contains the data types shared by the client, the tree
// reconstructor and the dashboard.
package models

import (
	"encoding/json"
	"time"
)

// Kind tells a file record from a folder record.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

// String returns the wire name of the kind ("file" or "folder").
func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// ParseKind parses "file" or "folder". Anything else reports false.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "file", "files":
		return KindFile, true
	case "folder", "folders", "dir":
		return KindFolder, true
	}
	return KindFile, false
}

// Item is a file or a folder as returned by the backend.
//
// ParentID holds the resolved parent folder id; empty means root. Raw keeps
// the original record so the field probes can be re-run against it.
type Item struct {
	Kind      Kind       `json:"kind"`
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	ParentID  string     `json:"parentId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	// Files only.
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
	URL      string `json:"url,omitempty"`

	// Folders only. Derived from the loaded page, not authoritative.
	ItemCount int `json:"itemCount,omitempty"`

	Starred bool `json:"isStarred"`
	Shared  bool `json:"isShared"`

	Raw json.RawMessage `json:"-"`
}

// IsFolder reports whether the item is a folder.
func (it Item) IsFolder() bool {
	return it.Kind == KindFolder
}

// ModTime returns UpdatedAt, falling back to CreatedAt.
func (it Item) ModTime() time.Time {
	if !it.UpdatedAt.IsZero() {
		return it.UpdatedAt
	}
	return it.CreatedAt
}

// Split partitions items by kind, keeping order.
func Split(items []Item) (files, folders []Item) {
	files = []Item{}
	folders = []Item{}
	for _, it := range items {
		if it.IsFolder() {
			folders = append(folders, it)
		} else {
			files = append(files, it)
		}
	}
	return files, folders
}
