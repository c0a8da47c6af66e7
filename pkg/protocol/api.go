// Package protocol defines the request parameters and bodies of the storage
// REST API. List responses are not typed here: their shape varies between
// backend versions and is decoded by package tree.
package protocol

import (
	"net/url"
	"strconv"
)

// SortOrder is "asc" or "desc".
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// FileQuery parameters for GET /files.
type FileQuery struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder SortOrder
	FolderID  string
	Category  string
	Search    string
}

// Values encodes the query. Zero fields are omitted.
func (q FileQuery) Values() url.Values {
	v := url.Values{}
	setInt(v, "page", q.Page)
	setInt(v, "limit", q.Limit)
	set(v, "sortBy", q.SortBy)
	set(v, "sortOrder", string(q.SortOrder))
	set(v, "folderId", q.FolderID)
	set(v, "category", q.Category)
	set(v, "search", q.Search)
	return v
}

// FolderQuery parameters for GET /folders.
type FolderQuery struct {
	ParentID     string
	IncludeFiles bool
	Search       string
}

// Values encodes the query. includeFiles is only sent when true.
func (q FolderQuery) Values() url.Values {
	v := url.Values{}
	set(v, "parentId", q.ParentID)
	if q.IncludeFiles {
		v.Set("includeFiles", "true")
	}
	set(v, "search", q.Search)
	return v
}

// TrashType selects which trashed records GET /trash returns.
type TrashType string

const (
	TrashFiles   TrashType = "file"
	TrashFolders TrashType = "folder"
	TrashAll     TrashType = "all"
)

// TrashQuery parameters for GET /trash.
type TrashQuery struct {
	Type  TrashType
	Page  int
	Limit int
}

func (q TrashQuery) Values() url.Values {
	v := url.Values{}
	set(v, "type", string(q.Type))
	setInt(v, "page", q.Page)
	setInt(v, "limit", q.Limit)
	return v
}

// SearchQuery parameters for GET /search.
type SearchQuery struct {
	Q     string
	Type  string // all, file, folder
	Page  int
	Limit int
	Sort  string // relevance, name, date, size
	Order SortOrder
}

func (q SearchQuery) Values() url.Values {
	v := url.Values{}
	v.Set("q", q.Q)
	set(v, "type", q.Type)
	setInt(v, "page", q.Page)
	setInt(v, "limit", q.Limit)
	set(v, "sort", q.Sort)
	set(v, "order", string(q.Order))
	return v
}

// PageQuery is plain pagination, used by GET /sharing/my-shares.
type PageQuery struct {
	Page  int
	Limit int
}

func (q PageQuery) Values() url.Values {
	v := url.Values{}
	setInt(v, "page", q.Page)
	setInt(v, "limit", q.Limit)
	return v
}

// CreateFolderRequest is the body of POST /folders.
type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
}

// UpdateRequest is the body of PUT /files/{id} and PUT /folders/{id}.
// A nil field is left unchanged. A ParentID/FolderID pointing at "" moves the
// item to root.
type UpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	FolderID *string `json:"folderId,omitempty"`
	ParentID *string `json:"parentId,omitempty"`
}

// ShareFileRequest is the body of POST /sharing/files/{id}.
type ShareFileRequest struct {
	Permission    string `json:"permission"` // view, edit
	Password      string `json:"password,omitempty"`
	ExpiresIn     int    `json:"expiresIn"` // days
	AllowDownload bool   `json:"allowDownload"`
}

// ShareFolderRequest is the body of POST /sharing/folders/{id}.
type ShareFolderRequest struct {
	Permission string `json:"permission"` // view, download
	Password   string `json:"password,omitempty"`
	ExpiresIn  int    `json:"expiresIn"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ErrorEnvelope is the error body the backend usually sends. Older
// endpoints send {"message": ...} instead; see client.APIError.
type ErrorEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		Message string `json:"message"`
		Details any    `json:"details,omitempty"`
	} `json:"error"`
}

func set(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

func setInt(v url.Values, key string, val int) {
	if val > 0 {
		v.Set(key, strconv.Itoa(val))
	}
}
