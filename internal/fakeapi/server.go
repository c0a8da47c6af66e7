// Package fakeapi is an in-memory storage backend speaking the REST API of
// package client. It renders list responses in any of the shapes observed
// in deployed backends and can be told to fail specific requests, which makes
// it the test double of the client, the dashboard and the CLI.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/fruitsalade/webdrive/internal/logging"
	"github.com/fruitsalade/webdrive/pkg/models"
)

// Prefix is the API root the handlers are mounted under.
const Prefix = "/api/v1"

// Shape selects how list responses are rendered.
type Shape int

const (
	// ShapeData wraps records in {"success":true,"data":{"files":[...]}}.
	ShapeData Shape = iota
	// ShapeArray sends a bare array.
	ShapeArray
	// ShapeItems sends {"data":{"items":[...]}} with a "type" per record.
	ShapeItems
	// ShapeResults sends {"results":[...]} with a "type" per record.
	ShapeResults
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeItems:
		return "items"
	case ShapeResults:
		return "results"
	}
	return "data"
}

// Quirks are backend behaviors the client has to cope with.
type Quirks struct {
	// OmitFolderParent drops the parent field from folder listings made for
	// a specific parent.
	OmitFolderParent bool
	// TrashParentField is the field a trashed record keeps its parent under.
	// Defaults to "originalParentId".
	TrashParentField string
	// NoIncludeFiles rejects GET /folders?includeFiles=true with 400.
	NoIncludeFiles bool
}

// Fault makes matching requests fail. Path is relative to Prefix; every
// Query key must match. Times limits how often it fires, 0 means always.
type Fault struct {
	Method  string
	Path    string
	Query   url.Values
	Status  int
	Message string
	Times   int
}

func (f *Fault) matches(r *http.Request, path string) bool {
	if f.Method != "" && f.Method != r.Method {
		return false
	}
	if f.Path != path {
		return false
	}
	q := r.URL.Query()
	for k := range f.Query {
		if q.Get(k) != f.Query.Get(k) {
			return false
		}
	}
	return true
}

type entry struct {
	kind    models.Kind
	id      string
	doc     []byte
	trashed bool
	seq     int
}

type share struct {
	id       string
	kind     models.Kind
	itemID   string
	token    string
	password string
	perm     string
	expires  time.Time
	created  time.Time
}

type account struct {
	user     models.User
	password string
}

// Server is the in-memory backend.
type Server struct {
	mu       sync.Mutex
	secret   []byte
	now      func() time.Time
	shape    Shape
	trash    Shape
	quirks   Quirks
	auth     bool
	entries  map[string]*entry
	shares   []*share
	accounts map[string]*account
	faults   []*Fault
	requests []string
	seq      int
}

// Option configures a Server.
type Option func(*Server)

// WithShape sets the shape of live list responses.
func WithShape(s Shape) Option {
	return func(srv *Server) { srv.shape = s }
}

// WithTrashShape sets the shape of trash list responses.
func WithTrashShape(s Shape) Option {
	return func(srv *Server) { srv.trash = s }
}

// WithQuirks enables backend quirks.
func WithQuirks(q Quirks) Option {
	return func(srv *Server) { srv.quirks = q }
}

// WithAuth requires a valid bearer token on every API call except login.
func WithAuth() Option {
	return func(srv *Server) { srv.auth = true }
}

// WithClock sets the clock used for timestamps and token expiry.
func WithClock(now func() time.Time) Option {
	return func(srv *Server) { srv.now = now }
}

// New creates an empty backend.
func New(opts ...Option) *Server {
	s := &Server{
		secret:   []byte("fakeapi-secret"),
		now:      time.Now,
		entries:  make(map[string]*entry),
		accounts: make(map[string]*account),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.quirks.TrashParentField == "" {
		s.quirks.TrashParentField = "originalParentId"
	}
	return s
}

// Handler returns the HTTP handler serving /health and the API under Prefix.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	api := http.NewServeMux()
	api.HandleFunc("POST /auth/login", s.handleLogin)
	api.HandleFunc("POST /auth/logout", s.handleLogout)
	api.HandleFunc("GET /auth/me", s.handleMe)

	api.HandleFunc("GET /files", s.handleListFiles)
	api.HandleFunc("POST /files/upload", s.handleUpload)
	api.HandleFunc("GET /files/{id}", s.handleGet(models.KindFile))
	api.HandleFunc("PUT /files/{id}", s.handleUpdate(models.KindFile))
	api.HandleFunc("DELETE /files/{id}", s.handleDelete(models.KindFile))

	api.HandleFunc("GET /folders", s.handleListFolders)
	api.HandleFunc("POST /folders", s.handleCreateFolder)
	api.HandleFunc("GET /folders/{id}", s.handleGet(models.KindFolder))
	api.HandleFunc("PUT /folders/{id}", s.handleUpdate(models.KindFolder))
	api.HandleFunc("DELETE /folders/{id}", s.handleDelete(models.KindFolder))

	api.HandleFunc("GET /trash", s.handleListTrash)
	api.HandleFunc("POST /trash/{type}/{id}/restore", s.handleRestore)
	api.HandleFunc("DELETE /trash/{type}/{id}", s.handlePurge)

	api.HandleFunc("POST /sharing/files/{id}", s.handleShare(models.KindFile))
	api.HandleFunc("POST /sharing/folders/{id}", s.handleShare(models.KindFolder))
	api.HandleFunc("GET /sharing/my-shares", s.handleMyShares)
	api.HandleFunc("GET /sharing/shared/{token}", s.handleSharedItem)
	api.HandleFunc("DELETE /sharing/{id}", s.handleRevoke)

	api.HandleFunc("GET /search", s.handleSearch)
	api.HandleFunc("GET /search/suggestions", s.handleSuggestions)

	mux.Handle(Prefix+"/", http.StripPrefix(Prefix, s.middleware(api)))
	return mux
}

// middleware records the request, fires faults and checks auth.
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		line := r.Method + " " + r.URL.Path
		if r.URL.RawQuery != "" {
			line += "?" + r.URL.RawQuery
		}

		s.mu.Lock()
		s.requests = append(s.requests, line)
		f := s.takeFaultLocked(r)
		s.mu.Unlock()

		if f != nil {
			logging.Debug("fakeapi: injected fault", zap.String("request", line), zap.Int("status", f.Status))
			msg := f.Message
			if msg == "" {
				msg = http.StatusText(f.Status)
			}
			s.sendError(w, f.Status, msg)
			return
		}

		if s.auth && r.URL.Path != "/auth/login" {
			if _, err := s.validateToken(extractToken(r)); err != nil {
				s.sendError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) takeFaultLocked(r *http.Request) *Fault {
	for i, f := range s.faults {
		if !f.matches(r, r.URL.Path) {
			continue
		}
		if f.Times > 0 {
			f.Times--
			if f.Times == 0 {
				s.faults = append(s.faults[:i], s.faults[i+1:]...)
			}
		}
		return f
	}
	return nil
}

// Inject adds a fault. Faults are matched in insertion order.
func (s *Server) Inject(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc := f
	s.faults = append(s.faults, &fc)
}

// ClearFaults removes every fault.
func (s *Server) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
}

// Requests returns the API requests served so far as "METHOD /path?query",
// paths relative to Prefix.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// ResetRequests clears the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// Put stores a raw record as given, without normalizing its fields. It
// returns the record id, read from "id".
func (s *Server) Put(kind models.Kind, doc string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := gjson.Get(doc, "id").String()
	if id == "" {
		id = s.nextIDLocked(kind)
		doc, _ = sjson.Set(doc, "id", id)
	}
	s.seq++
	s.entries[key(kind, id)] = &entry{kind: kind, id: id, doc: []byte(doc), seq: s.seq}
	return id
}

// AddFolder creates a folder under parent ("" for root) and returns its id.
func (s *Server) AddFolder(name, parent string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(models.KindFolder, name, parent, "", 0).id
}

// AddFile creates a file under parent ("" for root) and returns its id.
func (s *Server) AddFile(name, parent, mime string, size int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(models.KindFile, name, parent, mime, size).id
}

// Star sets the backend starred flag of a record.
func (s *Server) Star(kind models.Kind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entries[key(kind, id)]; e != nil {
		e.doc, _ = sjson.SetBytes(e.doc, "isStarred", true)
	}
}

// Trash moves a record (and, for folders, its subtree) to the trash.
func (s *Server) Trash(kind models.Kind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[key(kind, id)]
	if e == nil || e.trashed {
		return false
	}
	s.trashLocked(e)
	return true
}

// Record returns the stored record.
func (s *Server) Record(kind models.Kind, id string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[key(kind, id)]
	if e == nil {
		return nil, false
	}
	return append(json.RawMessage(nil), e.doc...), true
}

// IsTrashed reports whether the record exists and is in the trash.
func (s *Server) IsTrashed(kind models.Kind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[key(kind, id)]
	return e != nil && e.trashed
}

// Len returns the number of stored records, trashed included.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func key(kind models.Kind, id string) string {
	return kind.String() + ":" + id
}

func (s *Server) nextIDLocked(kind models.Kind) string {
	s.seq++
	return fmt.Sprintf("%s-%d", kind, s.seq)
}

func (s *Server) createLocked(kind models.Kind, name, parent, mime string, size int64) *entry {
	id := s.nextIDLocked(kind)
	now := s.now().UTC().Format(time.RFC3339Nano)

	doc := []byte(`{}`)
	doc, _ = sjson.SetBytes(doc, "id", id)
	doc, _ = sjson.SetBytes(doc, "name", name)
	if parent != "" {
		doc, _ = sjson.SetBytes(doc, parentField(kind), parent)
	} else {
		doc, _ = sjson.SetBytes(doc, parentField(kind), nil)
	}
	doc, _ = sjson.SetBytes(doc, "createdAt", now)
	doc, _ = sjson.SetBytes(doc, "updatedAt", now)
	if kind == models.KindFile {
		doc, _ = sjson.SetBytes(doc, "mimeType", mime)
		doc, _ = sjson.SetBytes(doc, "size", size)
	}

	e := &entry{kind: kind, id: id, doc: doc, seq: s.seq}
	s.entries[key(kind, id)] = e
	return e
}

// parentField mirrors the backend: files reference their folder, folders
// their parent.
func parentField(kind models.Kind) string {
	if kind == models.KindFolder {
		return "parentId"
	}
	return "folderId"
}

// parentOf reads the parent the way the backend stores it.
func (s *Server) parentOf(e *entry) string {
	doc := gjson.ParseBytes(e.doc)
	if e.trashed {
		if v := doc.Get(s.quirks.TrashParentField); v.Exists() {
			return v.String()
		}
	}
	for _, f := range []string{"parentId", "folderId", "parent_id", "folder_id"} {
		if v := doc.Get(f); v.Exists() {
			return v.String()
		}
	}
	return ""
}

func (s *Server) trashLocked(e *entry) {
	parent := s.parentOf(e)
	e.trashed = true
	e.doc, _ = sjson.DeleteBytes(e.doc, parentField(e.kind))
	e.doc, _ = sjson.SetBytes(e.doc, s.quirks.TrashParentField, parent)
	e.doc, _ = sjson.SetBytes(e.doc, "deletedAt", s.now().UTC().Format(time.RFC3339Nano))

	if e.kind != models.KindFolder {
		return
	}
	for _, child := range s.entries {
		if !child.trashed && s.parentOf(child) == e.id {
			s.trashLocked(child)
		}
	}
}

func (s *Server) restoreLocked(e *entry) {
	parent := s.parentOf(e)
	e.trashed = false
	e.doc, _ = sjson.DeleteBytes(e.doc, s.quirks.TrashParentField)
	e.doc, _ = sjson.DeleteBytes(e.doc, "deletedAt")
	if parent != "" {
		e.doc, _ = sjson.SetBytes(e.doc, parentField(e.kind), parent)
	} else {
		e.doc, _ = sjson.SetBytes(e.doc, parentField(e.kind), nil)
	}

	if e.kind != models.KindFolder {
		return
	}
	for _, child := range s.entries {
		if child.trashed && s.parentOf(child) == e.id {
			s.restoreLocked(child)
		}
	}
}

// sortedLocked returns copies of the entries accepted by keep, oldest
// first. The copies may be read after the lock is released.
func (s *Server) sortedLocked(keep func(*entry) bool) []*entry {
	var out []*entry
	for _, e := range s.entries {
		if keep(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (s *Server) storageUsedLocked() int64 {
	var used int64
	for _, e := range s.entries {
		if e.kind == models.KindFile {
			used += gjson.GetBytes(e.doc, "size").Int()
		}
	}
	return used
}

func nameOf(e *entry) string {
	return gjson.GetBytes(e.doc, "name").String()
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
