package fakeapi

import (
	"encoding/json"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/fruitsalade/webdrive/internal/logging"
	"github.com/fruitsalade/webdrive/pkg/format"
	"github.com/fruitsalade/webdrive/pkg/models"
	"github.com/fruitsalade/webdrive/pkg/protocol"
)

// ─── Rendering ──────────────────────────────────────────────────────────────

func docs(entries []*entry, typed bool) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		doc := e.doc
		if typed {
			doc, _ = sjson.SetBytes(append([]byte(nil), doc...), "type", e.kind.String())
		}
		out = append(out, json.RawMessage(doc))
	}
	return out
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// renderList writes a live listing in the configured shape.
func (s *Server) renderList(w http.ResponseWriter, kind models.Kind, entries []*entry, p pagination) {
	switch s.shape {
	case ShapeArray:
		sendJSON(w, http.StatusOK, docs(entries, false))
	case ShapeItems:
		sendData(w, http.StatusOK, map[string]any{"items": docs(entries, true)})
	case ShapeResults:
		sendJSON(w, http.StatusOK, map[string]any{"results": docs(entries, true)})
	default:
		sendData(w, http.StatusOK, map[string]any{kind.String() + "s": docs(entries, false), "pagination": p})
	}
}

// renderTrash writes a trash listing of one kind in the configured shape.
func (s *Server) renderTrash(w http.ResponseWriter, kind models.Kind, entries []*entry) {
	switch s.trash {
	case ShapeArray:
		sendJSON(w, http.StatusOK, docs(entries, false))
	case ShapeItems:
		sendData(w, http.StatusOK, map[string]any{"trashItems": docs(entries, false)})
	case ShapeResults:
		name := "trashFiles"
		if kind == models.KindFolder {
			name = "trashFolders"
		}
		sendData(w, http.StatusOK, map[string]any{name: docs(entries, false)})
	default:
		sendData(w, http.StatusOK, map[string]any{"items": docs(entries, false)})
	}
}

// renderTrashAll writes the mixed type=all trash listing.
func (s *Server) renderTrashAll(w http.ResponseWriter, files, folders []*entry) {
	switch s.trash {
	case ShapeArray:
		sendJSON(w, http.StatusOK, docs(append(append([]*entry{}, files...), folders...), false))
	case ShapeItems:
		sendData(w, http.StatusOK, map[string]any{"items": docs(append(append([]*entry{}, files...), folders...), true)})
	case ShapeResults:
		sendData(w, http.StatusOK, map[string]any{"trashFiles": docs(files, false), "trashFolders": docs(folders, false)})
	default:
		sendData(w, http.StatusOK, map[string]any{"files": docs(files, false), "folders": docs(folders, false)})
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func paginate(entries []*entry, page, limit int) []*entry {
	start := (page - 1) * limit
	if start >= len(entries) {
		return nil
	}
	end := start + limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end]
}

func sortEntries(entries []*entry, by, order string) {
	less := func(a, b *entry) bool { return a.seq < b.seq }
	switch by {
	case "name":
		less = func(a, b *entry) bool { return strings.ToLower(nameOf(a)) < strings.ToLower(nameOf(b)) }
	case "updatedAt", "createdAt":
		less = func(a, b *entry) bool {
			ta, _ := time.Parse(time.RFC3339Nano, gjson.GetBytes(a.doc, by).String())
			tb, _ := time.Parse(time.RFC3339Nano, gjson.GetBytes(b.doc, by).String())
			if ta.Equal(tb) {
				return a.seq < b.seq
			}
			return ta.Before(tb)
		}
	case "size":
		less = func(a, b *entry) bool {
			return gjson.GetBytes(a.doc, "size").Int() < gjson.GetBytes(b.doc, "size").Int()
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if order == string(protocol.Desc) {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})
}

// ─── Listings ───────────────────────────────────────────────────────────────

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	folderID, byFolder := q.Get("folderId"), q.Has("folderId")
	search, category := q.Get("search"), q.Get("category")

	s.mu.Lock()
	entries := s.sortedLocked(func(e *entry) bool {
		if e.trashed || e.kind != models.KindFile {
			return false
		}
		if byFolder && s.parentOf(e) != folderID {
			return false
		}
		if search != "" && !containsFold(nameOf(e), search) {
			return false
		}
		if category != "" && string(format.CategoryOf(gjson.GetBytes(e.doc, "mimeType").String())) != category {
			return false
		}
		return true
	})
	s.mu.Unlock()

	sortEntries(entries, q.Get("sortBy"), q.Get("sortOrder"))
	page, limit := queryInt(r, "page", 1), queryInt(r, "limit", 50)
	total := len(entries)
	s.renderList(w, models.KindFile, paginate(entries, page, limit), pagination{page, limit, total})
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if s.quirks.NoIncludeFiles && q.Get("includeFiles") == "true" {
		s.sendError(w, http.StatusBadRequest, "includeFiles is not supported")
		return
	}
	parentID, byParent := q.Get("parentId"), q.Has("parentId")
	search := q.Get("search")

	s.mu.Lock()
	entries := s.sortedLocked(func(e *entry) bool {
		if e.trashed || e.kind != models.KindFolder {
			return false
		}
		if byParent && s.parentOf(e) != parentID {
			return false
		}
		return search == "" || containsFold(nameOf(e), search)
	})
	s.mu.Unlock()

	if byParent && s.quirks.OmitFolderParent {
		for i, e := range entries {
			doc, _ := sjson.DeleteBytes(append([]byte(nil), e.doc...), "parentId")
			cp := *e
			cp.doc = doc
			entries[i] = &cp
		}
	}
	s.renderList(w, models.KindFolder, entries, pagination{1, len(entries), len(entries)})
}

func (s *Server) handleListTrash(w http.ResponseWriter, r *http.Request) {
	typ := r.URL.Query().Get("type")
	if typ == "" {
		typ = string(protocol.TrashAll)
	}

	s.mu.Lock()
	files := s.sortedLocked(func(e *entry) bool { return e.trashed && e.kind == models.KindFile })
	folders := s.sortedLocked(func(e *entry) bool { return e.trashed && e.kind == models.KindFolder })
	s.mu.Unlock()

	switch protocol.TrashType(typ) {
	case protocol.TrashFiles:
		s.renderTrash(w, models.KindFile, files)
	case protocol.TrashFolders:
		s.renderTrash(w, models.KindFolder, folders)
	case protocol.TrashAll:
		s.renderTrashAll(w, files, folders)
	default:
		s.sendError(w, http.StatusBadRequest, "invalid trash type: "+typ)
	}
}

// ─── Items ──────────────────────────────────────────────────────────────────

func (s *Server) handleGet(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		e := s.entries[key(kind, r.PathValue("id"))]
		if e == nil || e.trashed {
			s.sendError(w, http.StatusNotFound, kindTitle(kind)+" not found")
			return
		}
		sendData(w, http.StatusOK, map[string]any{kind.String(): json.RawMessage(e.doc)})
	}
}

func (s *Server) handleUpdate(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		id := r.PathValue("id")
		e := s.entries[key(kind, id)]
		if e == nil || e.trashed {
			s.sendError(w, http.StatusNotFound, kindTitle(kind)+" not found")
			return
		}

		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				s.sendError(w, http.StatusBadRequest, "name required")
				return
			}
			e.doc, _ = sjson.SetBytes(e.doc, "name", *req.Name)
		}

		target := req.ParentID
		if target == nil {
			target = req.FolderID
		}
		if target != nil {
			dest := *target
			if dest != "" {
				parent := s.entries[key(models.KindFolder, dest)]
				if parent == nil || parent.trashed {
					s.sendError(w, http.StatusNotFound, "destination folder not found")
					return
				}
				if kind == models.KindFolder && s.isWithinLocked(dest, id) {
					s.sendError(w, http.StatusBadRequest, "cannot move a folder into itself")
					return
				}
				e.doc, _ = sjson.SetBytes(e.doc, parentField(kind), dest)
			} else {
				e.doc, _ = sjson.SetBytes(e.doc, parentField(kind), nil)
			}
		}

		e.doc, _ = sjson.SetBytes(e.doc, "updatedAt", s.now().UTC().Format(time.RFC3339Nano))
		sendData(w, http.StatusOK, map[string]any{kind.String(): json.RawMessage(e.doc)})
	}
}

// isWithinLocked reports whether folder id is ancestor or equal to folder
// candidate.
func (s *Server) isWithinLocked(candidate, id string) bool {
	for seen := 0; candidate != "" && seen <= len(s.entries); seen++ {
		if candidate == id {
			return true
		}
		e := s.entries[key(models.KindFolder, candidate)]
		if e == nil {
			return false
		}
		candidate = s.parentOf(e)
	}
	return false
}

func (s *Server) handleDelete(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		e := s.entries[key(kind, r.PathValue("id"))]
		if e == nil || e.trashed {
			s.sendError(w, http.StatusNotFound, kindTitle(kind)+" not found")
			return
		}
		s.trashLocked(e)
		logging.Debug("fakeapi: moved to trash", zap.String("kind", kind.String()), zap.String("id", e.id))
		sendJSON(w, http.StatusOK, map[string]any{"success": true, "message": kindTitle(kind) + " moved to trash"})
	}
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req protocol.CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.sendError(w, http.StatusBadRequest, "Folder name is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	parent := ""
	if req.ParentID != nil {
		parent = *req.ParentID
	}
	if parent != "" {
		if p := s.entries[key(models.KindFolder, parent)]; p == nil || p.trashed {
			s.sendError(w, http.StatusNotFound, "Parent folder not found")
			return
		}
	}
	e := s.createLocked(models.KindFolder, req.Name, parent, "", 0)
	sendData(w, http.StatusCreated, map[string]any{"folder": json.RawMessage(e.doc)})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.sendError(w, http.StatusBadRequest, "No files uploaded")
		return
	}
	folderID := r.FormValue("folderId")

	s.mu.Lock()
	defer s.mu.Unlock()
	if folderID != "" {
		if p := s.entries[key(models.KindFolder, folderID)]; p == nil || p.trashed {
			s.sendError(w, http.StatusNotFound, "Folder not found")
			return
		}
	}

	created := make([]*entry, 0, len(headers))
	for _, fh := range headers {
		ct := mime.TypeByExtension(filepath.Ext(fh.Filename))
		if ct == "" {
			ct = fh.Header.Get("Content-Type")
		}
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			ct = ct[:i]
		}
		created = append(created, s.createLocked(models.KindFile, fh.Filename, folderID, ct, fh.Size))
	}
	sendData(w, http.StatusCreated, map[string]any{"files": docs(created, false)})
}

// ─── Trash actions ──────────────────────────────────────────────────────────

func (s *Server) trashedEntry(w http.ResponseWriter, r *http.Request) (*entry, bool) {
	kind, ok := models.ParseKind(r.PathValue("type"))
	if !ok {
		s.sendError(w, http.StatusBadRequest, "invalid type")
		return nil, false
	}
	e := s.entries[key(kind, r.PathValue("id"))]
	if e == nil || !e.trashed {
		s.sendError(w, http.StatusNotFound, kindTitle(kind)+" not found in trash")
		return nil, false
	}
	return e, true
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.trashedEntry(w, r)
	if !ok {
		return
	}
	// A record whose parent is gone or still trashed comes back at root.
	if p := s.parentOf(e); p != "" {
		if pe := s.entries[key(models.KindFolder, p)]; pe == nil || pe.trashed {
			e.doc, _ = sjson.SetBytes(e.doc, s.quirks.TrashParentField, "")
		}
	}
	s.restoreLocked(e)
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "message": kindTitle(e.kind) + " restored"})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.trashedEntry(w, r)
	if !ok {
		return
	}
	purged := s.purgeLocked(e)
	logging.Debug("fakeapi: purged", zap.String("id", e.id), zap.Int("count", purged))
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "purged": purged})
}

func (s *Server) purgeLocked(e *entry) int {
	n := 1
	delete(s.entries, key(e.kind, e.id))
	if e.kind == models.KindFolder {
		for _, child := range s.entries {
			if child.trashed && s.parentOf(child) == e.id {
				n += s.purgeLocked(child)
			}
		}
	}
	return n
}

// ─── Sharing ────────────────────────────────────────────────────────────────

func (s *Server) handleShare(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Permission string `json:"permission"`
			Password   string `json:"password"`
			ExpiresIn  int    `json:"expiresIn"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		allowed := map[string]bool{"view": true, "edit": kind == models.KindFile, "download": kind == models.KindFolder}
		if !allowed[req.Permission] {
			s.sendError(w, http.StatusBadRequest, "invalid permission: "+req.Permission)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		e := s.entries[key(kind, r.PathValue("id"))]
		if e == nil || e.trashed {
			s.sendError(w, http.StatusNotFound, kindTitle(kind)+" not found")
			return
		}

		now := s.now().UTC()
		sh := &share{
			id:       uuid.NewString(),
			kind:     kind,
			itemID:   e.id,
			token:    strings.ReplaceAll(uuid.NewString(), "-", ""),
			password: req.Password,
			perm:     req.Permission,
			created:  now,
		}
		if req.ExpiresIn > 0 {
			sh.expires = now.AddDate(0, 0, req.ExpiresIn)
		}
		s.shares = append(s.shares, sh)
		e.doc, _ = sjson.SetBytes(e.doc, "isShared", true)
		sendData(w, http.StatusCreated, map[string]any{"share": s.shareDocLocked(sh, "")})
	}
}

// shareDocLocked renders a share with its item nested under nest, if set.
func (s *Server) shareDocLocked(sh *share, nest string) map[string]any {
	doc := map[string]any{
		"id":         sh.id,
		"type":       sh.kind.String(),
		"resourceId": sh.itemID,
		"token":      sh.token,
		"url":        "/shared/" + sh.token,
		"permission": sh.perm,
		"createdAt":  sh.created.Format(time.RFC3339Nano),
	}
	if !sh.expires.IsZero() {
		doc["expiresAt"] = sh.expires.Format(time.RFC3339Nano)
	}
	if nest != "" {
		if e := s.entries[key(sh.kind, sh.itemID)]; e != nil {
			doc[nest] = json.RawMessage(e.doc)
		}
	}
	return doc
}

func (s *Server) handleMyShares(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0, len(s.shares))
	for _, sh := range s.shares {
		nest := sh.kind.String()
		switch s.shape {
		case ShapeItems:
			nest = "item"
		case ShapeResults:
			nest = "target"
		}
		out = append(out, s.shareDocLocked(sh, nest))
	}

	switch s.shape {
	case ShapeArray:
		sendJSON(w, http.StatusOK, out)
	case ShapeItems:
		sendData(w, http.StatusOK, map[string]any{"items": out})
	case ShapeResults:
		sendJSON(w, http.StatusOK, map[string]any{"results": out})
	default:
		sendData(w, http.StatusOK, map[string]any{"shares": out})
	}
}

func (s *Server) handleSharedItem(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := r.PathValue("token")
	for _, sh := range s.shares {
		if sh.token != token {
			continue
		}
		if !sh.expires.IsZero() && s.now().After(sh.expires) {
			s.sendError(w, http.StatusGone, "Share link has expired")
			return
		}
		if sh.password != "" && r.URL.Query().Get("password") != sh.password {
			s.sendError(w, http.StatusUnauthorized, "Password required")
			return
		}
		sendData(w, http.StatusOK, map[string]any{"share": s.shareDocLocked(sh, "item")})
		return
	}
	s.sendError(w, http.StatusNotFound, "Share not found")
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	typ := r.URL.Query().Get("type")
	for i, sh := range s.shares {
		if sh.id != id || (typ != "" && typ != sh.kind.String()) {
			continue
		}
		s.shares = append(s.shares[:i], s.shares[i+1:]...)
		sendJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Share revoked"})
		return
	}
	s.sendError(w, http.StatusNotFound, "Share not found")
}

// ─── Search ─────────────────────────────────────────────────────────────────

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term := strings.TrimSpace(q.Get("q"))
	if term == "" {
		s.sendError(w, http.StatusBadRequest, "Search query is required")
		return
	}
	typ := q.Get("type")

	s.mu.Lock()
	matches := s.sortedLocked(func(e *entry) bool {
		if e.trashed || !containsFold(nameOf(e), term) {
			return false
		}
		switch typ {
		case "file":
			return e.kind == models.KindFile
		case "folder":
			return e.kind == models.KindFolder
		}
		return true
	})
	s.mu.Unlock()

	switch q.Get("sort") {
	case "name":
		sortEntries(matches, "name", q.Get("order"))
	case "date":
		sortEntries(matches, "updatedAt", q.Get("order"))
	case "size":
		sortEntries(matches, "size", q.Get("order"))
	}

	page, limit := queryInt(r, "page", 1), queryInt(r, "limit", 20)
	sendData(w, http.StatusOK, map[string]any{
		"results":    docs(paginate(matches, page, limit), true),
		"pagination": pagination{page, limit, len(matches)},
	})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := queryInt(r, "limit", 5)

	s.mu.Lock()
	matches := s.sortedLocked(func(e *entry) bool {
		return !e.trashed && term != "" && containsFold(nameOf(e), term)
	})
	s.mu.Unlock()

	seen := make(map[string]bool)
	out := make([]string, 0, limit)
	for _, e := range matches {
		name := nameOf(e)
		if seen[name] || len(out) == limit {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sendData(w, http.StatusOK, map[string]any{"suggestions": out})
}

func kindTitle(kind models.Kind) string {
	if kind == models.KindFolder {
		return "Folder"
	}
	return "File"
}
