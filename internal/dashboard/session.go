// Package dashboard is the view controller of the file browser. A Session
// loads the backend collections for a view (a folder, the trash, starred,
// recent, shared, search results), keeps them, and derives what is shown
// from them: the level of the hierarchy being browsed, the star overlay, the
// sort order and the kind filter.
//
// Loads are not serialized. When two loads race, the last one to complete
// replaces the state.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fruitsalade/webdrive/internal/logging"
	"github.com/fruitsalade/webdrive/pkg/client"
	"github.com/fruitsalade/webdrive/pkg/localstore"
	"github.com/fruitsalade/webdrive/pkg/models"
	"github.com/fruitsalade/webdrive/pkg/protocol"
	"github.com/fruitsalade/webdrive/pkg/tree"
)

var (
	// ErrLoadFailed is returned when no part of a view could be loaded.
	ErrLoadFailed = errors.New("failed to load data")
	// ErrInvalidName is returned for folder and file names the backend
	// would reject.
	ErrInvalidName = errors.New("invalid name")
	// ErrNotFound is returned when a name or id matches nothing in the
	// current view.
	ErrNotFound = errors.New("no such item")
	// ErrNoUser is returned by New for a user without an id.
	ErrNoUser = errors.New("session needs a user id")
)

// API is the part of the backend client a Session uses. *client.Client
// implements it.
type API interface {
	ListFiles(ctx context.Context, q protocol.FileQuery) (json.RawMessage, error)
	ListFolders(ctx context.Context, q protocol.FolderQuery) (json.RawMessage, error)
	ListTrash(ctx context.Context, q protocol.TrashQuery) (json.RawMessage, error)

	CreateFolder(ctx context.Context, name, parentID string) (json.RawMessage, error)
	UpdateFile(ctx context.Context, id string, req protocol.UpdateRequest) (json.RawMessage, error)
	UpdateFolder(ctx context.Context, id string, req protocol.UpdateRequest) (json.RawMessage, error)
	DeleteFile(ctx context.Context, id string) error
	DeleteFolder(ctx context.Context, id string) error
	Upload(ctx context.Context, folderID string, files []client.UploadFile, progress client.Progress) (json.RawMessage, error)

	Restore(ctx context.Context, kind models.Kind, id string) error
	PermanentDelete(ctx context.Context, kind models.Kind, id string) error

	ShareFile(ctx context.Context, id string, req protocol.ShareFileRequest) (json.RawMessage, error)
	ShareFolder(ctx context.Context, id string, req protocol.ShareFolderRequest) (json.RawMessage, error)
	RevokeShare(ctx context.Context, shareID string, kind models.Kind) error
	MyShares(ctx context.Context, q protocol.PageQuery) (json.RawMessage, error)
	SharedItem(ctx context.Context, token, password string) (json.RawMessage, error)

	Search(ctx context.Context, q protocol.SearchQuery) (json.RawMessage, error)
	Suggestions(ctx context.Context, q string, limit int) (json.RawMessage, error)

	CurrentUser(ctx context.Context) (*models.User, error)
}

var _ API = (*client.Client)(nil)

// Mode is the kind of view a Session shows.
type Mode int

const (
	ModeFolder Mode = iota
	ModeTrash
	ModeStarred
	ModeRecent
	ModeShared
	ModeSearch
)

func (m Mode) String() string {
	switch m {
	case ModeTrash:
		return "trash"
	case ModeStarred:
		return "starred"
	case ModeRecent:
		return "recent"
	case ModeShared:
		return "shared"
	case ModeSearch:
		return "search"
	}
	return "folder"
}

// Crumb is one folder of the breadcrumb path.
type Crumb struct {
	ID   string
	Name string
}

// Listing is what a view displays.
type Listing struct {
	Mode    Mode
	Folder  string // id of the folder browsed, tree.Root at the top
	Crumbs  []Crumb
	Files   []models.Item
	Folders []models.Item
	Query   string // search only
	Total   int    // search only: matches reported by the backend

	// Warnings holds the errors of a partially loaded view.
	Warnings []error
}

// Len returns the number of displayed items.
func (l Listing) Len() int {
	return len(l.Files) + len(l.Folders)
}

// Items returns folders then files.
func (l Listing) Items() []models.Item {
	out := make([]models.Item, 0, l.Len())
	out = append(out, l.Folders...)
	return append(out, l.Files...)
}

// Options tune a Session.
type Options struct {
	// PageLimit is sent as the limit of folder listings. 0 lets the backend
	// decide.
	PageLimit int
	// RecentLimit bounds the recent view. Defaults to 100.
	RecentLimit int
}

// Session is one user's browsing session.
type Session struct {
	api     API
	user    models.User
	ns      *localstore.Namespace
	overlay *localstore.Overlay
	opts    Options

	mu         sync.Mutex
	mode       Mode
	folder     string
	crumbs     []Crumb
	files      []models.Item // loaded collection, backend flags only
	folders    []models.Item
	query      string
	searchOpts SearchOptions
	total      int
	warnings   []error
	sort       SortSpec
	filter     Filter
}

// New starts a session for user, who must have an id. Values stored by
// older versions under un-namespaced keys are migrated to the user's
// namespace first.
func New(api API, store *localstore.Store, user models.User, opts Options) (*Session, error) {
	if user.ID == "" {
		return nil, ErrNoUser
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 100
	}

	moved, err := localstore.Migrate(store, user.ID, localstore.LegacyKeys...)
	if err != nil {
		return nil, fmt.Errorf("migrate local state: %w", err)
	}
	if len(moved) > 0 {
		logging.Info("migrated local state", logging.String("user", user.ID), logging.Any("keys", moved))
	}

	ns := store.For(user.ID)
	overlay, err := localstore.LoadOverlay(ns)
	if err != nil {
		return nil, fmt.Errorf("load star overlay: %w", err)
	}

	return &Session{
		api:     api,
		user:    user,
		ns:      ns,
		overlay: overlay,
		opts:    opts,
		files:   []models.Item{},
		folders: []models.Item{},
	}, nil
}

// User returns the session user.
func (s *Session) User() models.User {
	return s.user
}

// Overlay returns the star overlay.
func (s *Session) Overlay() *localstore.Overlay {
	return s.overlay
}

// Namespace returns the user's local state.
func (s *Session) Namespace() *localstore.Namespace {
	return s.ns
}

// SetSort changes the order of the displayed items. The zero SortSpec
// restores the default order of each view.
func (s *Session) SetSort(spec SortSpec) Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sort = spec
	return s.listingLocked()
}

// SetFilter restricts the displayed items to one kind.
func (s *Session) SetFilter(f Filter) Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	return s.listingLocked()
}

// Current returns the current view.
func (s *Session) Current() Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listingLocked()
}

// state is one loaded view, committed at once.
type state struct {
	mode     Mode
	folder   string
	crumbs   []Crumb
	files    []models.Item
	folders  []models.Item
	query    string
	search   SearchOptions
	total    int
	warnings []error
}

func (s *Session) commit(st state) Listing {
	if st.files == nil {
		st.files = []models.Item{}
	}
	if st.folders == nil {
		st.folders = []models.Item{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = st.mode
	s.folder = st.folder
	s.crumbs = st.crumbs
	s.files = st.files
	s.folders = st.folders
	s.query = st.query
	s.searchOpts = st.search
	s.total = st.total
	s.warnings = st.warnings
	return s.listingLocked()
}

// listingLocked derives the displayed view from the loaded collections.
func (s *Session) listingLocked() Listing {
	l := Listing{
		Mode:     s.mode,
		Folder:   s.folder,
		Crumbs:   append([]Crumb(nil), s.crumbs...),
		Query:    s.query,
		Total:    s.total,
		Warnings: s.warnings,
	}

	var files, folders []models.Item
	switch s.mode {
	case ModeFolder:
		lvl := tree.Navigate(tree.ScopeLive, s.folder, s.files, s.folders)
		files, folders = lvl.Files, lvl.Folders
	case ModeTrash:
		lvl := tree.Navigate(tree.ScopeTrash, s.folder, s.files, s.folders)
		files, folders = lvl.Files, lvl.Folders
	case ModeStarred:
		all := make([]models.Item, 0, len(s.files)+len(s.folders))
		all = append(append(all, s.files...), s.folders...)
		_, counted := tree.CountChildren(all, s.folders)
		files, folders = s.overlay.Filter(s.files), s.overlay.Filter(counted)
	default:
		files, folders = s.files, s.folders
	}

	files = s.overlay.Apply(files)
	folders = s.overlay.Apply(folders)
	switch s.filter {
	case FilterFiles:
		folders = []models.Item{}
	case FilterFolders:
		files = []models.Item{}
	}
	spec := s.sort
	if spec.Key == "" {
		spec = defaultSort(s.mode)
	}
	l.Files = sortItems(files, spec)
	l.Folders = sortItems(folders, spec)
	return l
}

// defaultSort is the order of a view the user did not sort: newest first
// for recent, backend relevance for search, by name elsewhere.
func defaultSort(m Mode) SortSpec {
	switch m {
	case ModeRecent:
		return SortSpec{Key: SortModified, Order: protocol.Desc}
	case ModeSearch:
		return SortSpec{}
	}
	return SortSpec{Key: SortName, Order: protocol.Asc}
}

// Reload loads the current view again. Inside the trash the browsed trash
// folder is kept when it still exists. Search results are fetched with the
// options of the original search.
func (s *Session) Reload(ctx context.Context) (Listing, error) {
	s.mu.Lock()
	mode, folder, crumbs, query, search := s.mode, s.folder, append([]Crumb(nil), s.crumbs...), s.query, s.searchOpts
	s.mu.Unlock()

	switch mode {
	case ModeTrash:
		l, err := s.LoadTrash(ctx)
		if err != nil || folder == tree.Root {
			return l, err
		}
		return s.restoreTrashPath(folder, crumbs), nil
	case ModeStarred:
		return s.LoadStarred(ctx)
	case ModeRecent:
		return s.LoadRecent(ctx)
	case ModeShared:
		return s.LoadSharedByMe(ctx)
	case ModeSearch:
		return s.Search(ctx, query, search)
	}
	return s.loadFolder(ctx, folder, crumbs)
}

func (s *Session) restoreTrashPath(folder string, crumbs []Crumb) Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.folders {
		if f.ID == folder {
			s.folder = folder
			s.crumbs = crumbs
			break
		}
	}
	return s.listingLocked()
}

// Find returns the displayed item whose id or name equals ref. Folders win
// over files with the same name.
func (s *Session) Find(ref string) (models.Item, error) {
	l := s.Current()
	for _, byID := range []bool{true, false} {
		for _, it := range l.Items() {
			if (byID && it.ID == ref) || (!byID && it.Name == ref) {
				return it, nil
			}
		}
	}
	return models.Item{}, fmt.Errorf("%w: %q", ErrNotFound, ref)
}

// logFailure logs err with its full structure.
func logFailure(msg string, err error, fields ...zap.Field) {
	logging.Error(msg, append(fields, logging.Err(err), logging.ErrDetail(err))...)
}

func logPartial(msg string, err error, fields ...zap.Field) {
	logging.Warn(msg, append(fields, logging.Err(err), logging.ErrDetail(err))...)
}
