package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fruitsalade/webdrive/internal/fakeapi"
	"github.com/fruitsalade/webdrive/internal/logging"
	"github.com/fruitsalade/webdrive/pkg/client"
	"github.com/fruitsalade/webdrive/pkg/localstore"
	"github.com/fruitsalade/webdrive/pkg/models"
	"github.com/fruitsalade/webdrive/pkg/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const testUser = "user-1"

type harness struct {
	fake  *fakeapi.Server
	store *localstore.Store
	dir   string
	s     *Session
}

func newHarness(t *testing.T, opts ...fakeapi.Option) *harness {
	t.Helper()
	fake := fakeapi.New(opts...)
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	store, err := localstore.Open(dir)
	require.NoError(t, err)

	h := &harness{fake: fake, store: store, dir: dir}
	h.s = h.session(t, srv.URL)
	return h
}

func (h *harness) session(t *testing.T, baseURL string) *Session {
	t.Helper()
	api := client.New(client.Config{
		BaseURL:   baseURL + fakeapi.Prefix,
		Transport: &http.Transport{DisableKeepAlives: true},
	})
	s, err := New(api, h.store, models.User{ID: testUser, Email: "ada@example.com"}, Options{})
	require.NoError(t, err)
	return s
}

func names(items []models.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func find(t *testing.T, items []models.Item, name string) models.Item {
	t.Helper()
	for _, it := range items {
		if it.Name == name {
			return it
		}
	}
	t.Fatalf("no item named %q in %v", name, names(items))
	return models.Item{}
}

// seed builds
//
//	Docs/        b.txt, Sub/ c.txt
//	Photos/
//	a.txt
func seed(f *fakeapi.Server) (docs, sub, photos string) {
	docs = f.AddFolder("Docs", "")
	photos = f.AddFolder("Photos", "")
	sub = f.AddFolder("Sub", docs)
	f.AddFile("a.txt", "", "text/plain", 10)
	f.AddFile("b.txt", docs, "text/plain", 20)
	f.AddFile("c.txt", sub, "text/plain", 30)
	return docs, sub, photos
}

func TestLoadRoot(t *testing.T) {
	h := newHarness(t)
	seed(h.fake)

	l, err := h.s.LoadRoot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ModeFolder, l.Mode)
	assert.Empty(t, l.Crumbs)
	assert.Empty(t, l.Warnings)
	assert.Equal(t, []string{"a.txt"}, names(l.Files))
	assert.Equal(t, []string{"Docs", "Photos"}, names(l.Folders))
	assert.Equal(t, 2, find(t, l.Folders, "Docs").ItemCount)
	assert.Equal(t, 0, find(t, l.Folders, "Photos").ItemCount)
}

func TestLoadRoot_Shapes(t *testing.T) {
	for _, shape := range []fakeapi.Shape{fakeapi.ShapeData, fakeapi.ShapeArray, fakeapi.ShapeItems, fakeapi.ShapeResults} {
		t.Run(shape.String(), func(t *testing.T) {
			h := newHarness(t, fakeapi.WithShape(shape))
			seed(h.fake)

			l, err := h.s.LoadRoot(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"a.txt"}, names(l.Files))
			assert.Equal(t, []string{"Docs", "Photos"}, names(l.Folders))
		})
	}
}

func TestEnterAndUp(t *testing.T) {
	h := newHarness(t)
	docs, _, _ := seed(h.fake)
	ctx := context.Background()

	root, err := h.s.LoadRoot(ctx)
	require.NoError(t, err)

	l, err := h.s.Enter(ctx, find(t, root.Folders, "Docs"))
	require.NoError(t, err)
	assert.Equal(t, docs, l.Folder)
	assert.Equal(t, []Crumb{{ID: docs, Name: "Docs"}}, l.Crumbs)
	assert.Equal(t, []string{"b.txt"}, names(l.Files))
	assert.Equal(t, []string{"Sub"}, names(l.Folders))
	assert.Contains(t, h.fake.Requests(), "GET /files?folderId="+docs)

	l, err = h.s.Enter(ctx, find(t, l.Folders, "Sub"))
	require.NoError(t, err)
	assert.Len(t, l.Crumbs, 2)
	assert.Equal(t, []string{"c.txt"}, names(l.Files))

	l, err = h.s.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, docs, l.Folder)

	l, err = h.s.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", l.Folder)
	assert.Equal(t, []string{"a.txt"}, names(l.Files))
}

func TestEnter_NotAFolder(t *testing.T) {
	h := newHarness(t)
	_, err := h.s.Enter(context.Background(), models.Item{ID: "file-1", Name: "a.txt"})
	assert.Error(t, err)
	assert.Empty(t, h.fake.Requests())
}

func TestWalk(t *testing.T) {
	h := newHarness(t)
	_, sub, _ := seed(h.fake)

	l, err := h.s.Walk(context.Background(), "/Docs/Sub/")
	require.NoError(t, err)
	assert.Equal(t, sub, l.Folder)
	assert.Equal(t, []string{"Docs", "Sub"}, []string{l.Crumbs[0].Name, l.Crumbs[1].Name})

	_, err = h.s.Walk(context.Background(), "Docs/Missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadFolder_ParentOmittedByBackend(t *testing.T) {
	h := newHarness(t, fakeapi.WithQuirks(fakeapi.Quirks{OmitFolderParent: true}))
	docs, _, _ := seed(h.fake)

	l, err := h.s.LoadFolder(context.Background(), models.Item{ID: docs, Name: "Docs", Kind: models.KindFolder})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sub"}, names(l.Folders))
	assert.Equal(t, docs, l.Folders[0].ParentID)
}

func TestLoadFolder_FilesFail(t *testing.T) {
	h := newHarness(t)
	seed(h.fake)
	h.fake.Inject(fakeapi.Fault{Method: http.MethodGet, Path: "/files", Status: http.StatusInternalServerError})

	l, err := h.s.LoadRoot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, l.Files)
	assert.Equal(t, []string{"Docs", "Photos"}, names(l.Folders))
	require.Len(t, l.Warnings, 1)
	assert.Equal(t, http.StatusInternalServerError, client.StatusOf(l.Warnings[0]))
}

func TestLoadFolder_FoldersFail(t *testing.T) {
	h := newHarness(t)
	seed(h.fake)
	h.fake.Inject(fakeapi.Fault{Method: http.MethodGet, Path: "/folders", Status: http.StatusBadGateway})

	l, err := h.s.LoadRoot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, l.Folders)
	require.Len(t, l.Warnings, 1)
	// With no folders loaded every file's parent dangles, so all show at root.
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, names(l.Files))
}

func TestLoadFolder_BothFail(t *testing.T) {
	h := newHarness(t)
	seed(h.fake)
	ctx := context.Background()

	_, err := h.s.LoadRoot(ctx)
	require.NoError(t, err)

	h.fake.Inject(fakeapi.Fault{Path: "/files", Status: http.StatusInternalServerError, Message: "files down"})
	h.fake.Inject(fakeapi.Fault{Path: "/folders", Status: http.StatusInternalServerError, Message: "folders down"})

	l, err := h.s.LoadRoot(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Contains(t, err.Error(), "files down")
	assert.Contains(t, err.Error(), "folders down")
	assert.Zero(t, l.Len())

	// The failed load replaced the view.
	assert.Zero(t, h.s.Current().Len())
}

func TestLoadFolder_BothFailLogsDetail(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logging.L()
	logging.Replace(zap.New(core))
	t.Cleanup(func() { logging.Replace(prev) })

	h := newHarness(t)
	h.fake.Inject(fakeapi.Fault{Path: "/files", Status: http.StatusInternalServerError, Message: "files down"})
	h.fake.Inject(fakeapi.Fault{Path: "/folders", Status: http.StatusInternalServerError, Message: "folders down"})

	_, err := h.s.LoadRoot(context.Background())
	require.ErrorIs(t, err, ErrLoadFailed)

	entries := logs.FilterMessage("failed to load folder").All()
	require.Len(t, entries, 1)
	detail, ok := entries[0].ContextMap()["error_detail"].([]error)
	require.True(t, ok, "error_detail = %#v", entries[0].ContextMap()["error_detail"])
	require.GreaterOrEqual(t, len(detail), 2)

	var messages []string
	for _, d := range detail {
		ae, ok := client.AsAPIError(d)
		require.True(t, ok, "%T in error_detail", d)
		assert.Equal(t, http.StatusInternalServerError, ae.Status)
		assert.NotNil(t, ae.Details)
		messages = append(messages, ae.Message)
	}
	assert.Contains(t, messages, "files down")
	assert.Contains(t, messages, "folders down")
}

func TestLoadFolder_IncludeFilesFallback(t *testing.T) {
	h := newHarness(t, fakeapi.WithQuirks(fakeapi.Quirks{NoIncludeFiles: true}))
	docs, _, _ := seed(h.fake)

	l, err := h.s.LoadFolder(context.Background(), models.Item{ID: docs, Name: "Docs", Kind: models.KindFolder})
	require.NoError(t, err)
	assert.Empty(t, l.Warnings)
	assert.Equal(t, []string{"Sub"}, names(l.Folders))

	reqs := h.fake.Requests()
	assert.Contains(t, reqs, "GET /folders?"+url.Values{"parentId": {docs}, "includeFiles": {"true"}}.Encode())
	assert.Contains(t, reqs, "GET /folders?parentId="+docs)
}

func TestLoadTrash_DrillDownIsLocal(t *testing.T) {
	h := newHarness(t)
	docs, _, _ := seed(h.fake)
	ctx := context.Background()

	root, err := h.s.LoadRoot(ctx)
	require.NoError(t, err)
	_, err = h.s.Delete(ctx, find(t, root.Folders, "Docs"))
	require.NoError(t, err)
	_, err = h.s.Delete(ctx, find(t, root.Files, "a.txt"))
	require.NoError(t, err)

	l, err := h.s.LoadTrash(ctx)
	require.NoError(t, err)
	assert.Equal(t, ModeTrash, l.Mode)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, names(l.Files))
	assert.Equal(t, []string{"Docs", "Sub"}, names(l.Folders))

	h.fake.ResetRequests()

	l, err = h.s.Enter(ctx, find(t, l.Folders, "Docs"))
	require.NoError(t, err)
	assert.Equal(t, docs, l.Folder)
	assert.Equal(t, []string{"b.txt"}, names(l.Files))
	assert.Equal(t, []string{"Sub"}, names(l.Folders))

	l, err = h.s.Enter(ctx, find(t, l.Folders, "Sub"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c.txt"}, names(l.Files))

	l, err = h.s.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, docs, l.Folder)

	assert.Empty(t, h.fake.Requests())
}

func TestLoadTrash_Shapes(t *testing.T) {
	for _, shape := range []fakeapi.Shape{fakeapi.ShapeData, fakeapi.ShapeArray, fakeapi.ShapeItems, fakeapi.ShapeResults} {
		t.Run(shape.String(), func(t *testing.T) {
			h := newHarness(t, fakeapi.WithTrashShape(shape), fakeapi.WithQuirks(fakeapi.Quirks{TrashParentField: "previousParentId"}))
			docs, _, _ := seed(h.fake)
			require.True(t, h.fake.Trash(models.KindFolder, docs))

			l, err := h.s.LoadTrash(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"b.txt", "c.txt"}, names(l.Files))
			assert.Equal(t, []string{"Docs", "Sub"}, names(l.Folders))
			assert.Equal(t, docs, find(t, l.Files, "b.txt").ParentID)
		})
	}
}

func TestLoadTrash_FallsBackToTypeAll(t *testing.T) {
	h := newHarness(t)
	docs, _, _ := seed(h.fake)
	require.True(t, h.fake.Trash(models.KindFolder, docs))
	h.fake.Inject(fakeapi.Fault{
		Path:   "/trash",
		Query:  url.Values{"type": {"folder"}},
		Status: http.StatusInternalServerError,
	})

	l, err := h.s.LoadTrash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt", "c.txt"}, names(l.Files))
	assert.Equal(t, []string{"Docs", "Sub"}, names(l.Folders))
	assert.Contains(t, h.fake.Requests(), "GET /trash?type=all")
}

func TestLoadTrash_AllFail(t *testing.T) {
	h := newHarness(t)
	h.fake.Inject(fakeapi.Fault{Path: "/trash", Status: http.StatusServiceUnavailable})

	_, err := h.s.LoadTrash(context.Background())
	assert.ErrorIs(t, err, ErrLoadFailed)
}

func TestReload_KeepsTrashFolder(t *testing.T) {
	h := newHarness(t)
	docs, _, _ := seed(h.fake)
	require.True(t, h.fake.Trash(models.KindFolder, docs))
	ctx := context.Background()

	l, err := h.s.LoadTrash(ctx)
	require.NoError(t, err)
	l, err = h.s.Enter(ctx, find(t, l.Folders, "Docs"))
	require.NoError(t, err)

	// Restoring b.txt reloads the trash and stays inside Docs.
	l, err = h.s.Restore(ctx, find(t, l.Files, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, docs, l.Folder)
	assert.Empty(t, l.Files)
	assert.Equal(t, []string{"Sub"}, names(l.Folders))
}

func TestLoadStarred(t *testing.T) {
	h := newHarness(t)
	_, _, photos := seed(h.fake)
	h.fake.Star(models.KindFolder, photos)
	ctx := context.Background()

	root, err := h.s.LoadRoot(ctx)
	require.NoError(t, err)
	_, _, err = h.s.ToggleStar(find(t, root.Files, "a.txt"))
	require.NoError(t, err)

	l, err := h.s.LoadStarred(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, names(l.Files))
	assert.Equal(t, []string{"Photos"}, names(l.Folders))
	for _, it := range l.Items() {
		assert.True(t, it.Starred, it.Name)
	}
}

func TestLoadRecent(t *testing.T) {
	h := newHarness(t)
	h.fake.Put(models.KindFile, `{"id":"old","name":"a-old.txt","mimeType":"text/plain","updatedAt":"2024-01-01T00:00:00Z"}`)
	h.fake.Put(models.KindFile, `{"id":"new","name":"z-new.txt","mimeType":"text/plain","updatedAt":"2024-06-01T00:00:00Z"}`)
	h.fake.AddFolder("Docs", "")

	l, err := h.s.LoadRecent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"z-new.txt", "a-old.txt"}, names(l.Files))
	assert.Empty(t, l.Folders)
	assert.Contains(t, h.fake.Requests(), "GET /files?limit=100&sortBy=updatedAt&sortOrder=desc")
}

func TestSetSortAndFilter(t *testing.T) {
	h := newHarness(t)
	h.fake.AddFile("b.txt", "", "text/plain", 300)
	h.fake.AddFile("a.txt", "", "text/plain", 100)
	h.fake.AddFile("c.png", "", "image/png", 200)
	h.fake.AddFolder("Docs", "")

	_, err := h.s.LoadRoot(context.Background())
	require.NoError(t, err)

	l := h.s.SetSort(SortSpec{Key: SortSize, Order: protocol.Desc})
	assert.Equal(t, []string{"b.txt", "c.png", "a.txt"}, names(l.Files))

	l = h.s.SetFilter(FilterFolders)
	assert.Empty(t, l.Files)
	assert.Equal(t, []string{"Docs"}, names(l.Folders))

	l = h.s.SetFilter(FilterFiles)
	assert.Len(t, l.Files, 3)
	assert.Empty(t, l.Folders)

	l = h.s.SetSort(SortSpec{})
	assert.Equal(t, []string{"a.txt", "b.txt", "c.png"}, names(l.Files))
}

func TestFind(t *testing.T) {
	h := newHarness(t)
	h.fake.AddFolder("same", "")
	id := h.fake.AddFile("same", "", "text/plain", 1)

	_, err := h.s.LoadRoot(context.Background())
	require.NoError(t, err)

	it, err := h.s.Find("same")
	require.NoError(t, err)
	assert.True(t, it.IsFolder())

	it, err = h.s.Find(id)
	require.NoError(t, err)
	assert.False(t, it.IsFolder())

	_, err = h.s.Find("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

// gatedAPI answers file listings only when the folder's gate is released.
type gatedAPI struct {
	API
	gates map[string]chan struct{}
}

func (g *gatedAPI) ListFiles(ctx context.Context, q protocol.FileQuery) (json.RawMessage, error) {
	select {
	case <-g.gates[q.FolderID]:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return json.RawMessage(`[{"id":"` + q.FolderID + `-file","name":"in ` + q.FolderID + `"}]`), nil
}

func (g *gatedAPI) ListFolders(context.Context, protocol.FolderQuery) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func TestRacingLoads_LastCompletedWins(t *testing.T) {
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	api := &gatedAPI{gates: map[string]chan struct{}{"A": make(chan struct{}), "B": make(chan struct{})}}
	s, err := New(api, store, models.User{ID: testUser}, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	doneA, doneB := make(chan error, 1), make(chan error, 1)
	go func() {
		_, err := s.LoadFolder(ctx, models.Item{ID: "A", Name: "A", Kind: models.KindFolder})
		doneA <- err
	}()
	go func() {
		_, err := s.LoadFolder(ctx, models.Item{ID: "B", Name: "B", Kind: models.KindFolder})
		doneB <- err
	}()

	// B was requested last but completes first; A's late response wins.
	close(api.gates["B"])
	require.NoError(t, <-doneB)
	assert.Equal(t, "B", s.Current().Folder)

	close(api.gates["A"])
	require.NoError(t, <-doneA)

	l := s.Current()
	assert.Equal(t, "A", l.Folder)
	if diff := cmp.Diff([]string{"in A"}, names(l.Files)); diff != "" {
		t.Errorf("files (-want +got):\n%s", diff)
	}
}

func TestNew_MigratesLegacyState(t *testing.T) {
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set(localstore.KeyStarred, []string{"file-9"}))
	require.NoError(t, store.Set(localstore.KeyPlan, "pro"))

	s, err := New(&gatedAPI{}, store, models.User{ID: testUser}, Options{})
	require.NoError(t, err)

	assert.True(t, s.Overlay().Has("file-9"))
	plan, ok := s.Namespace().StoredPlan()
	assert.True(t, ok)
	assert.Equal(t, models.PlanPro, plan)
	assert.False(t, store.Has(localstore.KeyStarred))
	assert.False(t, store.Has(localstore.KeyPlan))

	// Other users do not see the migrated stars.
	other, err := New(&gatedAPI{}, store, models.User{ID: "user-2"}, Options{})
	require.NoError(t, err)
	assert.False(t, other.Overlay().Has("file-9"))
}

func TestNew_RequiresUserID(t *testing.T) {
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set(localstore.KeyStarred, []string{"file-9"}))

	_, err = New(&gatedAPI{}, store, models.User{Email: "anon@example.com"}, Options{})
	require.ErrorIs(t, err, ErrNoUser)

	// The legacy value is left for the next real user.
	assert.Equal(t, []string{localstore.KeyStarred}, store.Keys())
	s, err := New(&gatedAPI{}, store, models.User{ID: testUser}, Options{})
	require.NoError(t, err)
	assert.True(t, s.Overlay().Has("file-9"))
}

func TestToggleStar_PersistsWithoutRequests(t *testing.T) {
	h := newHarness(t)
	seed(h.fake)
	ctx := context.Background()

	root, err := h.s.LoadRoot(ctx)
	require.NoError(t, err)
	h.fake.ResetRequests()

	a := find(t, root.Files, "a.txt")
	l, starred, err := h.s.ToggleStar(a)
	require.NoError(t, err)
	assert.True(t, starred)
	assert.True(t, find(t, l.Files, "a.txt").Starred)
	assert.Empty(t, h.fake.Requests())

	// A new session over the same state directory sees the star.
	store, err := localstore.Open(h.dir)
	require.NoError(t, err)
	ov, err := localstore.LoadOverlay(store.For(testUser))
	require.NoError(t, err)
	assert.True(t, ov.Has(a.ID))

	l, starred, err = h.s.ToggleStar(a)
	require.NoError(t, err)
	assert.False(t, starred)
	assert.False(t, find(t, l.Files, "a.txt").Starred)
}

func TestToggleStar_BackendStarKept(t *testing.T) {
	h := newHarness(t)
	id := h.fake.AddFile("a.txt", "", "text/plain", 1)
	h.fake.Star(models.KindFile, id)

	root, err := h.s.LoadRoot(context.Background())
	require.NoError(t, err)
	a := find(t, root.Files, "a.txt")
	require.True(t, a.Starred)

	// Toggling adds a local star; the backend flag still shows.
	_, starred, err := h.s.ToggleStar(a)
	require.NoError(t, err)
	assert.True(t, starred)
	_, starred, err = h.s.ToggleStar(a)
	require.NoError(t, err)
	assert.True(t, starred)
}

func TestErrorsWrapAPIError(t *testing.T) {
	h := newHarness(t)
	h.fake.Inject(fakeapi.Fault{Path: "/files", Status: http.StatusNotFound, Message: "gone"})
	h.fake.Inject(fakeapi.Fault{Path: "/folders", Status: http.StatusNotFound, Message: "gone"})

	_, err := h.s.LoadRoot(context.Background())
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "gone", apiErr.Message)
}
