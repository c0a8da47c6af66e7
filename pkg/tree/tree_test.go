package tree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tidwall/gjson"

	"github.com/fruitsalade/webdrive/pkg/models"
)

func ids(items []models.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func rawIDs(recs []gjson.Result) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Get("id").String())
	}
	return out
}

func TestNormalize_EmptyObject(t *testing.T) {
	for _, n := range []*Normalizer{Live, Trash, TrashAll, Shares, Results} {
		got := n.Normalize([]byte(`{}`), models.KindFile)
		if got == nil {
			t.Fatal("Normalize({}) returned nil, want empty slice")
		}
		if len(got) != 0 {
			t.Errorf("Normalize({}) = %d records, want 0", len(got))
		}
	}
}

func TestNormalize_InvalidJSON(t *testing.T) {
	got := Live.Normalize([]byte(`{"data": [`), models.KindFile)
	if got == nil || len(got) != 0 {
		t.Errorf("Normalize(invalid) = %v, want empty slice", got)
	}
}

func TestNormalize_DataItemsFilteredByType(t *testing.T) {
	raw := []byte(`{"data":{"items":[
		{"id":"f1","type":"file","name":"a.txt"},
		{"id":"d1","type":"folder","name":"docs"},
		{"id":"x1","name":"untyped"},
		{"id":"f2","type":"file","name":"b.txt"}
	]}}`)

	if diff := cmp.Diff([]string{"f1", "f2"}, rawIDs(Live.Normalize(raw, models.KindFile))); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"d1"}, rawIDs(Live.Normalize(raw, models.KindFolder))); diff != "" {
		t.Errorf("folders mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_Shapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind models.Kind
		want []string
	}{
		{"bare array", `[{"id":"a"},{"id":"b"}]`, models.KindFile, []string{"a", "b"}},
		{"data array", `{"data":[{"id":"a"}]}`, models.KindFile, []string{"a"}},
		{"data files", `{"data":{"files":[{"id":"a"}]}}`, models.KindFile, []string{"a"}},
		{"data folders", `{"data":{"folders":[{"id":"d"}],"files":[{"id":"a"}]}}`, models.KindFolder, []string{"d"}},
		{"top-level files", `{"files":[{"id":"a"}]}`, models.KindFile, []string{"a"}},
		{"results", `{"results":[{"id":"a","type":"file"},{"id":"d","type":"folder"}]}`, models.KindFolder, []string{"d"}},
		{"empty container falls through", `{"files":[],"items":[{"id":"a","type":"file"}]}`, models.KindFile, []string{"a"}},
		{"null data", `{"data":null,"files":[{"id":"a"}]}`, models.KindFile, []string{"a"}},
		{"object without list", `{"data":{"total":3}}`, models.KindFile, []string{}},
		{"scalar", `42`, models.KindFile, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rawIDs(Live.Normalize([]byte(tt.raw), tt.kind))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_TrashContainers(t *testing.T) {
	tests := []struct {
		raw  string
		kind models.Kind
		want []string
	}{
		{`{"data":{"items":[{"id":"a"},{"id":"b"}]}}`, models.KindFile, []string{"a", "b"}},
		{`{"trash":[{"id":"a"}]}`, models.KindFolder, []string{"a"}},
		{`{"trashItems":[{"id":"a"}]}`, models.KindFile, []string{"a"}},
		{`{"trashFiles":[{"id":"f"}],"trashFolders":[{"id":"d"}]}`, models.KindFolder, []string{"d"}},
		{`{"folders":[{"id":"d"}]}`, models.KindFolder, []string{"d"}},
	}
	for _, tt := range tests {
		got := rawIDs(Trash.Normalize([]byte(tt.raw), tt.kind))
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Trash.Normalize(%s) mismatch (-want +got):\n%s", tt.raw, diff)
		}
	}

	mixed := `{"data":{"files":[{"id":"f"}],"folders":[{"id":"d"}]}}`
	if diff := cmp.Diff([]string{"f", "d"}, rawIDs(TrashAll.Normalize([]byte(mixed), models.KindFile))); diff != "" {
		t.Errorf("TrashAll mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizer_With(t *testing.T) {
	n := Live.With(Field("entries"))
	got := rawIDs(n.Normalize([]byte(`{"entries":[{"id":"e"}]}`), models.KindFile))
	if diff := cmp.Diff([]string{"e"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if len(Live.Normalize([]byte(`{"entries":[{"id":"e"}]}`), models.KindFile)) != 0 {
		t.Error("With modified the receiver")
	}
}

func TestResolveParent(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"camel", `{"parentId":"p1"}`, "p1", true},
		{"snake", `{"parent_id":"p1"}`, "p1", true},
		{"folder id", `{"folderId":"p1"}`, "p1", true},
		{"nested parent", `{"parent":{"id":"p1"}}`, "p1", true},
		{"trash info", `{"trashInfo":{"parentId":"p1"}}`, "p1", true},
		{"meta snake", `{"meta":{"parent_id":"p1"}}`, "p1", true},
		{"original", `{"original_parent_id":"p1"}`, "p1", true},
		{"number", `{"parentId":17}`, "17", true},
		{"null skipped", `{"parentId":null,"folder_id":"p2"}`, "p2", true},
		{"first match wins", `{"folderId":"p2","parentId":"p1"}`, "p1", true},
		{"empty string is root", `{"parentId":"","folder_id":"p2"}`, "", true},
		{"absent", `{"id":"x","name":"n"}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveParent(gjson.Parse(tt.raw))
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ResolveParent(%s) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResolveFolderID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"id":"a","_id":"b"}`, "a"},
		{`{"_id":"b"}`, "b"},
		{`{"uuid":"c"}`, "c"},
		{`{"original_id":"d"}`, "d"},
		{`{"trash":{"id":"e"}}`, "e"},
		{`{"name":"no id"}`, ""},
	}
	for _, tt := range tests {
		if got := ResolveFolderID(gjson.Parse(tt.raw)); got != tt.want {
			t.Errorf("ResolveFolderID(%s) = %q, want %q", tt.raw, got, tt.want)
		}
	}

	aliases := FolderIDAliases(gjson.Parse(`{"id":"t1","originalId":"d1","meta":{"id":"d1"}}`))
	if diff := cmp.Diff([]string{"t1", "d1"}, aliases); diff != "" {
		t.Errorf("FolderIDAliases mismatch (-want +got):\n%s", diff)
	}
}

// Five files and three folders, each spelling its parent differently.
const mixedFiles = `{"data":{"files":[
	{"id":"f1","name":"a","parentId":"d1"},
	{"id":"f2","name":"b","folder_id":"d1"},
	{"id":"f3","name":"c","trashInfo":{"parentId":"d2"}},
	{"id":"f4","name":"d","originalParentId":"d3"},
	{"id":"f5","name":"e"}
]}}`

const mixedFolders = `[
	{"id":"d1","name":"one","itemCount":99},
	{"_id":"d2","name":"two","parent_id":"d1"},
	{"uuid":"d3","name":"three","meta":{"parent_id":"d2"}}
]`

func TestCountChildren_MixedParentFields(t *testing.T) {
	files := Live.Items([]byte(mixedFiles), models.KindFile)
	folders := Live.Items([]byte(mixedFolders), models.KindFolder)
	if len(files) != 5 || len(folders) != 3 {
		t.Fatalf("decoded %d files and %d folders, want 5 and 3", len(files), len(folders))
	}

	all := append(append([]models.Item{}, files...), folders...)
	counts, counted := CountChildren(all, folders)

	want := map[string]int{"d1": 3, "d2": 2, "d3": 1}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	for _, f := range counted {
		if f.ItemCount != want[f.ID] {
			t.Errorf("folder %s ItemCount = %d, want %d", f.ID, f.ItemCount, want[f.ID])
		}
	}
	if folders[0].ItemCount != 99 {
		t.Errorf("input folder mutated: ItemCount = %d", folders[0].ItemCount)
	}
}

func TestCountChildren_ParentlessAndDangling(t *testing.T) {
	files := []models.Item{
		{ID: "f1"},
		{ID: "f2", ParentID: "gone"},
		{ID: "f3", ParentID: "d1"},
	}
	folders := []models.Item{{ID: "d1", Kind: models.KindFolder}, {ID: "d2", Kind: models.KindFolder}}

	counts, _ := CountChildren(files, folders)
	if diff := cmp.Diff(map[string]int{"d1": 1, "d2": 0}, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}

	root := Navigate(ScopeLive, Root, files, folders)
	if diff := cmp.Diff([]string{"f1", "f2"}, ids(root.Files)); diff != "" {
		t.Errorf("live root files mismatch (-want +got):\n%s", diff)
	}
}

func TestNavigate_TrashRootDiffersFromLiveRoot(t *testing.T) {
	files := []models.Item{
		{ID: "f1", ParentID: "d1"},
		{ID: "f2"},
	}
	folders := []models.Item{
		{ID: "d1", Kind: models.KindFolder},
		{ID: "d2", Kind: models.KindFolder, ParentID: "d1"},
	}

	trash := Navigate(ScopeTrash, Root, files, folders)
	live := Navigate(ScopeLive, Root, files, folders)

	if diff := cmp.Diff([]string{"f1", "f2"}, ids(trash.Files)); diff != "" {
		t.Errorf("trash root files (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"d1", "d2"}, ids(trash.Folders)); diff != "" {
		t.Errorf("trash root folders (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"f2"}, ids(live.Files)); diff != "" {
		t.Errorf("live root files (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"d1"}, ids(live.Folders)); diff != "" {
		t.Errorf("live root folders (-want +got):\n%s", diff)
	}

	// Below root both scopes agree.
	for _, scope := range []Scope{ScopeLive, ScopeTrash} {
		lvl := Navigate(scope, "d1", files, folders)
		if diff := cmp.Diff([]string{"f1"}, ids(lvl.Files)); diff != "" {
			t.Errorf("%s d1 files (-want +got):\n%s", scope, diff)
		}
		if diff := cmp.Diff([]string{"d2"}, ids(lvl.Folders)); diff != "" {
			t.Errorf("%s d1 folders (-want +got):\n%s", scope, diff)
		}
	}
}

func TestNavigate_SingleFileScenario(t *testing.T) {
	files := Live.Items([]byte(`[{"id":"f1","parentId":"d1"}]`), models.KindFile)
	folders := Live.Items([]byte(`[{"id":"d1"}]`), models.KindFolder)

	root := Navigate(ScopeLive, Root, files, folders)
	if len(root.Files) != 0 {
		t.Errorf("root files = %v, want none", ids(root.Files))
	}
	if diff := cmp.Diff([]string{"d1"}, ids(root.Folders)); diff != "" {
		t.Errorf("root folders (-want +got):\n%s", diff)
	}
	if root.Folders[0].ItemCount != 1 {
		t.Errorf("d1 ItemCount = %d, want 1", root.Folders[0].ItemCount)
	}

	inside := Navigate(ScopeLive, "d1", files, folders)
	if diff := cmp.Diff([]string{"f1"}, ids(inside.Files)); diff != "" {
		t.Errorf("d1 files (-want +got):\n%s", diff)
	}
	if len(inside.Folders) != 0 {
		t.Errorf("d1 folders = %v, want none", ids(inside.Folders))
	}
}

func TestDecode(t *testing.T) {
	rec := gjson.Parse(`{
		"_id":"f9","original_name":"report.pdf","mime_type":"application/pdf",
		"size":2048,"folderId":"d4","created_at":"2024-03-01T10:00:00Z",
		"updatedAt":1709287200000,"deleted_at":"2024-03-02T00:00:00Z",
		"flags":{"starred":true}
	}`)

	it := Decode(rec, models.KindFile)
	if it.ID != "f9" || it.Name != "report.pdf" || it.MimeType != "application/pdf" {
		t.Errorf("unexpected identity: %+v", it)
	}
	if it.Size != 2048 || it.ParentID != "d4" {
		t.Errorf("size/parent = %d/%q", it.Size, it.ParentID)
	}
	if it.CreatedAt.IsZero() || it.UpdatedAt.IsZero() || it.DeletedAt == nil {
		t.Errorf("timestamps not decoded: %+v", it)
	}
	if !it.Starred {
		t.Error("flags.starred not honoured")
	}
}

func TestDecode_DefaultParent(t *testing.T) {
	it := Decode(gjson.Parse(`{"id":"f1"}`), models.KindFile, DefaultParent("d1"))
	if it.ParentID != "d1" {
		t.Errorf("ParentID = %q, want d1", it.ParentID)
	}
	it = Decode(gjson.Parse(`{"id":"f1","parentId":""}`), models.KindFile, DefaultParent("d1"))
	if it.ParentID != "" {
		t.Errorf("explicit empty parent overridden: %q", it.ParentID)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		raw    string
		want   models.Kind
		wantOK bool
	}{
		{`{"type":"folder","mimeType":"text/plain"}`, models.KindFolder, true},
		{`{"isFolder":true,"size":1}`, models.KindFolder, true},
		{`{"mimeType":"application/vnd.google-apps.folder"}`, models.KindFolder, true},
		{`{"mimeType":"image/png"}`, models.KindFile, true},
		{`{"size":0}`, models.KindFile, true},
		{`{"name":"bare"}`, models.KindFolder, true},
		{`{"id":"x"}`, models.KindFile, false},
	}
	for _, tt := range tests {
		got, ok := Classify(gjson.Parse(tt.raw))
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("Classify(%s) = (%v, %v), want (%v, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}

	files, folders := DecodeMixed(gjson.Parse(`[
		{"id":"a","mimeType":"text/plain"},
		{"id":"b","type":"folder"},
		{"id":"c"}
	]`).Array())
	if diff := cmp.Diff([]string{"a"}, ids(files)); diff != "" {
		t.Errorf("files (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b"}, ids(folders)); diff != "" {
		t.Errorf("folders (-want +got):\n%s", diff)
	}
}

func TestStarred(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`{"isStarred":true}`, true},
		{`{"is_starred":true}`, true},
		{`{"star":true}`, true},
		{`{"metadata":{"starred":true}}`, true},
		{`{"labels":["work","starred"]}`, true},
		{`{"isStarred":false}`, false},
		{`{}`, false},
	}
	for _, tt := range tests {
		if got := Starred(gjson.Parse(tt.raw)); got != tt.want {
			t.Errorf("Starred(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
