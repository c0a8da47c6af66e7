package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/fruitsalade/webdrive/internal/logging"
	"github.com/fruitsalade/webdrive/internal/metrics"
	"github.com/fruitsalade/webdrive/pkg/models"
	"github.com/fruitsalade/webdrive/pkg/protocol"
	"github.com/fruitsalade/webdrive/pkg/tree"
)

// SearchOptions narrow a search. Zero values let the backend decide.
type SearchOptions struct {
	Type  string // all, file, folder
	Page  int
	Limit int
	Sort  string // relevance, name, date, size
	Order protocol.SortOrder
}

func (o SearchOptions) query(q string) protocol.SearchQuery {
	return protocol.SearchQuery{Q: q, Type: o.Type, Page: o.Page, Limit: o.Limit, Sort: o.Sort, Order: o.Order}
}

// Search shows the items matching q and remembers q as a recent search.
func (s *Session) Search(ctx context.Context, q string, opts SearchOptions) (Listing, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return s.Current(), fmt.Errorf("search: empty query")
	}

	if _, err := s.ns.AddRecentSearch(q); err != nil {
		logPartial("failed to remember search", err)
	}

	files, folders, total, err := s.search(ctx, opts.query(q))
	if err != nil {
		metrics.RecordLoadFailure(ModeSearch.String())
		logFailure("search failed", err, logging.String("query", q))
		return s.Current(), fmt.Errorf("search: %w", err)
	}

	l := s.commit(state{mode: ModeSearch, folder: tree.Root, files: files, folders: folders, query: q, search: opts, total: total})
	metrics.SetViewItems(ModeSearch.String(), len(files), len(folders))
	return l, nil
}

func (s *Session) search(ctx context.Context, q protocol.SearchQuery) (files, folders []models.Item, total int, err error) {
	raw, err := s.api.Search(ctx, q)
	if err != nil {
		return nil, nil, 0, err
	}
	return searchResults(raw)
}

// searchResults splits a search response into files and folders. Total is
// the backend's match count, else the number of results.
func searchResults(raw []byte) (files, folders []models.Item, total int, err error) {
	if recs := tree.Results.Normalize(raw, models.KindFile); len(recs) > 0 {
		files, folders = tree.DecodeMixed(recs)
	} else {
		files = tree.Live.Items(raw, models.KindFile)
		folders = tree.Live.Items(raw, models.KindFolder)
	}

	total = len(files) + len(folders)
	doc := gjson.ParseBytes(raw)
	for _, path := range []string{"data.pagination.total", "pagination.total", "data.total", "total"} {
		if v := doc.Get(path); v.Type == gjson.Number {
			total = int(v.Int())
			break
		}
	}
	return files, folders, total, nil
}

// Suggestion is one entry of the search-as-you-type list.
type Suggestion struct {
	Text   string
	Source string // recent, backend, file, folder
	Item   *models.Item
}

// Suggestion limits per source.
const (
	maxRecentSuggestions  = 3
	maxBackendSuggestions = 5
	maxFileSuggestions    = 5
	maxFolderSuggestions  = 3
)

// Suggestions merges matching recent searches, backend suggestions and a
// quick search for q. Failing requests only drop their part.
func (s *Session) Suggestions(ctx context.Context, q string) []Suggestion {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Suggestion{}
	}

	out := make([]Suggestion, 0)
	lower := strings.ToLower(q)
	for _, r := range s.ns.RecentSearches() {
		if len(out) == maxRecentSuggestions {
			break
		}
		if strings.Contains(strings.ToLower(r), lower) {
			out = append(out, Suggestion{Text: r, Source: "recent"})
		}
	}

	var (
		g                    errgroup.Group
		texts                []string
		files, folders       []models.Item
		suggestErr, quickErr error
	)
	g.Go(func() error {
		raw, err := s.api.Suggestions(ctx, q, maxBackendSuggestions)
		if err != nil {
			suggestErr = err
			return nil
		}
		doc := tree.Unwrap(gjson.ParseBytes(raw))
		list := doc.Get("suggestions")
		if !list.Exists() {
			list = doc
		}
		for _, v := range list.Array() {
			if t := v.String(); v.Type == gjson.String && t != "" {
				texts = append(texts, t)
			} else if name := v.Get("name").String(); name != "" {
				texts = append(texts, name)
			}
		}
		return nil
	})
	g.Go(func() error {
		files, folders, _, quickErr = s.search(ctx, protocol.SearchQuery{
			Q: q, Type: "all", Limit: 5, Sort: "relevance", Order: protocol.Desc,
		})
		return nil
	})
	_ = g.Wait()

	if suggestErr != nil {
		logPartial("suggestions request failed", suggestErr)
	}
	if quickErr != nil {
		logPartial("quick search failed", quickErr)
	}

	for i, t := range texts {
		if i == maxBackendSuggestions {
			break
		}
		out = append(out, Suggestion{Text: t, Source: "backend"})
	}
	for i := range files {
		if i == maxFileSuggestions {
			break
		}
		out = append(out, Suggestion{Text: files[i].Name, Source: "file", Item: &files[i]})
	}
	for i := range folders {
		if i == maxFolderSuggestions {
			break
		}
		out = append(out, Suggestion{Text: folders[i].Name, Source: "folder", Item: &folders[i]})
	}
	return out
}
