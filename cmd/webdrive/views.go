package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/webdrive/internal/dashboard"
	"github.com/fruitsalade/webdrive/pkg/protocol"
)

var (
	viewSort   string
	viewOrder  string
	viewFilter string

	searchType    string
	searchLimit   int
	searchPage    int
	searchSuggest bool
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showView(cmd, func(ctx context.Context, s *dashboard.Session) (dashboard.Listing, error) {
			return s.Walk(ctx, firstArg(args))
		})
	},
}

var trashCmd = &cobra.Command{
	Use:   "trash [path]",
	Short: "List the trash",
	Long:  "List the trash. A path of trashed folder names drills into the trash without further requests.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showView(cmd, func(ctx context.Context, s *dashboard.Session) (dashboard.Listing, error) {
			l, err := s.LoadTrash(ctx)
			if err != nil {
				return l, err
			}
			return enterPath(ctx, s, l, firstArg(args))
		})
	},
}

var starredCmd = &cobra.Command{
	Use:   "starred",
	Short: "List starred items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showView(cmd, func(ctx context.Context, s *dashboard.Session) (dashboard.Listing, error) {
			return s.LoadStarred(ctx)
		})
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently modified files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showView(cmd, func(ctx context.Context, s *dashboard.Session) (dashboard.Listing, error) {
			return s.LoadRecent(ctx)
		})
	},
}

var sharedCmd = &cobra.Command{
	Use:   "shared",
	Short: "List items shared by me",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showView(cmd, func(ctx context.Context, s *dashboard.Session) (dashboard.Listing, error) {
			return s.LoadSharedByMe(ctx)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search files and folders",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := strings.Join(args, " ")
		if searchSuggest {
			return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
				printSuggestions(os.Stdout, s.Suggestions(ctx, q))
				return nil
			})
		}
		opts := dashboard.SearchOptions{Type: searchType, Limit: searchLimit, Page: searchPage}
		return showView(cmd, func(ctx context.Context, s *dashboard.Session) (dashboard.Listing, error) {
			return s.Search(ctx, q, opts)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{lsCmd, trashCmd, starredCmd, recentCmd, sharedCmd, searchCmd} {
		addViewFlags(c)
	}
	searchCmd.Flags().StringVar(&searchType, "type", "", "all, file or folder")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results")
	searchCmd.Flags().IntVar(&searchPage, "page", 0, "result page")
	searchCmd.Flags().BoolVar(&searchSuggest, "suggest", false, "show suggestions instead of results")
}

func addViewFlags(c *cobra.Command) {
	c.Flags().StringVarP(&viewSort, "sort", "s", "", "name, modified, size or type")
	c.Flags().StringVar(&viewOrder, "order", "", "asc or desc")
	c.Flags().StringVarP(&viewFilter, "filter", "f", "all", "all, files or folders")
}

// viewSettings parses the sort and filter flags.
func viewSettings(sortName, order, filter string) (dashboard.SortSpec, dashboard.Filter, error) {
	var spec dashboard.SortSpec
	if sortName != "" {
		key, ok := dashboard.ParseSortKey(sortName)
		if !ok {
			return spec, dashboard.FilterAll, fmt.Errorf("unknown sort key %q", sortName)
		}
		spec = dashboard.SortSpec{Key: key, Order: protocol.Asc}
	}
	switch protocol.SortOrder(order) {
	case "":
	case protocol.Asc, protocol.Desc:
		if spec.Key == "" {
			spec.Key = dashboard.SortName
		}
		spec.Order = protocol.SortOrder(order)
	default:
		return spec, dashboard.FilterAll, fmt.Errorf("unknown order %q", order)
	}
	f, ok := dashboard.ParseFilter(filter)
	if !ok {
		return spec, dashboard.FilterAll, fmt.Errorf("unknown filter %q", filter)
	}
	return spec, f, nil
}

// showView opens a session, applies the view flags, loads and prints.
func showView(cmd *cobra.Command, load func(context.Context, *dashboard.Session) (dashboard.Listing, error)) error {
	spec, filter, err := viewSettings(viewSort, viewOrder, viewFilter)
	if err != nil {
		return err
	}
	return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
		s.SetSort(spec)
		s.SetFilter(filter)
		l, err := load(ctx, s)
		if err != nil {
			return err
		}
		printListing(os.Stdout, l)
		return nil
	})
}

// enterPath descends from l through the folders named by path.
func enterPath(ctx context.Context, s *dashboard.Session, l dashboard.Listing, path string) (dashboard.Listing, error) {
	for _, name := range strings.Split(strings.Trim(path, "/"), "/") {
		if name == "" {
			continue
		}
		folder, err := s.Find(name)
		if err != nil {
			return l, err
		}
		if l, err = s.Enter(ctx, folder); err != nil {
			return l, err
		}
	}
	return l, nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
