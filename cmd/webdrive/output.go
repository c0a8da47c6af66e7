package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fruitsalade/webdrive/internal/dashboard"
	"github.com/fruitsalade/webdrive/pkg/format"
	"github.com/fruitsalade/webdrive/pkg/models"
)

const nameWidth = 48

// printListing writes the breadcrumb, the items and any partial-load
// warnings of l.
func printListing(w io.Writer, l dashboard.Listing) {
	switch l.Mode {
	case dashboard.ModeFolder, dashboard.ModeTrash:
		fmt.Fprintln(w, crumbPath(l))
	case dashboard.ModeSearch:
		fmt.Fprintf(w, "Search %q: %d match(es)\n", l.Query, l.Total)
	default:
		fmt.Fprintf(w, "[%s]\n", l.Mode)
	}

	if l.Len() == 0 {
		fmt.Fprintln(w, "  (empty)")
	} else {
		printItems(w, l.Items(), l.Mode == dashboard.ModeTrash)
	}

	for _, warn := range l.Warnings {
		fmt.Fprintf(w, "warning: %v\n", warn)
	}
}

func crumbPath(l dashboard.Listing) string {
	root := "/"
	if l.Mode == dashboard.ModeTrash {
		root = "trash:/"
	}
	names := make([]string, len(l.Crumbs))
	for i, c := range l.Crumbs {
		names[i] = c.Name
	}
	return root + strings.Join(names, "/")
}

func printItems(w io.Writer, items []models.Item, trash bool) {
	now := time.Now()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if trash {
		fmt.Fprintln(tw, "NAME\tSIZE\tDELETED\tID")
	} else {
		fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED\tID")
	}
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", displayName(it), displaySize(it), displayDate(it, trash, now), it.ID)
	}
	tw.Flush()
}

func displayName(it models.Item) string {
	name := format.Truncate(it.Name, nameWidth)
	if it.IsFolder() {
		name += "/"
	}
	if it.Starred {
		name = "* " + name
	} else {
		name = "  " + name
	}
	if it.Shared {
		name += " (shared)"
	}
	return name
}

func displaySize(it models.Item) string {
	if it.IsFolder() {
		if it.ItemCount == 1 {
			return "1 item"
		}
		return fmt.Sprintf("%d items", it.ItemCount)
	}
	return format.Bytes(it.Size)
}

func displayDate(it models.Item, trash bool, now time.Time) string {
	if trash && it.DeletedAt != nil {
		return format.RelativeDate(*it.DeletedAt, now)
	}
	t := it.UpdatedAt
	if t.IsZero() {
		t = it.CreatedAt
	}
	return format.RelativeDate(t, now)
}

func printShares(w io.Writer, shares []models.Share) {
	if len(shares) == 0 {
		fmt.Fprintln(w, "No shares")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tRESOURCE\tPERMISSION\tEXPIRES\tLINK")
	for _, sh := range shares {
		expires := "never"
		if sh.ExpiresAt != nil {
			expires = sh.ExpiresAt.Local().Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", sh.ID, sh.Type, sh.ResourceID, sh.Permission, expires, shareLink(sh))
	}
	tw.Flush()
}

func shareLink(sh models.Share) string {
	if sh.URL != "" {
		return sh.URL
	}
	return sh.Token
}

func printSuggestions(w io.Writer, sgs []dashboard.Suggestion) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, sg := range sgs {
		fmt.Fprintf(tw, "%s\t%s\n", sg.Source, sg.Text)
	}
	tw.Flush()
}

func storageLine(acct dashboard.Account) string {
	pct := 0.0
	if acct.Storage.Total > 0 {
		pct = float64(acct.Storage.Used) / float64(acct.Storage.Total) * 100
	}
	return fmt.Sprintf("%s of %s used (%.1f%%)", format.Bytes(acct.Storage.Used), format.Bytes(acct.Storage.Total), pct)
}
