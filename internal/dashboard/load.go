package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/fruitsalade/webdrive/internal/logging"
	"github.com/fruitsalade/webdrive/internal/metrics"
	"github.com/fruitsalade/webdrive/pkg/models"
	"github.com/fruitsalade/webdrive/pkg/protocol"
	"github.com/fruitsalade/webdrive/pkg/retry"
	"github.com/fruitsalade/webdrive/pkg/tree"
)

// LoadRoot shows the top of the live hierarchy.
func (s *Session) LoadRoot(ctx context.Context) (Listing, error) {
	return s.loadFolder(ctx, tree.Root, nil)
}

// LoadFolder shows the children of a live folder, fetching them from the
// backend. The breadcrumb path is reset to the folder alone; use Enter to
// descend from the current view.
func (s *Session) LoadFolder(ctx context.Context, folder models.Item) (Listing, error) {
	if folder.ID == tree.Root {
		return s.LoadRoot(ctx)
	}
	return s.loadFolder(ctx, folder.ID, []Crumb{{ID: folder.ID, Name: folder.Name}})
}

// loadFolder fetches files and folders of folderID in parallel. A failing
// side leaves its collection empty and is reported in Listing.Warnings;
// only when both fail is the load an error.
func (s *Session) loadFolder(ctx context.Context, folderID string, crumbs []Crumb) (Listing, error) {
	var (
		g                 errgroup.Group
		filesRaw, foldRaw json.RawMessage
		filesErr, foldErr error
		usedFallback      bool
		fileQ             = protocol.FileQuery{FolderID: folderID, Limit: s.opts.PageLimit}
		withFiles         = protocol.FolderQuery{ParentID: folderID, IncludeFiles: true}
		withoutFiles      = protocol.FolderQuery{ParentID: folderID}
	)

	g.Go(func() error {
		filesRaw, filesErr = s.api.ListFiles(ctx, fileQ)
		return nil
	})
	g.Go(func() error {
		foldRaw, usedFallback, foldErr = retry.Fallback(ctx,
			func(ctx context.Context) (json.RawMessage, error) { return s.api.ListFolders(ctx, withFiles) },
			func(ctx context.Context) (json.RawMessage, error) { return s.api.ListFolders(ctx, withoutFiles) },
		)
		return nil
	})
	_ = g.Wait()

	if usedFallback {
		metrics.RecordFallback("folders")
		logging.Warn("folders with includeFiles failed, retried without it", logging.String("folder", folderID))
	}

	if filesErr != nil && foldErr != nil {
		err := fmt.Errorf("%w: %w", ErrLoadFailed, errors.Join(filesErr, foldErr))
		metrics.RecordLoadFailure(ModeFolder.String())
		logFailure("failed to load folder", err, logging.String("folder", folderID))
		s.commit(state{mode: ModeFolder, folder: folderID, crumbs: crumbs})
		return Listing{}, err
	}

	var opts []tree.Option
	if folderID != tree.Root {
		opts = append(opts, tree.DefaultParent(folderID))
	}

	st := state{mode: ModeFolder, folder: folderID, crumbs: crumbs}
	if filesErr != nil {
		logPartial("files request failed, showing folders only", filesErr, logging.String("folder", folderID))
		st.warnings = append(st.warnings, fmt.Errorf("files: %w", filesErr))
	} else {
		st.files = tree.Live.Items(filesRaw, models.KindFile, opts...)
	}
	if foldErr != nil {
		logPartial("folders request failed, showing files only", foldErr, logging.String("folder", folderID))
		st.warnings = append(st.warnings, fmt.Errorf("folders: %w", foldErr))
	} else {
		st.folders = tree.Live.Items(foldRaw, models.KindFolder, opts...)
	}

	l := s.commit(st)
	metrics.SetViewItems(ModeFolder.String(), len(l.Files), len(l.Folders))
	logging.Debug("folder loaded",
		logging.String("folder", folderID),
		logging.Int("files", len(st.files)),
		logging.Int("folders", len(st.folders)),
	)
	return l, nil
}

// LoadTrash loads the whole trash and shows its top level. Trashed files
// and folders are requested in parallel; if either request fails a single
// type=all request is made instead and its records are told apart by
// their fields.
func (s *Session) LoadTrash(ctx context.Context) (Listing, error) {
	type trashed struct{ files, folders []models.Item }

	byKind := func(ctx context.Context) (trashed, error) {
		var (
			g, gctx            = errgroup.WithContext(ctx)
			filesRaw, foldRaws json.RawMessage
		)
		g.Go(func() error {
			var err error
			filesRaw, err = s.api.ListTrash(gctx, protocol.TrashQuery{Type: protocol.TrashFiles})
			return err
		})
		g.Go(func() error {
			var err error
			foldRaws, err = s.api.ListTrash(gctx, protocol.TrashQuery{Type: protocol.TrashFolders})
			return err
		})
		if err := g.Wait(); err != nil {
			return trashed{}, err
		}
		return trashed{
			files:   tree.Trash.Items(filesRaw, models.KindFile),
			folders: tree.Trash.Items(foldRaws, models.KindFolder),
		}, nil
	}

	all := func(ctx context.Context) (trashed, error) {
		raw, err := s.api.ListTrash(ctx, protocol.TrashQuery{Type: protocol.TrashAll})
		if err != nil {
			return trashed{}, err
		}
		files, folders := tree.DecodeMixed(tree.TrashAll.Normalize(raw, models.KindFile))
		return trashed{files: files, folders: folders}, nil
	}

	t, usedFallback, err := retry.Fallback(ctx, byKind, all)
	if usedFallback {
		metrics.RecordFallback("trash")
		logging.Warn("trash by kind failed, loaded type=all instead")
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrLoadFailed, err)
		metrics.RecordLoadFailure(ModeTrash.String())
		logFailure("failed to load trash", err)
		s.commit(state{mode: ModeTrash, folder: tree.Root})
		return Listing{}, err
	}

	l := s.commit(state{mode: ModeTrash, folder: tree.Root, files: t.files, folders: t.folders})
	metrics.SetViewItems(ModeTrash.String(), len(t.files), len(t.folders))
	return l, nil
}

// LoadStarred shows every file and folder that is starred on the backend or
// in the local overlay.
func (s *Session) LoadStarred(ctx context.Context) (Listing, error) {
	var (
		g, gctx           = errgroup.WithContext(ctx)
		filesRaw, foldRaw json.RawMessage
	)
	g.Go(func() error {
		var err error
		filesRaw, err = s.api.ListFiles(gctx, protocol.FileQuery{})
		return err
	})
	g.Go(func() error {
		var err error
		foldRaw, err = s.api.ListFolders(gctx, protocol.FolderQuery{})
		return err
	})
	if err := g.Wait(); err != nil {
		metrics.RecordLoadFailure(ModeStarred.String())
		logFailure("failed to load starred", err)
		return Listing{}, fmt.Errorf("load starred: %w", err)
	}

	l := s.commit(state{
		mode:    ModeStarred,
		folder:  tree.Root,
		files:   tree.Live.Items(filesRaw, models.KindFile),
		folders: tree.Live.Items(foldRaw, models.KindFolder),
	})
	metrics.SetViewItems(ModeStarred.String(), len(l.Files), len(l.Folders))
	return l, nil
}

// LoadRecent shows the most recently updated files.
func (s *Session) LoadRecent(ctx context.Context) (Listing, error) {
	raw, err := s.api.ListFiles(ctx, protocol.FileQuery{
		SortBy:    "updatedAt",
		SortOrder: protocol.Desc,
		Limit:     s.opts.RecentLimit,
	})
	if err != nil {
		metrics.RecordLoadFailure(ModeRecent.String())
		logFailure("failed to load recent", err)
		return Listing{}, fmt.Errorf("load recent: %w", err)
	}

	l := s.commit(state{mode: ModeRecent, folder: tree.Root, files: tree.Live.Items(raw, models.KindFile)})
	metrics.SetViewItems(ModeRecent.String(), len(l.Files), 0)
	return l, nil
}

// shareTargets are the fields a share record nests its item under.
var shareTargets = []string{"item", "target", "file", "folder"}

// LoadSharedByMe shows the items the user created share links for.
func (s *Session) LoadSharedByMe(ctx context.Context) (Listing, error) {
	raw, err := s.api.MyShares(ctx, protocol.PageQuery{})
	if err != nil {
		metrics.RecordLoadFailure(ModeShared.String())
		logFailure("failed to load shared by me", err)
		return Listing{}, fmt.Errorf("load shared: %w", err)
	}

	files, folders := sharedItems(tree.Shares.Normalize(raw, models.KindFile))
	l := s.commit(state{mode: ModeShared, folder: tree.Root, files: files, folders: folders})
	metrics.SetViewItems(ModeShared.String(), len(files), len(folders))
	return l, nil
}

// sharedItems unwraps the item of each share record. The kind is the
// share's type, else is told from the item's fields.
func sharedItems(shares []gjson.Result) (files, folders []models.Item) {
	files, folders = []models.Item{}, []models.Item{}
	for _, sh := range shares {
		rec := sh
		for _, name := range shareTargets {
			if v := sh.Get(name); v.IsObject() {
				rec = v
				break
			}
		}

		kind, ok := models.ParseKind(sh.Get("type").String())
		if !ok {
			if kind, ok = tree.Classify(rec); !ok {
				continue
			}
		}
		it := tree.Decode(rec, kind)
		if it.ID == "" {
			continue
		}
		it.Shared = true
		if kind == models.KindFolder {
			folders = append(folders, it)
		} else {
			files = append(files, it)
		}
	}
	return files, folders
}
