package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync/atomic"

	"github.com/tidwall/gjson"

	"github.com/fruitsalade/webdrive/internal/logging"
	"github.com/fruitsalade/webdrive/internal/metrics"
	"github.com/fruitsalade/webdrive/pkg/client"
	"github.com/fruitsalade/webdrive/pkg/models"
	"github.com/fruitsalade/webdrive/pkg/protocol"
	"github.com/fruitsalade/webdrive/pkg/tree"
)

// createdFolderID finds the id in a create-folder response.
var createdFolderID = tree.Probes{"data.folder.id", "data.folder._id", "folder.id", "data.id", "id", "_id"}

// ToggleStar flips the local star of item and returns the view with the
// new flag. No request is sent.
func (s *Session) ToggleStar(item models.Item) (Listing, bool, error) {
	starred, err := s.overlay.Toggle(item.ID)
	if err != nil {
		logFailure("failed to toggle star", err, logging.String("id", item.ID))
		return s.Current(), s.overlay.Effective(item), err
	}
	metrics.RecordStarToggle(starred)
	return s.Current(), starred || item.Starred, nil
}

// targetFolder is where new folders and uploads go: the browsed folder, or
// root outside folder views.
func (s *Session) targetFolder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeFolder {
		return s.folder
	}
	return tree.Root
}

// refresh reloads the view after a successful action. A failed reload is
// logged and the previous view returned.
func (s *Session) refresh(ctx context.Context) Listing {
	l, err := s.Reload(ctx)
	if err != nil {
		logPartial("failed to reload after action", err)
		return s.Current()
	}
	return l
}

// CreateFolder creates a folder in the browsed folder.
func (s *Session) CreateFolder(ctx context.Context, name string) (Listing, error) {
	name, err := ValidateName(name)
	if err != nil {
		return s.Current(), err
	}
	if _, err := s.createFolder(ctx, name, s.targetFolder()); err != nil {
		return s.Current(), err
	}
	return s.refresh(ctx), nil
}

func (s *Session) createFolder(ctx context.Context, name, parent string) (string, error) {
	raw, err := s.api.CreateFolder(ctx, name, parent)
	if err != nil {
		logFailure("failed to create folder", err, logging.String("name", name))
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	id, _ := createdFolderID.Resolve(gjson.ParseBytes(raw))
	logging.Info("folder created", logging.String("name", name), logging.String("id", id))
	return id, nil
}

// Rename gives item a new name.
func (s *Session) Rename(ctx context.Context, item models.Item, name string) (Listing, error) {
	name, err := ValidateName(name)
	if err != nil {
		return s.Current(), err
	}
	req := protocol.UpdateRequest{Name: &name}
	if item.IsFolder() {
		_, err = s.api.UpdateFolder(ctx, item.ID, req)
	} else {
		_, err = s.api.UpdateFile(ctx, item.ID, req)
	}
	if err != nil {
		logFailure("failed to rename", err, logging.String("id", item.ID))
		return s.Current(), fmt.Errorf("rename %s: %w", item.Name, err)
	}
	return s.refresh(ctx), nil
}

// Move puts item into the folder target. An empty target is root.
func (s *Session) Move(ctx context.Context, item models.Item, target string) (Listing, error) {
	if item.IsFolder() && target == item.ID {
		return s.Current(), fmt.Errorf("move %s: a folder cannot contain itself", item.Name)
	}

	var err error
	if item.IsFolder() {
		_, err = s.api.UpdateFolder(ctx, item.ID, protocol.UpdateRequest{ParentID: &target})
	} else {
		_, err = s.api.UpdateFile(ctx, item.ID, protocol.UpdateRequest{FolderID: &target})
	}
	if err != nil {
		logFailure("failed to move", err, logging.String("id", item.ID), logging.String("target", target))
		return s.Current(), fmt.Errorf("move %s: %w", item.Name, err)
	}
	return s.refresh(ctx), nil
}

// Delete moves item to the trash.
func (s *Session) Delete(ctx context.Context, item models.Item) (Listing, error) {
	var err error
	if item.IsFolder() {
		err = s.api.DeleteFolder(ctx, item.ID)
	} else {
		err = s.api.DeleteFile(ctx, item.ID)
	}
	if err != nil {
		logFailure("failed to delete", err, logging.String("id", item.ID))
		return s.Current(), fmt.Errorf("delete %s: %w", item.Name, err)
	}
	return s.refresh(ctx), nil
}

// Restore brings a trashed item back.
func (s *Session) Restore(ctx context.Context, item models.Item) (Listing, error) {
	if err := s.api.Restore(ctx, item.Kind, item.ID); err != nil {
		logFailure("failed to restore", err, logging.String("id", item.ID))
		return s.Current(), fmt.Errorf("restore %s: %w", item.Name, err)
	}
	return s.refresh(ctx), nil
}

// PermanentDelete removes a trashed item for good.
func (s *Session) PermanentDelete(ctx context.Context, item models.Item) (Listing, error) {
	if err := s.api.PermanentDelete(ctx, item.Kind, item.ID); err != nil {
		logFailure("failed to delete permanently", err, logging.String("id", item.ID))
		return s.Current(), fmt.Errorf("delete %s permanently: %w", item.Name, err)
	}
	return s.refresh(ctx), nil
}

// Upload sends files into the browsed folder. progress may be nil.
func (s *Session) Upload(ctx context.Context, files []client.UploadFile, progress client.Progress) (Listing, error) {
	if err := s.upload(ctx, s.targetFolder(), files, progress); err != nil {
		return s.Current(), err
	}
	return s.refresh(ctx), nil
}

func (s *Session) upload(ctx context.Context, folder string, files []client.UploadFile, progress client.Progress) error {
	var sent atomic.Int64
	track := func(n, total int64) {
		sent.Store(n)
		if progress != nil {
			progress(n, total)
		}
	}

	if _, err := s.api.Upload(ctx, folder, files, track); err != nil {
		logFailure("upload failed", err, logging.String("folder", folder), logging.Int("files", len(files)))
		return fmt.Errorf("upload: %w", err)
	}
	metrics.RecordUpload(sent.Load())
	logging.Info("uploaded files", logging.String("folder", folder), logging.Int("files", len(files)))
	return nil
}

// FolderEntry is one file of a folder upload. Path is relative to the
// directory picked, e.g. "photos/2024/a.jpg".
type FolderEntry struct {
	Path    string
	Content io.Reader
}

// UploadFolder recreates the top-level directories of entries as folders
// in the browsed folder and uploads each directory's files into them.
// Deeper levels are flattened. Entries without a directory, and the files of
// a directory whose folder could not be created, go to the browsed folder.
func (s *Session) UploadFolder(ctx context.Context, entries []FolderEntry, progress client.Progress) (Listing, error) {
	parent := s.targetFolder()

	var (
		order  []string
		groups = map[string][]client.UploadFile{}
	)
	for _, e := range entries {
		p := strings.TrimLeft(path.Clean(strings.ReplaceAll(e.Path, "\\", "/")), "/")
		dir, _, _ := strings.Cut(p, "/")
		if dir == p {
			dir = ""
		}
		if _, ok := groups[dir]; !ok {
			order = append(order, dir)
		}
		groups[dir] = append(groups[dir], client.UploadFile{Name: path.Base(p), Content: e.Content})
	}

	var errs []error
	for _, dir := range order {
		folder := parent
		if dir != "" {
			id, err := s.createFolder(ctx, dir, parent)
			switch {
			case err != nil:
				errs = append(errs, err)
			case id == "":
				logging.Warn("created folder id missing from response", logging.String("name", dir))
			default:
				folder = id
			}
		}
		if err := s.upload(ctx, folder, groups[dir], progress); err != nil {
			errs = append(errs, err)
		}
	}

	l := s.refresh(ctx)
	return l, errors.Join(errs...)
}
