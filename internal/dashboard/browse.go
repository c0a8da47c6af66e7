package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/fruitsalade/webdrive/pkg/models"
	"github.com/fruitsalade/webdrive/pkg/tree"
)

// Enter opens a folder of the current view. In the trash the loaded records
// are navigated without a request; elsewhere the folder is fetched.
func (s *Session) Enter(ctx context.Context, folder models.Item) (Listing, error) {
	if !folder.IsFolder() {
		return s.Current(), fmt.Errorf("%s is not a folder", folder.Name)
	}

	s.mu.Lock()
	mode := s.mode
	crumbs := append(append([]Crumb(nil), s.crumbs...), Crumb{ID: folder.ID, Name: folder.Name})
	if mode == ModeTrash {
		s.folder = folder.ID
		s.crumbs = crumbs
		l := s.listingLocked()
		s.mu.Unlock()
		return l, nil
	}
	s.mu.Unlock()

	if mode != ModeFolder {
		crumbs = []Crumb{{ID: folder.ID, Name: folder.Name}}
	}
	return s.loadFolder(ctx, folder.ID, crumbs)
}

// Up goes to the parent of the browsed folder.
func (s *Session) Up(ctx context.Context) (Listing, error) {
	s.mu.Lock()
	mode := s.mode
	crumbs := append([]Crumb(nil), s.crumbs...)
	if len(crumbs) > 0 {
		crumbs = crumbs[:len(crumbs)-1]
	}
	parent := tree.Root
	if len(crumbs) > 0 {
		parent = crumbs[len(crumbs)-1].ID
	}
	if mode == ModeTrash {
		s.folder = parent
		s.crumbs = crumbs
		l := s.listingLocked()
		s.mu.Unlock()
		return l, nil
	}
	s.mu.Unlock()

	return s.loadFolder(ctx, parent, crumbs)
}

// Walk opens the folder at a slash-separated path of names, starting at
// root. An empty path is root.
func (s *Session) Walk(ctx context.Context, path string) (Listing, error) {
	l, err := s.LoadRoot(ctx)
	if err != nil {
		return l, err
	}
	for _, name := range strings.Split(strings.Trim(path, "/"), "/") {
		if name == "" {
			continue
		}
		var next *models.Item
		for i := range l.Folders {
			if l.Folders[i].Name == name {
				next = &l.Folders[i]
				break
			}
		}
		if next == nil {
			return l, fmt.Errorf("%w: folder %q", ErrNotFound, name)
		}
		if l, err = s.Enter(ctx, *next); err != nil {
			return l, err
		}
	}
	return l, nil
}
