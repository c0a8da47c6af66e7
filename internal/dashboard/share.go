package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/fruitsalade/webdrive/internal/logging"
	"github.com/fruitsalade/webdrive/pkg/models"
	"github.com/fruitsalade/webdrive/pkg/protocol"
	"github.com/fruitsalade/webdrive/pkg/tree"
)

// DefaultShareDays is the expiry of a share link when none is given.
const DefaultShareDays = 30

// Share creates a share link for item. Folders have no edit permission;
// PermEdit is sent as download for them.
func (s *Session) Share(ctx context.Context, item models.Item, opts ShareOptions) (models.Share, error) {
	if err := opts.Validate(); err != nil {
		return models.Share{}, err
	}
	if opts.Permission == "" {
		opts.Permission = PermView
	}
	if opts.ExpiresInDays == 0 {
		opts.ExpiresInDays = DefaultShareDays
	}
	allowDownload := opts.AllowDownload == nil || *opts.AllowDownload

	var (
		raw []byte
		err error
	)
	if item.IsFolder() {
		perm := string(opts.Permission)
		if opts.Permission == PermEdit {
			perm = "download"
		}
		raw, err = s.api.ShareFolder(ctx, item.ID, protocol.ShareFolderRequest{
			Permission: perm,
			Password:   opts.Password,
			ExpiresIn:  opts.ExpiresInDays,
		})
	} else {
		raw, err = s.api.ShareFile(ctx, item.ID, protocol.ShareFileRequest{
			Permission:    string(opts.Permission),
			Password:      opts.Password,
			ExpiresIn:     opts.ExpiresInDays,
			AllowDownload: allowDownload,
		})
	}
	if err != nil {
		logFailure("failed to share", err, logging.String("id", item.ID))
		return models.Share{}, fmt.Errorf("share %s: %w", item.Name, err)
	}

	sh := decodeShare(shareDoc(gjson.ParseBytes(raw)), item.Kind)
	if sh.ResourceID == "" {
		sh.ResourceID = item.ID
	}
	logging.Info("share created", logging.String("id", item.ID), logging.String("share", sh.ID))
	return sh, nil
}

// RevokeShare deletes a share link. The shared view is reloaded.
func (s *Session) RevokeShare(ctx context.Context, sh models.Share) error {
	if err := s.api.RevokeShare(ctx, sh.ID, sh.Type); err != nil {
		logFailure("failed to revoke share", err, logging.String("share", sh.ID))
		return fmt.Errorf("revoke share: %w", err)
	}
	if s.Current().Mode == ModeShared {
		s.refresh(ctx)
	}
	return nil
}

// MyShares lists the share links of the user.
func (s *Session) MyShares(ctx context.Context) ([]models.Share, error) {
	raw, err := s.api.MyShares(ctx, protocol.PageQuery{})
	if err != nil {
		logFailure("failed to list shares", err)
		return nil, fmt.Errorf("list shares: %w", err)
	}
	recs := tree.Shares.Normalize(raw, models.KindFile)
	out := make([]models.Share, 0, len(recs))
	for _, rec := range recs {
		if sh := decodeShare(rec, models.KindFile); sh.ID != "" {
			out = append(out, sh)
		}
	}
	return out, nil
}

// OpenShared resolves a share token to its share and item.
func (s *Session) OpenShared(ctx context.Context, token, password string) (models.Share, models.Item, error) {
	raw, err := s.api.SharedItem(ctx, token, password)
	if err != nil {
		return models.Share{}, models.Item{}, fmt.Errorf("open share: %w", err)
	}
	doc := shareDoc(gjson.ParseBytes(raw))
	sh := decodeShare(doc, models.KindFile)

	rec := doc
	for _, name := range shareTargets {
		if v := doc.Get(name); v.IsObject() {
			rec = v
			break
		}
	}
	return sh, tree.Decode(rec, sh.Type), nil
}

func shareDoc(doc gjson.Result) gjson.Result {
	for _, path := range []string{"data.share", "share", "data"} {
		if v := doc.Get(path); v.IsObject() {
			return v
		}
	}
	return doc
}

func decodeShare(rec gjson.Result, kind models.Kind) models.Share {
	if k, ok := models.ParseKind(rec.Get("type").String()); ok {
		kind = k
	}
	sh := models.Share{
		ID:         firstString(rec, "id", "_id", "shareId"),
		Type:       kind,
		ResourceID: firstString(rec, "resourceId", "fileId", "folderId", "item.id"),
		Token:      firstString(rec, "token", "shareToken"),
		URL:        firstString(rec, "url", "shareUrl", "link"),
		Permission: rec.Get("permission").String(),
	}
	if t, err := time.Parse(time.RFC3339Nano, rec.Get("createdAt").String()); err == nil {
		sh.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, rec.Get("expiresAt").String()); err == nil {
		sh.ExpiresAt = &t
	}
	return sh
}

func firstString(rec gjson.Result, paths ...string) string {
	s, _ := tree.Probes(paths).Resolve(rec)
	return s
}
