package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/fruitsalade/webdrive/pkg/models"
	"github.com/fruitsalade/webdrive/pkg/protocol"
)

// ShareFile creates a share link for a file.
func (c *Client) ShareFile(ctx context.Context, id string, req protocol.ShareFileRequest) (json.RawMessage, error) {
	return c.sendJSON(ctx, http.MethodPost, pathID("/sharing/files", id), nil, req)
}

// ShareFolder creates a share link for a folder.
func (c *Client) ShareFolder(ctx context.Context, id string, req protocol.ShareFolderRequest) (json.RawMessage, error) {
	return c.sendJSON(ctx, http.MethodPost, pathID("/sharing/folders", id), nil, req)
}

// RevokeShare deletes a share link.
func (c *Client) RevokeShare(ctx context.Context, shareID string, kind models.Kind) error {
	q := url.Values{"type": {kind.String()}}
	_, err := c.do(ctx, http.MethodDelete, pathID("/sharing", shareID), q, nil)
	return err
}

// MyShares lists the links created by the current user.
func (c *Client) MyShares(ctx context.Context, q protocol.PageQuery) (json.RawMessage, error) {
	return c.get(ctx, "/sharing/my-shares", q.Values())
}

// SharedItem opens a share link by token.
func (c *Client) SharedItem(ctx context.Context, token, password string) (json.RawMessage, error) {
	var q url.Values
	if password != "" {
		q = url.Values{"password": {password}}
	}
	return c.get(ctx, pathID("/sharing/shared", token), q)
}
