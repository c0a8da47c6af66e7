package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fruitsalade/webdrive/pkg/models"
	"github.com/fruitsalade/webdrive/pkg/protocol"
)

// ListTrash calls GET /trash.
func (c *Client) ListTrash(ctx context.Context, q protocol.TrashQuery) (json.RawMessage, error) {
	return c.get(ctx, "/trash", q.Values())
}

// Restore moves a trashed item back to where it was deleted from.
func (c *Client) Restore(ctx context.Context, kind models.Kind, id string) error {
	_, err := c.do(ctx, http.MethodPost, pathID("/trash/"+kind.String(), id)+"/restore", nil, nil)
	return err
}

// PermanentDelete removes a trashed item for good.
func (c *Client) PermanentDelete(ctx context.Context, kind models.Kind, id string) error {
	_, err := c.do(ctx, http.MethodDelete, pathID("/trash/"+kind.String(), id), nil, nil)
	return err
}
