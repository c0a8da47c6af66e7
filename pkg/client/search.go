package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/fruitsalade/webdrive/pkg/protocol"
)

// Search calls GET /search.
func (c *Client) Search(ctx context.Context, q protocol.SearchQuery) (json.RawMessage, error) {
	return c.get(ctx, "/search", q.Values())
}

// Suggestions calls GET /search/suggestions.
func (c *Client) Suggestions(ctx context.Context, q string, limit int) (json.RawMessage, error) {
	v := url.Values{"q": {q}}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	return c.get(ctx, "/search/suggestions", v)
}
