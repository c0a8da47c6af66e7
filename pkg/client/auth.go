package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/fruitsalade/webdrive/pkg/models"
	"github.com/fruitsalade/webdrive/pkg/protocol"
)

// LoginResult is what the client keeps from POST /auth/login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.User
}

// Login exchanges credentials for a token and starts using it.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	raw, err := c.sendJSON(ctx, http.MethodPost, "/auth/login", nil, protocol.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	doc := gjson.ParseBytes(raw)
	var token string
	for _, path := range []string{"data.token", "token", "data.accessToken", "accessToken", "data.tokens.accessToken"} {
		if v := doc.Get(path); v.Type == gjson.String && v.String() != "" {
			token = v.String()
			break
		}
	}
	if token == "" {
		return nil, clientError(fmt.Errorf("login response carries no token"))
	}

	res := &LoginResult{Token: token}
	res.ExpiresAt, _ = TokenExpiry(token)
	if u, err := decodeUser(doc); err == nil {
		res.User = *u
	}
	c.SetToken(token)
	return res, nil
}

// Logout ends the session. The local token is dropped even if the call
// fails.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.SetToken("")
	return err
}

// Me calls GET /auth/me.
func (c *Client) Me(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/auth/me", nil)
}

// CurrentUser returns the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	raw, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}
	u, err := decodeUser(gjson.ParseBytes(raw))
	if err != nil {
		return nil, clientError(err)
	}
	return u, nil
}

func decodeUser(doc gjson.Result) (*models.User, error) {
	var rec gjson.Result
	for _, path := range []string{"data.user", "user", "data"} {
		if v := doc.Get(path); v.IsObject() {
			rec = v
			break
		}
	}
	if !rec.Exists() {
		return nil, fmt.Errorf("response carries no user")
	}

	u := &models.User{
		ID:           rec.Get("id").String(),
		Email:        rec.Get("email").String(),
		Username:     rec.Get("username").String(),
		FirstName:    rec.Get("firstName").String(),
		LastName:     rec.Get("lastName").String(),
		StorageUsed:  numeric(rec.Get("storageUsed")),
		StorageLimit: numeric(rec.Get("storageLimit")),
		FileCount:    int(rec.Get("fileCount").Int()),
		FolderCount:  int(rec.Get("folderCount").Int()),
	}
	if p, ok := models.ParsePlan(rec.Get("plan").String()); ok {
		u.Plan = p
	}
	if t, err := time.Parse(time.RFC3339Nano, rec.Get("createdAt").String()); err == nil {
		u.CreatedAt = t
	}
	return u, nil
}

// numeric reads a number that may be sent as a JSON string (bigint columns).
func numeric(v gjson.Result) int64 {
	if v.Type == gjson.String {
		n, _ := strconv.ParseInt(v.String(), 10, 64)
		return n
	}
	return v.Int()
}
