// Package client is the REST client of the storage backend. List endpoints
// return the raw JSON body: their shape differs between backend versions and
// is decoded by package tree.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/webdrive/internal/logging"
	"github.com/fruitsalade/webdrive/internal/metrics"
	"github.com/fruitsalade/webdrive/pkg/retry"
)

// DefaultBaseURL is the API root used when none is configured.
const DefaultBaseURL = "http://localhost:5050/api/v1"

// Client talks to the storage backend.
type Client struct {
	baseURL    string
	origin     string
	httpClient *http.Client
	policy     retry.Policy
	now        func() time.Time

	mu             sync.RWMutex
	online         bool
	lastPing       time.Time
	token          string
	onUnauthorized func()
}

// Config holds client configuration.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Retry     retry.Policy
	Token     string
	Transport http.RoundTripper // defaults to a tuned http.Transport
	Now       func() time.Time  // token expiry clock, defaults to time.Now
}

// New creates a new client. Every request is bounded by Timeout (30s by
// default) and made once unless Retry says otherwise.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	base := cfg.Transport
	if base == nil {
		base = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		baseURL: baseURL,
		origin:  originOf(baseURL),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: logging.NewTransport(metrics.InstrumentTransport(base)),
		},
		policy: cfg.Retry,
		now:    cfg.Now,
		online: true,
		token:  cfg.Token,
	}
}

// originOf strips the path from an absolute URL: the health endpoint lives
// outside the API root.
func originOf(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return base
	}
	return u.Scheme + "://" + u.Host
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken sets the bearer token for requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// OnUnauthorized registers fn to run after a 401 cleared the token.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// applyAuth adds the auth header if the token has not expired. An expired
// token is kept; the backend decides what an anonymous request gets.
func (c *Client) applyAuth(req *http.Request) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token == "" {
		return
	}
	if !TokenUsable(token, c.now()) {
		logging.Debug("not sending expired token", zap.String("path", req.URL.Path))
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

func (c *Client) unauthorized() {
	c.mu.Lock()
	c.token = ""
	fn := c.onUnauthorized
	c.mu.Unlock()
	logging.Warn("credentials rejected, token cleared")
	if fn != nil {
		fn()
	}
}

// IsOnline returns true if the last request got a response.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			logging.Info("server is back online", zap.String("server", c.origin))
		} else {
			logging.Warn("server is offline", zap.String("server", c.origin))
		}
	}
	c.online = online
	c.lastPing = time.Now()
}

// LastSeen returns when the backend last answered or failed to.
func (c *Client) LastSeen() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPing
}

// Ping checks GET {origin}/health.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.origin+"/health", nil)
	if err != nil {
		return clientError(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return networkError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.setOnline(false)
		return &APIError{Message: fmt.Sprintf("health check returned %d", resp.StatusCode), Status: resp.StatusCode}
	}
	c.setOnline(true)
	return nil
}

// payload is a request body that can be replayed on retry.
type payload struct {
	contentType string
	data        []byte
	wrap        func(io.Reader) io.Reader
}

func jsonPayload(v any) (*payload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, clientError(fmt.Errorf("encode request: %w", err))
	}
	return &payload{contentType: "application/json", data: data}, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	var p *payload
	if body != nil {
		var err error
		if p, err = jsonPayload(body); err != nil {
			return nil, err
		}
	}
	return c.do(ctx, method, path, query, p)
}

// do sends one API call under the retry policy and maps every failure to an
// *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body *payload) (json.RawMessage, error) {
	out, err := retry.Do(ctx, c.policy, func(ctx context.Context) (json.RawMessage, error) {
		return c.roundTrip(ctx, method, path, query, body)
	})
	if err == nil {
		return out, nil
	}

	var te retry.TransientError
	if errors.As(err, &te) {
		err = te.Err
	}
	ae, ok := AsAPIError(err)
	if !ok {
		ae = clientError(err)
	}
	metrics.RecordAPIError(ae.Class())
	logging.Debug("api call failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", ae.Status),
		zap.Error(ae),
	)
	return nil, ae
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body *payload) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body.data)
		if body.wrap != nil {
			rd = body.wrap(rd)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, clientError(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
		req.ContentLength = int64(len(body.data))
	}
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return nil, retry.Transient(networkError(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.setOnline(false)
		return nil, retry.Transient(networkError(err))
	}
	c.setOnline(true)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ae := responseError(resp.StatusCode, data)
		if resp.StatusCode == http.StatusUnauthorized {
			c.unauthorized()
		}
		if resp.StatusCode >= 500 {
			return nil, retry.Transient(ae)
		}
		return nil, ae
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(data), nil
}

func pathID(prefix, id string) string {
	return prefix + "/" + url.PathEscape(id)
}
