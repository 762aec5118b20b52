// Package apiclient performs authenticated calls against the wallet API and
// recovers from expired access tokens by refreshing them once.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hongminglow/aratiri-client/internal/session"
)

// Request describes one API call. JSON takes precedence over Text; Text is sent
// verbatim as text/plain (e.g. a third-party identity token).
type Request struct {
	Method string
	Path   string
	Query  url.Values
	JSON   any
	Text   string
	// Anonymous requests carry no bearer token and never trigger a refresh.
	Anonymous bool
}

// Client attaches bearer auth to requests and coordinates token refresh.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions *session.Store
	refresh  *refresher
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for baseURL (e.g. https://host/v1) backed by sessions.
func New(baseURL string, sessions *session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 15 * time.Second},
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.refresh = newRefresher(c, sessions)
	return c
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Sessions exposes the session store the client authenticates with.
func (c *Client) Sessions() *session.Store { return c.sessions }

// Do performs req and decodes a JSON response into out. Responses without a JSON
// content type leave out untouched. A 401 triggers at most one refresh and one
// replay of the request.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return err
	}

	token := ""
	if !req.Anonymous {
		token = c.sessions.AccessToken()
	}
	res, err := c.send(ctx, req, body, contentType, token)
	if err != nil {
		return err
	}

	if res.status == http.StatusUnauthorized && !req.Anonymous {
		fresh, err := c.refresh.renew(ctx, token)
		if err != nil {
			return err
		}
		res, err = c.send(ctx, req, body, contentType, fresh)
		if err != nil {
			return err
		}
	}

	return res.decode(out)
}

// Renew returns an access token newer than stale, refreshing if nobody else
// already has. It shares the refresh coordination used by Do.
func (c *Client) Renew(ctx context.Context, stale string) (string, error) {
	return c.refresh.renew(ctx, stale)
}

type response struct {
	status      int
	contentType string
	body        []byte
}

func (r response) decode(out any) error {
	if r.status < 200 || r.status > 299 {
		return newRequestError(r.status, r.body)
	}
	if out == nil || len(bytes.TrimSpace(r.body)) == 0 || !isJSON(r.contentType) {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func encodeBody(req Request) ([]byte, string, error) {
	switch {
	case req.JSON != nil:
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return b, "application/json", nil
	case req.Text != "":
		return []byte(req.Text), "text/plain", nil
	default:
		return nil, "", nil
	}
}

func (c *Client) endpoint(req Request) string {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

func (c *Client) send(ctx context.Context, req Request, body []byte, contentType, token string) (response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.endpoint(req), reader)
	if err != nil {
		return response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}
	return response{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        b,
	}, nil
}
