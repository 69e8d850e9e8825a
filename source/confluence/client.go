// Copyright 2025 The wiki-rag authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package confluence implements source.Source against the Confluence
// REST API. Requests use bearer or basic auth, storage-format body
// expansion, and paginated listing with bounded retries on transient
// failures.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mishgancheg/wiki-rag/source"
)

const (
	defaultPageLimit   = 50
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// Client is a Confluence REST client implementing source.Source.
type Client struct {
	baseURL     string
	token       string
	username    string
	httpClient  *http.Client
	pageLimit   int
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBasicAuth switches from bearer auth to basic auth with the given
// username; the token becomes the password (Confluence Cloud API tokens).
func WithBasicAuth(username string) Option {
	return func(c *Client) {
		c.username = username
	}
}

// WithRetry tunes the transient-failure retry policy.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if baseDelay > 0 {
			c.baseDelay = baseDelay
		}
	}
}

// WithPageLimit sets the listing page size.
func WithPageLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

// NewClient creates a client for the Confluence instance at baseURL.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		pageLimit:   defaultPageLimit,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		logger:      slog.Default().With("component", "confluence"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type spacesResponse struct {
	Results []source.Space `json:"results"`
	Size    int            `json:"size"`
}

type pageResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Children struct {
		Page struct {
			Size int `json:"size"`
		} `json:"page"`
	} `json:"children"`
}

type pagesResponse struct {
	Results []pageResult `json:"results"`
	Size    int          `json:"size"`
}

type contentResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Version struct {
		When string `json:"when"`
	} `json:"version"`
	Links struct {
		WebUI string `json:"webui"`
		Base  string `json:"base"`
	} `json:"_links"`
}

// ListSpaces returns all visible spaces, following pagination.
func (c *Client) ListSpaces(ctx context.Context) ([]source.Space, error) {
	var spaces []source.Space
	for start := 0; ; start += c.pageLimit {
		query := url.Values{
			"start": {fmt.Sprint(start)},
			"limit": {fmt.Sprint(c.pageLimit)},
		}
		var page spacesResponse
		if err := c.get(ctx, "/rest/api/space", query, &page); err != nil {
			return nil, fmt.Errorf("listing spaces: %w", err)
		}
		spaces = append(spaces, page.Results...)
		if page.Size < c.pageLimit {
			return spaces, nil
		}
	}
}

// ListRootPages returns the top-level pages of a space.
func (c *Client) ListRootPages(ctx context.Context, spaceKey string) ([]source.PageRef, error) {
	path := fmt.Sprintf("/rest/api/space/%s/content/page", url.PathEscape(spaceKey))
	refs, err := c.listPages(ctx, path, url.Values{"depth": {"root"}})
	if err != nil {
		return nil, fmt.Errorf("listing root pages of %s: %w", spaceKey, err)
	}
	return refs, nil
}

// ListChildren returns the direct children of a page.
func (c *Client) ListChildren(ctx context.Context, parentID string) ([]source.PageRef, error) {
	path := fmt.Sprintf("/rest/api/content/%s/child/page", url.PathEscape(parentID))
	refs, err := c.listPages(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("listing children of %s: %w", parentID, err)
	}
	return refs, nil
}

func (c *Client) listPages(ctx context.Context, path string, extra url.Values) ([]source.PageRef, error) {
	var refs []source.PageRef
	for start := 0; ; start += c.pageLimit {
		query := url.Values{
			"start":  {fmt.Sprint(start)},
			"limit":  {fmt.Sprint(c.pageLimit)},
			"expand": {"children.page"},
		}
		for key, vals := range extra {
			query[key] = vals
		}
		var page pagesResponse
		if err := c.get(ctx, path, query, &page); err != nil {
			return nil, err
		}
		for _, result := range page.Results {
			refs = append(refs, source.PageRef{
				ID:          result.ID,
				Title:       result.Title,
				HasChildren: result.Children.Page.Size > 0,
			})
		}
		if page.Size < c.pageLimit {
			return refs, nil
		}
	}
}

// GetPageContent returns the full page with its storage-format body and
// a normalized web URL.
func (c *Client) GetPageContent(ctx context.Context, id string) (*source.Page, error) {
	path := fmt.Sprintf("/rest/api/content/%s", url.PathEscape(id))
	query := url.Values{"expand": {"body.storage,version"}}

	var content contentResponse
	if err := c.get(ctx, path, query, &content); err != nil {
		return nil, fmt.Errorf("fetching page %s: %w", id, err)
	}

	return &source.Page{
		ID:           content.ID,
		Title:        content.Title,
		HTML:         content.Body.Storage.Value,
		URL:          c.webURL(content),
		LastModified: parseWhen(content.Version.When),
	}, nil
}

// parseWhen parses the version timestamp. Confluence emits RFC 3339 with
// milliseconds; an absent or malformed value yields the zero time.
func parseWhen(when string) time.Time {
	if when == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, when)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// webURL joins the instance base with the page's webui path.
func (c *Client) webURL(content contentResponse) string {
	if content.Links.WebUI == "" {
		return c.baseURL
	}
	base := content.Links.Base
	if base == "" {
		base = c.baseURL
	}
	return strings.TrimRight(base, "/") + content.Links.WebUI
}

// get issues one GET with auth and retries transient failures.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	return retryWithBackoff(ctx, func() error {
		return c.getOnce(ctx, endpoint, out)
	}, c.maxAttempts, c.baseDelay)
}

func (c *Client) getOnce(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %w", errPermanent, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.token)
	} else if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding response: %w", errPermanent, err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", errPermanent, ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		// Transient: leave retryable.
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("status %d from %s", resp.StatusCode, endpoint)
	default:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status %d from %s", errPermanent, resp.StatusCode, endpoint)
	}
}
