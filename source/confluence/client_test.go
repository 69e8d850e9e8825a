package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token",
		WithHTTPClient(srv.Client()),
		WithRetry(3, time.Millisecond),
		WithPageLimit(2),
	)
}

func TestListSpacesPaginated(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/space", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		switch r.URL.Query().Get("start") {
		case "0":
			fmt.Fprint(w, `{"results":[{"key":"DEV","name":"Development"},{"key":"OPS","name":"Operations"}],"size":2}`)
		default:
			fmt.Fprint(w, `{"results":[{"key":"QA","name":"Quality"}],"size":1}`)
		}
	}))

	spaces, err := c.ListSpaces(context.Background())
	require.NoError(t, err)

	require.Len(t, spaces, 3)
	assert.Equal(t, "DEV", spaces[0].Key)
	assert.Equal(t, "Quality", spaces[2].Name)
}

func TestListRootPagesHasChildrenFlag(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/space/DEV/content/page", r.URL.Path)
		require.Equal(t, "root", r.URL.Query().Get("depth"))

		// size == limit triggers one extra fetch; the second page is empty.
		if r.URL.Query().Get("start") != "0" {
			fmt.Fprint(w, `{"results":[],"size":0}`)
			return
		}
		fmt.Fprint(w, `{"results":[
			{"id":"1","title":"Parent","children":{"page":{"size":4}}},
			{"id":"2","title":"Leaf","children":{"page":{"size":0}}}
		],"size":2}`)
	}))

	pages, err := c.ListRootPages(context.Background(), "DEV")
	require.NoError(t, err)

	require.Len(t, pages, 2)
	assert.True(t, pages[0].HasChildren)
	assert.False(t, pages[1].HasChildren)
}

func TestListChildren(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/content/42/child/page", r.URL.Path)
		fmt.Fprint(w, `{"results":[{"id":"43","title":"Child","children":{"page":{"size":0}}}],"size":1}`)
	}))

	children, err := c.ListChildren(context.Background(), "42")
	require.NoError(t, err)

	require.Len(t, children, 1)
	assert.Equal(t, "43", children[0].ID)
	assert.Equal(t, "Child", children[0].Title)
}

func TestGetPageContent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/content/7", r.URL.Path)
		require.Equal(t, "body.storage,version", r.URL.Query().Get("expand"))

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "7",
			"title": "Runbook",
			"body":  map[string]any{"storage": map[string]any{"value": "<p>hello</p>"}},
			"version": map[string]any{
				"when": "2025-06-01T10:00:00.000Z",
			},
			"_links": map[string]any{
				"base":  "https://wiki.example.com",
				"webui": "/spaces/DEV/pages/7",
			},
		})
	}))

	page, err := c.GetPageContent(context.Background(), "7")
	require.NoError(t, err)

	assert.Equal(t, "7", page.ID)
	assert.Equal(t, "Runbook", page.Title)
	assert.Equal(t, "<p>hello</p>", page.HTML)
	assert.Equal(t, "https://wiki.example.com/spaces/DEV/pages/7", page.URL)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), page.LastModified)
}

func TestParseWhen(t *testing.T) {
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 500_000_000, time.UTC),
		parseWhen("2025-06-01T12:00:00.500+02:00"))
	assert.True(t, parseWhen("").IsZero())
	assert.True(t, parseWhen("last tuesday").IsZero())
}

func TestGetPageContentNotFound(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.GetPageContent(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load(), "404 must not be retried")
}

func TestTransientFailureRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"results":[],"size":0}`)
	}))

	spaces, err := c.ListSpaces(context.Background())
	require.NoError(t, err)
	assert.Empty(t, spaces)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "api-token", pass)
		fmt.Fprint(w, `{"results":[],"size":0}`)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "api-token", WithBasicAuth("bot@example.com"))
	_, err := c.ListSpaces(context.Background())
	require.NoError(t, err)
}
