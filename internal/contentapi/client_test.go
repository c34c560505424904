package contentapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/api/v1", 0, zerolog.Nop())
}

func TestGetArticleUnwrapsEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/articles/hello-world", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"a1","title":"Hello","slug":"hello-world","images":[{"id":"i1","image_url":"/uploads/x.png","is_primary":true}]}}`))
	})

	article, err := client.GetArticle(context.Background(), "hello-world")
	require.NoError(t, err)

	assert.Equal(t, "a1", article.ID)
	assert.Equal(t, "Hello", article.Title)
	require.Len(t, article.Images, 1)
	assert.True(t, article.Images[0].IsPrimary)
}

func TestCreateCommentDecodesBareBodyAndSendsToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var in CreateCommentInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "p1", in.ParentID)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"c9","article_id":"a1","content":"hi","parent_id":"p1"}`))
	})

	ctx := WithToken(context.Background(), "tok-1")
	comment, err := client.CreateComment(ctx, CreateCommentInput{ArticleID: "a1", Content: "hi", ParentID: "p1"})
	require.NoError(t, err)

	assert.Equal(t, "c9", comment.ID)
	assert.Equal(t, "p1", comment.ParentID)
}

func TestListCommentsReadsMeta(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":[{"id":"c1"},{"id":"c2"}],"meta":{"total":12,"page":2,"limit":10}}`))
	})

	page, err := client.ListComments(context.Background(), "a1", 2, 10)
	require.NoError(t, err)

	require.Len(t, page.Data, 2)
	assert.Equal(t, 12, page.Meta.Total)
	assert.Equal(t, 2, page.Meta.TotalPages())
}

func TestSearchArticlesDefaults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		assert.Equal(t, "go lang", query.Get("q"))
		assert.Equal(t, "1", query.Get("page"))
		assert.Equal(t, "5", query.Get("limit"))
		assert.Equal(t, "PUBLISHED", query.Get("status"))
		_, _ = w.Write([]byte(`{"success":true,"data":null}`))
	})

	result, err := client.SearchArticles(context.Background(), SearchQuery{Q: "go lang", Status: StatusPublished})
	require.NoError(t, err)

	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Data)
	assert.Equal(t, "go lang", result.Meta.Query)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		status   int
		body     string
		check    func(error) bool
		expected bool
	}{
		{name: "unauthorized article", path: "/articles/x", status: 401, body: `{"error":"Unauthorized"}`, check: RequiresReauth, expected: true},
		{name: "unauthorized identity", path: "/auth/me", status: 401, body: `{"error":"Unauthorized"}`, check: RequiresReauth, expected: false},
		{name: "identity still unauthorized", path: "/auth/me", status: 401, body: `{}`, check: IsUnauthorized, expected: true},
		{name: "locked code", path: "/comments", status: 403, body: `{"error":"ACCOUNT_LOCKED","message":"locked by admin"}`, check: IsAccountLocked, expected: true},
		{name: "locked envelope", path: "/comments", status: 403, body: `{"success":false,"error":{"code":403,"message":"Account is locked"}}`, check: IsAccountLocked, expected: true},
		{name: "plain forbidden", path: "/comments", status: 403, body: `{"error":"forbidden"}`, check: IsAccountLocked, expected: false},
		{name: "rate limited", path: "/comments", status: 429, body: `too many`, check: IsRateLimited, expected: true},
		{name: "not found", path: "/articles/x", status: 404, body: `{"error":"Article not found"}`, check: IsNotFound, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseAPIError(tt.status, http.MethodGet, tt.path, []byte(tt.body))
			assert.Equal(t, tt.expected, tt.check(err))
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := parseAPIError(400, http.MethodPost, "/comments", []byte(`{"error":"content is required"}`))

	assert.Equal(t, "content is required", err.Message)
	assert.Empty(t, err.Code)
	assert.Contains(t, err.Error(), "400")
}

func TestBaseURLIsTrimmed(t *testing.T) {
	client := NewClient("  http://content.local/api/v1/ ", 0, zerolog.Nop())
	assert.Equal(t, "http://content.local/api/v1", client.BaseURL())
}

func TestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := server.URL
	server.Close()

	client := NewClient(base, time.Second, zerolog.Nop())
	_, err := client.GetArticle(context.Background(), "x")

	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, 0, StatusOf(err))
}

func TestCanceledContextIsNotTransportFailure(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.SearchArticles(ctx, SearchQuery{Q: "slow"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsTransport(err))
}
