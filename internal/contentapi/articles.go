package contentapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ArticleQuery 描述文章列表的过滤条件。
type ArticleQuery struct {
	Page       int
	Limit      int
	Search     string
	Status     string
	CategoryID string
	TagID      string
	IsFeatured *bool
}

func (q ArticleQuery) values() url.Values {
	values := pageQuery(q.Page, q.Limit)
	setIf(values, "search", q.Search)
	setIf(values, "status", q.Status)
	setIf(values, "category_id", q.CategoryID)
	setIf(values, "tag_id", q.TagID)
	if q.IsFeatured != nil {
		values.Set("is_featured", fmt.Sprint(*q.IsFeatured))
	}
	return values
}

// SearchQuery 是全文搜索的参数。
type SearchQuery struct {
	Q          string
	Page       int
	Limit      int
	Status     string
	CategoryID string
}

// SearchResult 是一页搜索结果。
type SearchResult struct {
	Data []Article `json:"data"`
	Meta Meta      `json:"meta"`
}

func setIf(values url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		values.Set(key, value)
	}
}

// GetArticle 按 id 或 slug 获取文章。
func (c *Client) GetArticle(ctx context.Context, idOrSlug string) (Article, error) {
	var article Article
	err := c.get(ctx, "/articles/"+escape(idOrSlug), nil, &article, nil)
	return article, err
}

// ListArticles 获取分页文章列表。
func (c *Client) ListArticles(ctx context.Context, q ArticleQuery) (ArticleList, error) {
	var list ArticleList
	err := c.get(ctx, "/articles", q.values(), &list.Data, &list.Meta)
	return list, err
}

// SearchArticles 全文搜索文章。
func (c *Client) SearchArticles(ctx context.Context, q SearchQuery) (SearchResult, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 5
	}
	values := pageQuery(q.Page, q.Limit)
	values.Set("q", q.Q)
	setIf(values, "status", q.Status)
	setIf(values, "category_id", q.CategoryID)

	result := SearchResult{Meta: Meta{Page: q.Page, Limit: q.Limit, Query: q.Q}}
	err := c.get(ctx, "/articles/search", values, &result.Data, &result.Meta)
	if result.Data == nil {
		result.Data = []Article{}
	}
	return result, err
}

// Trending 返回热门文章。
func (c *Client) Trending(ctx context.Context, limit int) ([]Article, error) {
	var articles []Article
	err := c.get(ctx, "/articles/trending", pageQuery(0, limit), &articles, nil)
	return articles, err
}

// Discussed 返回讨论最多的文章。
func (c *Client) Discussed(ctx context.Context, limit int) ([]Article, error) {
	var articles []Article
	err := c.get(ctx, "/articles/discussed", pageQuery(0, limit), &articles, nil)
	return articles, err
}

// Random 随机抽取文章，excludeIDs 中的文章不会出现。
func (c *Client) Random(ctx context.Context, limit int, excludeIDs []string) ([]Article, error) {
	values := pageQuery(0, limit)
	if len(excludeIDs) > 0 {
		values.Set("exclude_ids", strings.Join(excludeIDs, ","))
	}
	var articles []Article
	err := c.get(ctx, "/articles/random", values, &articles, nil)
	return articles, err
}

// CreateArticle 创建文章。
func (c *Client) CreateArticle(ctx context.Context, in ArticleInput) (Article, error) {
	var article Article
	err := c.do(ctx, http.MethodPost, "/articles", nil, in, &article, nil)
	return article, err
}

// UpdateArticle 更新文章。
func (c *Client) UpdateArticle(ctx context.Context, id string, in ArticleInput) (Article, error) {
	var article Article
	err := c.do(ctx, http.MethodPut, "/articles/"+escape(id), nil, in, &article, nil)
	return article, err
}

// AddRedirect 为文章添加旧 slug 别名。
func (c *Client) AddRedirect(ctx context.Context, articleID, fromSlug string) error {
	body := map[string]string{"from_slug": fromSlug}
	return c.do(ctx, http.MethodPost, "/articles/"+escape(articleID)+"/redirects", nil, body, nil, nil)
}

// DeleteRedirect 删除 slug 别名。
func (c *Client) DeleteRedirect(ctx context.Context, articleID, redirectID string) error {
	path := "/articles/" + escape(articleID) + "/redirects/" + escape(redirectID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil, nil)
}

// TrackView 上报一次有效阅读。
func (c *Client) TrackView(ctx context.Context, idOrSlug string, sessionSeconds int) error {
	body := map[string]int{"session_duration": sessionSeconds}
	return c.do(ctx, http.MethodPost, "/articles/"+escape(idOrSlug)+"/track-view", nil, body, nil, nil)
}
