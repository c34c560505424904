package contentapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Log kinds
const (
	LogAudit  = "audit"
	LogSystem = "system"
)

// CategoryInput 创建或更新分类。
type CategoryInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
}

// TagInput 创建或更新标签。
type TagInput struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// Categories 返回全部分类。
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := c.get(ctx, "/categories", nil, &categories, nil)
	return categories, err
}

// CreateCategory 创建分类。
func (c *Client) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	var category Category
	err := c.do(ctx, http.MethodPost, "/categories", nil, in, &category, nil)
	return category, err
}

// UpdateCategory 更新分类。
func (c *Client) UpdateCategory(ctx context.Context, id string, in CategoryInput) (Category, error) {
	var category Category
	err := c.do(ctx, http.MethodPut, "/categories/"+escape(id), nil, in, &category, nil)
	return category, err
}

// Tags 返回全部标签。
func (c *Client) Tags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	err := c.get(ctx, "/tags", nil, &tags, nil)
	return tags, err
}

// CreateTag 创建标签。
func (c *Client) CreateTag(ctx context.Context, in TagInput) (Tag, error) {
	var tag Tag
	err := c.do(ctx, http.MethodPost, "/tags", nil, in, &tag, nil)
	return tag, err
}

// UpdateTag 更新标签。
func (c *Client) UpdateTag(ctx context.Context, id string, in TagInput) (Tag, error) {
	var tag Tag
	err := c.do(ctx, http.MethodPut, "/tags/"+escape(id), nil, in, &tag, nil)
	return tag, err
}

// Analytics 透传统计报表。advanced 为 true 时请求高级报表。
func (c *Client) Analytics(ctx context.Context, advanced bool, query url.Values) (json.RawMessage, error) {
	path := "/admin/analytics"
	if advanced {
		path = "/admin/advanced-analytics"
	}
	var raw json.RawMessage
	err := c.get(ctx, path, query, &raw, nil)
	return raw, err
}

// Logs 分页获取审计或系统日志。
func (c *Client) Logs(ctx context.Context, kind string, query url.Values) (LogPage, error) {
	if err := checkLogKind(kind); err != nil {
		return LogPage{}, err
	}
	var page LogPage
	err := c.get(ctx, "/logs/"+kind, query, &page.Data, &page.Meta)
	return page, err
}

// LogEntry 获取单条日志。
func (c *Client) LogEntry(ctx context.Context, kind, id string) (LogEntry, error) {
	if err := checkLogKind(kind); err != nil {
		return LogEntry{}, err
	}
	var entry LogEntry
	err := c.get(ctx, "/logs/"+kind+"/"+escape(id), nil, &entry, nil)
	return entry, err
}

func checkLogKind(kind string) error {
	if kind != LogAudit && kind != LogSystem {
		return fmt.Errorf("unknown log kind %q", kind)
	}
	return nil
}
