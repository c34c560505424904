package contentapi

import (
	"encoding/json"
	"time"
)

// Article 状态
const (
	StatusDraft     = "DRAFT"
	StatusReview    = "REVIEW"
	StatusPublished = "PUBLISHED"
	StatusScheduled = "SCHEDULED"
	StatusArchived  = "ARCHIVED"
)

// Author is the author summary embedded in articles.
type Author struct {
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
}

// Category 分类
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
}

// Tag 标签
type Tag struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// ArticleImage 是已保存在内容服务上的图片。
type ArticleImage struct {
	ID          string `json:"id"`
	ImageURL    string `json:"image_url"`
	Description string `json:"description,omitempty"`
	IsPrimary   bool   `json:"is_primary,omitempty"`
}

// SeoMetadata 是文章的 SEO 信息块。
type SeoMetadata struct {
	MetaTitle       string `json:"meta_title,omitempty"`
	MetaDescription string `json:"meta_description,omitempty"`
	MetaKeywords    string `json:"meta_keywords,omitempty"`
	OgImage         string `json:"og_image,omitempty"`
	CanonicalURL    string `json:"canonical_url,omitempty"`
}

// Redirect 是文章的旧 slug 别名。
type Redirect struct {
	ID        string    `json:"id"`
	ArticleID string    `json:"article_id"`
	FromSlug  string    `json:"from_slug"`
	ToSlug    string    `json:"to_slug"`
	CreatedAt time.Time `json:"created_at"`
}

// Article 是内容服务中的文章记录。
type Article struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Slug            string         `json:"slug"`
	Summary         string         `json:"summary,omitempty"`
	Content         string         `json:"content"`
	AuthorID        string         `json:"author_id,omitempty"`
	Author          *Author        `json:"author,omitempty"`
	CategoryID      string         `json:"category_id,omitempty"`
	Category        *Category      `json:"category,omitempty"`
	Status          string         `json:"status"`
	ImageURL        string         `json:"image_url,omitempty"`
	IsFeatured      bool           `json:"is_featured"`
	ViewCount       int            `json:"view_count"`
	CommentCount    int            `json:"comment_count,omitempty"`
	RatingAvg       float64        `json:"rating_avg,omitempty"`
	RatingCount     int            `json:"rating_count,omitempty"`
	Images          []ArticleImage `json:"images,omitempty"`
	Tags            []Tag          `json:"tags,omitempty"`
	Redirects       []Redirect     `json:"redirects,omitempty"`
	RelatedArticles []Article      `json:"related_articles,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	PublishedAt     *time.Time     `json:"published_at,omitempty"`
}

// InputImage 可以引用已保存的地址，也可以内联 data URL。
type InputImage struct {
	LocalID     string `json:"local_id,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	ImageData   string `json:"image_data,omitempty"`
	Description string `json:"description,omitempty"`
	IsPrimary   bool   `json:"is_primary,omitempty"`
}

// ArticleInput 是创建或更新文章时提交的结构。
type ArticleInput struct {
	Title             string       `json:"title"`
	Slug              string       `json:"slug,omitempty"`
	Content           string       `json:"content"`
	Summary           string       `json:"summary,omitempty"`
	CategoryID        string       `json:"category_id,omitempty"`
	Status            string       `json:"status"`
	ImageURL          string       `json:"image_url,omitempty"`
	IsFeatured        bool         `json:"is_featured,omitempty"`
	Images            []InputImage `json:"images,omitempty"`
	Tags              []Tag        `json:"tags,omitempty"`
	SeoMetadata       *SeoMetadata `json:"seo_metadata,omitempty"`
	RelatedArticleIDs []string     `json:"related_article_ids,omitempty"`
}

// Meta 是分页元数据。
type Meta struct {
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Query string `json:"query,omitempty"`
}

// TotalPages 按 total/limit 向上取整。
func (m Meta) TotalPages() int {
	if m.Limit <= 0 {
		return 0
	}
	return (m.Total + m.Limit - 1) / m.Limit
}

// ArticleList 是分页的文章列表。
type ArticleList struct {
	Data []Article `json:"data"`
	Meta Meta      `json:"meta"`
}

// User 是认证服务返回的用户摘要。
type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email,omitempty"`
	FullName string   `json:"full_name,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// Comment 评论，ParentID 为空表示顶层评论。
type Comment struct {
	ID        string    `json:"id"`
	ArticleID string    `json:"article_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	ParentID  string    `json:"parent_id,omitempty"`
	IsSpam    bool      `json:"is_spam"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      *User     `json:"user,omitempty"`
	Replies   []Comment `json:"replies,omitempty"`
}

// CommentPage 是一页评论或回复。
type CommentPage struct {
	Data []Comment `json:"data"`
	Meta Meta      `json:"meta"`
}

// CreateCommentInput 提交新评论。
type CreateCommentInput struct {
	ArticleID string `json:"article_id"`
	Content   string `json:"content"`
	ParentID  string `json:"parent_id,omitempty"`
}

// LoginInput 登录凭据。
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult 登录结果。
type LoginResult struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token,omitempty"`
}

// LogEntry 是审计或系统日志中的一条记录。
type LogEntry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id,omitempty"`
	User      *User           `json:"user,omitempty"`
	Action    string          `json:"action"`
	TableName string          `json:"table_name"`
	RecordID  string          `json:"record_id"`
	OldData   json.RawMessage `json:"old_data,omitempty"`
	NewData   json.RawMessage `json:"new_data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// LogPage 是分页的日志列表。
type LogPage struct {
	Data []LogEntry `json:"data"`
	Meta Meta       `json:"meta"`
}
