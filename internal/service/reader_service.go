package service

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"sync"

	"github.com/newsfront/internal/content"
	"github.com/newsfront/internal/contentapi"
	"github.com/rs/zerolog"
)

// MinTrackedSeconds 阅读时长不足该值的浏览不上报。
const MinTrackedSeconds = 30

const (
	relatedLimit  = 4
	snippetLength = 160
)

var (
	ErrViewTooShort     = errors.New("session too short to count as a view")
	ErrArticleSlugEmpty = errors.New("article slug is required")
)

// ArticleSource 是读者端需要的内容服务接口。
type ArticleSource interface {
	GetArticle(ctx context.Context, idOrSlug string) (contentapi.Article, error)
	ListArticles(ctx context.Context, q contentapi.ArticleQuery) (contentapi.ArticleList, error)
	Trending(ctx context.Context, limit int) ([]contentapi.Article, error)
	Discussed(ctx context.Context, limit int) ([]contentapi.Article, error)
	Random(ctx context.Context, limit int, excludeIDs []string) ([]contentapi.Article, error)
	TrackView(ctx context.Context, idOrSlug string, sessionSeconds int) error
}

// ArticleView 是文章详情页的数据。
type ArticleView struct {
	Article        contentapi.Article   `json:"article"`
	Markup         template.HTML        `json:"markup"`
	TOC            []content.Section    `json:"toc"`
	ReadingMinutes int                  `json:"reading_minutes"`
	Related        []contentapi.Article `json:"related"`
}

// SearchHit 是带高亮摘要的搜索结果。
type SearchHit struct {
	contentapi.Article
	Snippet        template.HTML `json:"snippet"`
	ReadingMinutes int           `json:"reading_minutes"`
}

// ReaderService 组装读者端页面数据。
type ReaderService struct {
	source   ArticleSource
	renderer *content.Renderer
	logger   zerolog.Logger

	// slug 或 id 到文章 id 的映射
	ids sync.Map
}

// NewReaderService creates a ReaderService instance.
func NewReaderService(source ArticleSource, renderer *content.Renderer, logger zerolog.Logger) *ReaderService {
	return &ReaderService{
		source:   source,
		renderer: renderer,
		logger:   logger.With().Str("component", "reader").Logger(),
	}
}

// Article 获取文章并渲染分段正文与目录。相关文章获取失败时只记录日志。
func (s *ReaderService) Article(ctx context.Context, slug string) (ArticleView, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ArticleView{}, ErrArticleSlugEmpty
	}

	article, err := s.source.GetArticle(ctx, slug)
	if err != nil {
		return ArticleView{}, err
	}
	article.ImageURL = s.renderer.Assets().Qualify(article.ImageURL)

	reading, err := s.renderer.RenderSections(article.Content, ArticleImageReferences(article.Images))
	if err != nil {
		return ArticleView{}, err
	}

	view := ArticleView{
		Article:        article,
		Markup:         reading.Markup,
		TOC:            reading.TOC,
		ReadingMinutes: content.ReadingMinutes(content.PlainText(string(reading.Markup))),
		Related:        []contentapi.Article{},
	}

	if article.CategoryID != "" {
		related, err := s.Related(ctx, article)
		if err != nil {
			if ctx.Err() != nil {
				return ArticleView{}, ctx.Err()
			}
			s.logger.Warn().Err(err).Str("article_id", article.ID).Msg("load related articles failed")
		} else {
			view.Related = related
		}
	}
	return view, nil
}

// ArticleID 把 slug 或 id 解析为文章 id，结果按两种写法缓存。
func (s *ReaderService) ArticleID(ctx context.Context, idOrSlug string) (string, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return "", ErrArticleSlugEmpty
	}
	if id, ok := s.ids.Load(idOrSlug); ok {
		return id.(string), nil
	}

	article, err := s.source.GetArticle(ctx, idOrSlug)
	if err != nil {
		return "", err
	}
	if article.ID == "" {
		return "", &contentapi.APIError{Status: 404, Message: "article has no id"}
	}
	s.ids.Store(idOrSlug, article.ID)
	s.ids.Store(article.ID, article.ID)
	return article.ID, nil
}

// Related 返回同分类的已发布文章，不含文章本身。
func (s *ReaderService) Related(ctx context.Context, article contentapi.Article) ([]contentapi.Article, error) {
	list, err := s.source.ListArticles(ctx, contentapi.ArticleQuery{
		Page:       1,
		Limit:      relatedLimit + 1,
		Status:     contentapi.StatusPublished,
		CategoryID: article.CategoryID,
	})
	if err != nil {
		return nil, err
	}

	related := make([]contentapi.Article, 0, relatedLimit)
	for _, candidate := range list.Data {
		if candidate.ID == article.ID {
			continue
		}
		candidate.ImageURL = s.renderer.Assets().Qualify(candidate.ImageURL)
		related = append(related, candidate)
		if len(related) == relatedLimit {
			break
		}
	}
	return related, nil
}

// List 返回分页文章列表。
func (s *ReaderService) List(ctx context.Context, q contentapi.ArticleQuery) (contentapi.ArticleList, error) {
	q.Page = normalizePage(q.Page)
	q.Limit = normalizePerPage(q.Limit, 10)

	list, err := s.source.ListArticles(ctx, q)
	if err != nil {
		return contentapi.ArticleList{}, err
	}
	s.qualifyAll(list.Data)
	if list.Data == nil {
		list.Data = []contentapi.Article{}
	}
	return list, nil
}

// Trending 返回热门文章。
func (s *ReaderService) Trending(ctx context.Context, limit int) ([]contentapi.Article, error) {
	articles, err := s.source.Trending(ctx, normalizePerPage(limit, 5))
	return s.qualifyAll(articles), err
}

// Discussed 返回评论最多的文章。
func (s *ReaderService) Discussed(ctx context.Context, limit int) ([]contentapi.Article, error) {
	articles, err := s.source.Discussed(ctx, normalizePerPage(limit, 5))
	return s.qualifyAll(articles), err
}

// Random 随机推荐文章，排除给定 id。
func (s *ReaderService) Random(ctx context.Context, limit int, exclude []string) ([]contentapi.Article, error) {
	articles, err := s.source.Random(ctx, normalizePerPage(limit, 3), exclude)
	return s.qualifyAll(articles), err
}

// QualifyAsset 返回资源的完整地址。
func (s *ReaderService) QualifyAsset(path string) string {
	return s.renderer.Assets().Qualify(path)
}

func (s *ReaderService) qualifyAll(articles []contentapi.Article) []contentapi.Article {
	if articles == nil {
		return []contentapi.Article{}
	}
	for i := range articles {
		articles[i].ImageURL = s.renderer.Assets().Qualify(articles[i].ImageURL)
	}
	return articles
}

// SearchHits 为搜索结果生成高亮摘要。
func (s *ReaderService) SearchHits(result contentapi.SearchResult, query string) []SearchHit {
	hits := make([]SearchHit, 0, len(result.Data))
	for _, article := range result.Data {
		text := article.Summary
		if markup, err := s.renderer.Render(article.Content, nil); err == nil {
			if plain := content.PlainText(string(markup)); plain != "" {
				text = plain
			}
		}
		article.ImageURL = s.renderer.Assets().Qualify(article.ImageURL)
		hits = append(hits, SearchHit{
			Article:        article,
			Snippet:        content.Highlight(content.Excerpt(text, snippetLength), query),
			ReadingMinutes: content.ReadingMinutes(text),
		})
	}
	return hits
}

// TrackView 上报一次有效浏览。
func (s *ReaderService) TrackView(ctx context.Context, slug string, sessionSeconds int) error {
	if sessionSeconds < MinTrackedSeconds {
		return ErrViewTooShort
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ErrArticleSlugEmpty
	}
	return s.source.TrackView(ctx, slug, sessionSeconds)
}

// ArticleImageReferences 把已保存的文章图片转为内容管线使用的引用。
func ArticleImageReferences(images []contentapi.ArticleImage) []content.ImageReference {
	refs := make([]content.ImageReference, 0, len(images))
	for _, image := range images {
		refs = append(refs, content.ImageReference{
			LocalID:     image.ID,
			ImageURL:    image.ImageURL,
			Description: image.Description,
			IsPrimary:   image.IsPrimary,
		})
	}
	return refs
}
