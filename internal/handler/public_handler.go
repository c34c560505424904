package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/newsfront/internal/contentapi"
	"github.com/newsfront/internal/service"
)

// ShowArticle 返回文章阅读视图：分段正文、目录、阅读时长与相关文章
func (a *API) ShowArticle(c *gin.Context) {
	view, err := a.reader.Article(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrArticleSlugEmpty) {
			respondError(c, http.StatusBadRequest, "缺少文章标识")
			return
		}
		respondUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListArticles 返回文章列表，默认只列出已发布文章
func (a *API) ListArticles(c *gin.Context) {
	q := contentapi.ArticleQuery{
		Page:       queryInt(c, "page", 1),
		Limit:      queryInt(c, "limit", 10),
		Search:     c.Query("search"),
		Status:     c.DefaultQuery("status", contentapi.StatusPublished),
		CategoryID: c.Query("category_id"),
		TagID:      c.Query("tag_id"),
	}
	if raw := c.Query("is_featured"); raw != "" {
		if featured, err := strconv.ParseBool(raw); err == nil {
			q.IsFeatured = &featured
		}
	}

	list, err := a.reader.List(c.Request.Context(), q)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":        list.Data,
		"meta":        list.Meta,
		"total_pages": list.Meta.TotalPages(),
	})
}

// ListTrending 热门文章
func (a *API) ListTrending(c *gin.Context) {
	articles, err := a.reader.Trending(c.Request.Context(), queryInt(c, "limit", 5))
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": articles})
}

// ListDiscussed 评论最多的文章
func (a *API) ListDiscussed(c *gin.Context) {
	articles, err := a.reader.Discussed(c.Request.Context(), queryInt(c, "limit", 5))
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": articles})
}

// ListRandom 随机推荐，exclude_ids 可以重复或用逗号分隔
func (a *API) ListRandom(c *gin.Context) {
	articles, err := a.reader.Random(c.Request.Context(), queryInt(c, "limit", 3), querySlice(c, "exclude_ids"))
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": articles})
}

type trackViewRequest struct {
	SessionDuration int `json:"session_duration"`
}

// TrackView 上报阅读时长，不足阈值时不转发
func (a *API) TrackView(c *gin.Context) {
	var req trackViewRequest
	if !bindJSON(c, &req, "参数格式不正确") {
		return
	}

	err := a.reader.TrackView(c.Request.Context(), c.Param("id"), req.SessionDuration)
	switch {
	case errors.Is(err, service.ErrViewTooShort):
		respondError(c, http.StatusBadRequest, "阅读时间过短，不计入浏览")
	case errors.Is(err, service.ErrArticleSlugEmpty):
		respondError(c, http.StatusBadRequest, "缺少文章标识")
	case err != nil:
		respondUpstreamError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
