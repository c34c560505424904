package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newsfront/internal/contentapi"
	"github.com/newsfront/internal/search"
)

// SearchArticles 经访客的搜索会话去抖后查询。被更新的输入取代时返回 204，
// 调用方丢弃该响应即可。
func (a *API) SearchArticles(c *gin.Context) {
	surface := search.ParseSurface(c.Query("surface"))
	session := a.searches.Get(visitorID(c), surface)

	query := contentapi.SearchQuery{
		Q:          c.Query("q"),
		Page:       queryInt(c, "page", 1),
		Limit:      queryInt(c, "limit", surface.Limit()),
		Status:     c.DefaultQuery("status", contentapi.StatusPublished),
		CategoryID: c.Query("category_id"),
	}

	result, err := session.Query(c.Request.Context(), query)
	switch {
	case errors.Is(err, search.ErrSuperseded):
		c.Status(http.StatusNoContent)
		return
	case c.Request.Context().Err() != nil:
		// 浏览器已经放弃这个请求
		c.Status(http.StatusNoContent)
		return
	case err != nil:
		respondUpstreamError(c, err)
		return
	}

	hits := a.reader.SearchHits(result, query.Q)
	c.JSON(http.StatusOK, gin.H{
		"query":       query.Q,
		"surface":     surface,
		"data":        hits,
		"meta":        result.Meta,
		"total_pages": result.Meta.TotalPages(),
	})
}
