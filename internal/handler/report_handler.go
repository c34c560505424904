package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/newsfront/internal/contentapi"
	"github.com/newsfront/internal/logview"
)

func validLogKind(kind string) bool {
	return kind == contentapi.LogAudit || kind == contentapi.LogSystem
}

// ShowAnalytics 透传统计报表，advanced=1 时返回高级报表
func (a *API) ShowAnalytics(c *gin.Context) {
	advanced := c.Query("advanced") == "1" || c.Query("advanced") == "true"
	query := c.Request.URL.Query()
	query.Del("advanced")

	raw, err := a.upstream.Analytics(c.Request.Context(), advanced, query)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// ListLogs 分页获取审计或系统日志
func (a *API) ListLogs(c *gin.Context) {
	kind := c.Param("kind")
	if !validLogKind(kind) {
		respondError(c, http.StatusBadRequest, "未知的日志类型")
		return
	}

	page, err := a.upstream.Logs(c.Request.Context(), kind, c.Request.URL.Query())
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	if page.Data == nil {
		page.Data = []contentapi.LogEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"data": page.Data, "meta": page.Meta, "total_pages": page.Meta.TotalPages()})
}

// DiffLog 对比日志记录的变更前后数据
func (a *API) DiffLog(c *gin.Context) {
	kind := c.Param("kind")
	if !validLogKind(kind) {
		respondError(c, http.StatusBadRequest, "未知的日志类型")
		return
	}

	entry, err := a.upstream.LogEntry(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		respondUpstreamError(c, err)
		return
	}

	changes, err := logview.Diff(entry.OldData, entry.NewData)
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusUnprocessableEntity, "日志数据无法解析")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry, "changes": changes})
}

type redirectRequest struct {
	FromSlug string `json:"from_slug"`
}

// AddRedirect 为文章添加旧 slug 别名
func (a *API) AddRedirect(c *gin.Context) {
	var req redirectRequest
	if !bindJSON(c, &req, "参数格式不正确") {
		return
	}
	if req.FromSlug = strings.TrimSpace(req.FromSlug); req.FromSlug == "" {
		respondError(c, http.StatusBadRequest, "旧地址不能为空")
		return
	}

	if err := a.upstream.AddRedirect(c.Request.Context(), c.Param("id"), req.FromSlug); err != nil {
		respondUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// DeleteRedirect 删除 slug 别名
func (a *API) DeleteRedirect(c *gin.Context) {
	if err := a.upstream.DeleteRedirect(c.Request.Context(), c.Param("id"), c.Param("redirectId")); err != nil {
		respondUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
