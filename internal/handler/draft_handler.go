package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/newsfront/internal/service"
)

const maxImportBytes = 2 << 20

func respondDraftError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDraftNotFound):
		respondError(c, http.StatusNotFound, "草稿不存在")
	case errors.Is(err, service.ErrDraftImageNotFound):
		respondError(c, http.StatusNotFound, "图片不存在")
	case errors.Is(err, service.ErrTooManyPrimary):
		respondError(c, http.StatusBadRequest, "只能设置一张主图")
	case errors.Is(err, service.ErrDraftStatusInvalid):
		respondError(c, http.StatusBadRequest, "文章状态不合法")
	case errors.Is(err, service.ErrImageEmpty), errors.Is(err, service.ErrImageUnsupported):
		respondError(c, http.StatusBadRequest, "只允许上传图片文件")
	case errors.Is(err, service.ErrImageTooLarge):
		respondError(c, http.StatusRequestEntityTooLarge, "图片不能超过 8MB")
	default:
		respondUpstreamError(c, err)
	}
}

func (a *API) draftID(c *gin.Context) (uint, bool) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的草稿ID")
		return 0, false
	}
	return id, true
}

// ListDrafts 获取草稿列表
func (a *API) ListDrafts(c *gin.Context) {
	result, err := a.drafts.List(queryInt(c, "page", 1), queryInt(c, "per_page", 20))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取草稿列表失败")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetDraft 获取单篇草稿及其图片
func (a *API) GetDraft(c *gin.Context) {
	id, ok := a.draftID(c)
	if !ok {
		return
	}
	draft, err := a.drafts.Get(id)
	if err != nil {
		respondDraftError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// CreateDraft 创建草稿
func (a *API) CreateDraft(c *gin.Context) {
	var input service.DraftInput
	if !bindJSON(c, &input, "草稿参数格式不正确") {
		return
	}
	draft, err := a.drafts.Create(input)
	if err != nil {
		respondDraftError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"draft": draft})
}

// UpdateDraft 保存草稿
func (a *API) UpdateDraft(c *gin.Context) {
	id, ok := a.draftID(c)
	if !ok {
		return
	}
	var input service.DraftInput
	if !bindJSON(c, &input, "草稿参数格式不正确") {
		return
	}
	draft, err := a.drafts.Update(id, input)
	if err != nil {
		respondDraftError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// DeleteDraft 删除草稿及暂存图片
func (a *API) DeleteDraft(c *gin.Context) {
	id, ok := a.draftID(c)
	if !ok {
		return
	}
	if err := a.drafts.Delete(id); err != nil {
		respondDraftError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PreviewDraft 用读者端渲染器预览草稿
func (a *API) PreviewDraft(c *gin.Context) {
	id, ok := a.draftID(c)
	if !ok {
		return
	}
	view, err := a.drafts.Preview(id)
	if err != nil {
		respondDraftError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PublishDraft 校验并发布草稿，校验失败时一次列出所有缺失字段
func (a *API) PublishDraft(c *gin.Context) {
	id, ok := a.draftID(c)
	if !ok {
		return
	}
	article, err := a.drafts.Publish(c.Request.Context(), id)
	if err != nil {
		respondDraftError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"article": article})
}

// ImportDraft 从带文件头的 Markdown 文件创建草稿，支持 multipart 的 file 字段或原始请求体
func (a *API) ImportDraft(c *gin.Context) {
	var reader io.Reader
	if file, err := c.FormFile("file"); err == nil {
		opened, err := file.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "读取文件失败")
			return
		}
		defer opened.Close()
		reader = opened
	} else {
		reader = c.Request.Body
	}

	raw, err := io.ReadAll(io.LimitReader(reader, maxImportBytes+1))
	if err != nil {
		respondError(c, http.StatusBadRequest, "读取文件失败")
		return
	}
	if len(raw) > maxImportBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "文件过大")
		return
	}
	if strings.TrimSpace(string(raw)) == "" {
		respondError(c, http.StatusBadRequest, "文件内容为空")
		return
	}

	draft, err := a.drafts.Import(raw)
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusBadRequest, "文件头格式不正确")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"draft": draft})
}

// EditArticle 把已发布的文章载入为草稿
func (a *API) EditArticle(c *gin.Context) {
	draft, err := a.drafts.EditArticle(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDraftError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}
