package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/newsfront/internal/contentapi"
)

// ListCategories 获取分类列表
func (a *API) ListCategories(c *gin.Context) {
	categories, err := a.upstream.Categories(c.Request.Context())
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	if categories == nil {
		categories = []contentapi.Category{}
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// CreateCategory 创建分类
func (a *API) CreateCategory(c *gin.Context) {
	var input contentapi.CategoryInput
	if !bindJSON(c, &input, "分类参数格式不正确") {
		return
	}
	if input.Name = strings.TrimSpace(input.Name); input.Name == "" {
		respondError(c, http.StatusBadRequest, "分类名称不能为空")
		return
	}

	category, err := a.upstream.CreateCategory(c.Request.Context(), input)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// UpdateCategory 更新分类
func (a *API) UpdateCategory(c *gin.Context) {
	var input contentapi.CategoryInput
	if !bindJSON(c, &input, "分类参数格式不正确") {
		return
	}
	if input.Name = strings.TrimSpace(input.Name); input.Name == "" {
		respondError(c, http.StatusBadRequest, "分类名称不能为空")
		return
	}

	category, err := a.upstream.UpdateCategory(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

// GetTags 获取标签列表
func (a *API) GetTags(c *gin.Context) {
	tags, err := a.upstream.Tags(c.Request.Context())
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	if tags == nil {
		tags = []contentapi.Tag{}
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// CreateTag 创建新标签
func (a *API) CreateTag(c *gin.Context) {
	var input contentapi.TagInput
	if !bindJSON(c, &input, "标签参数格式不正确") {
		return
	}
	if input.Name = strings.TrimSpace(input.Name); input.Name == "" {
		respondError(c, http.StatusBadRequest, "标签名称不能为空")
		return
	}

	tag, err := a.upstream.CreateTag(c.Request.Context(), input)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tag": tag})
}

// UpdateTag 更新标签
func (a *API) UpdateTag(c *gin.Context) {
	var input contentapi.TagInput
	if !bindJSON(c, &input, "标签参数格式不正确") {
		return
	}
	if input.Name = strings.TrimSpace(input.Name); input.Name == "" {
		respondError(c, http.StatusBadRequest, "标签名称不能为空")
		return
	}

	tag, err := a.upstream.UpdateTag(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag})
}
