package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/newsfront/internal/db"
	"github.com/newsfront/internal/service"
)

func imagePayload(img *db.DraftImage) gin.H {
	return gin.H{
		"local_id":    img.LocalID,
		"image_url":   img.ImageURL,
		"mime_type":   img.MIMEType,
		"width":       img.Width,
		"height":      img.Height,
		"description": img.Description,
		"is_primary":  img.IsPrimary,
		"staged":      img.Staged(),
	}
}

// UploadDraftImage 暂存上传的图片，返回分配的本地 id
func (a *API) UploadDraftImage(c *gin.Context) {
	id, ok := a.draftID(c)
	if !ok {
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未找到上传的图片", "success": 0})
		return
	}

	// 实际类型由内容嗅探决定，这里只拦截明显不是图片的上传
	contentType := file.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" && !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "只允许上传图片文件", "success": 0})
		return
	}
	if file.Size > service.MaxStagedImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "图片不能超过 8MB", "success": 0})
		return
	}

	opened, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取文件失败", "success": 0})
		return
	}
	defer opened.Close()

	data, err := io.ReadAll(io.LimitReader(opened, service.MaxStagedImageBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取文件失败", "success": 0})
		return
	}

	img, err := a.drafts.StageImage(id, data, c.PostForm("description"))
	if err != nil {
		respondDraftError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": 1,
		"message": "上传成功",
		"data":    imagePayload(img),
	})
}

// DraftImageThumbnail 返回暂存图片的缩略图，没有缩略图时返回原图
func (a *API) DraftImageThumbnail(c *gin.Context) {
	id, ok := a.draftID(c)
	if !ok {
		return
	}
	img, err := a.drafts.Image(id, c.Param("localId"))
	if err != nil {
		respondDraftError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=300")
	switch {
	case len(img.Thumbnail) > 0:
		c.Data(http.StatusOK, "image/jpeg", img.Thumbnail)
	case len(img.Data) > 0:
		c.Data(http.StatusOK, img.MIMEType, img.Data)
	case img.ImageURL != "":
		c.Redirect(http.StatusFound, a.reader.QualifyAsset(img.ImageURL))
	default:
		respondError(c, http.StatusNotFound, "图片不存在")
	}
}

type imageDescriptionRequest struct {
	Description string `json:"description"`
}

// UpdateDraftImage 修改图片说明
func (a *API) UpdateDraftImage(c *gin.Context) {
	id, ok := a.draftID(c)
	if !ok {
		return
	}
	var req imageDescriptionRequest
	if !bindJSON(c, &req, "参数格式不正确") {
		return
	}
	img, err := a.drafts.UpdateImageDescription(id, c.Param("localId"), req.Description)
	if err != nil {
		respondDraftError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": imagePayload(img)})
}

// SetDraftPrimaryImage 设为主图
func (a *API) SetDraftPrimaryImage(c *gin.Context) {
	id, ok := a.draftID(c)
	if !ok {
		return
	}
	if err := a.drafts.SetPrimary(id, c.Param("localId")); err != nil {
		respondDraftError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteDraftImage 删除图片
func (a *API) DeleteDraftImage(c *gin.Context) {
	id, ok := a.draftID(c)
	if !ok {
		return
	}
	if err := a.drafts.RemoveImage(id, c.Param("localId")); err != nil {
		respondDraftError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
