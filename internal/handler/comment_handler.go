package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newsfront/internal/comments"
)

const streamKeepAlive = 25 * time.Second

type commentRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id"`
}

func (a *API) room(c *gin.Context) (*comments.Synchronizer, bool) {
	key := strings.TrimSpace(c.Param("id"))
	if key == "" {
		respondError(c, http.StatusBadRequest, "缺少文章标识")
		return nil, false
	}
	// 推送事件按文章 id 投递，房间必须以 id 为键
	articleID, err := a.reader.ArticleID(c.Request.Context(), key)
	if err != nil {
		respondUpstreamError(c, err)
		return nil, false
	}
	room, err := a.rooms.Room(c.Request.Context(), articleID)
	if err != nil {
		respondUpstreamError(c, err)
		return nil, false
	}
	return room, true
}

func respondCommentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, comments.ErrEmptyContent):
		respondError(c, http.StatusBadRequest, "评论内容不能为空")
	case errors.Is(err, comments.ErrParentNotFound):
		respondError(c, http.StatusNotFound, "回复的评论不存在")
	default:
		respondUpstreamError(c, err)
	}
}

// ListComments 返回文章评论树的当前快照
func (a *API) ListComments(c *gin.Context) {
	room, ok := a.room(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, room.Snapshot())
}

// LoadMoreComments 加载下一页顶层评论，没有更多时原样返回快照
func (a *API) LoadMoreComments(c *gin.Context) {
	room, ok := a.room(c)
	if !ok {
		return
	}
	if err := room.LoadMore(c.Request.Context()); err != nil && !errors.Is(err, comments.ErrNoMoreComments) {
		respondCommentError(c, err)
		return
	}
	c.JSON(http.StatusOK, room.Snapshot())
}

// LoadMoreReplies 加载某条评论的下一页回复
func (a *API) LoadMoreReplies(c *gin.Context) {
	room, ok := a.room(c)
	if !ok {
		return
	}
	err := room.LoadMoreReplies(c.Request.Context(), c.Param("commentId"))
	if err != nil && !errors.Is(err, comments.ErrNoMoreComments) {
		respondCommentError(c, err)
		return
	}
	c.JSON(http.StatusOK, room.Snapshot())
}

// CreateComment 发表评论或回复
func (a *API) CreateComment(c *gin.Context) {
	var req commentRequest
	if !bindJSON(c, &req, "评论参数格式不正确") {
		return
	}
	room, ok := a.room(c)
	if !ok {
		return
	}

	comment, err := room.Create(c.Request.Context(), req.Content, req.ParentID)
	if err != nil {
		respondCommentError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// EditComment 修改评论内容
func (a *API) EditComment(c *gin.Context) {
	var req commentRequest
	if !bindJSON(c, &req, "评论参数格式不正确") {
		return
	}
	room, ok := a.room(c)
	if !ok {
		return
	}

	comment, err := room.Edit(c.Request.Context(), c.Param("commentId"), req.Content)
	if err != nil {
		respondCommentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

// DeleteComment 软删除评论，回复保留
func (a *API) DeleteComment(c *gin.Context) {
	room, ok := a.room(c)
	if !ok {
		return
	}
	if err := room.Delete(c.Request.Context(), c.Param("commentId")); err != nil {
		respondCommentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RestoreComment 恢复已删除的评论
func (a *API) RestoreComment(c *gin.Context) {
	room, ok := a.room(c)
	if !ok {
		return
	}
	if err := room.Restore(c.Request.Context(), c.Param("commentId")); err != nil {
		respondCommentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// StreamComments 以 SSE 推送评论树的变更，连接建立时先推送一次快照
func (a *API) StreamComments(c *gin.Context) {
	room, ok := a.room(c)
	if !ok {
		return
	}

	changes, cancel := room.Watch()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("snapshot", room.Snapshot())
	c.Writer.Flush()

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case change, open := <-changes:
			if !open {
				return false
			}
			c.SSEvent("change", gin.H{"kind": change.Kind, "comment_id": change.CommentID})
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}
