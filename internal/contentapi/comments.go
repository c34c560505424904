package contentapi

import (
	"context"
	"net/http"
)

// ListComments 获取文章的一页顶层评论。
func (c *Client) ListComments(ctx context.Context, articleID string, page, limit int) (CommentPage, error) {
	result := CommentPage{Meta: Meta{Page: page, Limit: limit}}
	err := c.get(ctx, "/articles/"+escape(articleID)+"/comments", pageQuery(page, limit), &result.Data, &result.Meta)
	return result, err
}

// ListReplies 获取某条评论下的一页回复。
func (c *Client) ListReplies(ctx context.Context, articleID, parentID string, page, limit int) (CommentPage, error) {
	result := CommentPage{Meta: Meta{Page: page, Limit: limit}}
	path := "/articles/" + escape(articleID) + "/comments/" + escape(parentID) + "/replies"
	err := c.get(ctx, path, pageQuery(page, limit), &result.Data, &result.Meta)
	return result, err
}

// CreateComment 发表评论，返回服务器确认后的记录。
func (c *Client) CreateComment(ctx context.Context, in CreateCommentInput) (Comment, error) {
	var comment Comment
	err := c.do(ctx, http.MethodPost, "/comments", nil, in, &comment, nil)
	return comment, err
}

// UpdateComment 编辑评论内容。
func (c *Client) UpdateComment(ctx context.Context, id, content string) (Comment, error) {
	var comment Comment
	body := map[string]string{"content": content}
	err := c.do(ctx, http.MethodPut, "/comments/"+escape(id), nil, body, &comment, nil)
	return comment, err
}

// DeleteComment 软删除评论。
func (c *Client) DeleteComment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/comments/"+escape(id), nil, nil, nil, nil)
}

// RestoreComment 恢复已删除的评论。
func (c *Client) RestoreComment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/comments/"+escape(id)+"/restore", nil, nil, nil, nil)
}
