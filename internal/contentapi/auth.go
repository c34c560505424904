package contentapi

import (
	"context"
	"net/http"
)

// Login 使用邮箱和密码登录。
func (c *Client) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	var result LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, in, &result, nil)
	return result, err
}

// Me 返回当前令牌对应的用户。
func (c *Client) Me(ctx context.Context) (User, error) {
	var wrapper struct {
		User User `json:"user"`
	}
	if err := c.get(ctx, "/auth/me", nil, &wrapper, nil); err != nil {
		return User{}, err
	}
	return wrapper.User, nil
}

// Logout 注销上游会话。
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil, nil)
}
