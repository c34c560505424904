package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/newsfront/internal/contentapi"
)

// ErrNoIdentity 表示请求未登录。
var ErrNoIdentity = errors.New("no identity on request")

// Identity 是单个请求的登录身份，由中间件从会话中恢复后注入。
type Identity struct {
	Token     string          `json:"-"`
	User      contentapi.User `json:"user"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
}

// Authenticated 判断身份是否可用于上游调用。
func (i Identity) Authenticated() bool {
	return i.User.ID != ""
}

// Expired 判断令牌在 now 时刻是否已过期，未知过期时间视为未过期。
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// HasRole 判断用户是否拥有角色。
func (i Identity) HasRole(role string) bool {
	for _, r := range i.User.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Claims 是从上游访问令牌中读出的字段。
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// ReadClaims 读取令牌声明但不校验签名，签名由内容服务负责校验。
// 非 JWT 令牌返回空声明。
func ReadClaims(token string) Claims {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return Claims{}
	}

	registered := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, registered); err != nil {
		return Claims{}
	}

	claims := Claims{Subject: registered.Subject}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims
}

// NewIdentity 根据登录结果构造身份。
func NewIdentity(token string, user contentapi.User) Identity {
	claims := ReadClaims(token)
	if user.ID == "" {
		user.ID = claims.Subject
	}
	return Identity{Token: token, User: user, ExpiresAt: claims.ExpiresAt}
}

type identityKey struct{}

// WithIdentity 将身份放入上下文，同时附加上游令牌。
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey{}, id)
	return contentapi.WithToken(ctx, id.Token)
}

// FromContext 取出上下文中的身份。
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || !id.Authenticated() {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}
