package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/newsfront/internal/auth"
	"github.com/newsfront/internal/contentapi"
)

const (
	sessionTokenKey = "access_token"
	sessionUserKey  = "user"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login 使用内容服务登录，并把令牌与用户摘要保存到会话
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, "登录参数格式不正确") {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, "请输入邮箱和密码")
		return
	}

	result, err := a.upstream.Login(c.Request.Context(), contentapi.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		respondUpstreamError(c, err)
		return
	}

	identity := auth.NewIdentity(result.AccessToken, result.User)
	if err := saveIdentity(c, identity); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}

	a.logger.Info().Str("user_id", identity.User.ID).Msg("user logged in")
	c.JSON(http.StatusOK, gin.H{"user": identity.User})
}

// Me 向内容服务确认当前身份
func (a *API) Me(c *gin.Context) {
	identity, err := auth.FromContext(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	user, err := a.upstream.Me(c.Request.Context())
	if err != nil {
		if contentapi.IsUnauthorized(err) {
			clearSession(c)
		}
		respondUpstreamError(c, err)
		return
	}

	identity.User = user
	if err := saveIdentity(c, identity); err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "expires_at": identity.ExpiresAt})
}

// Logout 处理用户登出，上游失败不影响本地会话的清除
func (a *API) Logout(c *gin.Context) {
	if _, err := auth.FromContext(c.Request.Context()); err == nil {
		if err := a.upstream.Logout(c.Request.Context()); err != nil {
			a.logger.Warn().Err(err).Msg("upstream logout failed")
		}
	}
	clearSession(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "redirect": "/"})
}

// LoadIdentity 从会话恢复登录身份并注入请求上下文，过期的令牌会被清除
func LoadIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFromSession(sessions.Default(c))
		if ok && identity.Expired(time.Now()) {
			clearSession(c)
			ok = false
		}
		if ok {
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), identity))
		}
		c.Next()
	}
}

// AuthRequired 是一个简单的认证中间件
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := auth.FromContext(c.Request.Context()); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请先登录", "redirect": "/"})
			return
		}
		c.Next()
	}
}

func saveIdentity(c *gin.Context, identity auth.Identity) error {
	raw, err := json.Marshal(identity.User)
	if err != nil {
		return err
	}
	session := sessions.Default(c)
	session.Set(sessionTokenKey, identity.Token)
	session.Set(sessionUserKey, string(raw))
	return session.Save()
}

func identityFromSession(session sessions.Session) (auth.Identity, bool) {
	token, _ := session.Get(sessionTokenKey).(string)
	rawUser, _ := session.Get(sessionUserKey).(string)
	if token == "" || rawUser == "" {
		return auth.Identity{}, false
	}

	var user contentapi.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return auth.Identity{}, false
	}
	identity := auth.NewIdentity(token, user)
	return identity, identity.Authenticated()
}

func clearSession(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
}
