package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/newsfront/internal/contentapi"
	"github.com/newsfront/internal/service"
)

const (
	msgGeneric      = "出错了，请稍后重试"
	msgUnreachable  = "内容服务暂时无法访问，请稍后重试"
	msgBusy         = "系统繁忙，请稍后重试"
	msgLoginExpired = "登录已失效，请重新登录"
	msgLocked       = "账户已被锁定"
	msgNotFound     = "内容不存在"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func querySlice(c *gin.Context, key string) []string {
	values := make([]string, 0)
	for _, raw := range c.QueryArray(key) {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				values = append(values, trimmed)
			}
		}
	}
	return values
}

// respondUpstreamError 把内容服务或本地校验的失败转换成非致命的 JSON 响应。
func respondUpstreamError(c *gin.Context, err error) {
	_ = c.Error(err)

	var validation *service.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "fields": validation.Fields})
	case contentapi.IsTransport(err):
		respondError(c, http.StatusBadGateway, msgUnreachable)
	case contentapi.RequiresReauth(err):
		clearSession(c)
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgLoginExpired, "redirect": "/"})
	case contentapi.IsUnauthorized(err):
		respondError(c, http.StatusUnauthorized, upstreamMessage(err, msgLoginExpired))
	case contentapi.IsAccountLocked(err):
		c.Header("X-Account-Locked", "1")
		c.JSON(http.StatusForbidden, gin.H{"error": msgLocked, "event": "account_locked"})
	case contentapi.IsRateLimited(err):
		respondError(c, http.StatusTooManyRequests, msgBusy)
	case contentapi.IsNotFound(err):
		respondError(c, http.StatusNotFound, msgNotFound)
	case contentapi.StatusOf(err) >= 400 && contentapi.StatusOf(err) < 500:
		respondError(c, contentapi.StatusOf(err), upstreamMessage(err, msgGeneric))
	default:
		respondError(c, http.StatusInternalServerError, msgGeneric)
	}
}

func upstreamMessage(err error, fallback string) string {
	var apiErr *contentapi.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}
