package contentapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrTransport 表示请求没有拿到任何响应，例如连接失败或被中断。
var ErrTransport = errors.New("content service unreachable")

const accountLockedCode = "ACCOUNT_LOCKED"

// APIError 是内容服务返回的非 2xx 响应。
type APIError struct {
	Status  int
	Method  string
	Path    string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// AccountLocked 判断是否为账户被锁定的 403。
func (e *APIError) AccountLocked() bool {
	if e.Status != http.StatusForbidden {
		return false
	}
	if strings.EqualFold(e.Code, accountLockedCode) {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "locked")
}

// AuthCall 判断失败的请求本身是否为登录或身份检查。
func (e *APIError) AuthCall() bool {
	return strings.Contains(e.Path, "/auth/login") || strings.Contains(e.Path, "/auth/me")
}

// parseAPIError 兼容 {"error":"..."}、{"error":"CODE","message":"..."} 与
// {"success":false,"error":{"code":...,"message":"..."}} 三种错误体。
func parseAPIError(status int, method, path string, body []byte) *APIError {
	apiErr := &APIError{Status: status, Method: method, Path: path}

	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(payload.Message)

	if len(payload.Error) == 0 {
		return apiErr
	}

	var text string
	if err := json.Unmarshal(payload.Error, &text); err == nil {
		text = strings.TrimSpace(text)
		if isErrorCode(text) {
			apiErr.Code = text
		} else if apiErr.Message == "" {
			apiErr.Message = text
		}
		return apiErr
	}

	var detail struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &detail); err == nil {
		apiErr.Code = strings.Trim(strings.TrimSpace(string(detail.Code)), `"`)
		if detail.Message != "" {
			apiErr.Message = strings.TrimSpace(detail.Message)
		}
	}
	return apiErr
}

func isErrorCode(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if (r < 'A' || r > 'Z') && r != '_' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusOf 返回错误对应的上游状态码，不是 APIError 时返回 0。
func StatusOf(err error) int {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized 判断上游返回 401。
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// RequiresReauth 判断是否应清除会话并回到入口页。登录与身份检查本身的 401 不触发跳转。
func RequiresReauth(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Status == http.StatusUnauthorized && !apiErr.AuthCall()
}

// IsAccountLocked 判断账户被锁定。
func IsAccountLocked(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.AccountLocked()
}

// IsRateLimited 判断上游限流。
func IsRateLimited(err error) bool {
	return StatusOf(err) == http.StatusTooManyRequests
}

// IsNotFound 判断资源不存在。
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsTransport 判断请求未获得响应。
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}
