package contentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const maxResponseBytes = 4 << 20

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type tokenKey struct{}

// WithToken 将上游访问令牌附加到请求上下文，客户端发请求时带上 Bearer 头。
func WithToken(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom 读取上下文中的访问令牌。
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client 是内容服务的 REST 客户端。
type Client struct {
	baseURL string
	http    httpDoer
	logger  zerolog.Logger
}

// NewClient 创建客户端。timeout 为 0 时不设置请求超时，由调用方的 context 控制取消。
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "contentapi").Logger(),
	}
}

// SetHTTPClient 替换底层 HTTP 客户端，测试时注入。
func (c *Client) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = http.DefaultClient
		return
	}
	c.http = client
}

// BaseURL 返回内容服务根地址。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope 是内容服务的统一响应外壳。
type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta json.RawMessage `json:"meta"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out, meta any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out, meta)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out, meta any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "newsfront/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("content service request failed")
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: read %s %s: %v", ErrTransport, method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := parseAPIError(resp.StatusCode, method, path, respBody)
		c.logger.Debug().Int("status", resp.StatusCode).Str("path", path).Str("code", apiErr.Code).Msg("content service returned error")
		return apiErr
	}

	return decodeBody(respBody, out, meta)
}

// decodeBody 解出 data/meta；响应不是外壳格式时直接解码整个响应体。
func decodeBody(body []byte, out, meta any) error {
	if out == nil && meta == nil {
		return nil
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if _, wrapped := probe["data"]; wrapped {
			var env envelope
			if err := json.Unmarshal(trimmed, &env); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
				if err := json.Unmarshal(env.Data, out); err != nil {
					return fmt.Errorf("decode data: %w", err)
				}
			}
			if meta != nil && len(env.Meta) > 0 && string(env.Meta) != "null" {
				if err := json.Unmarshal(env.Meta, meta); err != nil {
					return fmt.Errorf("decode meta: %w", err)
				}
			}
			return nil
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func pageQuery(page, limit int) url.Values {
	query := url.Values{}
	if page > 0 {
		query.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	return query
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
