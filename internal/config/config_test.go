package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/spf13/viper"
)

func testViper(overrides map[string]any) *viper.Viper {
	vp := newViper()
	for key, value := range overrides {
		vp.Set(key, value)
	}
	return vp
}

func TestFromViperDefaults(t *testing.T) {
	cfg := FromViper(testViper(nil))

	if cfg.ListenAddr != ":3000" {
		t.Fatalf("expected listen addr :3000, got %q", cfg.ListenAddr)
	}
	// 默认监听端口不能与内容服务默认地址冲突
	if strings.Contains(cfg.ContentAPIURL, cfg.ListenAddr+"/") {
		t.Fatalf("listen addr %q collides with content api %q", cfg.ListenAddr, cfg.ContentAPIURL)
	}
	if cfg.RealtimeURL != "ws://localhost:8080/api/v1/ws" {
		t.Fatalf("unexpected realtime url %q", cfg.RealtimeURL)
	}
	if cfg.AssetBaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected asset base %q", cfg.AssetBaseURL)
	}
	if cfg.SearchDebounce != 300*time.Millisecond {
		t.Fatalf("expected 300ms debounce, got %s", cfg.SearchDebounce)
	}
	if cfg.CommentPageSize != 10 || cfg.ReplyPageSize != 5 {
		t.Fatalf("unexpected page sizes %d/%d", cfg.CommentPageSize, cfg.ReplyPageSize)
	}
	if cfg.UpstreamTimeout != 0 {
		t.Fatalf("expected no upstream timeout, got %s", cfg.UpstreamTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestFromViperDerivesSecureRealtimeURL(t *testing.T) {
	cfg := FromViper(testViper(map[string]any{
		"CONTENT_API_URL": "https://news.example.com/api/v1/",
		"PORT":            "9000",
	}))

	if cfg.RealtimeURL != "wss://news.example.com/api/v1/ws" {
		t.Fatalf("unexpected realtime url %q", cfg.RealtimeURL)
	}
	if cfg.ContentAPIURL != "https://news.example.com/api/v1" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.ContentAPIURL)
	}
	if cfg.ListenAddr != ":9000" {
		t.Fatalf("expected :9000, got %q", cfg.ListenAddr)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := FromViper(testViper(map[string]any{
		"CONTENT_API_URL":     "localhost",
		"SEARCH_DEBOUNCE":     "soon",
		"COMMENT_PAGE_SIZE":   0,
		"LOG_LEVEL":           "loud",
		"ROOM_SWEEP_SCHEDULE": "every minute",
	}))

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected criterio.FieldErrors, got %T", err)
	}

	fields := map[string]bool{}
	for _, fe := range fieldErrs {
		fields[fe.Field] = true
	}
	for _, want := range []string{"SEARCH_DEBOUNCE", "COMMENT_PAGE_SIZE", "CONTENT_API_URL", "LOG_LEVEL", "ROOM_SWEEP_SCHEDULE"} {
		if !fields[want] {
			t.Fatalf("expected error for %s, got %v", want, err)
		}
	}
}
