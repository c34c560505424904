package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr    string
	Port          string
	DatabasePath  string
	SessionSecret string
	GinMode       string

	ContentAPIURL string
	RealtimeURL   string
	AssetBaseURL  string

	LogLevel string
	LogFile  string

	SearchDebounce           time.Duration
	CommentPageSize          int
	ReplyPageSize            int
	CommentRoomIdle          time.Duration
	RoomSweepSchedule        string
	CommentReconcileSchedule string
	CommentRatePerMinute     int
	UpstreamTimeout          time.Duration

	durationErrs map[string]error
}

var defaults = map[string]any{
	"PORT":                       "3000",
	"LISTEN_ADDR":                "",
	"DATABASE_PATH":              "newsfront.db",
	"SESSION_SECRET":             "newsfront-dev-secret",
	"GIN_MODE":                   "release",
	"CONTENT_API_URL":            "http://localhost:8080/api/v1",
	"REALTIME_URL":               "",
	"ASSET_BASE_URL":             "",
	"LOG_LEVEL":                  "info",
	"LOG_FILE":                   "",
	"SEARCH_DEBOUNCE":            "300ms",
	"COMMENT_PAGE_SIZE":          10,
	"REPLY_PAGE_SIZE":            5,
	"COMMENT_ROOM_IDLE":          "10m",
	"ROOM_SWEEP_SCHEDULE":        "@every 1m",
	"COMMENT_RECONCILE_SCHEDULE": "",
	"COMMENT_RATE_PER_MINUTE":    20,
	"UPSTREAM_TIMEOUT":           "0s",
}

// Load 读取可选的 .env 文件与环境变量，并为缺失项提供默认值。
func Load() AppConfig {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	vp := viper.New()
	for key, value := range defaults {
		vp.SetDefault(key, value)
	}
	vp.AutomaticEnv()
	return vp
}

// FromViper 根据已经设置好的 viper 实例构造配置。
func FromViper(vp *viper.Viper) AppConfig {
	str := func(key string) string {
		return strings.TrimSpace(vp.GetString(key))
	}

	cfg := AppConfig{
		Port:                     str("PORT"),
		ListenAddr:               str("LISTEN_ADDR"),
		DatabasePath:             str("DATABASE_PATH"),
		SessionSecret:            str("SESSION_SECRET"),
		GinMode:                  str("GIN_MODE"),
		ContentAPIURL:            strings.TrimRight(str("CONTENT_API_URL"), "/"),
		RealtimeURL:              str("REALTIME_URL"),
		AssetBaseURL:             strings.TrimRight(str("ASSET_BASE_URL"), "/"),
		LogLevel:                 strings.ToLower(str("LOG_LEVEL")),
		LogFile:                  str("LOG_FILE"),
		CommentPageSize:          vp.GetInt("COMMENT_PAGE_SIZE"),
		ReplyPageSize:            vp.GetInt("REPLY_PAGE_SIZE"),
		RoomSweepSchedule:        str("ROOM_SWEEP_SCHEDULE"),
		CommentReconcileSchedule: str("COMMENT_RECONCILE_SCHEDULE"),
		CommentRatePerMinute:     vp.GetInt("COMMENT_RATE_PER_MINUTE"),
		durationErrs:             make(map[string]error),
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf(":%s", cfg.Port)
	}
	if cfg.RealtimeURL == "" {
		cfg.RealtimeURL = deriveRealtimeURL(cfg.ContentAPIURL)
	}
	if cfg.AssetBaseURL == "" {
		cfg.AssetBaseURL = strings.TrimSuffix(cfg.ContentAPIURL, "/api/v1")
	}

	cfg.SearchDebounce = cfg.duration("SEARCH_DEBOUNCE", str("SEARCH_DEBOUNCE"))
	cfg.CommentRoomIdle = cfg.duration("COMMENT_ROOM_IDLE", str("COMMENT_ROOM_IDLE"))
	cfg.UpstreamTimeout = cfg.duration("UPSTREAM_TIMEOUT", str("UPSTREAM_TIMEOUT"))
	return cfg
}

func (c *AppConfig) duration(key, raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		c.durationErrs[key] = fmt.Errorf("invalid duration %q", raw)
		return 0
	}
	return d
}

// deriveRealtimeURL 把内容服务地址换成 ws(s) 协议并追加 /ws。
func deriveRealtimeURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}
