package config

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/hay-kot/criterio"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Validate 一次性汇总所有配置问题。
func (c AppConfig) Validate() error {
	var errs criterio.FieldErrorsBuilder

	keys := make([]string, 0, len(c.durationErrs))
	for key := range c.durationErrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		errs = errs.Append(key, c.durationErrs[key])
	}

	if c.CommentPageSize <= 0 {
		errs = errs.Append("COMMENT_PAGE_SIZE", fmt.Errorf("must be positive, got %d", c.CommentPageSize))
	}
	if c.ReplyPageSize <= 0 {
		errs = errs.Append("REPLY_PAGE_SIZE", fmt.Errorf("must be positive, got %d", c.ReplyPageSize))
	}
	if c.CommentRatePerMinute <= 0 {
		errs = errs.Append("COMMENT_RATE_PER_MINUTE", fmt.Errorf("must be positive, got %d", c.CommentRatePerMinute))
	}
	if c.SessionSecret == "" {
		errs = errs.Append("SESSION_SECRET", fmt.Errorf("is required"))
	}

	return criterio.ValidateStruct(
		errs.ToError(),
		criterio.Run("CONTENT_API_URL", c.ContentAPIURL, httpURL),
		criterio.Run("REALTIME_URL", c.RealtimeURL, websocketURL),
		criterio.Run("LOG_LEVEL", c.LogLevel, logLevel),
		criterio.Run("ROOM_SWEEP_SCHEDULE", c.RoomSweepSchedule, schedule),
		criterio.Run("COMMENT_RECONCILE_SCHEDULE", c.CommentReconcileSchedule, schedule),
	)
}

func httpURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("not an http(s) url: %q", raw)
	}
	return nil
}

func websocketURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("not a ws(s) url: %q", raw)
	}
	return nil
}

func logLevel(raw string) error {
	if _, err := zerolog.ParseLevel(raw); err != nil {
		return fmt.Errorf("unknown level %q", raw)
	}
	return nil
}

// schedule 接受空值，表示禁用该任务。
func schedule(raw string) error {
	if raw == "" {
		return nil
	}
	if _, err := cron.ParseStandard(raw); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", raw, err)
	}
	return nil
}
