package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newsfront/internal/comments"
	"github.com/newsfront/internal/config"
	"github.com/newsfront/internal/content"
	"github.com/newsfront/internal/contentapi"
	"github.com/newsfront/internal/db"
	"github.com/newsfront/internal/handler"
	"github.com/newsfront/internal/logging"
	"github.com/newsfront/internal/router"
	"github.com/newsfront/internal/search"
	"github.com/newsfront/internal/service"
	"github.com/newsfront/internal/task"
	"github.com/urfave/cli/v3"
)

const (
	shutdownTimeout = 10 * time.Second
	commentBurst    = 5
)

func serveAction(ctx context.Context, _ *cli.Command) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer closeLog()

	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	gdb, err := db.Init(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}

	client := contentapi.NewClient(cfg.ContentAPIURL, cfg.UpstreamTimeout, logger)
	renderer := content.NewRenderer(content.NewAssetResolver(cfg.AssetBaseURL))

	rooms := comments.NewRegistry(client, comments.RegistryOptions{
		RealtimeURL: cfg.RealtimeURL,
		Sync: comments.Options{
			PageSize:      cfg.CommentPageSize,
			ReplyPageSize: cfg.ReplyPageSize,
		},
		Logger: logger,
	})
	defer rooms.Close()

	searches := search.NewSessions(client, cfg.SearchDebounce, logger)
	defer searches.Close()

	limiter := handler.NewRateLimiter(cfg.CommentRatePerMinute, commentBurst)

	scheduler, err := task.NewScheduler(task.Config{
		SweepSchedule:     cfg.RoomSweepSchedule,
		Idle:              cfg.CommentRoomIdle,
		ReconcileSchedule: cfg.CommentReconcileSchedule,
	}, []task.Sweeper{rooms, searches, limiter}, rooms, logger)
	if err != nil {
		return fmt.Errorf("setup scheduler: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	api := handler.NewAPI(handler.Deps{
		DB:       gdb,
		Upstream: client,
		Reader:   service.NewReaderService(client, renderer, logger),
		Drafts:   service.NewDraftService(gdb, client, renderer, logger),
		Rooms:    rooms,
		Searches: searches,
		Logger:   logger,
	})

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, router.Options{
		SessionSecret:  cfg.SessionSecret,
		CommentLimiter: limiter,
		Logger:         logger,
	})

	srv := newHTTPServer(cfg.ListenAddr, r, rooms.Close)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.ListenAddr).
			Str("content_api", client.BaseURL()).
			Str("realtime", cfg.RealtimeURL).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

// newHTTPServer 创建 HTTP 服务器。onShutdown 在 Shutdown 开始时执行，
// 用来结束 SSE 等长连接，否则 Shutdown 会一直等到超时。
func newHTTPServer(addr string, h http.Handler, onShutdown ...func()) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	for _, fn := range onShutdown {
		srv.RegisterOnShutdown(fn)
	}
	return srv
}
