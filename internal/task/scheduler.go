package task

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper 回收空闲资源，返回回收的数量。
type Sweeper interface {
	Sweep(now time.Time, idle time.Duration) int
}

// Reconciler 与内容服务重新对齐本地状态。
type Reconciler interface {
	ReconcileAll(ctx context.Context) error
}

// Config 描述周期任务的调度。
type Config struct {
	// SweepSchedule 为空时不清理。
	SweepSchedule string
	Idle          time.Duration
	// ReconcileSchedule 为空时不做全量对齐。
	ReconcileSchedule string
	ReconcileTimeout  time.Duration
}

// Scheduler 运行评论房间与搜索会话的维护任务。
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
	now    func() time.Time
}

// NewScheduler 创建调度器并注册任务，调度表达式非法时返回错误。
func NewScheduler(cfg Config, sweepers []Sweeper, reconciler Reconciler, logger zerolog.Logger) (*Scheduler, error) {
	logger = logger.With().Str("system", "cron").Logger()
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			recoverWrapper(logger),
			loggingWrapper(logger),
			cron.DelayIfStillRunning(cron.DefaultLogger),
		)),
		logger: logger,
		now:    time.Now,
	}

	if cfg.SweepSchedule != "" && len(sweepers) > 0 {
		job := namedJob{name: "sweep-idle", run: func() { s.sweep(sweepers, cfg.Idle) }}
		if _, err := s.cron.AddJob(cfg.SweepSchedule, job); err != nil {
			return nil, fmt.Errorf("register sweep job: %w", err)
		}
		logger.Info().Str("schedule", cfg.SweepSchedule).Msg("registered sweep job")
	}

	if cfg.ReconcileSchedule != "" && reconciler != nil {
		timeout := cfg.ReconcileTimeout
		if timeout <= 0 {
			timeout = time.Minute
		}
		job := namedJob{name: "reconcile-comments", run: func() { s.reconcile(reconciler, timeout) }}
		if _, err := s.cron.AddJob(cfg.ReconcileSchedule, job); err != nil {
			return nil, fmt.Errorf("register reconcile job: %w", err)
		}
		logger.Info().Str("schedule", cfg.ReconcileSchedule).Msg("registered reconcile job")
	}

	return s, nil
}

func (s *Scheduler) sweep(sweepers []Sweeper, idle time.Duration) {
	now := s.now()
	removed := 0
	for _, sweeper := range sweepers {
		removed += sweeper.Sweep(now, idle)
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("swept idle sessions")
	}
}

func (s *Scheduler) reconcile(reconciler Reconciler, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := reconciler.ReconcileAll(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("reconcile comments failed")
	}
}

// Jobs 返回已注册的任务数。
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start 启动调度器。
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度器并等待正在执行的任务结束。
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("cron scheduler stopped")
}
