package task

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// namedJob 是带名字的任务，便于日志区分。
type namedJob struct {
	name string
	run  func()
}

func (j namedJob) Run() { j.run() }

func jobName(j cron.Job) string {
	if named, ok := j.(namedJob); ok {
		return named.name
	}
	return fmt.Sprintf("%T", j)
}

// loggingWrapper 记录每次执行的开始与耗时，每次执行带独立的 execution_id。
func loggingWrapper(logger zerolog.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		name := jobName(j)
		return cron.FuncJob(func() {
			jobLogger := logger.With().
				Str("job_name", name).
				Str("execution_id", uuid.NewString()).
				Logger()

			start := time.Now()
			jobLogger.Debug().Msg("job started")
			j.Run()
			jobLogger.Debug().Dur("duration", time.Since(start)).Msg("job finished")
		})
	}
}

// recoverWrapper 把任务中的 panic 记为错误日志，调度器继续运行。
func recoverWrapper(logger zerolog.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		name := jobName(j)
		return cron.FuncJob(func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Str("job_name", name).
						Interface("panic", r).
						Bytes("stack", debug.Stack()).
						Msg("job panicked")
				}
			}()
			j.Run()
		})
	}
}
