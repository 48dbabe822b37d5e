// Package schedule 定时提交状态查询并探测后端，使健康状态无需用户流量也能恢复。
// Package schedule periodically submits a status query and probes the backends
// so health can recover without user traffic.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"assistant/internal/backend"
	"assistant/internal/channel"
	"assistant/internal/session"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SessionID 定时任务使用的会话
// SessionID is the session scheduled jobs run on
const SessionID = "scheduler"

const statusText = "status"

// Prober 对单个后端执行探测
// Prober probes one backend
type Prober interface {
	Probe(ctx context.Context, kind backend.Kind) error
}

type Options struct {
	StatusSpec string
	// Prober 为 nil 时不注册探测任务
	// Prober nil disables the probe job
	Prober Prober
	Logger zerolog.Logger
}

// Scheduler 基于 cron 的输入源
// Scheduler is a cron-driven input source
type Scheduler struct {
	opts   Options
	logger zerolog.Logger

	mu         sync.Mutex
	lastStatus string
	lastRun    time.Time
}

func New(opts Options) (*Scheduler, error) {
	spec := strings.TrimSpace(opts.StatusSpec)
	if spec == "" {
		return nil, fmt.Errorf("schedule: empty cron spec")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("schedule: invalid cron spec %q: %w", spec, err)
	}
	opts.StatusSpec = spec
	return &Scheduler{opts: opts, logger: opts.Logger.With().Str("component", "schedule").Logger()}, nil
}

func (s *Scheduler) Name() string { return "schedule" }

// Last 返回最近一次状态查询的结果与时间
// Last returns the most recent status reply and when it ran
func (s *Scheduler) Last() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus, s.lastRun
}

// Run 启动 cron 并阻塞到 ctx 结束；返回前等待正在执行的任务
// Run starts cron and blocks until ctx ends, waiting for running jobs before returning
func (s *Scheduler) Run(ctx context.Context, sub channel.Submitter) error {
	c := cron.New(
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger}), cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	if _, err := c.AddFunc(s.opts.StatusSpec, func() { s.status(ctx, sub) }); err != nil {
		return fmt.Errorf("schedule status job: %w", err)
	}
	if s.opts.Prober != nil {
		if _, err := c.AddFunc(s.opts.StatusSpec, func() { s.probe(ctx) }); err != nil {
			return fmt.Errorf("schedule probe job: %w", err)
		}
	}

	s.logger.Info().Str("spec", s.opts.StatusSpec).Bool("probe", s.opts.Prober != nil).Msg("scheduler started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) status(ctx context.Context, sub channel.Submitter) {
	if ctx.Err() != nil {
		return
	}
	reply, err := sub.Ask(ctx, SessionID, statusText, session.OriginSchedule)
	if err != nil {
		s.logger.Warn().Err(err).Msg("scheduled status failed")
		return
	}
	s.mu.Lock()
	s.lastStatus = reply
	s.lastRun = time.Now()
	s.mu.Unlock()
	s.logger.Debug().Str("status", strings.ReplaceAll(reply, "\n", " | ")).Msg("scheduled status")
}

func (s *Scheduler) probe(ctx context.Context) {
	for _, kind := range []backend.Kind{backend.Remote, backend.Local} {
		if ctx.Err() != nil {
			return
		}
		if err := s.opts.Prober.Probe(ctx, kind); err != nil {
			s.logger.Debug().Err(err).Str("backend", kind.String()).Msg("probe failed")
			continue
		}
		s.logger.Debug().Str("backend", kind.String()).Msg("probe ok")
	}
}

// cronLogger 把 cron 的日志接口接到 zerolog
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
