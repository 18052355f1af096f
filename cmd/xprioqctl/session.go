package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xprioq/internal/mqcore"
	"github.com/omeyang/xprioq/pkg/mq/xprioq"
	"github.com/omeyang/xprioq/pkg/observability/xlog"
	"github.com/omeyang/xprioq/pkg/resilience/xbreaker"
	"github.com/omeyang/xprioq/pkg/resilience/xlimit"
	"github.com/omeyang/xprioq/pkg/resilience/xretry"
)

// openFunc 创建后端，测试中替换为内存实现
type openFunc func(ctx context.Context, cfg fileConfig, tracer mqcore.Tracer, logger xlog.Logger) (backend, error)

// env 命令运行环境
type env struct {
	stdout io.Writer
	stderr io.Writer
	open   openFunc
}

func defaultEnv() *env {
	return &env{stdout: os.Stdout, stderr: os.Stderr, open: openBackend}
}

// session 一次命令执行所需的依赖，close 按创建的逆序释放
type session struct {
	cfg        fileConfig
	configPath string
	logger     xlog.LoggerWithLevel
	telemetry  *telemetry
	backend    backend
	closers    []func() error
}

func (e *env) setup(ctx context.Context, cmd *cli.Command) (*session, error) {
	path := cmd.String("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, &usageError{err: err}
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	s := &session{cfg: cfg, configPath: path}

	b := xlog.New().
		SetOutput(e.stderr).
		SetLevelString(cfg.Log.Level).
		SetFormat(cfg.Log.Format)
	if cfg.Log.File != "" {
		b = b.SetRotation(cfg.Log.File,
			xlog.WithMaxSizeMB(cfg.Log.MaxSizeMB),
			xlog.WithMaxBackups(cfg.Log.MaxBackups),
			xlog.WithCompress(cfg.Log.Compress),
		)
	}
	logger, closeLog, err := b.Build()
	if err != nil {
		return nil, &usageError{err: err}
	}
	s.logger = logger
	s.closers = append(s.closers, closeLog)

	tel, err := setupTelemetry(cfg.Telemetry)
	if err != nil {
		s.close()
		return nil, err
	}
	s.telemetry = tel
	s.closers = append(s.closers, func() error { return tel.shutdown(context.Background()) })

	be, err := e.open(ctx, cfg, tel.tracer, logger)
	if err != nil {
		s.close()
		return nil, err
	}
	s.backend = be
	s.closers = append(s.closers, be.Close)

	logger.Debug(ctx, "backend opened", slog.String("type", cfg.Backend.Type))
	return s, nil
}

func (s *session) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// clientOptions 按配置组装 xprioq 客户端选项
func (s *session) clientOptions() ([]xprioq.Option, error) {
	opts := []xprioq.Option{
		xprioq.WithLogger(s.logger),
		xprioq.WithObserver(s.telemetry.observer),
		xprioq.WithTracer(s.telemetry.tracer),
		xprioq.WithResolveRetry(xretry.NewRetryer(
			xretry.WithRetryPolicy(xretry.NewFixedRetry(3)),
			xretry.WithBackoffPolicy(xretry.NewExponentialBackoff(
				xretry.WithInitialDelay(200*time.Millisecond),
				xretry.WithMaxDelay(2*time.Second),
			)),
		)),
	}

	cc := s.cfg.Consumer
	if cc.Breaker.ConsecutiveFailures > 0 {
		opts = append(opts, xprioq.WithCircuitBreaker(
			xbreaker.WithConsecutiveFailures(cc.Breaker.ConsecutiveFailures),
			xbreaker.WithTimeout(cc.Breaker.Timeout),
		))
	}
	if cc.Limit.Rate > 0 {
		limiter, err := s.limiter()
		if err != nil {
			return nil, err
		}
		opts = append(opts, xprioq.WithReceiveLimiter(limiter))
	}
	return opts, nil
}

func (s *session) limiter() (xlimit.Limiter, error) {
	limit := s.cfg.Consumer.Limit
	if !limit.Distributed {
		l, err := xlimit.NewLocal(limit.Limit)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	rc, ok := s.backend.(redisClient)
	if !ok {
		return nil, &usageError{err: errors.New("consumer.limit.distributed requires the redis backend")}
	}
	l, err := xlimit.NewRedis(rc.redisClient(), limit.Limit)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *session) newClient(ctx context.Context) (*xprioq.Client, error) {
	opts, err := s.clientOptions()
	if err != nil {
		return nil, err
	}
	return xprioq.New(ctx, s.backend, s.cfg.Client, opts...)
}

// ackRetryer 按配置返回确认重试器，Attempts ≤ 1 时不重试
func (s *session) ackRetryer() *xretry.Retryer {
	ar := s.cfg.Consumer.AckRetry
	if ar.Attempts <= 1 {
		return nil
	}
	return xretry.NewRetryer(
		xretry.WithRetryPolicy(xretry.NewFixedRetry(ar.Attempts)),
		xretry.WithBackoffPolicy(xretry.NewFixedBackoff(ar.Backoff)),
	)
}
