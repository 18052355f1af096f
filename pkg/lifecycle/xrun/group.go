package xrun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xprioq/pkg/observability/xlog"
)

// Group 一组共享生命周期的服务
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	opts     *groupOptions
}

// NewGroup 创建 Group，返回的 ctx 在任一服务失败或 Cancel 时取消
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)
	return &Group{eg: eg, ctx: egCtx, causeCtx: causeCtx, cancel: cancel, opts: options}, egCtx
}

// Go 启动一个服务
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		return fn(g.ctx)
	})
}

// GoWithName 启动一个命名服务，启停记录日志
func (g *Group) GoWithName(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		attrs := []slog.Attr{slog.String("group", g.opts.name), slog.String("service", name)}
		g.opts.logger.Debug(g.ctx, "service starting", attrs...)
		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.opts.logger.Warn(context.WithoutCancel(g.ctx), "service exited with error", append(attrs, xlog.Err(err))...)
		} else {
			g.opts.logger.Debug(context.WithoutCancel(g.ctx), "service stopped", attrs...)
		}
		return err
	})
}

// Wait 等待所有服务退出
//
// 返回第一个非取消错误；Group 被 Cancel(cause) 取消时返回 cause；
// 仅因 context.Canceled 结束时返回 nil。
func (g *Group) Wait() error {
	defer g.cancel(nil)
	err := g.eg.Wait()

	if g.causeCtx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
		if cause := context.Cause(g.causeCtx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
		return nil
	}
	return err
}

// Cancel 以 cause 取消 Group
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Context 返回 Group 的 context
func (g *Group) Context() context.Context {
	return g.ctx
}

// Run 启动 services 并监听系统信号，直到全部退出
func Run(ctx context.Context, services ...func(ctx context.Context) error) error {
	return RunWithOptions(ctx, nil, services...)
}

// RunWithOptions 同 Run，可配置 Group
func RunWithOptions(ctx context.Context, opts []Option, services ...func(ctx context.Context) error) error {
	g, _ := NewGroup(ctx, opts...)
	if !g.opts.noSignalHandler {
		signals := g.opts.signals
		if len(signals) == 0 {
			signals = DefaultSignals()
		}
		// 先注册再启动服务，避免服务启动期间的信号丢失
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, signals...)
		g.Go(func(ctx context.Context) error {
			defer signal.Stop(sigCh)
			select {
			case sig := <-sigCh:
				g.opts.logger.Info(ctx, "received signal",
					slog.String("group", g.opts.name),
					slog.String("signal", sig.String()),
				)
				g.cancel(&SignalError{Signal: sig})
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	for _, svc := range services {
		g.Go(svc)
	}
	return g.Wait()
}

// Ticker 返回周期执行 fn 的服务函数；immediate 为 true 时启动即执行一次。
// fn 返回错误时服务退出。
func Ticker(interval time.Duration, immediate bool, fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if interval <= 0 {
			return ErrInvalidInterval
		}
		if fn == nil {
			return ErrNilFunc
		}
		if immediate {
			if err := fn(ctx); err != nil {
				return err
			}
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				if err := fn(ctx); err != nil {
					return err
				}
			}
		}
	}
}
