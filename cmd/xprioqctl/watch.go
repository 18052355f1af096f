package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/omeyang/xprioq/pkg/observability/xlog"
)

const defaultWatchDebounce = 100 * time.Millisecond

// watchLogLevel 返回监视配置文件的服务，log.level 变化时调整日志级别。
// 监视所在目录而非文件本身，编辑器原子写入（写临时文件后 rename）也能触发。
func watchLogLevel(path string, logger xlog.LoggerWithLevel, debounce time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("xprioqctl: create watcher: %w", err)
		}
		defer w.Close()

		dir := filepath.Dir(path)
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("xprioqctl: watch directory %s: %w", dir, err)
		}
		name := filepath.Base(path)

		var reload <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return nil

			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				if filepath.Base(ev.Name) != name {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				// 防抖
				reload = time.After(debounce)

			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				logger.Warn(ctx, "config watch error", xlog.Err(err))

			case <-reload:
				reload = nil
				applyLogLevel(ctx, path, logger)
			}
		}
	}
}

func applyLogLevel(ctx context.Context, path string, logger xlog.LoggerWithLevel) {
	cfg, err := loadConfig(path)
	if err != nil {
		logger.Warn(ctx, "config reload failed", xlog.Err(err))
		return
	}
	level, err := xlog.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warn(ctx, "config reload failed", xlog.Err(err))
		return
	}
	if old := logger.GetLevel(); old != level {
		logger.SetLevel(level)
		logger.Info(ctx, "log level changed",
			slog.String("from", old.String()),
			slog.String("to", level.String()),
		)
	}
}
