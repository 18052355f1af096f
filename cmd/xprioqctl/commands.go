package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xprioq/pkg/lifecycle/xrun"
	"github.com/omeyang/xprioq/pkg/mq/xprioq"
	"github.com/omeyang/xprioq/pkg/observability/xlog"
)

// =============================================================================
// consume
// =============================================================================

func createConsumeCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "consume",
		Usage: "按权重消费配置中的队列，处理成功后确认",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max",
				Usage: "处理至少 N 条消息后退出，0 表示不限",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "覆盖 consumer.workers",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "不输出消息内容",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Int("max") < 0 || cmd.Int("workers") < 0 {
				return &usageError{err: errors.New("--max and --workers must not be negative")}
			}
			s, err := e.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close()
			return e.consume(ctx, s, cmd.Int("max"), cmd.Int("workers"), cmd.Bool("quiet"))
		},
	}
}

func (e *env) consume(ctx context.Context, s *session, maxMessages, workers int, quiet bool) error {
	client, err := s.newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		handled atomic.Int64
		outMu   sync.Mutex
	)
	handler := func(_ context.Context, msg xprioq.Message) error {
		if !quiet {
			outMu.Lock()
			fmt.Fprintf(e.stdout, "%s\t%s\t%s\n", msg.Queue, msg.ID, msg.Body)
			outMu.Unlock()
		}
		if n := handled.Add(1); maxMessages > 0 && n >= int64(maxMessages) {
			cancel()
		}
		return nil
	}

	if workers == 0 {
		workers = s.cfg.Consumer.Workers
	}
	opts := []xprioq.ConsumeOption{xprioq.WithWorkers(workers)}
	if r := s.ackRetryer(); r != nil {
		opts = append(opts, xprioq.WithAckRetry(r))
	}

	services := []func(ctx context.Context) error{
		func(ctx context.Context) error {
			// 消费结束后停止其余服务
			defer cancel()
			return client.Consume(ctx, handler, opts...)
		},
	}
	if s.configPath != "" {
		services = append(services, watchLogLevel(s.configPath, s.logger, defaultWatchDebounce))
	}

	s.logger.Info(ctx, "consumer started",
		slog.Int("workers", workers),
		slog.Int("queues", len(s.cfg.Client.Queues)),
	)
	err = xrun.RunWithOptions(ctx, []xrun.Option{
		xrun.WithLogger(s.logger),
		xrun.WithName("xprioqctl"),
	}, services...)
	if errors.Is(err, xrun.ErrSignal) {
		err = nil
	}

	logCtx := context.WithoutCancel(ctx)
	s.logger.Info(logCtx, "consumer stopped", xlog.Count(handled.Load()))
	if counts, serr := s.telemetry.summary(logCtx); serr == nil {
		for _, c := range counts {
			s.logger.Info(logCtx, "operation summary",
				xlog.Operation(c.Operation),
				slog.String("status", c.Status),
				xlog.Count(c.Count),
			)
		}
	}
	return err
}

// =============================================================================
// send
// =============================================================================

func createSendCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "向队列发送消息",
		ArgsUsage: "<queue> <body>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "attr",
				Usage: "消息属性 key=value，可重复",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "重复发送次数",
				Value: 1,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return &usageError{err: errors.New("send 需要 <queue> <body> 两个参数")}
			}
			attrs, err := parseAttrs(cmd.StringSlice("attr"))
			if err != nil {
				return err
			}
			count := cmd.Int("count")
			if count < 1 {
				return &usageError{err: errors.New("--count must be at least 1")}
			}

			s, err := e.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			queue, body := cmd.Args().Get(0), []byte(cmd.Args().Get(1))
			for range count {
				id, err := s.backend.Send(ctx, queue, body, attrs)
				if err != nil {
					return fmt.Errorf("send to %s: %w", queue, err)
				}
				fmt.Fprintln(e.stdout, id)
			}
			return nil
		},
	}
}

func parseAttrs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, &usageError{err: fmt.Errorf("invalid attribute %q, want key=value", p)}
		}
		attrs[k] = v
	}
	return attrs, nil
}

// =============================================================================
// create-queue
// =============================================================================

func createCreateQueueCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "create-queue",
		Usage:     "创建队列，未指定名称时创建配置中的全部队列",
		ArgsUsage: "[name...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := e.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			names := cmd.Args().Slice()
			if len(names) == 0 {
				names = s.cfg.queueNames()
			}
			if len(names) == 0 {
				return &usageError{err: errors.New("no queue names given and client.queues is empty")}
			}
			for _, name := range names {
				if err := s.backend.CreateQueue(ctx, name); err != nil {
					return fmt.Errorf("create queue %s: %w", name, err)
				}
				fmt.Fprintf(e.stdout, "created %s\n", name)
			}
			return nil
		},
	}
}

// =============================================================================
// status
// =============================================================================

func createStatusCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "查看各队列的阈值、可用状态与积压",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := e.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			client, err := s.newClient(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tQUEUE\tWEIGHT\tTHRESHOLD\tAVAILABLE\tVISIBLE\tINFLIGHT")
			for _, st := range client.Status() {
				visible, inflight := "-", "-"
				if v, i, err := s.backend.Depth(ctx, st.Name); err == nil {
					visible, inflight = strconv.FormatInt(v, 10), strconv.FormatInt(i, 10)
				} else if !errors.Is(err, errUnsupported) {
					return fmt.Errorf("depth of %s: %w", st.Name, err)
				}
				fmt.Fprintf(tw, "%d\t%s\t%.4g\t%.4g\t%t\t%s\t%s\n",
					st.Index, st.Name, st.Weight, st.Threshold, st.Available, visible, inflight)
			}
			return tw.Flush()
		},
	}
}
