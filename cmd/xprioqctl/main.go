// xprioqctl 是 xprioq 优先级队列消费者的命令行工具。
//
// 用法:
//
//	xprioqctl -c <配置文件> <命令> [命令参数]
//
// 命令:
//
//	consume                  按权重从配置的队列中消费消息，处理后确认
//	send <queue> <body>      向队列发送一条消息
//	create-queue [name...]   创建队列（未指定时创建配置中的全部队列）
//	status                   查看各队列的选择阈值、可用状态与积压
//
// 退出码:
//
//	0: 成功（consume 收到 SIGINT/SIGTERM 正常退出也视为成功）
//	1: 执行失败
//	2: 参数或配置错误
//
// 示例:
//
//	xprioqctl -c xprioq.yaml create-queue
//	xprioqctl -c xprioq.yaml send orders-high '{"id":1}' --attr source=web
//	xprioqctl -c xprioq.yaml consume --max 100
//	xprioqctl -c xprioq.yaml status
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入）
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// usageError 参数或配置错误，退出码 2
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(context.Background(), defaultEnv(), os.Args))
}

func createApp(e *env) *cli.Command {
	return &cli.Command{
		Name:      "xprioqctl",
		Usage:     "xprioq 优先级队列命令行工具",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:    e.stdout,
		ErrWriter: e.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（.yaml/.yml/.json）",
				Sources: cli.EnvVars("XPRIOQ_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "覆盖配置中的日志级别 (debug/info/warn/error)",
			},
		},
		Commands: []*cli.Command{
			createConsumeCommand(e),
			createSendCommand(e),
			createCreateQueueCommand(e),
			createStatusCommand(e),
		},
		// 退出码由 run 统一映射
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

func run(ctx context.Context, e *env, args []string) int {
	err := createApp(e).Run(ctx, args)
	if err == nil {
		return 0
	}

	var usageErr *usageError
	if errors.As(err, &usageErr) || isCLIUsageError(err) {
		fmt.Fprintf(e.stderr, "参数错误: %v\n", err)
		return 2
	}
	fmt.Fprintf(e.stderr, "错误: %v\n", err)
	return 1
}

// isCLIUsageError 识别 urfave/cli 产生的参数解析错误
func isCLIUsageError(err error) bool {
	msg := err.Error()
	for _, s := range []string{
		"flag provided but not defined",
		"Required flag",
		"Required flags",
		"invalid value",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
