// Package xrun 基于 errgroup 的进程内服务生命周期管理。
//
// [Group] 管理一组共享取消语义的 goroutine：任一服务返回错误即取消其余服务，
// [Group.Wait] 返回第一个错误（或取消原因）。[Run] 额外监听系统信号，
// 收到信号时以 [SignalError] 为原因取消 Group。
//
//	err := xrun.Run(ctx,
//	    func(ctx context.Context) error { return client.Consume(ctx, handler) },
//	    xrun.Ticker(time.Minute, false, reportStatus),
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//	    // 正常退出
//	}
package xrun
