// Package xretry 提供重试策略、退避策略和错误分类。
//
//   - RetryPolicy：是否应该重试（FixedRetryPolicy、AlwaysRetryPolicy）
//   - BackoffPolicy：重试间隔（FixedBackoff、ExponentialBackoff）
//
// 底层使用 [avast/retry-go/v5] 实现重试循环：
//
//	retryer := xretry.NewRetryer(
//	    xretry.WithRetryPolicy(xretry.NewFixedRetry(3)),
//	    xretry.WithBackoffPolicy(xretry.NewExponentialBackoff()),
//	)
//	err := retryer.Do(ctx, func(ctx context.Context) error {
//	    return client.Acknowledge(ctx, token)
//	})
//
// # 错误分类
//
// 实现 [RetryableError] 的错误自行声明是否可重试；
// retry-go 的 Unrecoverable 包装总是终止重试；其余错误默认可重试。
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
