package xprioq

import (
	"context"
	"sort"
	"time"
)

// ring 按权重升序排列的队列集合，成员在构造后不变
type ring struct {
	queues []*queue // queues[i].index == i，0 为最低优先级
	rnd    Rand
	now    func() time.Time
	wait   time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

// sortQueues 按权重升序排列并分配序号
func sortQueues(ws []QueueWeight, maxEmpty int, timeout time.Duration) []*queue {
	sorted := append([]QueueWeight(nil), ws...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Weight < sorted[j].Weight })

	queues := make([]*queue, len(sorted))
	for i, w := range sorted {
		queues[i] = &queue{
			index:     i,
			name:      w.Name,
			weight:    w.Weight,
			threshold: 1 - w.Weight,
			maxEmpty:  int64(maxEmpty),
			timeout:   timeout,
		}
	}
	return queues
}

// pick 返回第一个 threshold ≤ r 的序号，都不满足时返回最高序号
func (r *ring) pick(x float64) int {
	for i, q := range r.queues {
		if q.threshold <= x {
			return i
		}
	}
	return len(r.queues) - 1
}

// fallback 从 start 开始向低优先级方向查找可用队列，越过 0 后回绕到最高序号
func (r *ring) fallback(start int, now time.Time) (*queue, bool) {
	n := len(r.queues)
	for step := range n {
		q := r.queues[(start-step+n)%n]
		if q.available(now) {
			return q, true
		}
	}
	return nil, false
}

// next 选择下一次拉取的队列。所有队列都在退避时等待 r.wait 后重新抽取，
// ctx 结束时返回 ctx 错误。
func (r *ring) next(ctx context.Context) (*queue, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if q, ok := r.fallback(r.pick(r.rnd.Float64()), r.now()); ok {
			return q, nil
		}
		if err := r.sleep(ctx, r.wait); err != nil {
			return nil, err
		}
	}
}
