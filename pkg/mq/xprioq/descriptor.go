package xprioq

import (
	"sync/atomic"
	"time"

	"github.com/omeyang/xprioq/pkg/resilience/xbreaker"
)

// queue 单个队列的身份与健康状态
//
// 状态机：Available ⇄ Backoff(until)。
//   - 空拉取：计数 +1，达到 maxEmpty 时进入 Backoff(now + timeout)
//   - 非空拉取：计数归零
//   - 可用性检查：Backoff 期间（now < until）不可用；
//     now ≥ until 时由检查方切回 Available 并清零计数
type queue struct {
	index     int
	name      string
	handle    string
	weight    float64
	threshold float64

	maxEmpty int64
	timeout  time.Duration

	emptyCount   atomic.Int64
	backoffUntil atomic.Int64 // UnixNano，0 表示 Available

	breaker   *xbreaker.Breaker[[]Message] // 可选
	onRecover func(q *queue)                // 可选，Backoff → Available 时调用
}

// recordEmpty 记录一次空拉取，返回本次是否触发了退避
func (q *queue) recordEmpty(now time.Time) bool {
	if q.emptyCount.Add(1) < q.maxEmpty {
		return false
	}
	until := now.Add(q.timeout).UnixNano()
	if until == 0 {
		until = 1
	}
	return q.backoffUntil.CompareAndSwap(0, until)
}

// recordNonEmpty 记录一次非空拉取
func (q *queue) recordNonEmpty() {
	q.emptyCount.Store(0)
}

// available 报告 now 时刻队列是否可被选择，必要时完成 Backoff → Available 转换
func (q *queue) available(now time.Time) bool {
	if q.breaker != nil && q.breaker.Open() {
		return false
	}
	until := q.backoffUntil.Load()
	if until == 0 {
		return true
	}
	if now.UnixNano() < until {
		return false
	}
	if q.backoffUntil.CompareAndSwap(until, 0) {
		q.emptyCount.Store(0)
		if q.onRecover != nil {
			q.onRecover(q)
		}
	}
	return true
}

// QueueStatus 队列状态快照
type QueueStatus struct {
	Name          string
	Index         int
	Weight        float64
	Threshold     float64
	Available     bool
	EmptyReceives int64
	BackoffUntil  time.Time // 零值表示未退避
	BreakerState  string    // 未启用熔断时为空
}

func (q *queue) status(now time.Time) QueueStatus {
	s := QueueStatus{
		Name:          q.name,
		Index:         q.index,
		Weight:        q.weight,
		Threshold:     q.threshold,
		EmptyReceives: q.emptyCount.Load(),
	}
	if until := q.backoffUntil.Load(); until != 0 {
		if now.UnixNano() < until {
			s.BackoffUntil = time.Unix(0, until)
		} else {
			// 退避已到期但尚未被选择推进，按恢复后的状态报告
			s.EmptyReceives = 0
		}
	}
	s.Available = s.BackoffUntil.IsZero()
	if q.breaker != nil {
		s.BreakerState = q.breaker.State().String()
		if q.breaker.Open() {
			s.Available = false
		}
	}
	return s
}
