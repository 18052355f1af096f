package xprioq

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xprioq/pkg/resilience/xbreaker"
)

func newTestQueue(maxEmpty int64, timeout time.Duration) *queue {
	return &queue{name: "q", weight: 1, maxEmpty: maxEmpty, timeout: timeout}
}

func TestQueue_BackoffAndRecovery(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(3, 5*time.Second)

	assert.False(t, q.recordEmpty(clock.Now()))
	assert.False(t, q.recordEmpty(clock.Now()))
	assert.True(t, q.available(clock.Now()))
	assert.True(t, q.recordEmpty(clock.Now()), "第 3 次空拉取进入退避")

	assert.False(t, q.available(clock.Now()))
	clock.Advance(5*time.Second - time.Nanosecond)
	assert.False(t, q.available(clock.Now()), "now < until 时不可用")

	clock.Advance(time.Nanosecond)
	assert.True(t, q.available(clock.Now()), "now ≥ until 时恢复")
	assert.Zero(t, q.emptyCount.Load())
	assert.Zero(t, q.backoffUntil.Load())

	// 计数已清零，需要重新累计
	assert.False(t, q.recordEmpty(clock.Now()))
	assert.True(t, q.available(clock.Now()))
}

func TestQueue_NonEmptyResetsCount(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(3, time.Second)

	q.recordEmpty(clock.Now())
	q.recordEmpty(clock.Now())
	q.recordNonEmpty()
	assert.Zero(t, q.emptyCount.Load())

	assert.False(t, q.recordEmpty(clock.Now()))
	assert.True(t, q.available(clock.Now()))
}

func TestQueue_RecordEmptyDuringBackoff(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(1, time.Second)

	require.True(t, q.recordEmpty(clock.Now()))
	until := q.backoffUntil.Load()

	clock.Advance(500 * time.Millisecond)
	assert.False(t, q.recordEmpty(clock.Now()), "已退避时不重复触发")
	assert.Equal(t, until, q.backoffUntil.Load(), "不延长退避")
}

func TestQueue_ConcurrentRecord(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(100, time.Second)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		triggered int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if q.recordEmpty(clock.Now()) {
					mu.Lock()
					triggered++
					mu.Unlock()
				}
				q.available(clock.Now())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, triggered, "只有一次调用触发退避")
	assert.False(t, q.available(clock.Now()))
}

func TestQueue_Status(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(1, time.Minute)
	q.index = 2
	q.threshold = 0

	s := q.status(clock.Now())
	assert.Equal(t, QueueStatus{Name: "q", Index: 2, Weight: 1, Available: true}, s)

	q.recordEmpty(clock.Now())
	s = q.status(clock.Now())
	assert.False(t, s.Available)
	assert.Equal(t, int64(1), s.EmptyReceives)
	assert.Equal(t, clock.Now().Add(time.Minute).UnixNano(), s.BackoffUntil.UnixNano())
	assert.Empty(t, s.BreakerState)

	// 到期后未经选择推进，快照也按已恢复报告
	clock.Advance(time.Minute)
	s = q.status(clock.Now())
	assert.True(t, s.Available)
	assert.Zero(t, s.EmptyReceives)
	assert.True(t, s.BackoffUntil.IsZero())
}

func TestQueue_OpenBreakerUnavailable(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(10, time.Second)
	q.breaker = xbreaker.New[[]Message]("q", xbreaker.WithConsecutiveFailures(1), xbreaker.WithTimeout(time.Hour))

	_, err := q.breaker.Execute(func() ([]Message, error) { return nil, errors.New("boom") })
	require.Error(t, err)

	assert.False(t, q.available(clock.Now()))
	s := q.status(clock.Now())
	assert.False(t, s.Available)
	assert.Equal(t, "open", s.BreakerState)
}
