package xprioq

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// seqRand 依次返回预设值，循环使用
type seqRand struct {
	mu   sync.Mutex
	vals []float64
	i    int
}

func newSeqRand(vals ...float64) *seqRand { return &seqRand{vals: vals} }

func (r *seqRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

// fakeClock 手动推进的时钟
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeBackend 按句柄保存消息的内存后端，handle 为 "h-" + 队列名
type fakeBackend struct {
	mu       sync.Mutex
	queues   map[string][]Message
	deleted  map[string][]string // handle → tokens
	receives map[string]int
	requests []int // 每次 ReceiveBatch 的 maxMessages
	seq      int

	receiveErr error
	deleteErr  error
}

func newFakeBackend(names ...string) *fakeBackend {
	b := &fakeBackend{
		queues:   make(map[string][]Message),
		deleted:  make(map[string][]string),
		receives: make(map[string]int),
	}
	for _, n := range names {
		b.queues["h-"+n] = nil
	}
	return b
}

// push 向队列追加 n 条消息
func (b *fakeBackend) push(name string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := "h-" + name
	for range n {
		b.seq++
		b.queues[h] = append(b.queues[h], Message{
			ID:       fmt.Sprintf("%s-%d", name, b.seq),
			Body:     []byte(name),
			AckToken: fmt.Sprintf("tok-%s-%d", name, b.seq),
		})
	}
}

func (b *fakeBackend) ResolveQueue(_ context.Context, name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := "h-" + name
	if _, ok := b.queues[h]; !ok {
		return "", ErrQueueNotFound
	}
	return h, nil
}

func (b *fakeBackend) ReceiveBatch(_ context.Context, handle string, maxMessages int) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receives[handle]++
	b.requests = append(b.requests, maxMessages)
	if b.receiveErr != nil {
		return nil, b.receiveErr
	}
	q := b.queues[handle]
	n := min(maxMessages, len(q))
	out := append([]Message(nil), q[:n]...)
	b.queues[handle] = q[n:]
	return out, nil
}

func (b *fakeBackend) DeleteMessage(_ context.Context, handle, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.deleted[handle] = append(b.deleted[handle], token)
	return nil
}

func (b *fakeBackend) receiveCount(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.receives["h-"+name]
}

func (b *fakeBackend) deletedTokens(name string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted["h-"+name]...)
}

func testConfig(queues ...QueueWeight) Config {
	cfg := DefaultConfig()
	cfg.Queues = queues
	cfg.AllUnavailableWait = 10 * time.Millisecond
	return cfg
}

func newTestClient(t *testing.T, b Backend, cfg Config, opts ...Option) *Client {
	t.Helper()
	c, err := New(context.Background(), b, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
