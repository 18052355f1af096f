package xprioq

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// 容量达到该值才分片，小容量保持严格的全局 LRU 语义
	shardThreshold = 1024
	ackShards      = 16
)

// ackRouter ack token → 来源队列序号
//
// 每个分片是一个内部加锁的 expirable LRU；容量与 TTL 任一触达即淘汰。
// 分片后容量按分片均摊，全局容量为近似值。
type ackRouter struct {
	shards    []*expirable.LRU[string, int]
	closed    atomic.Bool
	closeOnce sync.Once
}

func newAckRouter(size int, ttl time.Duration) *ackRouter {
	n := 1
	if size >= shardThreshold {
		n = ackShards
	}
	per := (size + n - 1) / n
	r := &ackRouter{shards: make([]*expirable.LRU[string, int], n)}
	for i := range r.shards {
		r.shards[i] = expirable.NewLRU[string, int](per, nil, ttl)
	}
	return r
}

func (r *ackRouter) shard(token string) *expirable.LRU[string, int] {
	if len(r.shards) == 1 {
		return r.shards[0]
	}
	return r.shards[xxhash.Sum64String(token)%uint64(len(r.shards))]
}

// record 记录 token 来自序号为 index 的队列
func (r *ackRouter) record(token string, index int) {
	if token == "" || r.closed.Load() {
		return
	}
	r.shard(token).Add(token, index)
}

// resolve 查找 token 的来源队列，未命中不是错误
func (r *ackRouter) resolve(token string) (int, bool) {
	if token == "" || r.closed.Load() {
		return 0, false
	}
	return r.shard(token).Get(token)
}

func (r *ackRouter) evict(token string) {
	if r.closed.Load() {
		return
	}
	r.shard(token).Remove(token)
}

func (r *ackRouter) len() int {
	if r.closed.Load() {
		return 0
	}
	n := 0
	for _, s := range r.shards {
		n += s.Len()
	}
	return n
}

// close 清空缓存并停止各分片的过期清理 goroutine
func (r *ackRouter) close() {
	r.closed.Store(true)
	r.closeOnce.Do(func() {
		for _, s := range r.shards {
			s.Purge()
			stopCleanup(s)
		}
	})
}

// stopCleanup 关闭 expirable.LRU 内部的 done channel。
// 该 LRU 未暴露关闭方法，其清理 goroutine 在 done 关闭前一直存活。
// 字段不存在或类型不符时返回 false。
func stopCleanup(lru any) (stopped bool) {
	defer func() {
		if recover() != nil {
			stopped = false
		}
	}()

	v := reflect.ValueOf(lru)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return false
	}
	done := v.Elem().FieldByName("done")
	if !done.IsValid() || done.Type() != reflect.TypeOf(make(chan struct{})) || done.IsNil() {
		return false
	}
	ch := *(*chan struct{})(unsafe.Pointer(done.UnsafeAddr())) //nolint:gosec // 访问未导出字段
	close(ch)
	return true
}
