package xprioq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/omeyang/xprioq/pkg/resilience/xretry"
)

func TestNew_ResolvesEveryQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)
	backend.EXPECT().ResolveQueue(gomock.Any(), "hi").Return("h-hi", nil)
	backend.EXPECT().ResolveQueue(gomock.Any(), "lo").Return("h-lo", nil)

	c := newTestClient(t, backend, testConfig(QueueWeight{"hi", 0.7}, QueueWeight{"lo", 0.3}))

	status := c.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "lo", status[0].Name)
	assert.Equal(t, "hi", status[1].Name)
	assert.True(t, status[0].Available)
	assert.Equal(t, "h-lo", c.ring.queues[0].handle)
	assert.Equal(t, "h-hi", c.ring.queues[1].handle)
}

func TestNew_ResolveFailureIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)
	backend.EXPECT().ResolveQueue(gomock.Any(), "lo").Return("h-lo", nil).AnyTimes()
	backend.EXPECT().ResolveQueue(gomock.Any(), "hi").Return("", ErrQueueNotFound).AnyTimes()

	c, err := New(context.Background(), backend, testConfig(QueueWeight{"hi", 0.7}, QueueWeight{"lo", 0.3}))
	require.Error(t, err)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrQueueResolution)
	assert.ErrorIs(t, err, ErrQueueNotFound)

	var re *ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "hi", re.Queue)
}

func TestNew_ResolveRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)
	flaky := errors.New("connection reset")
	gomock.InOrder(
		backend.EXPECT().ResolveQueue(gomock.Any(), "q").Return("", flaky),
		backend.EXPECT().ResolveQueue(gomock.Any(), "q").Return("h-q", nil),
	)

	retryer := xretry.NewRetryer(
		xretry.WithRetryPolicy(xretry.NewFixedRetry(3)),
		xretry.WithBackoffPolicy(xretry.NewFixedBackoff(time.Millisecond)),
	)
	c := newTestClient(t, backend, testConfig(QueueWeight{"q", 1}), WithResolveRetry(retryer))
	assert.Equal(t, "h-q", c.ring.queues[0].handle)
}

func TestNew_ResolveRetrySkipsNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)
	backend.EXPECT().ResolveQueue(gomock.Any(), "q").Return("", ErrQueueNotFound).Times(1)

	retryer := xretry.NewRetryer(
		xretry.WithRetryPolicy(xretry.NewFixedRetry(5)),
		xretry.WithBackoffPolicy(xretry.NewFixedBackoff(time.Millisecond)),
	)
	_, err := New(context.Background(), backend, testConfig(QueueWeight{"q", 1}), WithResolveRetry(retryer))
	assert.ErrorIs(t, err, ErrQueueNotFound)
	assert.ErrorIs(t, err, ErrQueueResolution)
}

// 两个互不共享状态的队列：确认请求发往消息的来源队列
func TestAcknowledge_RoutesToOriginQueue(t *testing.T) {
	backend := newFakeBackend("hi", "lo")
	backend.push("hi", 1)
	backend.push("lo", 1)

	// 0.1 → hi，0.9 → lo
	c := newTestClient(t, backend, testConfig(QueueWeight{"hi", 0.7}, QueueWeight{"lo", 0.3}),
		WithRand(newSeqRand(0.1, 0.9)))

	seq, err := c.ReceiveN(context.Background(), c.cfg.MaxMessages)
	require.NoError(t, err)

	got := map[string]Message{}
	for msg, err := range seq {
		require.NoError(t, err)
		got[msg.Queue] = msg
		if len(got) == 2 {
			break
		}
	}
	require.Len(t, got, 2)
	assert.Equal(t, 2, c.PendingAcks())

	require.NoError(t, c.Acknowledge(context.Background(), got["lo"].AckToken))
	require.NoError(t, c.Acknowledge(context.Background(), got["hi"].AckToken))

	assert.Equal(t, []string{got["hi"].AckToken}, backend.deletedTokens("hi"))
	assert.Equal(t, []string{got["lo"].AckToken}, backend.deletedTokens("lo"))
	assert.Zero(t, c.PendingAcks())
}

func TestAcknowledge_NotFoundMutatesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)
	backend.EXPECT().ResolveQueue(gomock.Any(), "q").Return("h-q", nil)
	// 无 DeleteMessage 期望

	c := newTestClient(t, backend, testConfig(QueueWeight{"q", 1}))
	c.ring.queues[0].emptyCount.Store(3)
	before := c.Status()

	err := c.Acknowledge(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrAckNotFound)
	assert.Equal(t, before, c.Status())
	assert.Zero(t, c.PendingAcks())
}

func TestAcknowledge_AlreadyConsumed(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)
	backend.EXPECT().ResolveQueue(gomock.Any(), "q").Return("h-q", nil)
	backend.EXPECT().DeleteMessage(gomock.Any(), "h-q", "tok").Return(nil).Times(1)

	c := newTestClient(t, backend, testConfig(QueueWeight{"q", 1}))
	c.acks.record("tok", 0)

	require.NoError(t, c.Acknowledge(context.Background(), "tok"))
	assert.ErrorIs(t, c.Acknowledge(context.Background(), "tok"), ErrAckNotFound)
}

func TestAcknowledge_DeleteFailureKeepsToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)
	backend.EXPECT().ResolveQueue(gomock.Any(), "q").Return("h-q", nil)
	boom := errors.New("boom")
	gomock.InOrder(
		backend.EXPECT().DeleteMessage(gomock.Any(), "h-q", "tok").Return(boom),
		backend.EXPECT().DeleteMessage(gomock.Any(), "h-q", "tok").Return(nil),
	)

	c := newTestClient(t, backend, testConfig(QueueWeight{"q", 1}))
	c.acks.record("tok", 0)

	err := c.Acknowledge(context.Background(), "tok")
	require.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, boom)
	assert.True(t, xretry.IsRetryable(err))

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "delete", te.Op)
	assert.Equal(t, "q", te.Queue)

	assert.Equal(t, 1, c.PendingAcks(), "失败后 token 保留")
	require.NoError(t, c.Acknowledge(context.Background(), "tok"))
	assert.Zero(t, c.PendingAcks())
}

func TestClient_Close(t *testing.T) {
	backend := newFakeBackend("q")
	c, err := New(context.Background(), backend, testConfig(QueueWeight{"q", 1}))
	require.NoError(t, err)
	c.acks.record("tok", 0)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Acknowledge(context.Background(), "tok"), ErrClosed)
	assert.Zero(t, c.PendingAcks())

	for _, err := range c.Receive(context.Background()) {
		assert.ErrorIs(t, err, ErrClosed)
	}
	assert.Zero(t, backend.receiveCount("q"))
}

func TestClient_Config(t *testing.T) {
	backend := newFakeBackend("a", "b")
	cfg := testConfig(QueueWeight{"a", 0.6}, QueueWeight{"b", 0.4})
	c := newTestClient(t, backend, cfg)

	got := c.Config()
	assert.Equal(t, cfg, got)

	got.Queues[0].Name = "mutated"
	assert.Equal(t, "a", c.Config().Queues[0].Name)
	cfg.Queues[1].Name = "mutated"
	assert.Equal(t, "b", c.Config().Queues[1].Name)
}
