package mqcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/goleak"

	"github.com/omeyang/xprioq/pkg/resilience/xretry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sampledContext() (context.Context, trace.SpanContext) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0xa1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{0xb1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc), sc
}

func TestOTelTracer_RoundTrip(t *testing.T) {
	tracer := NewOTelTracer(nil)
	ctx, sc := sampledContext()

	attrs := map[string]string{}
	tracer.Inject(ctx, attrs)
	require.Contains(t, attrs, "traceparent")

	got := trace.SpanContextFromContext(tracer.Extract(attrs))
	assert.Equal(t, sc.TraceID(), got.TraceID())
	assert.Equal(t, sc.SpanID(), got.SpanID())
	assert.True(t, got.IsRemote())
}

func TestOTelTracer_NilInputs(t *testing.T) {
	tracer := NewOTelTracer(nil)
	tracer.Inject(context.Background(), nil)
	assert.NotNil(t, tracer.Extract(nil))

	attrs := map[string]string{}
	tracer.Inject(context.Background(), attrs)
	assert.Empty(t, attrs)

	var noop NoopTracer
	noop.Inject(context.Background(), attrs)
	assert.NotNil(t, noop.Extract(attrs))
}

func TestMergeTraceContext(t *testing.T) {
	extracted, sc := sampledContext()

	base, cancel := context.WithCancel(context.Background())
	merged := MergeTraceContext(base, extracted)
	assert.Equal(t, sc.TraceID(), trace.SpanContextFromContext(merged).TraceID())
	cancel()
	assert.Error(t, merged.Err())

	// base 已有 span 时不覆盖
	ownSC := trace.NewSpanContext(trace.SpanContextConfig{TraceID: trace.TraceID{9}, SpanID: trace.SpanID{9}})
	own := trace.ContextWithSpanContext(context.Background(), ownSC)
	assert.Equal(t, ownSC.TraceID(), trace.SpanContextFromContext(MergeTraceContext(own, extracted)).TraceID())

	// extracted 无效时原样返回
	plain := context.Background()
	assert.Equal(t, plain, MergeTraceContext(plain, context.Background()))
	assert.NotNil(t, MergeTraceContext(nil, nil)) //nolint:staticcheck
}

func TestRunConsumeLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("boom")
	var calls, errs int
	err := RunConsumeLoop(ctx, func(context.Context, func()) error {
		calls++
		switch {
		case calls == 5:
			cancel()
			return nil
		case calls%2 == 0:
			return boom
		default:
			return nil
		}
	},
		WithBackoff(xretry.NewFixedBackoff(time.Millisecond)),
		WithOnError(func(err error) {
			assert.ErrorIs(t, err, boom)
			errs++
		}),
	)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 2, errs)
	assert.ErrorIs(t, RunConsumeLoop(ctx, nil), ErrNilHandler)
}

type backoffFunc func(attempt int) time.Duration

func (f backoffFunc) NextDelay(attempt int) time.Duration { return f(attempt) }

// progress 在同一轮 consume 内清零退避计数
func TestRunConsumeLoop_ProgressResetsAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("boom")
	var (
		calls    int
		attempts []int
	)
	err := RunConsumeLoop(ctx, func(_ context.Context, progress func()) error {
		calls++
		switch calls {
		case 1, 2:
			return boom
		case 3:
			progress()
			return boom
		default:
			cancel()
			return boom
		}
	}, WithBackoff(backoffFunc(func(attempt int) time.Duration {
		attempts = append(attempts, attempt)
		return time.Millisecond
	})))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1, 2, 1}, attempts)
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))
	require.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
