package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/application/port/mocks"
	"github.com/bnema/ealain/internal/domain/entity"
)

var refillEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRefill(client port.GenerationClient, store port.ImageStore, cfg RefillConfig) (*RefillController, *recordingSink) {
	sink := &recordingSink{}
	c := NewRefillController(cfg, client, &stubDownloader{}, store, func(p entity.Partition) entity.GenerationRequest {
		return entity.GenerationRequest{Prompt: "a lake", Style: p.Style}
	}, sink)
	c.SetRunner(func(fn func()) { fn() })
	c.jobSleep = noSleep
	c.now = func() time.Time { return refillEpoch }
	return c, sink
}

// runOnce dispatches a job inline and feeds its outcome back.
func runOnce(t *testing.T, c *RefillController, now time.Time) JobOutcome {
	t.Helper()
	require.True(t, c.Tick(context.Background(), now, testPartition), "expected a job to be dispatched")
	outcome := <-c.Results()
	c.Complete(context.Background(), outcome, now)
	return outcome
}

func TestRefill_StopsAfterRepeatedTransportFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGenerationClient(ctrl)
	client.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(entity.GenerationHandle{}, port.ErrTransport).Times(6)

	c, sink := newTestRefill(client, newMemStore(), DefaultRefillConfig())

	for i := 0; i < 5; i++ {
		runOnce(t, c, refillEpoch)
		assert.False(t, c.Stopped(), "still running after failure %d", i+1)
	}
	runOnce(t, c, refillEpoch)

	assert.True(t, c.Stopped())
	assert.Equal(t, 6.0, c.failures)
	assert.Equal(t, StatusStopped, c.Status())

	// Stopped is terminal: no further submissions, even much later.
	assert.False(t, c.Tick(context.Background(), refillEpoch.Add(time.Hour), testPartition))

	failures := sink.failures()
	require.Len(t, failures, 6)
	assert.True(t, failures[5].Stopped)
	statuses := sink.statuses()
	assert.Equal(t, StatusStopped, statuses[len(statuses)-1])
}

func TestRefill_RateLimitCountsHalf(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGenerationClient(ctrl)
	client.EXPECT().Submit(gomock.Any(), gomock.Any()).
		Return(entity.GenerationHandle{}, &port.ProtocolError{StatusCode: 429}).Times(2)

	c, sink := newTestRefill(client, newMemStore(), DefaultRefillConfig())
	runOnce(t, c, refillEpoch)
	runOnce(t, c, refillEpoch)

	assert.Equal(t, 1.0, c.failures)
	assert.False(t, c.Stopped())
	assert.Contains(t, sink.statuses(), StatusOverloaded)
}

func TestRefill_SuccessResetsFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGenerationClient(ctrl)
	handle := testHandle()

	gomock.InOrder(
		client.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(entity.GenerationHandle{}, port.ErrTransport).Times(3),
		client.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(handle, nil),
	)
	client.EXPECT().Poll(gomock.Any(), handle).Return(entity.GenerationStatus{Possible: true, Done: true}, nil)
	client.EXPECT().Fetch(gomock.Any(), handle).Return([]entity.GeneratedImage{{ID: "a", Data: []byte("x")}}, nil)

	c, _ := newTestRefill(client, newMemStore(), DefaultRefillConfig())
	for i := 0; i < 3; i++ {
		runOnce(t, c, refillEpoch)
	}
	assert.Equal(t, 3.0, c.failures)

	outcome := runOnce(t, c, refillEpoch)
	assert.Equal(t, entity.JobStateCompleted, outcome.State)
	assert.Zero(t, c.failures)
}

func TestRefill_CapacityDoesNotCount(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGenerationClient(ctrl)
	handle := testHandle()

	client.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(handle, nil)
	client.EXPECT().Poll(gomock.Any(), handle).Return(entity.GenerationStatus{Possible: false}, nil).AnyTimes()

	c, sink := newTestRefill(client, newMemStore(), DefaultRefillConfig())
	outcome := runOnce(t, c, refillEpoch)

	assert.ErrorIs(t, outcome.Err, port.ErrCapacity)
	assert.Zero(t, c.failures)
	assert.Contains(t, sink.statuses(), StatusNoCapacity)
}

func TestRefill_BootstrapSkipsHolds(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGenerationClient(ctrl)
	client.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(entity.GenerationHandle{}, port.ErrTransport).Times(2)

	c, _ := newTestRefill(client, newMemStore(), DefaultRefillConfig())
	var holds []time.Duration
	c.jobSleep = func(ctx context.Context, d time.Duration) error {
		holds = append(holds, d)
		return nil
	}

	runOnce(t, c, refillEpoch)
	// Below the low-water mark the next attempt is due immediately.
	runOnce(t, c, refillEpoch)
	assert.Empty(t, holds, "no pre-submit hold while bootstrapping")
}

func TestRefill_PacesOnceAboveLowWater(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGenerationClient(ctrl)
	client.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(entity.GenerationHandle{}, port.ErrTransport).Times(2)

	store := newMemStore()
	store.seed(testPartition, 3)
	c, _ := newTestRefill(client, store, DefaultRefillConfig())
	var holds []time.Duration
	c.jobSleep = func(ctx context.Context, d time.Duration) error {
		holds = append(holds, d)
		return nil
	}

	runOnce(t, c, refillEpoch)
	assert.Equal(t, []time.Duration{DefaultHold}, holds)

	assert.False(t, c.Tick(context.Background(), refillEpoch.Add(DefaultHold-time.Millisecond), testPartition))
	runOnce(t, c, refillEpoch.Add(DefaultHold))
}

func TestRefill_TimeoutRetriesImmediately(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGenerationClient(ctrl)
	client.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(entity.GenerationHandle{}, port.ErrTimeout).Times(2)

	store := newMemStore()
	store.seed(testPartition, 3)
	c, sink := newTestRefill(client, store, DefaultRefillConfig())

	runOnce(t, c, refillEpoch)
	runOnce(t, c, refillEpoch)

	assert.Equal(t, 2.0, c.failures)
	assert.Contains(t, sink.statuses(), StatusTimedOut)
}

func TestRefill_IdleAtTarget(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGenerationClient(ctrl)

	store := newMemStore()
	store.seed(testPartition, 3)
	cfg := DefaultRefillConfig()
	cfg.Target = 3
	c, _ := newTestRefill(client, store, cfg)

	assert.False(t, c.Tick(context.Background(), refillEpoch, testPartition))
}

func TestRefill_CancellationIsNotAFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGenerationClient(ctrl)
	c, _ := newTestRefill(client, newMemStore(), DefaultRefillConfig())

	require.True(t, c.inflight.TryAcquire(1))
	c.Complete(context.Background(), JobOutcome{State: entity.JobStateAbandoned, Err: context.Canceled, Partition: testPartition}, refillEpoch)

	assert.Zero(t, c.failures)
	assert.False(t, c.Stopped())
}

func TestRefill_SingleFlight(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGenerationClient(ctrl)
	handle := testHandle()

	var active, peak atomic.Int32
	release := make(chan struct{})

	client.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ entity.GenerationRequest) (entity.GenerationHandle, error) {
			n := active.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			return handle, nil
		}).Times(2)
	client.EXPECT().Poll(gomock.Any(), handle).DoAndReturn(
		func(ctx context.Context, _ entity.GenerationHandle) (entity.GenerationStatus, error) {
			<-release
			active.Add(-1)
			return entity.GenerationStatus{Possible: true, Done: true}, nil
		}).Times(2)
	client.EXPECT().Fetch(gomock.Any(), handle).Return(nil, nil).Times(2)

	c, _ := newTestRefill(client, newMemStore(), DefaultRefillConfig())
	c.SetRunner(func(fn func()) { go fn() })
	ctx := context.Background()

	require.True(t, c.Tick(ctx, refillEpoch, testPartition))
	for i := 0; i < 10; i++ {
		assert.False(t, c.Tick(ctx, refillEpoch, testPartition), "second job dispatched while one is in flight")
	}

	release <- struct{}{}
	c.Complete(ctx, <-c.Results(), refillEpoch)

	require.True(t, c.Tick(ctx, refillEpoch, testPartition))
	release <- struct{}{}
	c.Complete(ctx, <-c.Results(), refillEpoch)

	assert.Equal(t, int32(1), peak.Load())
}
