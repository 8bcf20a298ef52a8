package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/application/usecase"
	"github.com/bnema/ealain/internal/domain/entity"
	"github.com/bnema/ealain/internal/infrastructure/imagestore"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	landscape = entity.Partition{Orientation: entity.OrientationLandscape}
)

// fakeClient finishes every request on the first poll with one image.
type fakeClient struct {
	submits atomic.Int32
	block   bool
}

func (c *fakeClient) Submit(context.Context, entity.GenerationRequest) (entity.GenerationHandle, error) {
	c.submits.Add(1)
	return entity.GenerationHandle{ID: uuid.New()}, nil
}

func (c *fakeClient) Poll(ctx context.Context, _ entity.GenerationHandle) (entity.GenerationStatus, error) {
	if c.block {
		<-ctx.Done()
		return entity.GenerationStatus{}, ctx.Err()
	}
	return entity.GenerationStatus{Possible: true, Done: true}, nil
}

func (c *fakeClient) Fetch(_ context.Context, h entity.GenerationHandle) ([]entity.GeneratedImage, error) {
	return []entity.GeneratedImage{{ID: h.String(), Data: pngBytes}}, nil
}

type unusedDownloader struct{}

func (unusedDownloader) Download(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("unexpected download")
}

type harness struct {
	engine *Engine
	store  *imagestore.Store
	client *fakeClient
	bus    *Bus

	mu     sync.Mutex
	events []entity.Event
	// occupancy of the landscape partition when the first crossfade began
	firstFadeOccupancy int
}

func newHarness(t *testing.T, storeCfg imagestore.Config, refillCfg usecase.RefillConfig, client *fakeClient) *harness {
	t.Helper()
	if storeCfg.Root == "" {
		storeCfg.Root = t.TempDir()
	}
	h := &harness{
		store:              imagestore.New(storeCfg),
		client:             client,
		bus:                NewBus(),
		firstFadeOccupancy: -1,
	}
	h.bus.Observe(h)

	refill := usecase.NewRefillController(refillCfg, client, unusedDownloader{}, h.store,
		func(p entity.Partition) entity.GenerationRequest {
			return entity.GenerationRequest{Prompt: "test", Style: p.Style}
		}, h.bus)
	rotation := usecase.NewRotationScheduler(usecase.RotationConfig{}, h.store, h.bus, landscape)

	eng, err := New(Config{Tick: 5 * time.Millisecond}, Deps{
		Store:    h.store,
		Rotation: rotation,
		Refill:   refill,
		Events:   h.bus,
	})
	require.NoError(t, err)
	h.engine = eng
	return h
}

func (h *harness) Publish(e entity.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	if _, ok := e.(entity.CrossfadeStarted); ok && h.firstFadeOccupancy < 0 {
		h.firstFadeOccupancy = h.store.Count(context.Background(), landscape)
	}
}

func (h *harness) find(match func(entity.Event) bool) (entity.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.events {
		if match(e) {
			return e, true
		}
	}
	return nil, false
}

func (h *harness) start(t *testing.T) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.engine.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.engine.Done()
	})
	return cancel, errCh
}

func fastRefill() usecase.RefillConfig {
	cfg := usecase.DefaultRefillConfig()
	cfg.PollInterval = time.Millisecond
	return cfg
}

func TestEngine_BootstrapFillsBeforeFirstImage(t *testing.T) {
	cfg := fastRefill()
	cfg.Target = 3
	h := newHarness(t, imagestore.Config{}, cfg, &fakeClient{})
	h.start(t)

	// Holds stay at their 5s defaults: only an unpaced bootstrap gets here in time.
	require.Eventually(t, func() bool {
		_, ok := h.find(func(e entity.Event) bool {
			_, is := e.(entity.CrossfadeStarted)
			return is
		})
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	h.mu.Lock()
	occupancy := h.firstFadeOccupancy
	h.mu.Unlock()
	assert.GreaterOrEqual(t, occupancy, 2)
	assert.GreaterOrEqual(t, h.client.submits.Load(), int32(2))
}

func TestEngine_PrunesAtStartWithoutTouchingDisplayed(t *testing.T) {
	root := t.TempDir()
	seed := imagestore.New(imagestore.Config{Root: root})
	for i := 0; i < 6; i++ {
		_, err := seed.Store(context.Background(), landscape, pngBytes, fmt.Sprintf("seed-%d", i))
		require.NoError(t, err)
	}

	cfg := fastRefill()
	cfg.Target = 6
	h := newHarness(t, imagestore.Config{Root: root, HighWater: 6, PruneBatch: 2}, cfg, &fakeClient{})
	h.start(t)

	var pruned entity.PoolChanged
	require.Eventually(t, func() bool {
		e, ok := h.find(func(e entity.Event) bool {
			pc, is := e.(entity.PoolChanged)
			return is && pc.Pruned > 0
		})
		if ok {
			pruned = e.(entity.PoolChanged)
		}
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, pruned.Pruned)
	assert.Equal(t, 4, pruned.Count)

	state, err := h.engine.Snapshot(context.Background())
	require.NoError(t, err)
	entries, err := h.store.List(context.Background(), landscape)
	require.NoError(t, err)
	for _, shown := range []entity.CachedImageEntry{state.BottomImage, state.TopImage} {
		if shown.IsZero() {
			continue
		}
		var found bool
		for _, e := range entries {
			found = found || e.Path == shown.Path
		}
		assert.True(t, found, "displayed image %s was pruned", shown.Name)
	}
}

func (h *harness) partitionChanges() []entity.PartitionChanged {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []entity.PartitionChanged
	for _, e := range h.events {
		if pc, ok := e.(entity.PartitionChanged); ok {
			out = append(out, pc)
		}
	}
	return out
}

func TestEngine_SwitchStyle(t *testing.T) {
	cfg := fastRefill()
	cfg.Target = 1
	h := newHarness(t, imagestore.Config{}, cfg, &fakeClient{})
	h.start(t)
	ctx := context.Background()
	flux := entity.Partition{Orientation: entity.OrientationLandscape, Style: "flux"}
	fluxPortrait := entity.Partition{Orientation: entity.OrientationPortrait, Style: "flux"}

	require.NoError(t, h.engine.SetStyle(ctx, " flux "))
	require.NoError(t, h.engine.SetOrientation(ctx, entity.OrientationPortrait))
	// Unchanged partitions are not announced.
	require.NoError(t, h.engine.SetStyle(ctx, "flux"))

	require.Eventually(t, func() bool { return len(h.partitionChanges()) == 2 }, time.Second, 5*time.Millisecond)
	changes := h.partitionChanges()
	assert.Equal(t, landscape, changes[0].From)
	assert.Equal(t, flux, changes[0].To)
	assert.Equal(t, flux, changes[1].From)
	assert.Equal(t, fluxPortrait, changes[1].To)

	require.Eventually(t, func() bool {
		return h.store.Count(ctx, fluxPortrait) >= 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestEngine_RejectsUnsafeStyle(t *testing.T) {
	h := newHarness(t, imagestore.Config{}, fastRefill(), &fakeClient{})
	h.start(t)
	ctx := context.Background()

	for _, style := range []string{"../../outside", ".hidden", "a/b", "portrait"} {
		assert.Error(t, h.engine.SetStyle(ctx, style), style)
	}
	assert.Error(t, h.engine.SetOrientation(ctx, "sideways"))
	assert.Empty(t, h.partitionChanges())

	store := imagestore.New(imagestore.Config{Root: t.TempDir()})
	rotation := usecase.NewRotationScheduler(usecase.RotationConfig{}, store, nil, landscape)
	refill := usecase.NewRefillController(fastRefill(), &fakeClient{}, unusedDownloader{}, store, nil, nil)
	_, err := New(Config{Style: "../x"}, Deps{Store: store, Rotation: rotation, Refill: refill})
	assert.Error(t, err)
}

func TestEngine_WaitsForPartitionIndexBeforeRefill(t *testing.T) {
	root := t.TempDir()
	seed := imagestore.New(imagestore.Config{Root: root})
	for i := 0; i < 3; i++ {
		_, err := seed.Store(context.Background(), landscape, pngBytes, fmt.Sprintf("seed-%d", i))
		require.NoError(t, err)
	}

	cfg := fastRefill()
	cfg.Target = 3
	h := newHarness(t, imagestore.Config{Root: root}, cfg, &fakeClient{})
	h.start(t)

	var loaded entity.PoolChanged
	require.Eventually(t, func() bool {
		e, ok := h.find(func(e entity.Event) bool {
			pc, is := e.(entity.PoolChanged)
			return is && pc.Partition == landscape && pc.Pruned == 0
		})
		if ok {
			loaded = e.(entity.PoolChanged)
		}
		return ok
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 3, loaded.Count)
	// The pool was already at target once its index was read.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, h.client.submits.Load())
}

func TestEngine_ShutdownWaitsForJobs(t *testing.T) {
	h := newHarness(t, imagestore.Config{}, fastRefill(), &fakeClient{block: true})
	cancel, errCh := h.start(t)

	require.Eventually(t, func() bool { return h.client.submits.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not stop")
	}

	assert.ErrorIs(t, h.engine.SetStyle(context.Background(), "x"), ErrNotRunning)
	assert.ErrorIs(t, h.engine.Run(context.Background()), ErrAlreadyRunning)
	assert.False(t, h.engine.Stopped(), "shutdown is not a failure")
}

func TestNew_Validation(t *testing.T) {
	store := imagestore.New(imagestore.Config{Root: t.TempDir()})
	rotation := usecase.NewRotationScheduler(usecase.RotationConfig{}, store, nil, landscape)

	_, err := New(Config{}, Deps{Store: store, Rotation: rotation})
	assert.Error(t, err, "no refill source")

	_, err = New(Config{}, Deps{Rotation: rotation})
	assert.Error(t, err, "no store")
}

// gatedPruneStore blocks Prune until release is closed.
type gatedPruneStore struct {
	port.ImageStore
	started chan struct{}
	release chan struct{}
}

func (s *gatedPruneStore) Prune(ctx context.Context, p entity.Partition, protected ...string) ([]entity.CachedImageEntry, error) {
	close(s.started)
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.ImageStore.Prune(ctx, p, protected...)
}

func TestEngine_NoPreloadWhilePruning(t *testing.T) {
	root := t.TempDir()
	seed := imagestore.New(imagestore.Config{Root: root})
	for i := 0; i < 4; i++ {
		_, err := seed.Store(context.Background(), landscape, pngBytes, fmt.Sprintf("seed-%d", i))
		require.NoError(t, err)
	}

	store := &gatedPruneStore{
		ImageStore: imagestore.New(imagestore.Config{Root: root}),
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	var mu sync.Mutex
	var events []entity.Event
	sink := port.EventSinkFunc(func(e entity.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})
	count := func(match func(entity.Event) bool) int {
		mu.Lock()
		defer mu.Unlock()
		n := 0
		for _, e := range events {
			if match(e) {
				n++
			}
		}
		return n
	}
	isPreload := func(e entity.Event) bool {
		_, ok := e.(entity.ImagePreloaded)
		return ok
	}
	isLoad := func(e entity.Event) bool {
		_, ok := e.(entity.PoolChanged)
		return ok
	}

	cfg := fastRefill()
	cfg.Target = 4
	refill := usecase.NewRefillController(cfg, &fakeClient{}, unusedDownloader{}, store, func(entity.Partition) entity.GenerationRequest {
		return entity.GenerationRequest{Prompt: "test"}
	}, sink)
	rotation := usecase.NewRotationScheduler(usecase.RotationConfig{}, store, sink, landscape)
	eng, err := New(Config{Tick: 5 * time.Millisecond}, Deps{Store: store, Rotation: rotation, Refill: refill, Events: sink})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = eng.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-eng.Done()
	})

	<-store.started
	require.Eventually(t, func() bool { return count(isLoad) > 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, count(isPreload), "an image was picked while the prune could still delete it")

	close(store.release)
	require.Eventually(t, func() bool { return count(isPreload) > 0 }, time.Second, 5*time.Millisecond)
}
