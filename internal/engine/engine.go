// Package engine drives refill, pruning and rotation from a single loop goroutine.
package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/application/usecase"
	"github.com/bnema/ealain/internal/domain/entity"
	"github.com/bnema/ealain/internal/logging"
)

const (
	// DefaultTick is the resolution of every engine deadline.
	DefaultTick = 250 * time.Millisecond
	// DefaultPruneInterval separates two prune passes. The first runs at start.
	DefaultPruneInterval = 33 * time.Minute
)

var (
	ErrAlreadyRunning = errors.New("engine is already running")
	ErrNotRunning     = errors.New("engine is not running")
)

// Config tunes the loop.
type Config struct {
	Tick          time.Duration
	PruneInterval time.Duration
	Orientation   entity.Orientation
	Style         string
}

// Deps are the collaborators driven by the loop. Exactly one of Refill and
// Manifest must be set.
type Deps struct {
	Store    port.ImageStore
	Rotation *usecase.RotationScheduler
	Refill   *usecase.RefillController
	Manifest *usecase.ManifestRefill
	Events   port.EventSink
}

type loadResult struct {
	partition entity.Partition
	count     int
	err       error
}

type pruneResult struct {
	partition entity.Partition
	removed   []entity.CachedImageEntry
	err       error
}

type command func(ctx context.Context, now time.Time)

// Engine owns the refill, prune and rotation deadlines.
type Engine struct {
	cfg      Config
	store    port.ImageStore
	rotation *usecase.RotationScheduler
	refill   *usecase.RefillController
	manifest *usecase.ManifestRefill
	events   port.EventSink
	now      func() time.Time

	commands  chan command
	loadDone  chan loadResult
	pruneDone chan pruneResult
	done      chan struct{}
	running   atomic.Bool

	// Owned by the loop goroutine.
	run       usecase.Runner
	partition entity.Partition
	// ready is set once the partition index has been read from disk.
	ready     bool
	pruning   bool
	nextPrune time.Time
}

// New validates deps and creates an idle engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Store == nil || deps.Rotation == nil {
		return nil, errors.New("engine needs a store and a rotation scheduler")
	}
	if (deps.Refill == nil) == (deps.Manifest == nil) {
		return nil, errors.New("engine needs exactly one refill source")
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = DefaultPruneInterval
	}
	if cfg.Orientation == "" {
		cfg.Orientation = entity.OrientationLandscape
	}
	partition := entity.Partition{Orientation: cfg.Orientation, Style: cfg.Style}
	if err := partition.Validate(); err != nil {
		return nil, err
	}
	if deps.Events == nil {
		deps.Events = port.EventSinkFunc(func(entity.Event) {})
	}

	return &Engine{
		cfg:       cfg,
		store:     deps.Store,
		rotation:  deps.Rotation,
		refill:    deps.Refill,
		manifest:  deps.Manifest,
		events:    deps.Events,
		now:       time.Now,
		commands:  make(chan command),
		loadDone:  make(chan loadResult),
		pruneDone: make(chan pruneResult, 1),
		done:      make(chan struct{}),
		partition: partition,
	}, nil
}

// Run drives the engine until ctx is cancelled, then waits for background work.
// An engine runs at most once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(e.done)

	ctx = logging.WithComponent(ctx, "engine")
	log := logging.FromContext(ctx)

	var group errgroup.Group
	e.run = func(fn func()) {
		group.Go(func() error {
			fn()
			return nil
		})
	}

	var refillResults <-chan usecase.JobOutcome
	var manifestResults <-chan usecase.ManifestOutcome
	if e.refill != nil {
		e.refill.SetRunner(e.run)
		refillResults = e.refill.Results()
	} else {
		e.manifest.SetRunner(e.run)
		manifestResults = e.manifest.Results()
	}
	e.rotation.SetPartition(e.partition)
	e.load(ctx, e.partition)

	log.Info().Str("partition", e.partition.String()).Dur("tick", e.cfg.Tick).Msg("engine started")

	ticker := time.NewTicker(e.cfg.Tick)
	defer ticker.Stop()

	e.step(ctx, e.now())
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("engine stopping, waiting for background work")
			return group.Wait()

		case <-ticker.C:
			e.step(ctx, e.now())

		case outcome := <-refillResults:
			now := e.now()
			e.refill.Complete(ctx, outcome, now)
			e.step(ctx, now)

		case outcome := <-manifestResults:
			now := e.now()
			e.manifest.Complete(ctx, outcome, now)
			e.step(ctx, now)

		case res := <-e.loadDone:
			now := e.now()
			e.completeLoad(ctx, res, now)
			e.step(ctx, now)

		case res := <-e.pruneDone:
			e.completePrune(ctx, res, e.now())

		case cmd := <-e.commands:
			now := e.now()
			cmd(ctx, now)
			e.step(ctx, now)
		}
	}
}

// step services every deadline that is due at now.
func (e *Engine) step(ctx context.Context, now time.Time) {
	e.rotation.Tick(ctx, now)

	if e.ready {
		if e.manifest != nil {
			e.manifest.Tick(ctx, now, e.partition)
		} else {
			e.refill.Tick(ctx, now, e.partition)
		}
	}

	if !e.pruning && !now.Before(e.nextPrune) {
		e.startPrune(ctx)
	}
}

// load reads the partition index off the loop goroutine. Refill waits for
// it so occupancy is never mistaken for zero.
func (e *Engine) load(ctx context.Context, p entity.Partition) {
	e.ready = false
	e.run(func() {
		entries, err := e.store.List(ctx, p)
		select {
		case e.loadDone <- loadResult{partition: p, count: len(entries), err: err}:
		case <-ctx.Done():
		}
	})
}

func (e *Engine) completeLoad(ctx context.Context, res loadResult, now time.Time) {
	if res.partition != e.partition {
		return
	}
	e.ready = true
	if res.err != nil {
		logging.FromContext(ctx).Warn().Err(res.err).Str("partition", res.partition.String()).Msg("failed to list image partition")
		return
	}
	e.events.Publish(entity.PoolChanged{Partition: res.partition, Count: res.count, At: now})
}

// startPrune hands the displayed paths to the store and keeps the rotation
// from picking new images until the prune is done.
func (e *Engine) startPrune(ctx context.Context) {
	e.pruning = true
	e.rotation.HoldPreloads(true)
	p := e.partition
	protected := e.rotation.Displayed()

	e.run(func() {
		removed, err := e.store.Prune(ctx, p, protected...)
		e.pruneDone <- pruneResult{partition: p, removed: removed, err: err}
	})
}

func (e *Engine) completePrune(ctx context.Context, res pruneResult, now time.Time) {
	e.pruning = false
	e.rotation.HoldPreloads(false)
	e.nextPrune = now.Add(e.cfg.PruneInterval)

	log := logging.FromContext(ctx)
	if res.err != nil {
		log.Warn().Err(res.err).Str("partition", res.partition.String()).Msg("prune failed")
		return
	}
	if len(res.removed) == 0 {
		return
	}
	e.events.Publish(entity.PoolChanged{
		Partition: res.partition,
		Count:     e.store.Count(ctx, res.partition),
		Pruned:    len(res.removed),
		At:        now,
	})
}

func (e *Engine) switchPartition(ctx context.Context, p entity.Partition, now time.Time) {
	if p == e.partition {
		return
	}
	from := e.partition
	logging.FromContext(ctx).Info().
		Str("from", from.String()).
		Str("to", p.String()).
		Msg("switching partition")
	e.partition = p
	e.rotation.SetPartition(p)
	e.events.Publish(entity.PartitionChanged{From: from, To: p, At: now})
	e.load(ctx, p)
}

// do hands cmd to the loop goroutine.
func (e *Engine) do(ctx context.Context, cmd command) error {
	select {
	case e.commands <- cmd:
		return nil
	case <-e.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetOrientation switches refill and rotation to another orientation.
func (e *Engine) SetOrientation(ctx context.Context, o entity.Orientation) error {
	if _, err := entity.ParseOrientation(string(o)); err != nil {
		return err
	}
	return e.do(ctx, func(ctx context.Context, now time.Time) {
		e.switchPartition(ctx, entity.Partition{Orientation: o, Style: e.partition.Style}, now)
	})
}

// SetStyle switches to a style override; an empty style restores the default pool.
func (e *Engine) SetStyle(ctx context.Context, style string) error {
	style, err := entity.ParseStyle(style)
	if err != nil {
		return err
	}
	return e.do(ctx, func(ctx context.Context, now time.Time) {
		e.switchPartition(ctx, entity.Partition{Orientation: e.partition.Orientation, Style: style}, now)
	})
}

// Skip starts the next crossfade early. It is ignored while a crossfade runs.
func (e *Engine) Skip(ctx context.Context) error {
	return e.do(ctx, func(ctx context.Context, now time.Time) {
		e.rotation.RequestSwap(ctx, now)
	})
}

// Snapshot returns the rotation state as seen by the loop.
func (e *Engine) Snapshot(ctx context.Context) (entity.RotationState, error) {
	reply := make(chan entity.RotationState, 1)
	err := e.do(ctx, func(_ context.Context, now time.Time) {
		reply <- e.rotation.Snapshot(now)
	})
	if err != nil {
		return entity.RotationState{}, err
	}
	return <-reply, nil
}

// Status returns the last refill status line. Safe from any goroutine.
func (e *Engine) Status() string {
	if e.refill == nil {
		return ""
	}
	return e.refill.Status()
}

// Stopped reports whether generation gave up after repeated failures.
func (e *Engine) Stopped() bool {
	return e.refill != nil && e.refill.Stopped()
}

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}
