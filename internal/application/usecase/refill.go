package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/domain/entity"
	"github.com/bnema/ealain/internal/logging"
)

const (
	// DefaultTarget is the occupancy the refill loop aims for.
	DefaultTarget = 100
	// DefaultLowWater is the occupancy below which the loop runs unpaced.
	DefaultLowWater = 2
	// DefaultHold is each of the two pacing delays around a generation.
	DefaultHold = 5 * time.Second
	// DefaultMaxFailures is the failure score tolerated before stopping for good.
	DefaultMaxFailures = 5
	// DefaultRateLimitPenalty is how much a 429 adds to the failure score.
	DefaultRateLimitPenalty = 0.5
)

// RefillConfig tunes a RefillController.
type RefillConfig struct {
	Target           int
	LowWater         int
	PreSubmitHold    time.Duration
	PostCompleteHold time.Duration
	MaxFailures      int
	RateLimitPenalty float64
	PollInterval     time.Duration
	MaxPollFailures  int
}

// DefaultRefillConfig returns the stock pacing and thresholds.
func DefaultRefillConfig() RefillConfig {
	return RefillConfig{
		Target:           DefaultTarget,
		LowWater:         DefaultLowWater,
		PreSubmitHold:    DefaultHold,
		PostCompleteHold: DefaultHold,
		MaxFailures:      DefaultMaxFailures,
		RateLimitPenalty: DefaultRateLimitPenalty,
		PollInterval:     DefaultPollInterval,
		MaxPollFailures:  DefaultMaxPollFailures,
	}
}

// Runner executes fn on a background goroutine.
type Runner func(fn func())

// RefillController starts generation jobs while a partition is below target.
// Tick and Complete must be called from the same driving goroutine.
type RefillController struct {
	cfg        RefillConfig
	client     port.GenerationClient
	downloader port.ImageDownloader
	store      port.ImageStore
	requests   func(entity.Partition) entity.GenerationRequest
	events     port.EventSink
	run        Runner
	now        func() time.Time

	inflight *semaphore.Weighted
	results  chan JobOutcome

	nextAttempt time.Time
	failures    float64
	stopped     atomic.Bool

	statusMu   sync.Mutex
	lastStatus string

	// jobSleep overrides the job's sleep in tests.
	jobSleep func(ctx context.Context, d time.Duration) error
}

// NewRefillController wires a controller. events may be nil.
func NewRefillController(
	cfg RefillConfig,
	client port.GenerationClient,
	downloader port.ImageDownloader,
	store port.ImageStore,
	requests func(entity.Partition) entity.GenerationRequest,
	events port.EventSink,
) *RefillController {
	if cfg.Target <= 0 {
		cfg.Target = DefaultTarget
	}
	if cfg.LowWater <= 0 {
		cfg.LowWater = DefaultLowWater
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.RateLimitPenalty <= 0 {
		cfg.RateLimitPenalty = DefaultRateLimitPenalty
	}
	if events == nil {
		events = port.EventSinkFunc(func(entity.Event) {})
	}
	return &RefillController{
		cfg:        cfg,
		client:     client,
		downloader: downloader,
		store:      store,
		requests:   requests,
		events:     events,
		run:        func(fn func()) { go fn() },
		now:        time.Now,
		inflight:   semaphore.NewWeighted(1),
		results:    make(chan JobOutcome, 1),
	}
}

// SetRunner replaces the goroutine launcher, e.g. with an errgroup.
func (c *RefillController) SetRunner(run Runner) {
	if run != nil {
		c.run = run
	}
}

// Results delivers job outcomes; feed each one back through Complete.
func (c *RefillController) Results() <-chan JobOutcome {
	return c.results
}

// Stopped reports whether the failure threshold was exceeded. Safe from any goroutine.
func (c *RefillController) Stopped() bool {
	return c.stopped.Load()
}

// Status returns the last status line.
func (c *RefillController) Status() string {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.lastStatus
}

// Tick starts a generation job for p when one is due. It reports whether a job was dispatched.
func (c *RefillController) Tick(ctx context.Context, now time.Time, p entity.Partition) bool {
	if c.stopped.Load() || now.Before(c.nextAttempt) {
		return false
	}

	occupancy := c.store.Count(ctx, p)
	if occupancy >= c.cfg.Target {
		return false
	}
	if !c.inflight.TryAcquire(1) {
		return false
	}

	bootstrap := occupancy < c.cfg.LowWater
	jobCfg := JobConfig{
		PollInterval:    c.cfg.PollInterval,
		MaxPollFailures: c.cfg.MaxPollFailures,
	}
	if !bootstrap {
		jobCfg.PreSubmitHold = c.cfg.PreSubmitHold
	}

	job := NewGenerationJob(c.client, c.downloader, c.store, p, c.requests(p), jobCfg, c.setStatus)
	if c.jobSleep != nil {
		job.sleep = c.jobSleep
	}

	logging.FromContext(ctx).Debug().
		Str("partition", p.String()).
		Int("occupancy", occupancy).
		Bool("bootstrap", bootstrap).
		Msg("dispatching generation job")

	c.run(func() {
		c.results <- job.Run(ctx)
	})
	return true
}

// Complete records a job outcome and schedules the next attempt.
func (c *RefillController) Complete(ctx context.Context, outcome JobOutcome, now time.Time) {
	c.inflight.Release(1)
	log := logging.FromContext(ctx)

	occupancy := c.store.Count(ctx, outcome.Partition)
	hold := c.cfg.PostCompleteHold
	if occupancy < c.cfg.LowWater {
		hold = 0
	}

	if !isCancellation(outcome.Err) {
		c.events.Publish(entity.JobFinished{
			Partition: outcome.Partition,
			State:     outcome.State,
			Saved:     len(outcome.Saved),
			Censored:  outcome.Censored,
			Duration:  outcome.Duration,
			At:        now,
		})
	}

	switch {
	case outcome.State == entity.JobStateCompleted:
		c.failures = 0
		c.nextAttempt = now.Add(hold)
		if len(outcome.Saved) > 0 {
			c.events.Publish(entity.PoolChanged{Partition: outcome.Partition, Count: occupancy, At: now})
		}
		log.Info().
			Str("partition", outcome.Partition.String()).
			Int("saved", len(outcome.Saved)).
			Int("censored", outcome.Censored).
			Dur("took", outcome.Duration).
			Msg("generation completed")
		return

	case isCancellation(outcome.Err):
		return

	case errors.Is(outcome.Err, port.ErrCapacity):
		c.nextAttempt = now.Add(hold)
		c.setStatus(StatusNoCapacity)
		c.events.Publish(entity.GenerationFailed{Err: outcome.Err, Failures: c.failures, At: now})
		return
	}

	penalty := 1.0
	if port.IsRateLimited(outcome.Err) {
		penalty = c.cfg.RateLimitPenalty
	}
	c.failures += penalty

	if errors.Is(outcome.Err, port.ErrTimeout) {
		c.nextAttempt = now
	} else {
		c.nextAttempt = now.Add(hold)
	}

	stopped := c.failures > float64(c.cfg.MaxFailures)
	if stopped {
		c.stopped.Store(true)
	}

	log.Warn().
		Err(outcome.Err).
		Str("state", outcome.State.String()).
		Float64("failures", c.failures).
		Bool("stopped", stopped).
		Msg("generation did not complete")

	c.events.Publish(entity.GenerationFailed{
		Err:      outcome.Err,
		Failures: c.failures,
		Stopped:  stopped,
		At:       now,
	})
	if stopped {
		c.setStatus(StatusStopped)
	}
}

func (c *RefillController) setStatus(text string) {
	if text == "" {
		return
	}
	c.statusMu.Lock()
	// Once stopped the terminal message stays.
	if c.lastStatus == StatusStopped {
		c.statusMu.Unlock()
		return
	}
	changed := c.lastStatus != text
	c.lastStatus = text
	c.statusMu.Unlock()

	if changed {
		c.events.Publish(entity.StatusChanged{Text: text, At: c.now()})
	}
}
