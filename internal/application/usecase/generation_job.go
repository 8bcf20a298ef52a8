package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/domain/entity"
	"github.com/bnema/ealain/internal/logging"
)

const (
	// DefaultPollInterval is the delay between two status checks.
	DefaultPollInterval = 3 * time.Second
	// DefaultMaxPollFailures is the number of consecutive bad polls tolerated.
	DefaultMaxPollFailures = 5
)

// JobConfig tunes a GenerationJob.
type JobConfig struct {
	PollInterval    time.Duration
	MaxPollFailures int
	// PreSubmitHold delays the submit call. Zero during bootstrap.
	PreSubmitHold time.Duration
}

// JobOutcome is the terminal result of a GenerationJob.
type JobOutcome struct {
	State     entity.JobState
	Err       error
	Partition entity.Partition
	Saved     []entity.CachedImageEntry
	Censored  int
	Kudos     float64
	Duration  time.Duration
}

// GenerationJob drives one submit, poll and download cycle.
type GenerationJob struct {
	client     port.GenerationClient
	downloader port.ImageDownloader
	store      port.ImageStore
	request    entity.GenerationRequest
	partition  entity.Partition
	cfg        JobConfig
	onStatus   func(string)

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu     sync.Mutex
	state  entity.JobState
	handle entity.GenerationHandle
}

// NewGenerationJob creates an idle job. onStatus may be nil.
func NewGenerationJob(
	client port.GenerationClient,
	downloader port.ImageDownloader,
	store port.ImageStore,
	p entity.Partition,
	req entity.GenerationRequest,
	cfg JobConfig,
	onStatus func(string),
) *GenerationJob {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPollFailures <= 0 {
		cfg.MaxPollFailures = DefaultMaxPollFailures
	}
	if onStatus == nil {
		onStatus = func(string) {}
	}
	return &GenerationJob{
		client:     client,
		downloader: downloader,
		store:      store,
		request:    req,
		partition:  p,
		cfg:        cfg,
		onStatus:   onStatus,
		sleep:      sleepContext,
		now:        time.Now,
		state:      entity.JobStateIdle,
	}
}

// State returns the current lifecycle state.
func (j *GenerationJob) State() entity.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Handle returns the remote handle while the job is polling or downloading.
func (j *GenerationJob) Handle() entity.GenerationHandle {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.handle
}

// Run blocks until the job reaches a terminal state.
// Every per-call error is absorbed into the outcome.
func (j *GenerationJob) Run(ctx context.Context) JobOutcome {
	ctx = logging.WithComponent(ctx, "generation-job")
	log := logging.FromContext(ctx)
	started := j.now()

	if j.cfg.PreSubmitHold > 0 {
		if err := j.sleep(ctx, j.cfg.PreSubmitHold); err != nil {
			return j.finish(started, JobOutcome{State: entity.JobStateAbandoned, Err: err})
		}
	}

	j.setState(entity.JobStateSubmitting)
	j.onStatus(StatusRequesting)

	handle, err := j.client.Submit(ctx, j.request)
	if err != nil {
		log.Warn().Err(err).Msg("submit failed")
		j.onStatus(DescribeError(err))
		return j.finish(started, JobOutcome{State: entity.JobStateFailed, Err: err})
	}

	j.mu.Lock()
	j.handle = handle
	j.state = entity.JobStatePolling
	j.mu.Unlock()
	log.Debug().Str("handle", handle.String()).Msg("polling generation")
	j.onStatus(StatusSubmitted)

	if outcome, ok := j.poll(ctx, handle); !ok {
		return j.finish(started, outcome)
	}

	j.setState(entity.JobStateDownloading)
	j.onStatus(StatusDownloading)

	outcome := j.download(ctx, handle)
	outcome.Kudos = handle.Kudos
	return j.finish(started, outcome)
}

// poll returns ok once the request is done, or the terminal outcome otherwise.
func (j *GenerationJob) poll(ctx context.Context, handle entity.GenerationHandle) (JobOutcome, bool) {
	log := logging.FromContext(ctx)
	failures, impossible := 0, 0

	for {
		if err := j.sleep(ctx, j.cfg.PollInterval); err != nil {
			return JobOutcome{State: entity.JobStateAbandoned, Err: err}, false
		}

		status, err := j.client.Poll(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return JobOutcome{State: entity.JobStateAbandoned, Err: ctx.Err()}, false
			}
			failures++
			log.Warn().Err(err).Int("failures", failures).Msg("poll failed")
			if failures > j.cfg.MaxPollFailures {
				return JobOutcome{
					State: entity.JobStateAbandoned,
					Err:   fmt.Errorf("gave up after %d failed polls: %w", failures, err),
				}, false
			}
			j.onStatus(DescribeError(err))
			continue
		}
		failures = 0

		if status.Faulted {
			j.onStatus(StatusFaulted)
			return JobOutcome{State: entity.JobStateFailed, Err: port.ErrFaulted}, false
		}
		if status.Done {
			return JobOutcome{}, true
		}

		if status.Possible {
			impossible = 0
		} else {
			impossible++
			if impossible > j.cfg.MaxPollFailures {
				j.onStatus(StatusNoCapacity)
				return JobOutcome{State: entity.JobStateAbandoned, Err: port.ErrCapacity}, false
			}
		}

		log.Trace().
			Int("queue_position", status.QueuePosition).
			Int("processing", status.Processing).
			Bool("possible", status.Possible).
			Msg("generation progress")
		j.onStatus(DescribeProgress(status))
	}
}

func (j *GenerationJob) download(ctx context.Context, handle entity.GenerationHandle) JobOutcome {
	log := logging.FromContext(ctx)

	images, err := j.client.Fetch(ctx, handle)
	if err != nil {
		log.Warn().Err(err).Msg("fetch failed")
		j.onStatus(DescribeError(err))
		return JobOutcome{State: entity.JobStateFailed, Err: err}
	}

	outcome := JobOutcome{State: entity.JobStateCompleted}
	var downloadErr error
	for i, img := range images {
		if img.Censored {
			outcome.Censored++
			log.Debug().Str("id", img.ID).Err(port.ErrContentPolicy).Msg("dropping generation")
			continue
		}

		data := img.Data
		if img.URL != "" {
			data, err = j.downloader.Download(ctx, img.URL)
			if err != nil {
				downloadErr = err
				log.Warn().Err(err).Str("id", img.ID).Msg("failed to download generation")
				continue
			}
		}

		entry, err := j.store.Store(ctx, j.partition, data, imageName(handle, img, i))
		if err != nil {
			log.Error().Err(err).Str("id", img.ID).Msg("failed to save image, skipping")
			continue
		}
		outcome.Saved = append(outcome.Saved, entry)
	}

	switch {
	case len(outcome.Saved) > 0:
		j.onStatus(savedStatus(len(outcome.Saved)))
	case downloadErr != nil:
		j.onStatus(DescribeError(downloadErr))
		return JobOutcome{State: entity.JobStateFailed, Err: downloadErr, Censored: outcome.Censored}
	case outcome.Censored > 0:
		j.onStatus(StatusAllCensored)
	}
	return outcome
}

func (j *GenerationJob) finish(started time.Time, outcome JobOutcome) JobOutcome {
	j.mu.Lock()
	j.state = outcome.State
	j.handle = entity.GenerationHandle{}
	j.mu.Unlock()

	outcome.Partition = j.partition
	outcome.Duration = j.now().Sub(started)
	return outcome
}

func (j *GenerationJob) setState(s entity.JobState) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

func imageName(handle entity.GenerationHandle, img entity.GeneratedImage, i int) string {
	if img.ID != "" {
		return img.ID
	}
	return handle.String() + "-" + strconv.Itoa(i)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isCancellation reports whether err comes from shutting the engine down.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
