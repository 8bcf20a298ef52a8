package usecase

import (
	"context"
	"path"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/domain/entity"
	"github.com/bnema/ealain/internal/logging"
)

// DefaultManifestRefresh is how often the published URL list is re-read.
const DefaultManifestRefresh = time.Hour

// Manifest status texts.
const (
	StatusFetchingManifest = "Fetching image list..."
	StatusManifestFailed   = "Could not fetch image list, retrying later..."
)

// ManifestConfig tunes a ManifestRefill.
type ManifestConfig struct {
	Target   int
	LowWater int
	Hold     time.Duration
	Refresh  time.Duration
	// Seen remembers URLs already downloaded so a refreshed list does not
	// fetch them again. Defaults to an unbounded set.
	Seen port.Cache[string, struct{}]
}

// ManifestOutcome is the result of one background manifest task.
type ManifestOutcome struct {
	URLs      []string
	Refreshed bool
	URL       string
	Partition entity.Partition
	Entry     entity.CachedImageEntry
	Err       error
}

// ManifestRefill fills the store from a published list of image URLs instead of
// generating images. Tick and Complete must be called from the same goroutine.
type ManifestRefill struct {
	cfg        ManifestConfig
	source     port.ManifestSource
	downloader port.ImageDownloader
	store      port.ImageStore
	events     port.EventSink
	run        Runner

	inflight *semaphore.Weighted
	results  chan ManifestOutcome

	pending     []string
	seen        port.Cache[string, struct{}]
	nextRefresh time.Time
	nextAttempt time.Time
}

// NewManifestRefill wires a manifest-driven refill. events may be nil.
func NewManifestRefill(
	cfg ManifestConfig,
	source port.ManifestSource,
	downloader port.ImageDownloader,
	store port.ImageStore,
	events port.EventSink,
) *ManifestRefill {
	if cfg.Target <= 0 {
		cfg.Target = DefaultTarget
	}
	if cfg.LowWater <= 0 {
		cfg.LowWater = DefaultLowWater
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = DefaultManifestRefresh
	}
	if events == nil {
		events = port.EventSinkFunc(func(entity.Event) {})
	}
	seen := cfg.Seen
	if seen == nil {
		seen = urlSet{}
	}
	return &ManifestRefill{
		cfg:        cfg,
		source:     source,
		downloader: downloader,
		store:      store,
		events:     events,
		run:        func(fn func()) { go fn() },
		inflight:   semaphore.NewWeighted(1),
		results:    make(chan ManifestOutcome, 1),
		seen:       seen,
	}
}

// SetRunner replaces the goroutine launcher.
func (m *ManifestRefill) SetRunner(run Runner) {
	if run != nil {
		m.run = run
	}
}

// Results delivers task outcomes; feed each one back through Complete.
func (m *ManifestRefill) Results() <-chan ManifestOutcome {
	return m.results
}

// Pending returns the number of listed URLs not yet downloaded.
func (m *ManifestRefill) Pending() int {
	return len(m.pending)
}

// Tick refreshes the list when due, otherwise downloads the next listed image.
func (m *ManifestRefill) Tick(ctx context.Context, now time.Time, p entity.Partition) bool {
	if !now.Before(m.nextRefresh) {
		if !m.inflight.TryAcquire(1) {
			return false
		}
		m.publish(StatusFetchingManifest, now)
		m.run(func() {
			urls, err := m.source.Fetch(ctx)
			m.results <- ManifestOutcome{Refreshed: true, URLs: urls, Err: err}
		})
		return true
	}

	if len(m.pending) == 0 || now.Before(m.nextAttempt) {
		return false
	}
	if m.store.Count(ctx, p) >= m.cfg.Target {
		return false
	}
	if !m.inflight.TryAcquire(1) {
		return false
	}

	url := m.pending[0]
	m.pending = m.pending[1:]
	m.run(func() {
		outcome := ManifestOutcome{URL: url, Partition: p}
		data, err := m.downloader.Download(ctx, url)
		if err == nil {
			outcome.Entry, err = m.store.Store(ctx, p, data, path.Base(url))
		}
		outcome.Err = err
		m.results <- outcome
	})
	return true
}

// Complete records a task outcome.
func (m *ManifestRefill) Complete(ctx context.Context, outcome ManifestOutcome, now time.Time) {
	m.inflight.Release(1)
	log := logging.FromContext(ctx)

	if outcome.Refreshed {
		m.nextRefresh = now.Add(m.cfg.Refresh)
		if outcome.Err != nil {
			log.Warn().Err(outcome.Err).Msg("failed to fetch manifest")
			m.publish(StatusManifestFailed, now)
			m.events.Publish(entity.GenerationFailed{Err: outcome.Err, At: now})
			return
		}
		m.pending = m.pending[:0]
		for _, u := range outcome.URLs {
			if _, ok := m.seen.Get(u); !ok {
				m.pending = append(m.pending, u)
			}
		}
		log.Info().Int("listed", len(outcome.URLs)).Int("pending", len(m.pending)).Msg("manifest refreshed")
		return
	}

	m.seen.Set(outcome.URL, struct{}{})
	if outcome.Err != nil {
		log.Warn().Err(outcome.Err).Str("url", outcome.URL).Msg("failed to cache manifest image")
		m.publish(DescribeError(outcome.Err), now)
	}

	occupancy := m.store.Count(ctx, outcome.Partition)
	if outcome.Err == nil {
		m.publish(savedStatus(1), now)
		m.events.Publish(entity.PoolChanged{Partition: outcome.Partition, Count: occupancy, At: now})
	}
	if occupancy >= m.cfg.LowWater {
		m.nextAttempt = now.Add(m.cfg.Hold)
	}
}

func (m *ManifestRefill) publish(text string, now time.Time) {
	m.events.Publish(entity.StatusChanged{Text: text, At: now})
}

type urlSet map[string]struct{}

func (s urlSet) Get(url string) (struct{}, bool) {
	v, ok := s[url]
	return v, ok
}

func (s urlSet) Set(url string, v struct{}) { s[url] = v }
func (s urlSet) Remove(url string)           { delete(s, url) }
func (s urlSet) Len() int                    { return len(s) }
