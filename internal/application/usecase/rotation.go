package usecase

import (
	"context"
	"time"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/domain/entity"
	"github.com/bnema/ealain/internal/logging"
)

const (
	// DefaultFadeDuration is the length of one crossfade.
	DefaultFadeDuration = 5 * time.Second
	// DefaultDwell is how long an image stays fully visible.
	DefaultDwell = 15 * time.Second
)

// RotationConfig tunes a RotationScheduler.
type RotationConfig struct {
	Fade  time.Duration
	Dwell time.Duration
}

type layerSlot struct {
	state entity.LayerState
	image entity.CachedImageEntry
}

// RotationScheduler alternates two image layers with timed crossfades.
// It only reads paths handed out by the store. Not safe for concurrent use.
type RotationScheduler struct {
	cfg    RotationConfig
	store  port.ImageStore
	events port.EventSink

	partition entity.Partition
	layers    [2]layerSlot
	started   bool
	held      bool

	animating   bool
	incoming    entity.Layer
	hasOutgoing bool
	fadeStart   time.Time
	fadeEnd     time.Time
	nextSwap    time.Time
}

// NewRotationScheduler creates a scheduler with both layers hidden. events may be nil.
func NewRotationScheduler(cfg RotationConfig, store port.ImageStore, events port.EventSink, p entity.Partition) *RotationScheduler {
	if cfg.Fade <= 0 {
		cfg.Fade = DefaultFadeDuration
	}
	if cfg.Dwell <= 0 {
		cfg.Dwell = DefaultDwell
	}
	if events == nil {
		events = port.EventSinkFunc(func(entity.Event) {})
	}
	return &RotationScheduler{
		cfg:       cfg,
		store:     store,
		events:    events,
		partition: p,
	}
}

// SetPartition switches the source partition. The visible image stays until the next crossfade.
func (s *RotationScheduler) SetPartition(p entity.Partition) {
	if p == s.partition {
		return
	}
	s.partition = p
	for i := range s.layers {
		slot := &s.layers[i]
		if slot.state == entity.LayerHidden {
			slot.image = entity.CachedImageEntry{}
		}
	}
}

// HoldPreloads stops new images from being assigned to a layer until it is
// called again with false. Images already assigned are kept, so a crossfade
// due while held is delayed.
func (s *RotationScheduler) HoldPreloads(hold bool) {
	s.held = hold
}

// Tick advances fades and triggers the next crossfade once the dwell has elapsed.
func (s *RotationScheduler) Tick(ctx context.Context, now time.Time) {
	if s.animating {
		if !now.Before(s.fadeEnd) {
			s.completeFade(ctx, now)
		}
		return
	}

	if !s.started {
		s.bootstrap(ctx, now)
		return
	}

	hidden := s.hiddenLayer()
	if s.layers[hidden].image.IsZero() {
		s.preload(ctx, hidden, now)
	}
	if !now.Before(s.nextSwap) {
		s.RequestSwap(ctx, now)
	}
}

// RequestSwap starts a crossfade to the preloaded hidden layer.
// It is a no-op while a crossfade is running or nothing is preloaded.
func (s *RotationScheduler) RequestSwap(ctx context.Context, now time.Time) bool {
	if s.animating || !s.started {
		return false
	}
	hidden := s.hiddenLayer()
	if s.layers[hidden].image.IsZero() && !s.preload(ctx, hidden, now) {
		return false
	}
	s.beginFade(now, hidden, true)
	return true
}

// Animating reports whether a crossfade is in progress.
func (s *RotationScheduler) Animating() bool {
	return s.animating
}

// NextDeadline returns when the scheduler next needs a tick.
func (s *RotationScheduler) NextDeadline() time.Time {
	if s.animating {
		return s.fadeEnd
	}
	return s.nextSwap
}

// Displayed returns the paths assigned to either layer.
func (s *RotationScheduler) Displayed() []string {
	paths := make([]string, 0, len(s.layers))
	for _, slot := range s.layers {
		if !slot.image.IsZero() {
			paths = append(paths, slot.image.Path)
		}
	}
	return paths
}

// Snapshot returns the layer states with opacities interpolated at now.
func (s *RotationScheduler) Snapshot(now time.Time) entity.RotationState {
	top, bottom := s.layers[entity.LayerTop], s.layers[entity.LayerBottom]
	return entity.RotationState{
		TopOpacity:    s.opacity(top.state, now),
		BottomOpacity: s.opacity(bottom.state, now),
		Top:           top.state,
		Bottom:        bottom.state,
		TopImage:      top.image,
		BottomImage:   bottom.image,
		Animating:     s.animating,
	}
}

func (s *RotationScheduler) bootstrap(ctx context.Context, now time.Time) {
	if s.layers[entity.LayerBottom].image.IsZero() && !s.preload(ctx, entity.LayerBottom, now) {
		return
	}
	logging.FromContext(ctx).Debug().Msg("showing first image")
	s.beginFade(now, entity.LayerBottom, false)
}

func (s *RotationScheduler) beginFade(now time.Time, in entity.Layer, hasOutgoing bool) {
	s.animating = true
	s.incoming = in
	s.hasOutgoing = hasOutgoing
	s.fadeStart = now
	s.fadeEnd = now.Add(s.cfg.Fade)

	s.layers[in].state = entity.LayerFadingIn
	if hasOutgoing {
		s.layers[in.Other()].state = entity.LayerFadingOut
	}

	s.events.Publish(entity.CrossfadeStarted{
		In:       in,
		Out:      in.Other(),
		Duration: s.cfg.Fade,
		At:       now,
	})
}

func (s *RotationScheduler) completeFade(ctx context.Context, now time.Time) {
	in := s.incoming
	out := in.Other()

	s.layers[in].state = entity.LayerVisible
	if s.hasOutgoing {
		s.layers[out] = layerSlot{state: entity.LayerHidden}
	}
	s.animating = false
	s.started = true

	logging.FromContext(ctx).Debug().
		Str("layer", in.String()).
		Str("file", s.layers[in].image.Name).
		Msg("crossfade finished")
	s.events.Publish(entity.ImageSwapped{Layer: in, Entry: s.layers[in].image, At: now})

	s.preload(ctx, out, now)
	s.nextSwap = now.Add(s.cfg.Dwell)
}

func (s *RotationScheduler) preload(ctx context.Context, layer entity.Layer, now time.Time) bool {
	if s.held {
		return false
	}
	entry, ok := s.store.SelectForDisplay(ctx, s.partition)
	if !ok {
		return false
	}
	s.layers[layer].image = entry
	s.events.Publish(entity.ImagePreloaded{Layer: layer, Entry: entry, At: now})
	return true
}

func (s *RotationScheduler) hiddenLayer() entity.Layer {
	if s.layers[entity.LayerTop].state == entity.LayerHidden {
		return entity.LayerTop
	}
	return entity.LayerBottom
}

func (s *RotationScheduler) opacity(state entity.LayerState, now time.Time) float64 {
	if !s.animating || (state != entity.LayerFadingIn && state != entity.LayerFadingOut) {
		return state.Opacity()
	}
	progress := float64(now.Sub(s.fadeStart)) / float64(s.cfg.Fade)
	eased := easeInOut(progress)
	if state == entity.LayerFadingIn {
		return eased
	}
	return 1 - eased
}

func easeInOut(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 1
	case t < 0.5:
		return 4 * t * t * t
	default:
		u := -2*t + 2
		return 1 - u*u*u/2
	}
}
