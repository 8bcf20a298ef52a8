package metrics

import (
	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/domain/entity"
)

// Recorder translates engine events into metric updates.
type Recorder struct{}

// NewRecorder returns an event sink that feeds the package metrics.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish implements port.EventSink.
func (r *Recorder) Publish(event entity.Event) {
	switch e := event.(type) {
	case entity.JobFinished:
		label := e.Partition.String()
		JobsTotal.WithLabelValues(label, e.State.String()).Inc()
		JobDuration.WithLabelValues(label).Observe(e.Duration.Seconds())
		if e.Saved > 0 {
			ImagesSavedTotal.WithLabelValues(label).Add(float64(e.Saved))
			FailureScore.Set(0)
		}
		if e.Censored > 0 {
			ImagesCensoredTotal.WithLabelValues(label).Add(float64(e.Censored))
		}

	case entity.GenerationFailed:
		FailureScore.Set(e.Failures)
		if e.Stopped {
			Stopped.Set(1)
		}

	case entity.PoolChanged:
		label := e.Partition.String()
		PoolEntries.WithLabelValues(label).Set(float64(e.Count))
		if e.Pruned > 0 {
			ImagesPrunedTotal.WithLabelValues(label).Add(float64(e.Pruned))
		}

	case entity.ImageSwapped:
		SwapsTotal.Inc()
	}
}

var _ port.EventSink = (*Recorder)(nil)
