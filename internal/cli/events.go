package cli

import (
	"context"

	"github.com/bnema/ealain/internal/domain/entity"
	"github.com/bnema/ealain/internal/logging"
)

// LogEvents writes engine events to the context logger until events is
// closed or ctx is done. It replaces the status UI when running headless.
func LogEvents(ctx context.Context, events <-chan entity.Event) {
	log := logging.FromContext(logging.WithComponent(ctx, "events"))
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			switch e := event.(type) {
			case entity.StatusChanged:
				log.Info().Msg(e.Text)
			case entity.ImageSwapped:
				log.Info().Str("layer", e.Layer.String()).Str("image", e.Entry.Path).Msg("now showing")
			case entity.GenerationFailed:
				ev := log.Warn()
				if e.Stopped {
					ev = log.Error()
				}
				ev.Err(e.Err).Float64("failures", e.Failures).Bool("stopped", e.Stopped).Msg("generation failed")
			case entity.JobFinished:
				log.Info().
					Str("partition", e.Partition.String()).
					Str("state", e.State.String()).
					Int("saved", e.Saved).
					Int("censored", e.Censored).
					Dur("took", e.Duration).
					Msg("generation finished")
			case entity.PartitionChanged:
				log.Info().Str("from", e.From.String()).Str("to", e.To.String()).Msg("switched partition")
			case entity.PoolChanged:
				log.Debug().Str("partition", e.Partition.String()).Int("count", e.Count).Int("pruned", e.Pruned).Msg("pool changed")
			case entity.ImagePreloaded:
				log.Debug().Str("layer", e.Layer.String()).Str("image", e.Entry.Path).Msg("preloaded")
			case entity.CrossfadeStarted:
				log.Debug().Str("in", e.In.String()).Str("out", e.Out.String()).Dur("duration", e.Duration).Msg("crossfade")
			}
		}
	}
}
