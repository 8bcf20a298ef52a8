package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bnema/ealain/internal/domain/entity"
	"github.com/bnema/ealain/internal/logging"
)

// Prune removes the oldest entries of a partition once it has reached the
// high-water mark. At most one prune runs at a time, across processes sharing
// the cache root. Paths in protected are never removed.
func (s *Store) Prune(ctx context.Context, p entity.Partition, protected ...string) ([]entity.CachedImageEntry, error) {
	log := logging.FromContext(ctx)

	if !s.pruning.CompareAndSwap(false, true) {
		log.Debug().Str("partition", p.String()).Msg("prune already running, skipping")
		return nil, nil
	}
	defer s.pruning.Store(false)

	entries, err := s.List(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(entries) < s.highWater {
		log.Trace().
			Str("partition", p.String()).
			Int("entries", len(entries)).
			Int("high_water", s.highWater).
			Msg("below high-water mark, nothing to prune")
		return nil, nil
	}

	unlock, locked, err := s.lockPrune()
	if err != nil {
		return nil, err
	}
	if !locked {
		log.Debug().Str("partition", p.String()).Msg("another process is pruning, skipping")
		return nil, nil
	}
	defer unlock()

	keep := make(map[string]struct{}, len(protected))
	for _, path := range protected {
		if path != "" {
			keep[filepath.Clean(path)] = struct{}{}
		}
	}

	removed := make([]entity.CachedImageEntry, 0, s.pruneBatch)
	for _, e := range entries {
		if len(removed) == s.pruneBatch {
			break
		}
		if _, ok := keep[filepath.Clean(e.Path)]; ok {
			continue
		}
		if err := os.Remove(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("file", e.Name).Msg("failed to remove cached image")
			continue
		}
		removed = append(removed, e)
	}
	s.forget(p, removed)

	log.Info().
		Str("partition", p.String()).
		Int("removed", len(removed)).
		Int("remaining", len(entries)-len(removed)).
		Msg("pruned image partition")

	return removed, nil
}

func (s *Store) lockPrune() (unlock func(), ok bool, err error) {
	if err := os.MkdirAll(s.root, dirPerm); err != nil {
		return nil, false, fmt.Errorf("failed to create cache root: %w", err)
	}
	return tryLockFile(filepath.Join(s.root, pruneLockName))
}
