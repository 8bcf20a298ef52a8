package port

import (
	"context"
	"errors"

	"github.com/bnema/ealain/internal/domain/entity"
)

var (
	// ErrNotImage is returned when stored bytes are not a recognised image.
	ErrNotImage = errors.New("payload is not an image")
	// ErrInvalidPartition is returned for a partition that cannot map to a
	// directory under the cache root.
	ErrInvalidPartition = errors.New("invalid partition")
)

// ImageStore is the on-disk pool of images, partitioned by orientation and style.
// It is the only component allowed to create or delete cached files.
type ImageStore interface {
	// List returns the partition entries sorted by file name, oldest first.
	List(ctx context.Context, p entity.Partition) ([]entity.CachedImageEntry, error)

	// Count returns the occupancy last seen by List or Store. It never touches
	// the disk and reports 0 for a partition that has not been listed yet.
	Count(ctx context.Context, p entity.Partition) int

	// Store writes data as a new entry that sorts after every existing one.
	Store(ctx context.Context, p entity.Partition, data []byte, suggestedName string) (entity.CachedImageEntry, error)

	// SelectForDisplay picks an entry outside the recency window without
	// touching the disk. It returns false when the partition holds fewer than
	// two known entries.
	SelectForDisplay(ctx context.Context, p entity.Partition) (entity.CachedImageEntry, bool)

	// Prune removes the oldest entries once the partition reaches its high-water mark.
	// Paths listed in protected are never removed.
	Prune(ctx context.Context, p entity.Partition, protected ...string) ([]entity.CachedImageEntry, error)
}

// ManifestSource lists image URLs published by the offline pipeline.
type ManifestSource interface {
	Fetch(ctx context.Context) ([]string, error)
}

// EventSink receives engine events. Implementations must not block.
type EventSink interface {
	Publish(event entity.Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(event entity.Event)

// Publish calls f(event).
func (f EventSinkFunc) Publish(event entity.Event) {
	f(event)
}
