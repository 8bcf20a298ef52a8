package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/ealain/internal/domain/entity"
)

// memStore is an in-memory port.ImageStore that selects entries round-robin.
type memStore struct {
	mu       sync.Mutex
	entries  map[entity.Partition][]entity.CachedImageEntry
	next     map[entity.Partition]int
	seq      int
	failSave error
}

func newMemStore() *memStore {
	return &memStore{
		entries: make(map[entity.Partition][]entity.CachedImageEntry),
		next:    make(map[entity.Partition]int),
	}
}

func (s *memStore) seed(p entity.Partition, n int) {
	for i := 0; i < n; i++ {
		_, _ = s.Store(context.Background(), p, []byte("img"), fmt.Sprintf("seed-%d", i))
	}
}

func (s *memStore) List(_ context.Context, p entity.Partition) ([]entity.CachedImageEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.CachedImageEntry(nil), s.entries[p]...), nil
}

func (s *memStore) Count(_ context.Context, p entity.Partition) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries[p])
}

func (s *memStore) Store(_ context.Context, p entity.Partition, _ []byte, name string) (entity.CachedImageEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return entity.CachedImageEntry{}, s.failSave
	}
	s.seq++
	file := fmt.Sprintf("%013d-%s.webp", s.seq, name)
	e := entity.CachedImageEntry{Name: file, Path: "/cache/" + p.Dir() + "/" + file, Partition: p, CreatedAt: time.UnixMilli(int64(s.seq))}
	s.entries[p] = append(s.entries[p], e)
	return e, nil
}

func (s *memStore) SelectForDisplay(_ context.Context, p entity.Partition) (entity.CachedImageEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.entries[p]
	if len(entries) < 2 {
		return entity.CachedImageEntry{}, false
	}
	i := s.next[p] % len(entries)
	s.next[p]++
	return entries[i], true
}

func (s *memStore) Prune(context.Context, entity.Partition, ...string) ([]entity.CachedImageEntry, error) {
	return nil, nil
}

type stubDownloader struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *stubDownloader) Download(_ context.Context, rawURL string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, rawURL)
	if d.err != nil {
		return nil, d.err
	}
	return []byte("image:" + rawURL), nil
}

// recordingSink collects published events.
type recordingSink struct {
	mu     sync.Mutex
	events []entity.Event
}

func (r *recordingSink) Publish(e entity.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if s, ok := e.(entity.StatusChanged); ok {
			out = append(out, s.Text)
		}
	}
	return out
}

func (r *recordingSink) failures() []entity.GenerationFailed {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.GenerationFailed
	for _, e := range r.events {
		if f, ok := e.(entity.GenerationFailed); ok {
			out = append(out, f)
		}
	}
	return out
}

func (r *recordingSink) swaps() []entity.ImageSwapped {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.ImageSwapped
	for _, e := range r.events {
		if s, ok := e.(entity.ImageSwapped); ok {
			out = append(out, s)
		}
	}
	return out
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

var errBoom = errors.New("boom")
