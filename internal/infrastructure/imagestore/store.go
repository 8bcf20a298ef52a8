// Package imagestore implements the on-disk image pool.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/domain/entity"
	"github.com/bnema/ealain/internal/logging"
)

const (
	// File permissions for the image cache.
	dirPerm  = 0750
	filePerm = 0600

	// DefaultHighWater is the occupancy at which pruning starts.
	DefaultHighWater = 100
	// DefaultPruneBatch is the number of files removed per prune.
	DefaultPruneBatch = 2

	defaultExtension = "webp"
	stampDigits      = 13
	maxNameLength    = 64
	pruneLockName    = ".prune.lock"
)

var (
	allowedExtensions = map[string]struct{}{
		"webp": {}, "png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "avif": {},
	}
	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

// Config configures a Store.
type Config struct {
	Root       string
	HighWater  int
	PruneBatch int
}

// Store is a partitioned image pool rooted at a single directory.
// New files only ever append; only Prune deletes.
type Store struct {
	root       string
	highWater  int
	pruneBatch int

	mu         sync.Mutex
	partitions map[entity.Partition]*partitionIndex
	pruning    atomic.Bool

	now      func() time.Time
	randIntN func(n int) int
}

type partitionIndex struct {
	entries   []entity.CachedImageEntry
	loaded    bool
	recent    *entity.RecencyWindow
	lastStamp int64
}

// New creates a store. The root directory is created lazily.
func New(cfg Config) *Store {
	highWater := cfg.HighWater
	if highWater <= 0 {
		highWater = DefaultHighWater
	}
	batch := cfg.PruneBatch
	if batch <= 0 {
		batch = DefaultPruneBatch
	}
	return &Store{
		root:       cfg.Root,
		highWater:  highWater,
		pruneBatch: batch,
		partitions: make(map[entity.Partition]*partitionIndex),
		now:        time.Now,
		randIntN:   rand.IntN,
	}
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory holding a partition.
func (s *Store) Dir(p entity.Partition) string {
	return filepath.Join(s.root, p.Dir())
}

// partitionDir resolves the directory of p, refusing anything that would
// land outside the root.
func (s *Store) partitionDir(p entity.Partition) (string, error) {
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", port.ErrInvalidPartition, err)
	}
	dir := s.Dir(p)
	rel, err := filepath.Rel(s.root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s is outside %s", port.ErrInvalidPartition, dir, s.root)
	}
	return dir, nil
}

// List scans the partition directory and returns its entries sorted by name.
// A missing directory is an empty partition.
func (s *Store) List(ctx context.Context, p entity.Partition) ([]entity.CachedImageEntry, error) {
	entries, err := s.scan(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	idx := s.indexLocked(p)
	idx.entries = entries
	idx.loaded = true
	if n := len(entries); n > 0 {
		if stamp := stampOf(entries[n-1].Name); stamp > idx.lastStamp {
			idx.lastStamp = stamp
		}
	}
	idx.recent.Retain(func(name string) bool { return containsName(entries, name) })
	s.mu.Unlock()

	logging.FromContext(ctx).Trace().
		Str("partition", p.String()).
		Int("entries", len(entries)).
		Msg("listed image partition")

	return append([]entity.CachedImageEntry(nil), entries...), nil
}

// Count returns the known partition occupancy. It is 0 until the partition
// has been listed or written to.
func (s *Store) Count(_ context.Context, p entity.Partition) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.partitions[p]
	if !ok || !idx.loaded {
		return 0
	}
	return len(idx.entries)
}

// Loaded reports whether the partition index has been read from disk.
func (s *Store) Loaded(p entity.Partition) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.partitions[p]
	return ok && idx.loaded
}

// Store writes data as a new entry named <unix-millis>-<name>.<ext>.
func (s *Store) Store(ctx context.Context, p entity.Partition, data []byte, suggestedName string) (entity.CachedImageEntry, error) {
	if len(data) == 0 {
		return entity.CachedImageEntry{}, fmt.Errorf("%w: empty payload", port.ErrNotImage)
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return entity.CachedImageEntry{}, fmt.Errorf("%w: detected %s", port.ErrNotImage, mime.String())
	}
	dir, err := s.partitionDir(p)
	if err != nil {
		return entity.CachedImageEntry{}, err
	}
	if err := s.ensureLoaded(ctx, p); err != nil {
		return entity.CachedImageEntry{}, err
	}

	ext := extensionFor(suggestedName, mime)
	base := sanitizeName(strings.TrimSuffix(filepath.Base(suggestedName), filepath.Ext(suggestedName)))

	now := s.now()
	s.mu.Lock()
	idx := s.indexLocked(p)
	stamp := now.UnixMilli()
	if stamp <= idx.lastStamp {
		stamp = idx.lastStamp + 1
	}
	idx.lastStamp = stamp
	s.mu.Unlock()

	name := fmt.Sprintf("%0*d-%s.%s", stampDigits, stamp, base, ext)
	finalPath := filepath.Join(dir, name)

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return entity.CachedImageEntry{}, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	tempPath := filepath.Join(dir, "."+name+".tmp")
	if err := os.WriteFile(tempPath, data, filePerm); err != nil {
		_ = os.Remove(tempPath)
		return entity.CachedImageEntry{}, fmt.Errorf("failed to write %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return entity.CachedImageEntry{}, fmt.Errorf("failed to move %s into place: %w", name, err)
	}

	entry := entity.CachedImageEntry{
		Name:      name,
		Path:      finalPath,
		Partition: p,
		CreatedAt: time.UnixMilli(stamp),
	}

	s.mu.Lock()
	if !containsName(idx.entries, name) {
		idx.entries = append(idx.entries, entry)
	}
	sort.Slice(idx.entries, func(i, j int) bool { return idx.entries[i].Name < idx.entries[j].Name })
	s.mu.Unlock()

	logging.FromContext(ctx).Debug().
		Str("partition", p.String()).
		Str("file", name).
		Int("bytes", len(data)).
		Msg("stored image")

	return entry, nil
}

// SelectForDisplay returns a random entry that was not served recently.
// When every entry has been served the oldest half of the window is forgotten.
func (s *Store) SelectForDisplay(_ context.Context, p entity.Partition) (entity.CachedImageEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.partitions[p]
	if !ok || !idx.loaded || len(idx.entries) < 2 {
		return entity.CachedImageEntry{}, false
	}

	idx.recent.Retain(func(name string) bool { return containsName(idx.entries, name) })
	if idx.recent.Len() >= len(idx.entries) {
		idx.recent.Halve()
	}

	eligible := make([]entity.CachedImageEntry, 0, len(idx.entries)-idx.recent.Len())
	for _, e := range idx.entries {
		if !idx.recent.Contains(e.Name) {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) == 0 {
		return entity.CachedImageEntry{}, false
	}

	chosen := eligible[s.randIntN(len(eligible))]
	idx.recent.Add(chosen.Name)
	return chosen, true
}

// Partitions lists every partition present under the root.
func (s *Store) Partitions(ctx context.Context) ([]entity.Partition, error) {
	var out []entity.Partition
	top, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache root: %w", err)
	}

	for _, d := range top {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		if o, err := entity.ParseOrientation(d.Name()); err == nil {
			out = append(out, entity.Partition{Orientation: o})
			continue
		}
		if style, err := entity.ParseStyle(d.Name()); err != nil || style != d.Name() {
			continue
		}
		nested, err := os.ReadDir(filepath.Join(s.root, d.Name()))
		if err != nil {
			logging.FromContext(ctx).Debug().Err(err).Str("dir", d.Name()).Msg("skipping unreadable style directory")
			continue
		}
		for _, n := range nested {
			if o, err := entity.ParseOrientation(n.Name()); err == nil && n.IsDir() {
				out = append(out, entity.Partition{Orientation: o, Style: d.Name()})
			}
		}
	}
	return out, nil
}

func (s *Store) ensureLoaded(ctx context.Context, p entity.Partition) error {
	s.mu.Lock()
	loaded := s.indexLocked(p).loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	_, err := s.List(ctx, p)
	return err
}

func (s *Store) indexLocked(p entity.Partition) *partitionIndex {
	idx, ok := s.partitions[p]
	if !ok {
		idx = &partitionIndex{recent: entity.NewRecencyWindow()}
		s.partitions[p] = idx
	}
	return idx
}

func (s *Store) scan(p entity.Partition) ([]entity.CachedImageEntry, error) {
	dir, err := s.partitionDir(p)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []entity.CachedImageEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	entries := make([]entity.CachedImageEntry, 0, len(dirEntries))
	for _, d := range dirEntries {
		name := d.Name()
		if !d.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if _, ok := allowedExtensions[strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))]; !ok {
			continue
		}
		entry := entity.CachedImageEntry{
			Name:      name,
			Path:      filepath.Join(dir, name),
			Partition: p,
		}
		if stamp := stampOf(name); stamp > 0 {
			entry.CreatedAt = time.UnixMilli(stamp)
		} else if info, err := d.Info(); err == nil {
			entry.CreatedAt = info.ModTime()
		}
		entries = append(entries, entry)
	}
	// os.ReadDir already sorts by name; keep it explicit since eviction depends on it.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (s *Store) forget(p entity.Partition, removed []entity.CachedImageEntry) {
	if len(removed) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(p)
	kept := idx.entries[:0]
	for _, e := range idx.entries {
		if !containsName(removed, e.Name) {
			kept = append(kept, e)
		}
	}
	idx.entries = kept
	idx.recent.Retain(func(name string) bool { return !containsName(removed, name) })
}

func stampOf(name string) int64 {
	prefix, _, ok := strings.Cut(name, "-")
	if !ok {
		return 0
	}
	stamp, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0
	}
	return stamp
}

func extensionFor(suggestedName string, mime *mimetype.MIME) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(suggestedName), "."))
	if _, ok := allowedExtensions[ext]; ok {
		return ext
	}
	ext = strings.TrimPrefix(mime.Extension(), ".")
	if _, ok := allowedExtensions[ext]; ok {
		return ext
	}
	return defaultExtension
}

func sanitizeName(name string) string {
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	if name == "" {
		return "image"
	}
	return name
}

func containsName(entries []entity.CachedImageEntry, name string) bool {
	for _, e := range entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

var _ port.ImageStore = (*Store)(nil)
