package imagestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/domain/entity"
)

var (
	webpBytes = []byte("RIFF\x00\x00\x00\x00WEBPVP8 \x00\x00\x00\x00")
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	landscape = entity.Partition{Orientation: entity.OrientationLandscape}
)

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.Root == "" {
		cfg.Root = t.TempDir()
	}
	s := New(cfg)
	// Freeze the clock so ordering relies on the monotonic stamp.
	frozen := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return frozen }
	return s
}

func fill(t *testing.T, s *Store, p entity.Partition, n int) []entity.CachedImageEntry {
	t.Helper()
	entries := make([]entity.CachedImageEntry, 0, n)
	for i := 0; i < n; i++ {
		e, err := s.Store(context.Background(), p, webpBytes, fmt.Sprintf("gen-%d", i))
		require.NoError(t, err)
		entries = append(entries, e)
	}
	return entries
}

func names(entries []entity.CachedImageEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestStore_StoreNamesAndLayout(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	tests := []struct {
		name      string
		partition entity.Partition
		data      []byte
		suggested string
		wantDir   string
		wantExt   string
		wantBase  string
	}{
		{"webp without extension", landscape, webpBytes, "abc", "landscape", ".webp", "abc"},
		{"extension from suggested name", landscape, pngBytes, "abc.png", "landscape", ".png", "abc"},
		{"extension sniffed", landscape, pngBytes, "abc", "landscape", ".png", "abc"},
		{"unknown extension falls back to sniffing", landscape, webpBytes, "x.bin", "landscape", ".webp", "x"},
		{"style partition", entity.Partition{Orientation: entity.OrientationPortrait, Style: "retro"}, webpBytes, "p", filepath.Join("retro", "portrait"), ".webp", "p"},
		{"unsafe name", landscape, webpBytes, "../../etc/pass wd", "landscape", ".webp", "pass_wd"},
		{"empty name", landscape, webpBytes, "", "landscape", ".webp", "image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := s.Store(ctx, tt.partition, tt.data, tt.suggested)
			require.NoError(t, err)

			assert.Equal(t, filepath.Join(s.Root(), tt.wantDir, e.Name), e.Path)
			assert.Equal(t, tt.wantExt, filepath.Ext(e.Name))
			assert.Regexp(t, `^\d{13}-`+tt.wantBase+`\.`, e.Name)
			assert.FileExists(t, e.Path)
			assert.Equal(t, tt.partition, e.Partition)
		})
	}
}

func TestStore_RejectsNonImage(t *testing.T) {
	s := newTestStore(t, Config{})

	_, err := s.Store(context.Background(), landscape, []byte("<html>nope</html>"), "x")
	assert.ErrorIs(t, err, port.ErrNotImage)

	_, err = s.Store(context.Background(), landscape, nil, "x")
	assert.ErrorIs(t, err, port.ErrNotImage)

	assert.Equal(t, 0, s.Count(context.Background(), landscape))
}

func TestStore_RoundTripSortsAfterPrevious(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	var previous []string
	for i := 0; i < 5; i++ {
		e, err := s.Store(ctx, landscape, webpBytes, fmt.Sprintf("n%d", 4-i))
		require.NoError(t, err)

		listed, err := s.List(ctx, landscape)
		require.NoError(t, err)
		assert.Contains(t, names(listed), e.Name)
		for _, p := range previous {
			assert.Less(t, p, e.Name)
		}
		assert.Equal(t, e.Name, listed[len(listed)-1].Name)
		previous = append(previous, e.Name)
	}
}

func TestStore_StampContinuesAfterExistingFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "landscape")
	require.NoError(t, os.MkdirAll(dir, dirPerm))
	future := "1800000000000-from-another-clock.webp"
	require.NoError(t, os.WriteFile(filepath.Join(dir, future), webpBytes, filePerm))

	s := newTestStore(t, Config{Root: root})
	e, err := s.Store(context.Background(), landscape, webpBytes, "new")
	require.NoError(t, err)

	assert.Greater(t, e.Name, future)
}

func TestStore_ListIsIdempotent(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()
	fill(t, s, landscape, 4)

	first, err := s.List(ctx, landscape)
	require.NoError(t, err)
	second, err := s.List(ctx, landscape)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, sort.StringsAreSorted(names(first)))
}

func TestStore_ListIgnoresForeignFiles(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()
	fill(t, s, landscape, 1)

	dir := s.Dir(landscape)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".0000000000001-x.webp.tmp"), webpBytes, filePerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), filePerm))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.webp"), dirPerm))

	listed, err := s.List(ctx, landscape)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestStore_ListMissingDirectory(t *testing.T) {
	s := newTestStore(t, Config{})

	listed, err := s.List(context.Background(), landscape)

	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestStore_DiskErrorSkipsSave(t *testing.T) {
	root := t.TempDir()
	// A file where the partition directory should be makes MkdirAll fail.
	require.NoError(t, os.WriteFile(filepath.Join(root, "landscape"), []byte("x"), filePerm))
	s := newTestStore(t, Config{Root: root})

	_, err := s.Store(context.Background(), landscape, webpBytes, "x")

	require.Error(t, err)
	assert.Equal(t, 0, s.Count(context.Background(), landscape))
}

func TestStore_SelectForDisplayNeedsTwoEntries(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	_, ok := s.SelectForDisplay(ctx, landscape)
	assert.False(t, ok)

	fill(t, s, landscape, 1)
	_, ok = s.SelectForDisplay(ctx, landscape)
	assert.False(t, ok)

	fill(t, s, landscape, 1)
	_, ok = s.SelectForDisplay(ctx, landscape)
	assert.True(t, ok)
}

func TestStore_SelectForDisplayAvoidsRepeats(t *testing.T) {
	for _, poolSize := range []int{2, 3, 7, 20} {
		t.Run(fmt.Sprintf("pool %d", poolSize), func(t *testing.T) {
			s := newTestStore(t, Config{})
			ctx := context.Background()
			fill(t, s, landscape, poolSize)

			// Until the window first fills, every pick is unique.
			seen := make(map[string]bool)
			for i := 0; i < poolSize; i++ {
				e, ok := s.SelectForDisplay(ctx, landscape)
				require.True(t, ok)
				assert.False(t, seen[e.Name], "repeat before the window filled: %s", e.Name)
				seen[e.Name] = true
			}
			assert.Len(t, seen, poolSize)

			// After halving, picks never repeat anything still in the window.
			for i := 0; i < 50; i++ {
				s.mu.Lock()
				window := s.partitions[landscape].recent.Names()
				full := len(window) >= poolSize
				s.mu.Unlock()

				e, ok := s.SelectForDisplay(ctx, landscape)
				require.True(t, ok)
				if !full {
					assert.NotContains(t, window, e.Name)
				}
			}
		})
	}
}

func TestStore_SelectForDisplayHalvesWindow(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()
	fill(t, s, landscape, 4)

	for i := 0; i < 4; i++ {
		_, ok := s.SelectForDisplay(ctx, landscape)
		require.True(t, ok)
	}
	s.mu.Lock()
	before := s.partitions[landscape].recent.Names()
	s.mu.Unlock()
	require.Len(t, before, 4)

	e, ok := s.SelectForDisplay(ctx, landscape)
	require.True(t, ok)

	// The oldest half was forgotten, so the pick is one of those two.
	assert.Contains(t, before[:2], e.Name)
	s.mu.Lock()
	after := s.partitions[landscape].recent.Names()
	s.mu.Unlock()
	assert.Equal(t, append(append([]string{}, before[2:]...), e.Name), after)
}

func TestStore_Partitions(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()
	fill(t, s, landscape, 1)
	fill(t, s, entity.Partition{Orientation: entity.OrientationPortrait, Style: "retro"}, 1)
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "retro", "junk"), dirPerm))

	parts, err := s.Partitions(ctx)

	require.NoError(t, err)
	assert.ElementsMatch(t, []entity.Partition{
		landscape,
		{Orientation: entity.OrientationPortrait, Style: "retro"},
	}, parts)
}

func TestStore_RefusesPartitionsOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "cache")
	s := newTestStore(t, Config{Root: root})
	ctx := context.Background()

	for _, p := range []entity.Partition{
		{Orientation: entity.OrientationLandscape, Style: "../../outside"},
		{Orientation: entity.OrientationLandscape, Style: ".."},
		{Orientation: entity.OrientationLandscape, Style: "portrait"},
		{Orientation: "sideways"},
	} {
		t.Run(p.String(), func(t *testing.T) {
			_, err := s.Store(ctx, p, pngBytes, "x.png")
			assert.ErrorIs(t, err, port.ErrInvalidPartition)

			_, err = s.List(ctx, p)
			assert.ErrorIs(t, err, port.ErrInvalidPartition)

			_, err = s.Prune(ctx, p)
			assert.ErrorIs(t, err, port.ErrInvalidPartition)
		})
	}

	assert.NoDirExists(t, filepath.Join(parent, "outside"))
	assert.NoDirExists(t, filepath.Join(filepath.Dir(parent), "outside"))
	assert.NoDirExists(t, filepath.Join(root, "portrait", "landscape"))
}

func TestStore_PruneLeavesForeignDirectoriesAlone(t *testing.T) {
	parent := t.TempDir()
	outside := filepath.Join(parent, "outside", "landscape")
	require.NoError(t, os.MkdirAll(outside, dirPerm))
	victim := filepath.Join(outside, "0000000000001-keep.webp")
	require.NoError(t, os.WriteFile(victim, webpBytes, filePerm))

	s := newTestStore(t, Config{Root: filepath.Join(parent, "cache"), HighWater: 1, PruneBatch: 1})
	_, err := s.Prune(context.Background(), entity.Partition{Orientation: entity.OrientationLandscape, Style: "../outside"})

	assert.ErrorIs(t, err, port.ErrInvalidPartition)
	assert.FileExists(t, victim)
}

func TestStore_CountDoesNotReadDisk(t *testing.T) {
	root := t.TempDir()
	seed := newTestStore(t, Config{Root: root})
	fill(t, seed, landscape, 3)

	s := newTestStore(t, Config{Root: root})
	ctx := context.Background()

	assert.False(t, s.Loaded(landscape))
	assert.Equal(t, 0, s.Count(ctx, landscape))
	_, ok := s.SelectForDisplay(ctx, landscape)
	assert.False(t, ok, "nothing is known before the first listing")
	assert.False(t, s.Loaded(landscape))

	_, err := s.List(ctx, landscape)
	require.NoError(t, err)

	assert.True(t, s.Loaded(landscape))
	assert.Equal(t, 3, s.Count(ctx, landscape))
	_, ok = s.SelectForDisplay(ctx, landscape)
	assert.True(t, ok)
}
