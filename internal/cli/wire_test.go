package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/ealain/internal/domain/build"
	"github.com/bnema/ealain/internal/domain/entity"
	"github.com/bnema/ealain/internal/infrastructure/config"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Cache.Dir = t.TempDir()
	return &App{
		Config:    cfg,
		BuildInfo: build.Info{Version: "1.2.3"},
		ctx:       context.Background(),
	}
}

func TestApp_Partition(t *testing.T) {
	app := newTestApp(t)
	app.Config.Orientation = config.OrientationPortrait
	app.Config.StyleOverride = "flux"

	p, err := app.Partition("", "")
	require.NoError(t, err)
	assert.Equal(t, entity.Partition{Orientation: entity.OrientationPortrait, Style: "flux"}, p)

	p, err = app.Partition("Landscape", "sdxl")
	require.NoError(t, err)
	assert.Equal(t, entity.Partition{Orientation: entity.OrientationLandscape, Style: "sdxl"}, p)

	_, err = app.Partition("square", "")
	assert.Error(t, err)

	_, err = app.Partition("", "../../outside")
	assert.Error(t, err)
	_, err = app.Partition("", "landscape")
	assert.Error(t, err)
}

func TestApp_NewStore(t *testing.T) {
	app := newTestApp(t)

	store, err := app.NewStore()
	require.NoError(t, err)
	assert.Equal(t, app.Config.Cache.Dir, store.Root())
}

func TestApp_NewRequestBuilder(t *testing.T) {
	app := newTestApp(t)

	req := app.NewRequestBuilder().Build(entity.Partition{Orientation: entity.OrientationPortrait})

	assert.Equal(t, 576, req.Width)
	assert.Equal(t, 1024, req.Height)
	assert.Equal(t, app.Config.Generation.Count, req.Count)
	assert.Equal(t, app.Config.Generation.Models, req.Models)
	assert.True(t, req.CensorNSFW)
	assert.NotContains(t, req.Prompt, "{style}")
}

func TestApp_NewEngine(t *testing.T) {
	ctx := context.Background()
	p := entity.Partition{Orientation: entity.OrientationLandscape}

	t.Run("generate", func(t *testing.T) {
		app := newTestApp(t)
		store, err := app.NewStore()
		require.NoError(t, err)

		eng, err := app.NewEngine(ctx, store, EngineOptions{Partition: p})
		require.NoError(t, err)
		assert.NotNil(t, eng)
	})

	t.Run("manifest", func(t *testing.T) {
		app := newTestApp(t)
		app.Config.Source.Mode = config.SourceModeManifest
		app.Config.Source.ManifestURL = "https://example.com/manifest.json"
		store, err := app.NewStore()
		require.NoError(t, err)

		eng, err := app.NewEngine(ctx, store, EngineOptions{Partition: p})
		require.NoError(t, err)
		assert.NotNil(t, eng)
	})

	t.Run("bad manifest url", func(t *testing.T) {
		app := newTestApp(t)
		app.Config.Source.Mode = config.SourceModeManifest
		app.Config.Source.ManifestURL = "ftp://example.com/manifest.json"
		store, err := app.NewStore()
		require.NoError(t, err)

		_, err = app.NewEngine(ctx, store, EngineOptions{Partition: p})
		assert.ErrorContains(t, err, "unsupported scheme")
	})
}
