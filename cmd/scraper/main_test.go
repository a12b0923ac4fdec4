package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/bidgrid-scraper/internal/config"
)

func baseConfig(t *testing.T) *config.Config {
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestApplyOverridesHeadlessFlagWinsBothWays(t *testing.T) {
	t.Run("forces headless over headed env", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Browser.Headless = false

		applyOverrides(cfg, cliOverrides{headless: true, headlessSet: true})
		assert.True(t, cfg.Browser.Headless)
	})

	t.Run("forces headed over headless env", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Browser.Headless = true

		applyOverrides(cfg, cliOverrides{headless: false, headlessSet: true})
		assert.False(t, cfg.Browser.Headless)
	})

	t.Run("unset flag leaves env value", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Browser.Headless = false

		applyOverrides(cfg, cliOverrides{headless: true})
		assert.False(t, cfg.Browser.Headless)
	})
}

func TestApplyOverridesSkipsEmptyValues(t *testing.T) {
	cfg := baseConfig(t)
	original := *cfg

	applyOverrides(cfg, cliOverrides{})
	assert.Equal(t, original.Grid.BaseURL, cfg.Grid.BaseURL)
	assert.Equal(t, original.Grid.Categories, cfg.Grid.Categories)
	assert.Equal(t, original.Store.Path, cfg.Store.Path)
}

func TestApplyOverridesSetsValues(t *testing.T) {
	cfg := baseConfig(t)

	applyOverrides(cfg, cliOverrides{
		categories: "Open, Not Awarded",
		baseURL:    "https://example.test/grid",
		output:     "out.csv",
	})

	assert.Equal(t, []string{"Open", "Not Awarded"}, cfg.Grid.Categories)
	assert.Equal(t, "https://example.test/grid", cfg.Grid.BaseURL)
	assert.Equal(t, "out.csv", cfg.Store.Path)
}
