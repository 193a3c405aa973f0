package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5250, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Scoring.WorkerCount)
	assert.Equal(t, 15, cfg.Selection.TopN)
	assert.Equal(t, "mean", cfg.Valuation.Method)
	assert.False(t, cfg.Overpass.Enabled)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SELECTION_TOP_N", "5")
	t.Setenv("VALUATION_METHOD", "median")
	t.Setenv("SELECTION_OUTLIER_FILTER", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Selection.TopN)
	assert.Equal(t, "median", cfg.Valuation.Method)
	assert.False(t, cfg.Selection.OutlierFilter)
}

func TestOverpassBound(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	bound, err := cfg.OverpassBound()
	require.NoError(t, err)
	assert.Equal(t, 4.7, bound.Min[0])
	assert.Equal(t, 52.4, bound.Max[1])

	cfg.Overpass.BBox = "4.7,52.3"
	_, err = cfg.OverpassBound()
	assert.Error(t, err)
}
