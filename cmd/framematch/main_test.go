package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/framematch/internal/config"
	"github.com/bdougie/framematch/internal/histogram"
	"github.com/bdougie/framematch/internal/reference"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.ExamplesDir = t.TempDir()
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.FFmpegBinary = filepath.Join(t.TempDir(), "no-such-ffmpeg")
	cfg.DatabaseURL = ""
	cfg.MinIOEndpoint = ""
	cfg.RabbitMQURL = ""
	cfg.MetricsAddr = ""
	cfg.LogLevel = "error"
	return cfg
}

func TestRunScanEmptyReferencesIsFatal(t *testing.T) {
	cfg := testConfig(t)

	err := runScan(context.Background(), cfg, "video.mp4")
	assert.ErrorIs(t, err, reference.ErrNoReferences)

	// Nothing downstream of the reference set was touched
	_, statErr := os.Stat(cfg.OutputDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunScanUnknownMethodIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Method = "earth-movers"

	err := runScan(context.Background(), cfg, "video.mp4")
	assert.ErrorIs(t, err, config.ErrInvalid)
	assert.ErrorIs(t, err, histogram.ErrUnknownMethod)
}

func TestRootCommandFlags(t *testing.T) {
	cmd, err := newRootCommand()
	require.NoError(t, err)

	require.NoError(t, cmd.ParseFlags([]string{"-m", "hellinger", "-c", "0.4", "-e", "/refs", "-o", "/out"}))

	method, err := cmd.Flags().GetString("method")
	require.NoError(t, err)
	assert.Equal(t, "hellinger", method)

	cutoff, err := cmd.Flags().GetFloat64("cutoff")
	require.NoError(t, err)
	assert.Equal(t, 0.4, cutoff)

	examples, err := cmd.Flags().GetString("examples")
	require.NoError(t, err)
	assert.Equal(t, "/refs", examples)

	similar, _, err := cmd.Find([]string{"similar", "probe.png"})
	require.NoError(t, err)
	assert.Equal(t, "similar", similar.Name())
}
