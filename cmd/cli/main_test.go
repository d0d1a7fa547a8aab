package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	kinarm "kin_arm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func TestLoadConfig(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("no path uses the default arm", func(t *testing.T) {
		cfg, err := loadConfig("", logger)
		require.NoError(t, err)
		assert.Equal(t, kinarm.DefaultArmConfig().Name, cfg.Name)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"), logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing.json")
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "arm.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
		_, err := loadConfig(path, logger)
		assert.Error(t, err)
	})

	t.Run("invalid chain keeps its error type", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "arm.json")
		cfg := kinarm.DefaultArmConfig()
		cfg.Chain[0].Segment.Length = -1
		require.NoError(t, kinarm.SaveArmConfigToFile(path, cfg))

		_, err := loadConfig(path, logger)
		assert.True(t, errors.Is(err, kinarm.ErrConfiguration), "got %v", err)
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "arm.yaml")
		cfg := kinarm.DefaultArmConfig()
		cfg.Name = "bench-arm"
		require.NoError(t, kinarm.SaveArmConfigToFile(path, cfg))

		got, err := loadConfig(path, logger)
		require.NoError(t, err)
		assert.Equal(t, "bench-arm", got.Name)
	})
}
