package kin_arm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func TestLoadArmConfig(t *testing.T) {
	logger := logging.NewTestLogger(t)

	for _, ext := range []string{".json", ".yaml", ".yml"} {
		t.Run("returns fromFile=true when "+ext+" file exists", func(t *testing.T) {
			tmpDir := t.TempDir()
			cfgFile := filepath.Join(tmpDir, "arm"+ext)
			err := SaveArmConfigToFile(cfgFile, DefaultArmConfig())
			require.NoError(t, err)

			cfg, fromFile := LoadArmConfig(cfgFile, logger)

			assert.True(t, fromFile, "Expected fromFile=true when loading from existing file")
			assert.Equal(t, DefaultArmConfig(), cfg)
		})
	}

	t.Run("returns fromFile=false when no file configured", func(t *testing.T) {
		cfg, fromFile := LoadArmConfig("", logger)

		assert.False(t, fromFile)
		assert.Equal(t, DefaultArmConfig(), cfg)
	})

	t.Run("returns fromFile=false when file doesn't exist", func(t *testing.T) {
		cfg, fromFile := LoadArmConfig("/nonexistent/path/arm.json", logger)

		assert.False(t, fromFile)
		assert.Equal(t, DefaultArmConfig(), cfg)
	})

	t.Run("returns fromFile=false when file is invalid", func(t *testing.T) {
		tmpDir := t.TempDir()
		cfgFile := filepath.Join(tmpDir, "arm.json")
		require.NoError(t, os.WriteFile(cfgFile, []byte("{not json"), 0644))

		cfg, fromFile := LoadArmConfig(cfgFile, logger)

		assert.False(t, fromFile)
		assert.Equal(t, DefaultArmConfig(), cfg)
	})
}

func TestLoadArmConfigFromFile(t *testing.T) {
	t.Run("yaml with custom chain", func(t *testing.T) {
		tmpDir := t.TempDir()
		cfgFile := filepath.Join(tmpDir, "planar.yaml")
		data := `
name: planar
chain:
  - joint: {id: j1, default_angle: 0, min_angle: -90, max_angle: 90}
    segment: {id: link1, length: 0.2, axis: z}
  - joint: {id: j2, default_angle: 10, min_angle: -120, max_angle: 120, home_angle: 0}
    segment: {id: link2, length: 0.15, axis: y}
`
		require.NoError(t, os.WriteFile(cfgFile, []byte(data), 0644))

		cfg, err := LoadArmConfigFromFile(cfgFile)
		require.NoError(t, err)
		assert.Equal(t, "planar", cfg.Name)
		require.Len(t, cfg.Chain, 2)
		assert.Equal(t, "z", cfg.Chain[0].Segment.Axis)
		assert.Nil(t, cfg.Chain[0].Joint.HomeAngle)
		require.NotNil(t, cfg.Chain[1].Joint.HomeAngle)
		assert.Equal(t, 0.0, *cfg.Chain[1].Joint.HomeAngle)

		arm, err := NewArm(cfg)
		require.NoError(t, err)
		assert.InDelta(t, 0.35, arm.MaxReach(), 1e-12)
	})

	t.Run("invalid chain is a configuration error", func(t *testing.T) {
		tmpDir := t.TempDir()
		cfgFile := filepath.Join(tmpDir, "arm.json")
		cfg := DefaultArmConfig()
		cfg.Chain[2].Segment.Length = 0
		require.NoError(t, SaveArmConfigToFile(cfgFile, cfg))

		_, err := LoadArmConfigFromFile(cfgFile)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfiguration))
		assert.Contains(t, err.Error(), "chain.2.segment.length")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		tmpDir := t.TempDir()
		cfgFile := filepath.Join(tmpDir, "arm.toml")
		require.NoError(t, os.WriteFile(cfgFile, []byte("name = 'x'"), 0644))

		_, err := LoadArmConfigFromFile(cfgFile)
		assert.Error(t, err)
		assert.Error(t, SaveArmConfigToFile(cfgFile, DefaultArmConfig()))
	})
}
