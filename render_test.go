package kin_arm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"
)

func TestParseProjection(t *testing.T) {
	tests := []struct {
		input    string
		expected Projection
	}{
		{"xy", ProjectionXY},
		{"XZ", ProjectionXZ},
		{" yz", ProjectionYZ},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParseProjection(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}

	_, err := ParseProjection("zz")
	assert.Error(t, err)
}

func TestProjection(t *testing.T) {
	v := r3.Vector{X: 1, Y: 2, Z: 3}

	x, y := ProjectionXY.project(v)
	assert.Equal(t, [2]float64{1, 2}, [2]float64{x, y})
	x, y = ProjectionXZ.project(v)
	assert.Equal(t, [2]float64{1, 3}, [2]float64{x, y})
	x, y = ProjectionYZ.project(v)
	assert.Equal(t, [2]float64{2, 3}, [2]float64{x, y})

	h, vert := ProjectionXZ.labels()
	assert.Equal(t, "X (m)", h)
	assert.Equal(t, "Z (m)", vert)
}

func TestPosePlot(t *testing.T) {
	s := newTestSolver(t, DefaultArmConfig(), SolverConfig{})
	pose, err := s.SolvePoint(0.25, 0.25, 0)
	require.NoError(t, err)

	t.Run("builds a plot", func(t *testing.T) {
		p, err := NewPosePlot(s.Arm(), pose, ProjectionXY)
		require.NoError(t, err)
		assert.Contains(t, p.Title.Text, "desktop-arm")
		assert.Equal(t, "X (m)", p.X.Label.Text)
		assert.InDelta(t, s.Arm().MaxReach(), p.X.Max, 1e-12)
	})

	for _, ext := range []string{".png", ".svg"} {
		t.Run("saves "+ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pose"+ext)
			require.NoError(t, SavePosePlot(s.Arm(), pose, ProjectionXZ, path, 3*vg.Inch))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		})
	}

	t.Run("rejects a pose for another arm", func(t *testing.T) {
		other, err := NewArm(twoLinkConfig())
		require.NoError(t, err)
		_, err = NewPosePlot(other, pose, ProjectionXY)
		assert.Error(t, err)
	})
}
