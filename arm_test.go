package kin_arm

import (
	"errors"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/utils"
)

const totalLength = 0.098507 + 0.120 + 0.11865 + 0.060028 + 0.030175

func TestNewArm(t *testing.T) {
	t.Run("default arm", func(t *testing.T) {
		arm, err := NewArm(DefaultArmConfig())
		require.NoError(t, err)

		assert.Equal(t, "desktop-arm", arm.Name())
		assert.Equal(t, 5, arm.Len())
		assert.InDelta(t, totalLength, arm.MaxReach(), 1e-12)
		assert.Equal(t, 0.0, arm.MinReach())
		assert.Equal(t, degrees(90, 150, 35, 140, 85), arm.DefaultAngles())
		assert.Equal(t, arm.DefaultAngles(), arm.CurrentAngles())

		axes := []Axis{AxisZ, AxisY, AxisY, AxisX, AxisY}
		for i, seg := range arm.Segments() {
			assert.Equal(t, axes[i], seg.Axis, "segment %s", seg.ID)
			limits := seg.Joint.Limits()
			assert.InDelta(t, 0, limits[0], 1e-9)
			assert.InDelta(t, 180, limits[1], 1e-9)
		}

		acts := arm.Actuators()
		require.Len(t, acts, 1)
		assert.Equal(t, "grip", acts[0].Function)
	})

	t.Run("configuration errors", func(t *testing.T) {
		tests := []struct {
			name   string
			modify func(*ArmConfig)
			field  string
		}{
			{
				name:   "zero length segment",
				modify: func(c *ArmConfig) { c.Chain[1].Segment.Length = 0 },
				field:  "chain.1.segment.length",
			},
			{
				name:   "negative length segment",
				modify: func(c *ArmConfig) { c.Chain[4].Segment.Length = -0.01 },
				field:  "chain.4.segment.length",
			},
			{
				name:   "default angle above range",
				modify: func(c *ArmConfig) { c.Chain[0].Joint.DefaultAngle = 190 },
				field:  "chain.0.joint.default_angle",
			},
			{
				name:   "default angle below range",
				modify: func(c *ArmConfig) { c.Chain[2].Joint.DefaultAngle = -5 },
				field:  "chain.2.joint.default_angle",
			},
			{
				name:   "inverted limits",
				modify: func(c *ArmConfig) { c.Chain[3].Joint.MinAngle = 200 },
				field:  "chain.3.joint.min_angle",
			},
			{
				name:   "home angle outside range",
				modify: func(c *ArmConfig) { c.Chain[3].Joint.HomeAngle = ptr(270) },
				field:  "chain.3.joint.home_angle",
			},
			{
				name:   "unknown axis",
				modify: func(c *ArmConfig) { c.Chain[2].Segment.Axis = "W" },
				field:  "chain.2.segment.axis",
			},
			{
				name:   "duplicate segment id",
				modify: func(c *ArmConfig) { c.Chain[2].Segment.ID = "seg1" },
				field:  "chain.2.segment.id",
			},
			{
				name:   "actuator reuses chain joint id",
				modify: func(c *ArmConfig) { c.Actuators[0].ID = "s1" },
				field:  "actuators.0.id",
			},
			{
				name:   "empty chain",
				modify: func(c *ArmConfig) { c.Chain = nil },
				field:  "chain",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := DefaultArmConfig()
				tt.modify(&cfg)

				arm, err := NewArm(cfg)
				assert.Nil(t, arm)
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrConfiguration))

				var ce *ConfigurationError
				require.True(t, errors.As(err, &ce))
				assert.Equal(t, tt.field, ce.Field)
			})
		}
	})

	t.Run("home defaults to the middle of the range", func(t *testing.T) {
		cfg := DefaultArmConfig()
		cfg.Chain[1].Joint.HomeAngle = nil
		cfg.Chain[1].Joint.MinAngle = 20
		cfg.Chain[1].Joint.MaxAngle = 160
		arm, err := NewArm(cfg)
		require.NoError(t, err)
		assert.InDelta(t, utils.DegToRad(90), arm.HomeAngles()[1], 1e-12)
	})
}

func TestForwardKinematics(t *testing.T) {
	arm, err := NewArm(DefaultArmConfig())
	require.NoError(t, err)

	tests := []struct {
		name     string
		angles   []float64
		expected r3.Vector
	}{
		{"home stretches along X", degrees(90, 90, 90, 90, 90), r3.Vector{X: totalLength}},
		{"waist turns the chain to Y", degrees(180, 90, 90, 90, 90), r3.Vector{Y: totalLength}},
		{"waist turns the chain to -Y", degrees(0, 90, 90, 90, 90), r3.Vector{Y: -totalLength}},
		{"shoulder points down", degrees(90, 180, 90, 90, 90), r3.Vector{X: 0.098507, Z: -(totalLength - 0.098507)}},
		{"shoulder points up", degrees(90, 0, 90, 90, 90), r3.Vector{X: 0.098507, Z: totalLength - 0.098507}},
		{"wrist roll alone leaves the tip in place", degrees(90, 90, 90, 10, 90), r3.Vector{X: totalLength}},
		{
			"elbow folds forearm up",
			degrees(90, 90, 0, 90, 90),
			r3.Vector{X: 0.098507 + 0.120, Z: 0.11865 + 0.060028 + 0.030175},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end, err := arm.EndEffector(tt.angles)
			require.NoError(t, err)
			assert.InDelta(t, 0, end.Point().Sub(tt.expected).Norm(), 1e-9, "got %v", end.Point())
		})
	}

	t.Run("frames and tips", func(t *testing.T) {
		frames, err := arm.ForwardKinematics(arm.HomeAngles())
		require.NoError(t, err)
		require.Len(t, frames, 5)
		assert.InDelta(t, 0.098507, frames[0].Point().X, 1e-12)

		pose, err := arm.NewPose(arm.HomeAngles())
		require.NoError(t, err)
		tips, err := arm.TipPoints(pose)
		require.NoError(t, err)
		require.Len(t, tips, 6)
		assert.Equal(t, r3.Vector{}, tips[0])
		for i := range frames {
			assert.InDelta(t, 0, tips[i+1].Sub(frames[i].Point()).Norm(), 1e-12)
		}
	})

	t.Run("wrong angle count", func(t *testing.T) {
		_, err := arm.ForwardKinematics([]float64{0, 0})
		assert.Error(t, err)
		_, err = arm.NewPose([]float64{0})
		assert.Error(t, err)
	})

	t.Run("joint axes follow the chain", func(t *testing.T) {
		jf := arm.jointFrames(degrees(180, 90, 90, 90, 90))
		// Waist turned 90 degrees so the shoulder axis now points along -X.
		assert.InDelta(t, 0, jf.axes[1].Sub(r3.Vector{X: -1}).Norm(), 1e-9)
		assert.InDelta(t, 0, jf.axes[0].Sub(r3.Vector{Z: 1}).Norm(), 1e-9)
		assert.InDelta(t, 0, jf.pivots[1].Sub(r3.Vector{Y: 0.098507}).Norm(), 1e-9)
	})
}

func TestParseAxis(t *testing.T) {
	for _, s := range []string{"x", "X", " y ", "Z"} {
		_, err := ParseAxis(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseAxis("")
	assert.Error(t, err)
	assert.Equal(t, "Y", AxisY.String())
}
