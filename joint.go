package kin_arm

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/utils"
)

// Axis is one of the three principal axes of a segment's base frame.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// ParseAxis accepts "X", "Y" or "Z" in either case.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "X":
		return AxisX, nil
	case "Y":
		return AxisY, nil
	case "Z":
		return AxisZ, nil
	default:
		return 0, fmt.Errorf("rotation axis must be X, Y or Z, got %q", s)
	}
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Unit returns the axis as a unit vector.
func (a Axis) Unit() r3.Vector {
	switch a {
	case AxisX:
		return r3.Vector{X: 1}
	case AxisY:
		return r3.Vector{Y: 1}
	default:
		return r3.Vector{Z: 1}
	}
}

// Joint is a rotary servo with a bounded range. All angles are radians.
type Joint struct {
	ID       string
	Function string

	DefaultAngle float64
	MinAngle     float64
	MaxAngle     float64
	HomeAngle    float64
}

func newJoint(jc JointConfig) Joint {
	return Joint{
		ID:           jc.ID,
		Function:     jc.Function,
		DefaultAngle: utils.DegToRad(jc.DefaultAngle),
		MinAngle:     utils.DegToRad(jc.MinAngle),
		MaxAngle:     utils.DegToRad(jc.MaxAngle),
		HomeAngle:    utils.DegToRad(jc.home()),
	}
}

// Contains reports whether angle lies inside the joint range.
func (j Joint) Contains(angle float64) bool {
	return angle >= j.MinAngle && angle <= j.MaxAngle
}

// Clamp pins angle to the joint range.
func (j Joint) Clamp(angle float64) float64 {
	if angle < j.MinAngle {
		return j.MinAngle
	}
	if angle > j.MaxAngle {
		return j.MaxAngle
	}
	return angle
}

// Limits returns [min, max] in degrees, for display.
func (j Joint) Limits() [2]float64 {
	return [2]float64{utils.RadToDeg(j.MinAngle), utils.RadToDeg(j.MaxAngle)}
}

func (j Joint) String() string {
	if j.Function == "" {
		return j.ID
	}
	return fmt.Sprintf("%s(%s)", j.ID, j.Function)
}

// Segment is a rigid link driven by exactly one joint. Its tip lies Length
// meters along +X of its base frame after the joint rotation is applied.
type Segment struct {
	ID     string
	Length float64
	Axis   Axis
	Joint  Joint
}
