package kin_arm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/utils"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrConfiguration        = errors.New("invalid arm configuration")
	ErrUnreachableTarget    = errors.New("target is outside the reachable workspace")
	ErrNoConvergence        = errors.New("inverse kinematics did not converge")
	ErrJointLimitInfeasible = errors.New("target is infeasible within joint limits")
	ErrInvalidGoal          = errors.New("invalid inverse kinematics goal")
)

// ConfigurationError reports a malformed kinematic model. It is returned at
// construction and is never recovered from.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrConfiguration, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErrorf(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// UnreachableTargetError is returned when the target lies outside the annulus
// [MinReach, MaxReach] around the arm origin.
type UnreachableTargetError struct {
	Target   r3.Vector
	Distance float64
	MinReach float64
	MaxReach float64
}

func (e *UnreachableTargetError) Error() string {
	return fmt.Sprintf("%v: target (%.4f, %.4f, %.4f) is %.4f m from origin, reach is [%.4f, %.4f] m",
		ErrUnreachableTarget, e.Target.X, e.Target.Y, e.Target.Z, e.Distance, e.MinReach, e.MaxReach)
}

func (e *UnreachableTargetError) Is(target error) bool {
	return target == ErrUnreachableTarget
}

// NoConvergenceError is returned when the numeric solver exhausts its
// iteration budget without reaching tolerance and no joint limit is to blame.
type NoConvergenceError struct {
	Iterations       int
	PositionError    float64
	OrientationError float64
}

func (e *NoConvergenceError) Error() string {
	return fmt.Sprintf("%v after %d iterations: position error %.6f m, orientation error %.6f rad",
		ErrNoConvergence, e.Iterations, e.PositionError, e.OrientationError)
}

func (e *NoConvergenceError) Is(target error) bool {
	return target == ErrNoConvergence
}

// Saturation describes a joint pinned at one of its limits. Limit and Excess
// are in radians; Excess is how far past the limit the unconstrained update
// wanted to go.
type Saturation struct {
	JointID  string  `json:"joint_id"`
	Function string  `json:"function,omitempty"`
	Limit    float64 `json:"limit"`
	Excess   float64 `json:"excess"`
	AtMax    bool    `json:"at_max"`
}

func (s Saturation) String() string {
	side := "min"
	if s.AtMax {
		side = "max"
	}
	name := s.JointID
	if s.Function != "" {
		name = fmt.Sprintf("%s(%s)", s.JointID, s.Function)
	}
	return fmt.Sprintf("%s at %s %.2f° exceeded by %.2f°", name, side, utils.RadToDeg(s.Limit), utils.RadToDeg(s.Excess))
}

// JointLimitInfeasibleError is returned when the residual error stays above
// tolerance with joints saturated against their limits.
type JointLimitInfeasibleError struct {
	Saturations      []Saturation
	PositionError    float64
	OrientationError float64
}

func (e *JointLimitInfeasibleError) Error() string {
	parts := make([]string, 0, len(e.Saturations))
	for _, s := range e.Saturations {
		parts = append(parts, s.String())
	}
	return fmt.Sprintf("%v: position error %.6f m with saturated joints [%s]",
		ErrJointLimitInfeasible, e.PositionError, strings.Join(parts, "; "))
}

func (e *JointLimitInfeasibleError) Is(target error) bool {
	return target == ErrJointLimitInfeasible
}
