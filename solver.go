package kin_arm

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
)

// SolverConfig tunes the inverse kinematics solver. Zero values are replaced
// with defaults by Validate.
type SolverConfig struct {
	// Maximum distance between the reconstructed tip and the target, meters.
	PositionTolerance float64 `json:"position_tolerance,omitempty" yaml:"position_tolerance,omitempty"`
	// Maximum end effector rotation error when an orientation is requested, radians.
	OrientationTolerance float64 `json:"orientation_tolerance,omitempty" yaml:"orientation_tolerance,omitempty"`

	// Iteration budget per seed for the numeric solver.
	MaxIterations int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	// Initial damping factor of the least squares step.
	Damping float64 `json:"damping,omitempty" yaml:"damping,omitempty"`
	// Largest change of any joint in one iteration, radians.
	MaxStep float64 `json:"max_step,omitempty" yaml:"max_step,omitempty"`
	// Extra numeric runs from pseudo-random seeds inside the joint limits.
	Restarts int `json:"restarts,omitempty" yaml:"restarts,omitempty"`

	// Always use the numeric solver.
	DisableClosedForm bool `json:"disable_closed_form,omitempty" yaml:"disable_closed_form,omitempty"`

	// Not serialized
	Logger logging.Logger `json:"-" yaml:"-"`
}

// Validate ensures all parts of the config are valid
func (cfg *SolverConfig) Validate(path string) error {
	if cfg.PositionTolerance == 0 {
		cfg.PositionTolerance = 0.001 // 1 mm
	}
	if cfg.OrientationTolerance == 0 {
		cfg.OrientationTolerance = 0.0175 // ~1°
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 1000
	}
	if cfg.Damping == 0 {
		cfg.Damping = 0.01
	}
	if cfg.MaxStep == 0 {
		cfg.MaxStep = 0.2
	}
	if cfg.Restarts == 0 {
		cfg.Restarts = 8
	}

	if cfg.PositionTolerance < 0 || math.IsNaN(cfg.PositionTolerance) {
		return fmt.Errorf("%s must be positive, got %v", fieldPath(path, "position_tolerance"), cfg.PositionTolerance)
	}
	if cfg.OrientationTolerance < 0 || math.IsNaN(cfg.OrientationTolerance) {
		return fmt.Errorf("%s must be positive, got %v", fieldPath(path, "orientation_tolerance"), cfg.OrientationTolerance)
	}
	if cfg.MaxIterations < 0 {
		return fmt.Errorf("%s must be positive, got %d", fieldPath(path, "max_iterations"), cfg.MaxIterations)
	}
	if cfg.Damping < 0 || math.IsNaN(cfg.Damping) {
		return fmt.Errorf("%s must be positive, got %v", fieldPath(path, "damping"), cfg.Damping)
	}
	if cfg.MaxStep < 0 || math.IsNaN(cfg.MaxStep) {
		return fmt.Errorf("%s must be positive, got %v", fieldPath(path, "max_step"), cfg.MaxStep)
	}
	if cfg.Restarts < 0 {
		return fmt.Errorf("%s must be positive, got %d", fieldPath(path, "restarts"), cfg.Restarts)
	}
	return nil
}

// Goal is a solve request. Orientation is optional; when nil only the tip
// position is matched. Seed overrides the arm's current angles as the
// starting point (radians, chain order).
type Goal struct {
	Position    r3.Vector
	Orientation spatialmath.Orientation
	Seed        []float64
}

// Method names the technique that produced a solution.
type Method string

const (
	MethodClosedForm Method = "closed_form"
	MethodNumeric    Method = "numeric"
)

// Solution is a successful solve with its diagnostics.
type Solution struct {
	Pose             Pose         `json:"pose"`
	Method           Method       `json:"method"`
	Iterations       int          `json:"iterations"`
	PositionError    float64      `json:"position_error"`
	OrientationError float64      `json:"orientation_error,omitempty"`
	Saturated        []Saturation `json:"saturated,omitempty"`
}

// Solver computes joint angles for end effector targets on one arm. It holds
// no state between calls and is safe for concurrent use.
type Solver struct {
	arm    *Arm
	cfg    SolverConfig
	logger logging.Logger
	planar *planarChain
}

// NewSolver binds a solver to arm.
func NewSolver(arm *Arm, cfg SolverConfig) (*Solver, error) {
	if arm == nil {
		return nil, fmt.Errorf("solver requires an arm")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("kin-arm-solver")
	}

	s := &Solver{
		arm:    arm,
		cfg:    cfg,
		logger: logger,
		planar: newPlanarChain(arm),
	}
	if s.planar == nil {
		logger.Debugf("Arm %q has no planar decomposition, using numeric solver only", arm.Name())
	}
	return s, nil
}

// Arm returns the arm the solver is bound to.
func (s *Solver) Arm() *Arm { return s.arm }

// SolvePoint solves a position-only goal seeded from the arm's current angles.
func (s *Solver) SolvePoint(x, y, z float64) (Pose, error) {
	return s.Solve(Goal{Position: r3.Vector{X: x, Y: y, Z: z}})
}

// Solve returns a Pose whose forward kinematics reaches the goal within
// tolerance.
func (s *Solver) Solve(goal Goal) (Pose, error) {
	sol, err := s.SolveDetailed(goal)
	if err != nil {
		return Pose{}, err
	}
	return sol.Pose, nil
}

// SolveDetailed is Solve with the solver's diagnostics.
func (s *Solver) SolveDetailed(goal Goal) (*Solution, error) {
	target := goal.Position
	if !finite(target) {
		return nil, fmt.Errorf("%w: target position (%v, %v, %v) is not finite", ErrInvalidGoal, target.X, target.Y, target.Z)
	}

	seed := goal.Seed
	if seed == nil {
		seed = s.arm.CurrentAngles()
	}
	if len(seed) != s.arm.Len() {
		return nil, fmt.Errorf("%w: seed has %d angles, arm has %d joints", ErrInvalidGoal, len(seed), s.arm.Len())
	}
	for i, a := range seed {
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return nil, fmt.Errorf("%w: seed angle %d is not finite", ErrInvalidGoal, i)
		}
	}
	seed = s.clampAll(seed)

	dist := target.Norm()
	if dist > s.arm.MaxReach()+s.cfg.PositionTolerance || dist < s.arm.MinReach()-s.cfg.PositionTolerance {
		return nil, &UnreachableTargetError{
			Target:   target,
			Distance: dist,
			MinReach: s.arm.MinReach(),
			MaxReach: s.arm.MaxReach(),
		}
	}

	if goal.Orientation == nil && s.planar != nil && !s.cfg.DisableClosedForm {
		if angles, ok := s.planar.solve(target, seed, s.cfg.PositionTolerance); ok {
			posErr, err := s.positionError(angles, target)
			if err == nil && posErr <= s.cfg.PositionTolerance {
				s.logger.Debugf("Closed form solution for %v, error %.6f m", target, posErr)
				return &Solution{
					Pose:          newPose(s.arm.segments, angles),
					Method:        MethodClosedForm,
					PositionError: posErr,
				}, nil
			}
			s.logger.Debugf("Closed form candidate for %v missed by %.6f m, falling back", target, posErr)
		}
	}

	return s.solveNumeric(goal, seed)
}

func (s *Solver) positionError(angles []float64, target r3.Vector) (float64, error) {
	end, err := s.arm.EndEffector(angles)
	if err != nil {
		return 0, err
	}
	return end.Point().Sub(target).Norm(), nil
}

func (s *Solver) clampAll(angles []float64) []float64 {
	out := make([]float64, len(angles))
	for i, seg := range s.arm.segments {
		out[i] = seg.Joint.Clamp(angles[i])
	}
	return out
}

func finite(v r3.Vector) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
