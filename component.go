package kin_arm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	commonpb "go.viam.com/api/common/v1"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/rdk/utils"
)

var SimulatedArmModel = resource.NewModel("kin-arm", "arm", "simulated")

func init() {
	resource.RegisterComponent(arm.API, SimulatedArmModel,
		resource.Registration[arm.Arm, *SimulatedArmConfig]{
			Constructor: newSimulatedArm,
		},
	)
}

// SimulatedArmConfig configures an arm component that moves instantly to
// solved poses. At most one of ConfigFile and Arm may be set; with neither the
// default desktop arm is used.
type SimulatedArmConfig struct {
	ConfigFile string       `json:"config_file,omitempty"`
	Arm        *ArmConfig   `json:"arm,omitempty"`
	Solver     SolverConfig `json:"solver,omitempty"`
}

// Validate ensures all parts of the config are valid
func (cfg *SimulatedArmConfig) Validate(path string) ([]string, []string, error) {
	armCfg, err := cfg.armConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := armCfg.Validate(fieldPath(path, "arm")); err != nil {
		return nil, nil, err
	}
	solver := cfg.Solver
	if err := solver.Validate(fieldPath(path, "solver")); err != nil {
		return nil, nil, err
	}
	return nil, nil, nil
}

func (cfg *SimulatedArmConfig) armConfig() (ArmConfig, error) {
	switch {
	case cfg.ConfigFile != "" && cfg.Arm != nil:
		return ArmConfig{}, configErrorf("config_file", "cannot be combined with an inline arm")
	case cfg.ConfigFile != "":
		return LoadArmConfigFromFile(cfg.ConfigFile)
	case cfg.Arm != nil:
		return *cfg.Arm, nil
	default:
		return DefaultArmConfig(), nil
	}
}

type simulatedArm struct {
	resource.AlwaysRebuild

	name   resource.Name
	logger logging.Logger
	kin    *Arm
	solver *Solver
	model  referenceframe.Model

	moveLock sync.Mutex
	isMoving atomic.Bool
}

func newSimulatedArm(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (arm.Arm, error) {
	conf, err := resource.NativeConfig[*SimulatedArmConfig](rawConf)
	if err != nil {
		return nil, err
	}
	return NewSimulatedArm(ctx, deps, rawConf.ResourceName(), conf, logger)
}

// NewSimulatedArm builds the arm component. Joint inputs are radians from
// each joint's home angle, matching the kinematic model it reports.
func NewSimulatedArm(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *SimulatedArmConfig, logger logging.Logger) (arm.Arm, error) {
	armCfg, err := conf.armConfig()
	if err != nil {
		return nil, err
	}
	kin, err := NewArm(armCfg)
	if err != nil {
		return nil, err
	}

	scfg := conf.Solver
	scfg.Logger = logger
	solver, err := NewSolver(kin, scfg)
	if err != nil {
		return nil, err
	}

	model, err := kin.KinematicModel()
	if err != nil {
		return nil, err
	}

	logger.Infof("Simulated arm %q with %d joints, reach %.3f m", kin.Name(), kin.Len(), kin.MaxReach())
	return &simulatedArm{
		name:   name,
		logger: logger,
		kin:    kin,
		solver: solver,
		model:  model,
	}, nil
}

type modelJoint struct {
	ID     string             `json:"id"`
	Type   string             `json:"type"`
	Parent string             `json:"parent"`
	Axis   map[string]float64 `json:"axis"`
	Min    float64            `json:"min"`
	Max    float64            `json:"max"`
}

type modelLink struct {
	ID          string             `json:"id"`
	Parent      string             `json:"parent"`
	Translation map[string]float64 `json:"translation"`
}

type modelFile struct {
	Name         string       `json:"name"`
	KinParamType string       `json:"kinematic_param_type"`
	Links        []modelLink  `json:"links"`
	Joints       []modelJoint `json:"joints"`
}

// KinematicModel describes the chain as a frame model: each joint rotates
// about its axis from home and each segment is a fixed offset in millimeters
// along the rotated X axis.
func (a *Arm) KinematicModel() (referenceframe.Model, error) {
	mf := modelFile{Name: a.name, KinParamType: "SVA"}
	ids := map[string]bool{referenceframe.World: true}
	parent := referenceframe.World

	for _, seg := range a.segments {
		j := seg.Joint
		if ids[j.ID] || ids[seg.ID] || j.ID == seg.ID {
			return nil, fmt.Errorf("frame id collision at joint %q, segment %q", j.ID, seg.ID)
		}
		ids[j.ID], ids[seg.ID] = true, true

		u := seg.Axis.Unit()
		mf.Joints = append(mf.Joints, modelJoint{
			ID:     j.ID,
			Type:   "revolute",
			Parent: parent,
			Axis:   map[string]float64{"x": u.X, "y": u.Y, "z": u.Z},
			Min:    utils.RadToDeg(j.MinAngle - j.HomeAngle),
			Max:    utils.RadToDeg(j.MaxAngle - j.HomeAngle),
		})
		mf.Links = append(mf.Links, modelLink{
			ID:          seg.ID,
			Parent:      j.ID,
			Translation: map[string]float64{"x": seg.Length * 1000, "y": 0, "z": 0},
		})
		parent = seg.ID
	}

	data, err := json.Marshal(mf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal kinematic model")
	}
	m := &referenceframe.ModelConfigJSON{
		OriginalFile: &referenceframe.ModelFile{
			Bytes:     data,
			Extension: "json",
		},
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal kinematic model")
	}
	return m.ParseConfig(a.name)
}

func (s *simulatedArm) inputs(angles []float64) []referenceframe.Input {
	out := make([]referenceframe.Input, len(angles))
	for i, seg := range s.kin.segments {
		out[i] = angles[i] - seg.Joint.HomeAngle
	}
	return out
}

func (s *simulatedArm) Name() resource.Name {
	return s.name
}

func (s *simulatedArm) EndPosition(ctx context.Context, extra map[string]interface{}) (spatialmath.Pose, error) {
	inputs, err := s.CurrentInputs(ctx)
	if err != nil {
		return nil, err
	}
	pose, err := referenceframe.ComputeOOBPosition(s.model, inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to compute end position: %w", err)
	}
	return pose, nil
}

// MoveToPosition solves for the pose's point, given in millimeters. The
// orientation is matched only when extra["match_orientation"] is true.
func (s *simulatedArm) MoveToPosition(ctx context.Context, pose spatialmath.Pose, extra map[string]interface{}) error {
	goal := Goal{Position: pose.Point().Mul(0.001)}
	if match, _ := extra["match_orientation"].(bool); match {
		goal.Orientation = pose.Orientation()
	}

	s.moveLock.Lock()
	defer s.moveLock.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.isMoving.Store(true)
	defer s.isMoving.Store(false)

	p, err := s.solver.Solve(goal)
	if err != nil {
		return err
	}
	s.logger.Debugf("Moving to %v", p)
	return s.kin.ApplyPose(p)
}

func (s *simulatedArm) MoveToJointPositions(ctx context.Context, positions []referenceframe.Input, extra map[string]interface{}) error {
	s.moveLock.Lock()
	defer s.moveLock.Unlock()

	if len(positions) != s.kin.Len() {
		return fmt.Errorf("expected %d joint positions, got %d", s.kin.Len(), len(positions))
	}

	s.isMoving.Store(true)
	defer s.isMoving.Store(false)

	angles := make([]float64, len(positions))
	for i, seg := range s.kin.segments {
		j := seg.Joint
		angle := positions[i] + j.HomeAngle
		if clamped := j.Clamp(angle); clamped != angle {
			s.logger.Warnf("Joint %s input %.3f rad outside limits, clamping", j.ID, positions[i])
			angle = clamped
		}
		angles[i] = angle
	}

	p, err := s.kin.NewPose(angles)
	if err != nil {
		return err
	}
	return s.kin.ApplyPose(p)
}

func (s *simulatedArm) MoveThroughJointPositions(ctx context.Context, positions [][]referenceframe.Input, options *arm.MoveOptions, extra map[string]interface{}) error {
	for _, jointPositions := range positions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.MoveToJointPositions(ctx, jointPositions, extra); err != nil {
			return err
		}
	}
	return nil
}

func (s *simulatedArm) JointPositions(ctx context.Context, extra map[string]interface{}) ([]referenceframe.Input, error) {
	return s.inputs(s.kin.CurrentAngles()), nil
}

func (s *simulatedArm) Stop(ctx context.Context, extra map[string]interface{}) error {
	s.isMoving.Store(false)
	return nil
}

func (s *simulatedArm) Kinematics(ctx context.Context) (referenceframe.Model, error) {
	return s.model, nil
}

func (s *simulatedArm) CurrentInputs(ctx context.Context) ([]referenceframe.Input, error) {
	return s.JointPositions(ctx, nil)
}

func (s *simulatedArm) GoToInputs(ctx context.Context, inputSteps ...[]referenceframe.Input) error {
	return s.MoveThroughJointPositions(ctx, inputSteps, nil, nil)
}

func (s *simulatedArm) Get3DModels(ctx context.Context, extra map[string]interface{}) (map[string]*commonpb.Mesh, error) {
	return map[string]*commonpb.Mesh{}, nil
}

// DoCommand supports:
//
//	{"command": "solve", "x": mm, "y": mm, "z": mm} solves without moving
//	{"command": "reset"} returns every joint to its default angle
func (s *simulatedArm) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch cmd["command"] {
	case "solve":
		var target r3.Vector
		for _, c := range []struct {
			key string
			dst *float64
		}{{"x", &target.X}, {"y", &target.Y}, {"z", &target.Z}} {
			v, ok := cmd[c.key].(float64)
			if !ok {
				return nil, fmt.Errorf("solve command requires numeric %q in millimeters", c.key)
			}
			*c.dst = v / 1000
		}

		sol, err := s.solver.SolveDetailed(Goal{Position: target})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"segments":       sol.Pose.SegmentIDs(),
			"degrees":        sol.Pose.Degrees(),
			"method":         string(sol.Method),
			"position_error": sol.PositionError,
		}, nil

	case "reset":
		s.moveLock.Lock()
		s.kin.ResetAngles()
		s.moveLock.Unlock()
		return map[string]interface{}{"success": true}, nil

	default:
		return nil, fmt.Errorf("unknown command: %v", cmd["command"])
	}
}

func (s *simulatedArm) IsMoving(ctx context.Context) (bool, error) {
	return s.isMoving.Load(), nil
}

func (s *simulatedArm) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	inputs, err := s.CurrentInputs(ctx)
	if err != nil {
		return nil, err
	}
	gif, err := s.model.Geometries(inputs)
	if err != nil {
		return nil, err
	}
	return gif.Geometries(), nil
}

func (s *simulatedArm) Close(context.Context) error {
	s.logger.Info("Closing simulated arm")
	return nil
}
