package kin_arm

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

// Arm is the kinematic model of a serial-link arm: an ordered chain of
// segments, each bound to the joint that drives it. The chain is immutable;
// only the current joint angles change, through ApplyPose.
type Arm struct {
	name      string
	segments  []Segment
	actuators []Joint

	maxReach float64
	minReach float64

	state *JointState
}

// NewArm builds an arm from cfg. Any malformed field yields a
// *ConfigurationError.
func NewArm(cfg ArmConfig) (*Arm, error) {
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}

	a := &Arm{
		name:     cfg.Name,
		segments: make([]Segment, len(cfg.Chain)),
	}

	longest := 0.0
	for i, link := range cfg.Chain {
		// Validate already rejected bad axes.
		axis, _ := ParseAxis(link.Segment.Axis)
		a.segments[i] = Segment{
			ID:     link.Segment.ID,
			Length: link.Segment.Length,
			Axis:   axis,
			Joint:  newJoint(link.Joint),
		}
		a.maxReach += link.Segment.Length
		longest = math.Max(longest, link.Segment.Length)
	}
	a.minReach = math.Max(0, 2*longest-a.maxReach)

	for _, act := range cfg.Actuators {
		a.actuators = append(a.actuators, newJoint(act))
	}

	a.state = newJointState(a.DefaultAngles())
	return a, nil
}

// Name returns the configured arm name.
func (a *Arm) Name() string { return a.name }

// Len returns the number of segments (and chain joints).
func (a *Arm) Len() int { return len(a.segments) }

// Segments returns a copy of the chain in order.
func (a *Arm) Segments() []Segment {
	out := make([]Segment, len(a.segments))
	copy(out, a.segments)
	return out
}

// Joints returns the chain joints in segment order.
func (a *Arm) Joints() []Joint {
	out := make([]Joint, len(a.segments))
	for i, seg := range a.segments {
		out[i] = seg.Joint
	}
	return out
}

// Actuators returns the end-effector joints, which are outside the chain and
// never solved for.
func (a *Arm) Actuators() []Joint {
	out := make([]Joint, len(a.actuators))
	copy(out, a.actuators)
	return out
}

// MaxReach is the sum of all segment lengths.
func (a *Arm) MaxReach() float64 { return a.maxReach }

// MinReach is the closest the tip can fold towards the origin ignoring joint
// limits.
func (a *Arm) MinReach() float64 { return a.minReach }

// DefaultAngles returns each chain joint's default angle, in radians.
func (a *Arm) DefaultAngles() []float64 {
	out := make([]float64, len(a.segments))
	for i, seg := range a.segments {
		out[i] = seg.Joint.DefaultAngle
	}
	return out
}

// HomeAngles returns the angles at which every segment is aligned with its
// parent, in radians.
func (a *Arm) HomeAngles() []float64 {
	out := make([]float64, len(a.segments))
	for i, seg := range a.segments {
		out[i] = seg.Joint.HomeAngle
	}
	return out
}

// CurrentAngles returns a snapshot of the arm's joint state.
func (a *Arm) CurrentAngles() []float64 {
	return a.state.Angles()
}

// ApplyPose makes p the arm's current joint state. The pose must have been
// produced for this arm and respect every joint limit.
func (a *Arm) ApplyPose(p Pose) error {
	if p.Len() != len(a.segments) {
		return fmt.Errorf("pose has %d joints, arm has %d", p.Len(), len(a.segments))
	}
	angles := make([]float64, len(a.segments))
	for i, e := range p.entries {
		seg := a.segments[i]
		if e.SegmentID != seg.ID {
			return fmt.Errorf("pose entry %d is for segment %q, expected %q", i, e.SegmentID, seg.ID)
		}
		if !seg.Joint.Contains(e.Angle) {
			return fmt.Errorf("joint %s angle %.4f rad outside [%.4f, %.4f]",
				seg.Joint, e.Angle, seg.Joint.MinAngle, seg.Joint.MaxAngle)
		}
		angles[i] = e.Angle
	}
	a.state.set(angles)
	return nil
}

// ResetAngles returns the joint state to the default angles.
func (a *Arm) ResetAngles() {
	a.state.set(a.DefaultAngles())
}

// NewPose builds a Pose for this arm from angles in chain order (radians).
// Angles are not limit checked; ApplyPose does that.
func (a *Arm) NewPose(angles []float64) (Pose, error) {
	if len(angles) != len(a.segments) {
		return Pose{}, fmt.Errorf("expected %d joint angles, got %d", len(a.segments), len(angles))
	}
	return newPose(a.segments, angles), nil
}

// segmentTransform rotates about the segment axis by the joint's offset from
// home, then translates along the rotated +X by the segment length.
func segmentTransform(seg Segment, angle float64) spatialmath.Pose {
	u := seg.Axis.Unit()
	rot := spatialmath.NewPose(r3.Vector{}, &spatialmath.R4AA{Theta: angle - seg.Joint.HomeAngle, RX: u.X, RY: u.Y, RZ: u.Z})
	return spatialmath.Compose(rot, spatialmath.NewPoseFromPoint(r3.Vector{X: seg.Length}))
}

// ForwardKinematics returns the frame at the tip of every segment for the
// given joint angles (radians, chain order).
func (a *Arm) ForwardKinematics(angles []float64) ([]spatialmath.Pose, error) {
	if len(angles) != len(a.segments) {
		return nil, fmt.Errorf("expected %d joint angles, got %d", len(a.segments), len(angles))
	}
	frames := make([]spatialmath.Pose, len(a.segments))
	frame := spatialmath.NewZeroPose()
	for i, seg := range a.segments {
		frame = spatialmath.Compose(frame, segmentTransform(seg, angles[i]))
		frames[i] = frame
	}
	return frames, nil
}

// EndEffector returns the frame at the tip of the last segment.
func (a *Arm) EndEffector(angles []float64) (spatialmath.Pose, error) {
	frames, err := a.ForwardKinematics(angles)
	if err != nil {
		return nil, err
	}
	return frames[len(frames)-1], nil
}

// PoseFrames reconstructs every segment tip frame from a solved Pose.
func (a *Arm) PoseFrames(p Pose) ([]spatialmath.Pose, error) {
	if p.Len() != len(a.segments) {
		return nil, fmt.Errorf("pose has %d joints, arm has %d", p.Len(), len(a.segments))
	}
	return a.ForwardKinematics(p.Angles())
}

// TipPoints walks the pose in chain order and returns the origin followed by
// the position of every segment tip.
func (a *Arm) TipPoints(p Pose) ([]r3.Vector, error) {
	frames, err := a.PoseFrames(p)
	if err != nil {
		return nil, err
	}
	points := make([]r3.Vector, 0, len(frames)+1)
	points = append(points, r3.Vector{})
	for _, f := range frames {
		points = append(points, f.Point())
	}
	return points, nil
}

// jointFrames holds what the Jacobian needs: each joint's pivot and world
// axis, plus the end effector frame.
type jointFrames struct {
	pivots []r3.Vector
	axes   []r3.Vector
	end    spatialmath.Pose
}

func (a *Arm) jointFrames(angles []float64) jointFrames {
	jf := jointFrames{
		pivots: make([]r3.Vector, len(a.segments)),
		axes:   make([]r3.Vector, len(a.segments)),
	}
	frame := spatialmath.NewZeroPose()
	for i, seg := range a.segments {
		pivot := frame.Point()
		jf.pivots[i] = pivot
		jf.axes[i] = spatialmath.Compose(frame, spatialmath.NewPoseFromPoint(seg.Axis.Unit())).Point().Sub(pivot)
		frame = spatialmath.Compose(frame, segmentTransform(seg, angles[i]))
	}
	jf.end = frame
	return jf
}
