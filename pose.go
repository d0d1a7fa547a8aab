package kin_arm

import (
	"fmt"

	json "github.com/goccy/go-json"
	"go.viam.com/rdk/utils"
)

// PoseEntry is one joint angle of a Pose, in radians.
type PoseEntry struct {
	SegmentID string  `json:"segment_id"`
	JointID   string  `json:"joint_id"`
	Angle     float64 `json:"final_angle"`
}

// Pose is an ordered assignment of an angle to every joint of the chain. The
// order is the arm's segment order. A Pose is immutable.
type Pose struct {
	entries []PoseEntry
}

func newPose(segments []Segment, angles []float64) Pose {
	entries := make([]PoseEntry, len(segments))
	for i, seg := range segments {
		entries[i] = PoseEntry{SegmentID: seg.ID, JointID: seg.Joint.ID, Angle: angles[i]}
	}
	return Pose{entries: entries}
}

// Len returns the number of joints in the pose.
func (p Pose) Len() int { return len(p.entries) }

// Entries returns a copy of the ordered entries.
func (p Pose) Entries() []PoseEntry {
	out := make([]PoseEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// SegmentIDs returns the segment identifiers in chain order.
func (p Pose) SegmentIDs() []string {
	ids := make([]string, len(p.entries))
	for i, e := range p.entries {
		ids[i] = e.SegmentID
	}
	return ids
}

// Angles returns the joint angles in chain order, in radians.
func (p Pose) Angles() []float64 {
	out := make([]float64, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.Angle
	}
	return out
}

// Degrees returns the joint angles in chain order, in degrees.
func (p Pose) Degrees() []float64 {
	out := make([]float64, len(p.entries))
	for i, e := range p.entries {
		out[i] = utils.RadToDeg(e.Angle)
	}
	return out
}

// Angle looks up the angle driving the given segment.
func (p Pose) Angle(segmentID string) (float64, bool) {
	for _, e := range p.entries {
		if e.SegmentID == segmentID {
			return e.Angle, true
		}
	}
	return 0, false
}

func (p Pose) String() string {
	s := "Pose{"
	for i, e := range p.entries {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %.2f°", e.SegmentID, utils.RadToDeg(e.Angle))
	}
	return s + "}"
}

// MarshalJSON encodes the pose as an ordered list so the chain order survives.
func (p Pose) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.entries)
}
