package kin_arm

import "sync"

// JointState holds the arm's current joint angles with thread-safe access.
// Writes are serialized against concurrent reads.
type JointState struct {
	angles []float64
	mu     sync.RWMutex
}

func newJointState(angles []float64) *JointState {
	s := &JointState{}
	s.set(angles)
	return s
}

// Angles returns a copy of the current angles, in radians.
func (s *JointState) Angles() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.angles))
	copy(out, s.angles)
	return out
}

func (s *JointState) set(angles []float64) {
	next := make([]float64, len(angles))
	copy(next, angles)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.angles = next
}
