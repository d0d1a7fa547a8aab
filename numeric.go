package kin_arm

import (
	"errors"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

const (
	minDamping = 1e-6
	maxDamping = 1e3
	stallLimit = 50
	// Relative cost decrease below which an iteration counts as stalled.
	stallRatio = 1e-9
	limitSlack = 1e-9
	// Fixed so restart seeds, and therefore solutions, repeat exactly.
	restartSource = 1
)

// evaluation is the residual and Jacobian of the goal at one set of angles.
type evaluation struct {
	angles []float64
	// residual rows: 3 position (meters), then 3 weighted rotation rows if
	// an orientation is requested.
	residual []float64
	jacobian []float64 // row major, len(residual) x joints
	posErr   float64
	rotErr   float64
	cost     float64
}

// attempt is the outcome of one damped least squares run from a seed.
type attempt struct {
	eval       evaluation
	iterations int
	converged  bool
	// Joints clamped by an accepted step, keyed by chain index.
	clamped map[int]Saturation
}

// solveNumeric runs damped least squares from a fixed sequence of seeds and
// returns the first converged result. A target is reported as infeasible
// within limits only when every run ends pinned against a limit and a
// follow-up run with those joints locked still misses.
func (s *Solver) solveNumeric(goal Goal, seed []float64) (*Solution, error) {
	var (
		attempts   []attempt
		best       int
		iterations int
	)
	for i, sd := range s.seeds(seed) {
		att := s.dls(goal, sd, nil)
		iterations += att.iterations
		if att.converged {
			s.logger.Debugf("Numeric solution for %v from seed %d after %d iterations, error %.6f m",
				goal.Position, i, att.iterations, att.eval.posErr)
			return s.numericSolution(goal, att, iterations), nil
		}
		attempts = append(attempts, att)
		if att.eval.cost < attempts[best].eval.cost {
			best = len(attempts) - 1
		}
	}

	allBlocked := true
	var bestPush map[int]Saturation
	for i, att := range attempts {
		push := s.limitPush(att.eval)
		if i == best {
			bestPush = push
		}
		if len(push) == 0 {
			allBlocked = false
			continue
		}

		locked := make([]bool, len(att.eval.angles))
		for j := range push {
			locked[j] = true
		}
		retry := s.dls(goal, att.eval.angles, locked)
		iterations += retry.iterations
		if retry.converged {
			for j, sat := range push {
				retry.clamped[j] = sat
			}
			s.logger.Debugf("Numeric solution for %v with %d joint(s) locked at limits", goal.Position, len(push))
			return s.numericSolution(goal, retry, iterations), nil
		}
	}

	closest := attempts[best].eval
	if allBlocked {
		return nil, &JointLimitInfeasibleError{
			Saturations:      s.orderedSaturations(bestPush),
			PositionError:    closest.posErr,
			OrientationError: closest.rotErr,
		}
	}
	return nil, &NoConvergenceError{
		Iterations:       iterations,
		PositionError:    closest.posErr,
		OrientationError: closest.rotErr,
	}
}

func (s *Solver) numericSolution(goal Goal, att attempt, iterations int) *Solution {
	sol := &Solution{
		Pose:             newPose(s.arm.segments, att.eval.angles),
		Method:           MethodNumeric,
		Iterations:       iterations,
		PositionError:    att.eval.posErr,
		OrientationError: att.eval.rotErr,
		Saturated:        s.stillSaturated(att),
	}
	if len(sol.Saturated) > 0 {
		s.logger.Warnf("Solution for %v has %d joint(s) at their limits", goal.Position, len(sol.Saturated))
	}
	return sol
}

// seeds returns the starting points in the order they are tried: the request
// seed, the default angles, the home angles, then Restarts pseudo-random
// configurations drawn inside the limits from a fixed source.
func (s *Solver) seeds(seed []float64) [][]float64 {
	seeds := [][]float64{seed}
	add := func(c []float64) {
		if !sameAngles(c, seeds) {
			seeds = append(seeds, c)
		}
	}
	add(s.arm.DefaultAngles())
	add(s.arm.HomeAngles())

	rng := rand.New(rand.NewSource(restartSource))
	for k := 0; k < s.cfg.Restarts; k++ {
		c := make([]float64, len(s.arm.segments))
		for i, seg := range s.arm.segments {
			j := seg.Joint
			c[i] = j.MinAngle + rng.Float64()*(j.MaxAngle-j.MinAngle)
		}
		add(c)
	}
	return seeds
}

func sameAngles(a []float64, seen [][]float64) bool {
	for _, b := range seen {
		equal := len(a) == len(b)
		for i := 0; equal && i < len(a); i++ {
			equal = a[i] == b[i]
		}
		if equal {
			return true
		}
	}
	return false
}

// dls iterates theta += J^T (J J^T + lambda^2 I)^-1 e, clamping every
// candidate to the joint limits and adapting lambda to the cost trend.
// Joints flagged in locked keep their seed angle.
func (s *Solver) dls(goal Goal, seed []float64, locked []bool) attempt {
	att := attempt{clamped: make(map[int]Saturation)}
	cur := s.evaluate(goal, s.clampAll(seed))
	lambda := s.cfg.Damping
	stalled := 0

	for att.iterations < s.cfg.MaxIterations {
		if s.converged(goal, cur) {
			att.converged = true
			break
		}
		att.iterations++

		step := dlsStep(cur, lambda, locked)
		if step == nil {
			break
		}
		limitStep(step, s.cfg.MaxStep)

		candidate := make([]float64, len(seed))
		hits := make(map[int]Saturation)
		for i, seg := range s.arm.segments {
			raw := cur.angles[i] + step[i]
			candidate[i] = seg.Joint.Clamp(raw)
			if raw != candidate[i] {
				hits[i] = s.saturation(i, raw)
			}
		}

		next := s.evaluate(goal, candidate)
		if next.cost < cur.cost {
			if cur.cost-next.cost < stallRatio*cur.cost {
				stalled++
			} else {
				stalled = 0
			}
			cur = next
			for i, sat := range hits {
				att.clamped[i] = sat
			}
			lambda = math.Max(lambda/2, minDamping)
		} else {
			stalled++
			lambda = math.Min(lambda*4, maxDamping)
		}
		if stalled >= stallLimit {
			break
		}
	}
	if !att.converged && s.converged(goal, cur) {
		att.converged = true
	}
	att.eval = cur
	return att
}

// evaluate computes the residual and geometric Jacobian at angles.
func (s *Solver) evaluate(goal Goal, angles []float64) evaluation {
	jf := s.arm.jointFrames(angles)
	tip := jf.end.Point()
	n := len(angles)

	rows := 3
	if goal.Orientation != nil {
		rows = 6
	}
	ev := evaluation{
		angles:   angles,
		residual: make([]float64, rows),
		jacobian: make([]float64, rows*n),
	}

	dp := goal.Position.Sub(tip)
	ev.residual[0], ev.residual[1], ev.residual[2] = dp.X, dp.Y, dp.Z
	ev.posErr = dp.Norm()

	for i := 0; i < n; i++ {
		col := jf.axes[i].Cross(tip.Sub(jf.pivots[i]))
		ev.jacobian[0*n+i] = col.X
		ev.jacobian[1*n+i] = col.Y
		ev.jacobian[2*n+i] = col.Z
	}

	if goal.Orientation != nil {
		w := s.orientationWeight()
		rot := rotationError(goal.Orientation.Quaternion(), jf.end.Orientation().Quaternion())
		ev.rotErr = rot.Norm()
		ev.residual[3], ev.residual[4], ev.residual[5] = w*rot.X, w*rot.Y, w*rot.Z
		for i := 0; i < n; i++ {
			ev.jacobian[3*n+i] = w * jf.axes[i].X
			ev.jacobian[4*n+i] = w * jf.axes[i].Y
			ev.jacobian[5*n+i] = w * jf.axes[i].Z
		}
	}

	for _, r := range ev.residual {
		ev.cost += r * r
	}
	return ev
}

// orientationWeight converts radians of rotation error into meters so both
// residuals share a scale.
func (s *Solver) orientationWeight() float64 {
	return 0.25 * s.arm.MaxReach()
}

func (s *Solver) converged(goal Goal, ev evaluation) bool {
	if ev.posErr > s.cfg.PositionTolerance {
		return false
	}
	return goal.Orientation == nil || ev.rotErr <= s.cfg.OrientationTolerance
}

// rotationError returns the world frame rotation vector taking current to
// target.
func rotationError(target, current quat.Number) r3.Vector {
	q := quat.Mul(target, quat.Conj(current))
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	v := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	sin := v.Norm()
	if sin < 1e-12 {
		return r3.Vector{}
	}
	theta := 2 * math.Atan2(sin, q.Real)
	return v.Mul(theta / sin)
}

// dlsStep solves (J J^T + lambda^2 I) y = e and returns J^T y. Columns of
// locked joints are zeroed so they do not move.
func dlsStep(ev evaluation, lambda float64, locked []bool) []float64 {
	m := len(ev.residual)
	n := len(ev.angles)

	data := ev.jacobian
	if locked != nil {
		data = make([]float64, len(ev.jacobian))
		copy(data, ev.jacobian)
		for r := 0; r < m; r++ {
			for i := 0; i < n; i++ {
				if locked[i] {
					data[r*n+i] = 0
				}
			}
		}
	}
	J := mat.NewDense(m, n, data)

	var A mat.Dense
	A.Mul(J, J.T())
	for i := 0; i < m; i++ {
		A.Set(i, i, A.At(i, i)+lambda*lambda)
	}

	var y mat.VecDense
	if err := y.SolveVec(&A, mat.NewVecDense(m, ev.residual)); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil
		}
	}

	var step mat.VecDense
	step.MulVec(J.T(), &y)
	out := make([]float64, n)
	for i := range out {
		out[i] = step.AtVec(i)
	}
	return out
}

// limitStep scales step so no joint moves more than maxStep.
func limitStep(step []float64, maxStep float64) {
	largest := 0.0
	for _, v := range step {
		largest = math.Max(largest, math.Abs(v))
	}
	if largest <= maxStep {
		return
	}
	scale := maxStep / largest
	for i := range step {
		step[i] *= scale
	}
}

func (s *Solver) saturation(i int, raw float64) Saturation {
	j := s.arm.segments[i].Joint
	if raw > j.MaxAngle {
		return Saturation{JointID: j.ID, Function: j.Function, Limit: j.MaxAngle, Excess: raw - j.MaxAngle, AtMax: true}
	}
	return Saturation{JointID: j.ID, Function: j.Function, Limit: j.MinAngle, Excess: j.MinAngle - raw}
}

func atLimit(j Joint, angle float64) bool {
	return angle <= j.MinAngle+limitSlack || angle >= j.MaxAngle-limitSlack
}

// stillSaturated reports joints clamped during the run that ended at a limit.
func (s *Solver) stillSaturated(att attempt) []Saturation {
	var out []Saturation
	for i, seg := range s.arm.segments {
		sat, ok := att.clamped[i]
		if ok && atLimit(seg.Joint, att.eval.angles[i]) {
			out = append(out, sat)
		}
	}
	return out
}

// limitPush finds joints sitting at a limit that the next regular update
// would push further out. Excess is that update's overshoot, so it never
// exceeds MaxStep.
func (s *Solver) limitPush(ev evaluation) map[int]Saturation {
	step := dlsStep(ev, s.cfg.Damping, nil)
	if step == nil {
		return nil
	}
	limitStep(step, s.cfg.MaxStep)

	out := make(map[int]Saturation)
	for i, seg := range s.arm.segments {
		j := seg.Joint
		a := ev.angles[i]
		pushOut := (a >= j.MaxAngle-limitSlack && step[i] > limitSlack) ||
			(a <= j.MinAngle+limitSlack && step[i] < -limitSlack)
		if pushOut {
			out[i] = s.saturation(i, a+step[i])
		}
	}
	return out
}

func (s *Solver) orderedSaturations(byJoint map[int]Saturation) []Saturation {
	var out []Saturation
	for i := range s.arm.segments {
		if sat, ok := byJoint[i]; ok {
			out = append(out, sat)
		}
	}
	return out
}
