package kin_arm

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
)

// Fractions of the feasible remaining-distance interval tried, in order, at
// every redundant link of the planar chain.
var reachFractions = []float64{0.5, 0.75, 0.25, 0.9, 0.1}

const angleSlack = 1e-9

// planarGroup is a pitch joint plus the roll segments rigidly following it.
type planarGroup struct {
	joint  int
	length float64
}

// planarChain is the decomposition of an arm whose first joint yaws about Z
// and whose remaining joints pitch about parallel Y axes, with X roll joints
// held at home. Such a chain moves in the vertical plane picked by the yaw.
type planarChain struct {
	joints []Joint
	home   []float64

	base   float64 // length of the yaw segment and any rolls after it
	groups []planarGroup

	// Annulus of distances reachable by groups[k:], ignoring limits.
	lo, hi []float64
}

func newPlanarChain(arm *Arm) *planarChain {
	segs := arm.segments
	if len(segs) < 2 || segs[0].Axis != AxisZ {
		return nil
	}

	pc := &planarChain{
		joints: arm.Joints(),
		home:   arm.HomeAngles(),
		base:   segs[0].Length,
	}
	for i := 1; i < len(segs); i++ {
		switch segs[i].Axis {
		case AxisY:
			pc.groups = append(pc.groups, planarGroup{joint: i, length: segs[i].Length})
		case AxisX:
			if len(pc.groups) == 0 {
				pc.base += segs[i].Length
			} else {
				pc.groups[len(pc.groups)-1].length += segs[i].Length
			}
		default:
			return nil
		}
	}
	if len(pc.groups) == 0 {
		return nil
	}

	n := len(pc.groups)
	pc.lo = make([]float64, n+1)
	pc.hi = make([]float64, n+1)
	longest := 0.0
	for k := n - 1; k >= 0; k-- {
		pc.hi[k] = pc.hi[k+1] + pc.groups[k].length
		longest = math.Max(longest, pc.groups[k].length)
		pc.lo[k] = math.Max(0, 2*longest-pc.hi[k])
	}
	return pc
}

// solve returns joint angles reaching target, preferring configurations
// close to seed. ok is false when no decomposition respects the limits.
func (pc *planarChain) solve(target r3.Vector, seed []float64, tol float64) ([]float64, bool) {
	r := math.Hypot(target.X, target.Y)

	type yawOption struct {
		angle float64
		u     float64 // signed horizontal distance of the target in the arm plane
	}
	var options []yawOption
	if r < angleSlack {
		options = append(options, yawOption{angle: seed[0]})
	} else {
		heading := math.Atan2(target.Y, target.X)
		for _, o := range []struct{ yaw, u float64 }{{heading, r}, {heading + math.Pi, -r}} {
			if a, ok := fitAngle(pc.joints[0], pc.home[0]+o.yaw); ok {
				options = append(options, yawOption{angle: a, u: o.u})
			}
		}
	}
	sort.SliceStable(options, func(i, j int) bool {
		return math.Abs(options[i].angle-seed[0]) < math.Abs(options[j].angle-seed[0])
	})

	for _, opt := range options {
		angles := make([]float64, len(pc.home))
		copy(angles, pc.home)
		angles[0] = opt.angle

		goal := [2]float64{opt.u, target.Z}
		if pc.place(0, [2]float64{pc.base, 0}, 0, goal, angles, seed, tol) {
			return angles, true
		}
	}
	return nil, false
}

// place positions groups[k:] starting at cur, whose incoming absolute pitch
// is prev. Plane coordinates are (horizontal, vertical); a pitch of psi
// points along (cos psi, -sin psi) since positive rotation about Y dips +X.
func (pc *planarChain) place(k int, cur [2]float64, prev float64, goal [2]float64, angles, seed []float64, tol float64) bool {
	du, dw := goal[0]-cur[0], goal[1]-cur[1]
	d := math.Hypot(du, dw)
	if k == len(pc.groups) {
		return d <= tol
	}

	g := pc.groups[k]
	L := g.length
	lo, hi := pc.lo[k+1], pc.hi[k+1]

	// Distance left for the rest of the chain after this link.
	minRest := math.Max(lo, math.Abs(d-L))
	maxRest := math.Min(hi, d+L)
	if minRest > maxRest+tol {
		return false
	}
	if minRest > maxRest {
		minRest = maxRest
	}

	var rests []float64
	if k == len(pc.groups)-1 || maxRest-minRest < angleSlack {
		rests = []float64{minRest}
	} else {
		for _, f := range reachFractions {
			rests = append(rests, minRest+f*(maxRest-minRest))
		}
	}

	heading := prev
	if d > angleSlack {
		heading = math.Atan2(-dw, du)
	}

	for _, rest := range rests {
		spread := 0.0
		if d > angleSlack {
			spread = lawOfCosines(L, d, rest)
		}

		pitches := []float64{heading}
		if spread > angleSlack {
			pitches = []float64{heading - spread, heading + spread}
		}

		type candidate struct{ pitch, angle float64 }
		var cands []candidate
		for _, psi := range pitches {
			if a, ok := fitAngle(pc.joints[g.joint], pc.home[g.joint]+psi-prev); ok {
				cands = append(cands, candidate{psi, a})
			}
		}
		sort.SliceStable(cands, func(i, j int) bool {
			return math.Abs(cands[i].angle-seed[g.joint]) < math.Abs(cands[j].angle-seed[g.joint])
		})

		for _, c := range cands {
			angles[g.joint] = c.angle
			next := [2]float64{cur[0] + L*math.Cos(c.pitch), cur[1] - L*math.Sin(c.pitch)}
			if pc.place(k+1, next, c.pitch, goal, angles, seed, tol) {
				return true
			}
		}
	}
	angles[g.joint] = pc.home[g.joint]
	return false
}

// lawOfCosines returns the angle between sides a and b of a triangle whose
// third side is c.
func lawOfCosines(a, b, c float64) float64 {
	cos := (a*a + b*b - c*c) / (2 * a * b)
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}

// fitAngle wraps angle by whole turns into the joint range if possible.
func fitAngle(j Joint, angle float64) (float64, bool) {
	angle = math.Remainder(angle-j.HomeAngle, 2*math.Pi) + j.HomeAngle
	for _, a := range []float64{angle, angle - 2*math.Pi, angle + 2*math.Pi} {
		if a >= j.MinAngle-angleSlack && a <= j.MaxAngle+angleSlack {
			return j.Clamp(a), true
		}
	}
	return 0, false
}
