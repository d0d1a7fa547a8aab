package kin_arm

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Projection selects the world plane a pose is drawn in.
type Projection int

const (
	ProjectionXY Projection = iota
	ProjectionXZ
	ProjectionYZ
)

// ParseProjection accepts "xy", "xz" or "yz" in either case.
func ParseProjection(s string) (Projection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "xy":
		return ProjectionXY, nil
	case "xz":
		return ProjectionXZ, nil
	case "yz":
		return ProjectionYZ, nil
	default:
		return 0, fmt.Errorf("projection must be xy, xz or yz, got %q", s)
	}
}

func (p Projection) String() string {
	switch p {
	case ProjectionXY:
		return "xy"
	case ProjectionXZ:
		return "xz"
	case ProjectionYZ:
		return "yz"
	default:
		return fmt.Sprintf("Projection(%d)", int(p))
	}
}

func (p Projection) project(v r3.Vector) (float64, float64) {
	switch p {
	case ProjectionXZ:
		return v.X, v.Z
	case ProjectionYZ:
		return v.Y, v.Z
	default:
		return v.X, v.Y
	}
}

func (p Projection) labels() (string, string) {
	s := strings.ToUpper(p.String())
	return s[:1] + " (m)", s[1:] + " (m)"
}

var (
	linkColor  = color.RGBA{R: 200, A: 255}
	jointColor = color.RGBA{B: 160, A: 255}
)

// NewPosePlot draws the segment chain of pose, one line from the origin
// through every segment tip, projected onto proj.
func NewPosePlot(arm *Arm, pose Pose, proj Projection) (*plot.Plot, error) {
	points, err := arm.TipPoints(pose)
	if err != nil {
		return nil, err
	}

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X, xys[i].Y = proj.project(pt)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s %s", arm.Name(), pose)
	p.X.Label.Text, p.Y.Label.Text = proj.labels()
	p.Add(plotter.NewGrid())

	line, scatter, err := plotter.NewLinePoints(xys)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build pose plot")
	}
	line.LineStyle.Width = vg.Points(2)
	line.LineStyle.Color = linkColor
	scatter.GlyphStyle.Shape = draw.CrossGlyph{}
	scatter.GlyphStyle.Color = jointColor
	scatter.GlyphStyle.Radius = vg.Points(4)
	p.Add(line, scatter)

	// Keep both axes on the same scale so link lengths read correctly.
	reach := arm.MaxReach()
	p.X.Min, p.X.Max = -reach, reach
	p.Y.Min, p.Y.Max = -reach, reach
	return p, nil
}

// SavePosePlot renders pose to path. The image format follows the file
// extension (png, svg, pdf, ...).
func SavePosePlot(arm *Arm, pose Pose, proj Projection, path string, size vg.Length) error {
	p, err := NewPosePlot(arm, pose, proj)
	if err != nil {
		return err
	}
	if size <= 0 {
		size = 6 * vg.Inch
	}
	if err := p.Save(size, size, path); err != nil {
		return errors.Wrapf(err, "failed to save pose plot to %s", path)
	}
	return nil
}
