package imaging

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrProbeOutOfBounds is returned when no step of a probe lies on the grid.
	ErrProbeOutOfBounds = errors.New("probe lies entirely outside the grid")

	// ErrProbeDiscontinuous is returned when a probe leaves the grid and
	// comes back, so its on-grid cells do not form one run.
	ErrProbeDiscontinuous = errors.New("probe leaves and re-enters the grid")
)

// Point is an integer grid position. X is the column, Y is the row.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Probe is a geometric sampling path over a grid.
type Probe interface {
	// Steps returns the 8-connected cells visited from start to end.
	Steps() []Point
}

// Segment is a straight probe from Start to End, both inclusive.
type Segment struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Steps walks the segment with Bresenham stepping. A zero-length segment
// yields its single point.
func (s Segment) Steps() []Point {
	return appendLine(nil, s.Start, s.End)
}

// IsDegenerate reports whether the segment has zero length.
func (s Segment) IsDegenerate() bool {
	return s.Start == s.End
}

// Length returns the Euclidean length of the segment in pixels.
func (s Segment) Length() float64 {
	return math.Hypot(float64(s.End.X-s.Start.X), float64(s.End.Y-s.Start.Y))
}

// appendLine appends the cells of the line a->b to dst.
func appendLine(dst []Point, a, b Point) []Point {
	dx := absInt(b.X - a.X)
	dy := -absInt(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}

	x, y := a.X, a.Y
	e := dx + dy
	for {
		dst = append(dst, Point{X: x, Y: y})
		if x == b.X && y == b.Y {
			return dst
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

// arcVertexStepDeg is the angular spacing of the polygon that approximates
// an arc before it is stepped cell by cell.
const arcVertexStepDeg = 1.0

// Arc is a circular probe around Center. Angles are in degrees, measured
// from the +X axis towards +Y (clockwise on screen). A negative sweep walks
// counter-clockwise.
type Arc struct {
	Center   Point   `json:"center"`
	Radius   float64 `json:"radius"`
	StartDeg float64 `json:"start_deg"`
	SweepDeg float64 `json:"sweep_deg"`
}

// Steps returns the cells along the arc. Consecutive polygon vertices are
// joined with straight 8-connected runs and shared joints are not repeated.
func (a Arc) Steps() []Point {
	start := a.pointAt(a.StartDeg)
	if a.Radius < 0.5 || a.SweepDeg == 0 {
		return []Point{start}
	}

	n := int(math.Ceil(math.Abs(a.SweepDeg) / arcVertexStepDeg))
	step := a.SweepDeg / float64(n)

	steps := []Point{start}
	prev := start
	for i := 1; i <= n; i++ {
		v := a.pointAt(a.StartDeg + step*float64(i))
		if v == prev {
			continue
		}
		run := appendLine(nil, prev, v)
		steps = append(steps, run[1:]...)
		prev = v
	}
	return steps
}

func (a Arc) pointAt(deg float64) Point {
	rad := deg * math.Pi / 180
	return Point{
		X: int(math.Round(float64(a.Center.X) + a.Radius*math.Cos(rad))),
		Y: int(math.Round(float64(a.Center.Y) + a.Radius*math.Sin(rad))),
	}
}

// ProfileSample is one entry of an intensity profile.
type ProfileSample struct {
	// Index is the 0-based position of the sample along the probe.
	Index int `json:"index"`

	// Pos is the grid cell the sample was read from.
	Pos Point `json:"pos"`

	// Value is the intensity at Pos.
	Value float64 `json:"value"`
}

// Profile is the ordered intensity sequence read along a probe.
type Profile []ProfileSample

// Values returns the intensities in order.
func (p Profile) Values() []float64 {
	v := make([]float64, len(p))
	for i, s := range p {
		v[i] = s.Value
	}
	return v
}

// Positions returns the sampled cells in order.
func (p Profile) Positions() []Point {
	pts := make([]Point, len(p))
	for i, s := range p {
		pts[i] = s.Pos
	}
	return pts
}

// SampleProfile reads src along the probe.
//
// Intensities are read directly at the stepped cells without interpolation.
// Cells outside the grid are dropped from either end. The kept cells must
// form one 8-connected run so that Index stays positional: a probe that
// leaves the grid and re-enters it (an arc crossing a border) returns
// ErrProbeDiscontinuous. If every cell is outside the grid,
// ErrProbeOutOfBounds is returned.
func SampleProfile(src GraySource, p Probe) (Profile, error) {
	w, h := src.Width(), src.Height()
	inside := func(pt Point) bool {
		return pt.X >= 0 && pt.X < w && pt.Y >= 0 && pt.Y < h
	}
	if g, ok := src.(*Grid); ok {
		inside = func(pt Point) bool { return g.InBounds(pt.Y, pt.X) }
	}

	steps := p.Steps()
	profile := make(Profile, 0, len(steps))
	for _, pt := range steps {
		if !inside(pt) {
			continue
		}
		if n := len(profile); n > 0 && !adjacent(profile[n-1].Pos, pt) {
			return nil, fmt.Errorf("%w: cell %v follows %v", ErrProbeDiscontinuous, pt, profile[n-1].Pos)
		}
		profile = append(profile, ProfileSample{
			Index: len(profile),
			Pos:   pt,
			Value: float64(src.Sample(pt.Y, pt.X)),
		})
	}

	if len(profile) == 0 {
		return nil, fmt.Errorf("%w (%dx%d grid, %d steps)", ErrProbeOutOfBounds, w, h, len(steps))
	}
	return profile, nil
}

// adjacent reports whether b is one of the 8 neighbours of a, or a itself.
func adjacent(a, b Point) bool {
	return absInt(a.X-b.X) <= 1 && absInt(a.Y-b.Y) <= 1
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
