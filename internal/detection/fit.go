package detection

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MinFitPoints is the default number of edge points a boundary fit needs.
const MinFitPoints = 3

// Vec is a point or direction in continuous image coordinates.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec) sub(o Vec) Vec       { return Vec{v.X - o.X, v.Y - o.Y} }
func (v Vec) add(o Vec) Vec       { return Vec{v.X + o.X, v.Y + o.Y} }
func (v Vec) scale(f float64) Vec { return Vec{v.X * f, v.Y * f} }
func (v Vec) dot(o Vec) float64   { return v.X*o.X + v.Y*o.Y }
func (v Vec) dist(o Vec) float64  { return math.Hypot(v.X-o.X, v.Y-o.Y) }

// CollectPoints returns the last edge of every probe whose direction is dir.
// Probes without edges, or whose last edge runs the other way, are skipped.
func CollectPoints(result *AggregateResult, dir Direction) []Vec {
	if result == nil {
		return nil
	}
	var pts []Vec
	for _, p := range result.Probes {
		e, ok := p.Last()
		if !ok || e.Direction != dir {
			continue
		}
		pts = append(pts, Vec{X: float64(e.Pos.X), Y: float64(e.Pos.Y)})
	}
	return pts
}

func checkFitCount(n, minPoints int) error {
	if minPoints < 2 {
		minPoints = 2
	}
	if n < minPoints {
		return fmt.Errorf("%w: %d points, need %d", ErrInsufficientFitData, n, minPoints)
	}
	return nil
}

// LineFit is a straight boundary fitted to edge points.
type LineFit struct {
	// Point is the centroid of the points; the line passes through it.
	Point Vec `json:"point"`

	// Direction is the unit direction of the line, with X >= 0 (and Y > 0
	// for vertical lines).
	Direction Vec `json:"direction"`

	// Start and End are the extreme projections of the points on the line.
	Start Vec `json:"start"`
	End   Vec `json:"end"`

	Length       float64 `json:"length"`
	AngleDegrees float64 `json:"angle_degrees"`

	// RMS is the root mean square perpendicular distance of the points.
	RMS   float64 `json:"rms"`
	Count int     `json:"count"`
}

// FitLine fits a line by orthogonal regression: the line runs along the
// principal axis of the point covariance.
func FitLine(points []Vec, minPoints int) (*LineFit, error) {
	if err := checkFitCount(len(points), minPoints); err != nil {
		return nil, err
	}

	n := len(points)
	data := mat.NewDense(n, 2, nil)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range points {
		data.Set(i, 0, p.X)
		data.Set(i, 1, p.Y)
		xs[i], ys[i] = p.X, p.Y
	}
	centroid := Vec{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return nil, errors.New("line fit: eigen decomposition failed")
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	major := 0
	if values[1] > values[0] {
		major = 1
	}
	if values[major] <= 0 {
		return nil, fmt.Errorf("%w: all %d points coincide", ErrInsufficientFitData, n)
	}

	dir := Vec{X: vecs.At(0, major), Y: vecs.At(1, major)}
	dir = dir.scale(1 / math.Hypot(dir.X, dir.Y))
	if math.Abs(dir.X) < 1e-12 {
		dir = Vec{X: 0, Y: math.Copysign(1, dir.Y)}
	}
	if dir.X < 0 || (dir.X == 0 && dir.Y < 0) {
		dir = dir.scale(-1)
	}
	normal := Vec{X: -dir.Y, Y: dir.X}

	tMin, tMax := math.Inf(1), math.Inf(-1)
	var sq float64
	for _, p := range points {
		d := p.sub(centroid)
		t := d.dot(dir)
		tMin = math.Min(tMin, t)
		tMax = math.Max(tMax, t)
		off := d.dot(normal)
		sq += off * off
	}

	return &LineFit{
		Point:        centroid,
		Direction:    dir,
		Start:        centroid.add(dir.scale(tMin)),
		End:          centroid.add(dir.scale(tMax)),
		Length:       tMax - tMin,
		AngleDegrees: math.Atan2(dir.Y, dir.X) * 180 / math.Pi,
		RMS:          math.Sqrt(sq / float64(n)),
		Count:        n,
	}, nil
}

// CircleMethod selects how FitCircle turns points into a circle.
type CircleMethod string

const (
	// CircleEnclosing returns the smallest circle containing every point.
	CircleEnclosing CircleMethod = "enclosing"
	// CircleLeastSquares returns the algebraic least-squares circle.
	CircleLeastSquares CircleMethod = "least_squares"
)

// ParseCircleMethod parses a method name. The empty string selects
// CircleEnclosing.
func ParseCircleMethod(s string) (CircleMethod, error) {
	switch CircleMethod(strings.ToLower(strings.TrimSpace(s))) {
	case "", CircleEnclosing:
		return CircleEnclosing, nil
	case CircleLeastSquares, "least-squares", "lsq":
		return CircleLeastSquares, nil
	default:
		return "", fmt.Errorf("%w: unknown circle method %q", ErrInvalidParameter, s)
	}
}

// CircleFit is a round boundary fitted to edge points.
type CircleFit struct {
	Center Vec     `json:"center"`
	Radius float64 `json:"radius"`

	// RMS is the root mean square radial distance of the points from the
	// circle.
	RMS    float64      `json:"rms"`
	Count  int          `json:"count"`
	Method CircleMethod `json:"method"`
}

// FitCircle fits a circle to points with the given method.
func FitCircle(points []Vec, minPoints int, method CircleMethod) (*CircleFit, error) {
	if err := checkFitCount(len(points), minPoints); err != nil {
		return nil, err
	}

	var c circle
	switch method {
	case "", CircleEnclosing:
		method = CircleEnclosing
		c = enclosingCircle(points)
	case CircleLeastSquares:
		var err error
		c, err = leastSquaresCircle(points)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown circle method %q", ErrInvalidParameter, method)
	}

	var sq float64
	for _, p := range points {
		d := p.dist(c.center) - c.radius
		sq += d * d
	}

	return &CircleFit{
		Center: c.center,
		Radius: c.radius,
		RMS:    math.Sqrt(sq / float64(len(points))),
		Count:  len(points),
		Method: method,
	}, nil
}

type circle struct {
	center Vec
	radius float64
}

func (c circle) contains(p Vec) bool {
	return p.dist(c.center) <= c.radius+1e-9*(1+c.radius)
}

func diameterCircle(a, b Vec) circle {
	center := a.add(b).scale(0.5)
	return circle{center: center, radius: a.dist(center)}
}

// circumcircle returns the circle through a, b and c. Collinear points have
// none; the widest of the three diameter circles is used instead.
func circumcircle(a, b, c Vec) circle {
	bx, by := b.X-a.X, b.Y-a.Y
	cx, cy := c.X-a.X, c.Y-a.Y
	d := 2 * (bx*cy - by*cx)
	if math.Abs(d) < 1e-12 {
		widest := diameterCircle(a, b)
		for _, cand := range []circle{diameterCircle(a, c), diameterCircle(b, c)} {
			if cand.radius > widest.radius {
				widest = cand
			}
		}
		return widest
	}

	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	ux := (cy*b2 - by*c2) / d
	uy := (bx*c2 - cx*b2) / d
	center := Vec{X: a.X + ux, Y: a.Y + uy}
	return circle{center: center, radius: math.Hypot(ux, uy)}
}

// enclosingCircle is Welzl's incremental minimal enclosing circle, run over
// the points in their given order so the result is reproducible.
func enclosingCircle(points []Vec) circle {
	c := circle{center: points[0]}
	for i := 1; i < len(points); i++ {
		if c.contains(points[i]) {
			continue
		}
		c = circle{center: points[i]}
		for j := 0; j < i; j++ {
			if c.contains(points[j]) {
				continue
			}
			c = diameterCircle(points[i], points[j])
			for k := 0; k < j; k++ {
				if c.contains(points[k]) {
					continue
				}
				c = circumcircle(points[i], points[j], points[k])
			}
		}
	}
	return c
}

// leastSquaresCircle solves x² + y² + Dx + Ey + F = 0 for D, E and F in the
// least-squares sense.
func leastSquaresCircle(points []Vec) (circle, error) {
	n := len(points)
	if n < 3 {
		return circle{}, fmt.Errorf("%w: least-squares circle needs 3 points, have %d", ErrInsufficientFitData, n)
	}

	A := mat.NewDense(n, 3, nil)
	b := mat.NewVecDense(n, nil)
	for i, p := range points {
		A.Set(i, 0, p.X)
		A.Set(i, 1, p.Y)
		A.Set(i, 2, 1)
		b.SetVec(i, -(p.X*p.X + p.Y*p.Y))
	}

	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, b); err != nil {
		return circle{}, fmt.Errorf("%w: points are collinear: %w", ErrInsufficientFitData, err)
	}

	D, E, F := params.AtVec(0), params.AtVec(1), params.AtVec(2)
	center := Vec{X: -D / 2, Y: -E / 2}
	r2 := center.X*center.X + center.Y*center.Y - F
	if r2 <= 0 {
		return circle{}, fmt.Errorf("%w: degenerate least-squares circle", ErrInsufficientFitData)
	}
	return circle{center: center, radius: math.Sqrt(r2)}, nil
}

// Shape is the kind of boundary to fit.
type Shape string

const (
	ShapeLine   Shape = "line"
	ShapeCircle Shape = "circle"
)

// FitRequest describes which edges to fit and how.
type FitRequest struct {
	Shape        Shape
	Direction    Direction
	MinPoints    int
	CircleMethod CircleMethod
}

// FittedBoundary is the fit of one aggregate run. Exactly one of Line and
// Circle is set.
type FittedBoundary struct {
	Shape     Shape      `json:"shape"`
	Direction Direction  `json:"direction"`
	Points    []Vec      `json:"points"`
	Line      *LineFit   `json:"line,omitempty"`
	Circle    *CircleFit `json:"circle,omitempty"`
}

// Fit collects the matching edge points of result and fits the requested
// shape. ErrInsufficientFitData means the run did not find enough of the
// boundary; it is an expected outcome rather than a failure.
func Fit(result *AggregateResult, req FitRequest) (*FittedBoundary, error) {
	if req.Direction != Rising && req.Direction != Falling {
		return nil, fmt.Errorf("%s: %w: direction %v", StageFit, ErrInvalidParameter, req.Direction)
	}
	minPoints := req.MinPoints
	if minPoints == 0 {
		minPoints = MinFitPoints
	}

	points := CollectPoints(result, req.Direction)
	fb := &FittedBoundary{Shape: req.Shape, Direction: req.Direction, Points: points}

	switch req.Shape {
	case ShapeLine:
		line, err := FitLine(points, minPoints)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", StageFit, err)
		}
		fb.Line = line
	case ShapeCircle:
		c, err := FitCircle(points, minPoints, req.CircleMethod)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", StageFit, err)
		}
		fb.Circle = c
	default:
		return nil, fmt.Errorf("%s: %w: unknown shape %q", StageFit, ErrInvalidParameter, req.Shape)
	}
	return fb, nil
}
