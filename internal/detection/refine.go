package detection

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/interp"

	"github.com/ironsheep/edge-probe-mcp/internal/imaging"
)

// Oversample is the number of spline evaluations per profile index step.
const Oversample = 10

// Direction is the sense of an intensity transition along a probe.
type Direction int

const (
	// Rising is a dark-to-bright transition.
	Rising Direction = iota + 1
	// Falling is a bright-to-dark transition.
	Falling
)

func (d Direction) String() string {
	switch d {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection parses "rising" or "falling", case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rising":
		return Rising, nil
	case "falling":
		return Falling, nil
	default:
		return 0, fmt.Errorf("%w: unknown direction %q (want rising or falling)", ErrInvalidParameter, s)
	}
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// EdgePoint is one refined boundary location on a probe.
type EdgePoint struct {
	ProbeID   int           `json:"probe_id"`
	Index     int           `json:"index"`
	Pos       imaging.Point `json:"pos"`
	Intensity float64       `json:"intensity"`
	Direction Direction     `json:"direction"`

	// Slope is the spline slope at the edge in intensity per sample.
	Slope float64 `json:"slope"`
}

// RefineStats counts what happened to the intervals of one profile.
type RefineStats struct {
	Intervals  int `json:"intervals"`
	Degenerate int `json:"degenerate"`
	Flat       int `json:"flat"`
}

// Refine locates one edge inside each interval between consecutive extrema.
func Refine(profile imaging.Profile, extrema ExtremaSet, probeID int) []EdgePoint {
	edges, _ := RefineDetailed(profile, extrema, probeID)
	return edges
}

// RefineDetailed is Refine plus interval statistics.
//
// Each interval [a, b] is interpolated with a natural cubic spline through
// the samples it spans and evaluated Oversample times per index step. The
// steepest step of the oversampled curve, in the direction the interval
// runs, gives the edge; its midpoint is rounded back to a profile index.
// Intervals whose end values are equal carry no edge.
func RefineDetailed(profile imaging.Profile, extrema ExtremaSet, probeID int) ([]EdgePoint, RefineStats) {
	var stats RefineStats
	var edges []EdgePoint

	values := profile.Values()
	for _, iv := range extrema.Intervals() {
		stats.Intervals++
		a, b := iv[0], iv[1]

		if a < 0 || b >= len(values) || b-a < 1 {
			stats.Degenerate++
			continue
		}

		var dir Direction
		switch {
		case values[b] > values[a]:
			dir = Rising
		case values[b] < values[a]:
			dir = Falling
		default:
			stats.Flat++
			continue
		}

		idx, slope, err := steepestIndex(values, a, b, dir)
		if err != nil {
			stats.Degenerate++
			continue
		}

		s := profile[idx]
		edges = append(edges, EdgePoint{
			ProbeID:   probeID,
			Index:     idx,
			Pos:       s.Pos,
			Intensity: s.Value,
			Direction: dir,
			Slope:     slope,
		})
	}

	return edges, stats
}

// steepestIndex returns the profile index of the steepest point of the
// spline through values[a..b], and the slope found there.
func steepestIndex(values []float64, a, b int, dir Direction) (int, float64, error) {
	if b-a < 1 {
		return 0, 0, fmt.Errorf("%w: [%d, %d]", ErrDegenerateInterval, a, b)
	}

	xs := make([]float64, 0, b-a+1)
	ys := make([]float64, 0, b-a+1)
	for i := a; i <= b; i++ {
		xs = append(xs, float64(i))
		ys = append(ys, values[i])
	}

	var spline interp.NaturalCubic
	if err := spline.Fit(xs, ys); err != nil {
		return 0, 0, fmt.Errorf("%w: spline fit over [%d, %d]: %w", ErrDegenerateInterval, a, b, err)
	}

	n := (b-a)*Oversample + 1
	span := float64(b - a)
	at := func(j int) float64 {
		return float64(a) + span*float64(j)/float64(n-1)
	}

	dx := span / float64(n-1)
	best := math.Inf(-1)
	if dir == Falling {
		best = math.Inf(1)
	}
	bestJ := 1

	prev := spline.Predict(at(0))
	for j := 1; j < n; j++ {
		y := spline.Predict(at(j))
		slope := (y - prev) / dx
		prev = y

		if (dir == Rising && slope > best) || (dir == Falling && slope < best) {
			best = slope
			bestJ = j
		}
	}

	mid := (at(bestJ-1) + at(bestJ)) / 2
	idx := int(math.Round(mid))
	if idx < a {
		idx = a
	}
	if idx > b {
		idx = b
	}
	return idx, best, nil
}
