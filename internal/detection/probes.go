package detection

import (
	"math"

	"github.com/ironsheep/edge-probe-mcp/internal/imaging"
)

// ParallelProbes returns 2n+1 copies of base shifted along its normal.
//
// The offset index runs from +n down to -n, so the first probe lies n*spacing
// pixels to the left of base (seen from Start towards End) and the middle
// probe is base itself. Both endpoints of a probe get the same rounded
// shift, which keeps every probe parallel to base and of equal length.
// A zero-length base has no normal; it is returned 2n+1 times.
func ParallelProbes(base imaging.Segment, n int, spacing float64) []imaging.Segment {
	if n < 0 {
		n = 0
	}

	dx := float64(base.End.X - base.Start.X)
	dy := float64(base.End.Y - base.Start.Y)
	length := math.Hypot(dx, dy)

	probes := make([]imaging.Segment, 0, 2*n+1)
	for k := n; k >= -n; k-- {
		if length == 0 {
			probes = append(probes, base)
			continue
		}
		off := float64(k) * spacing
		shift := imaging.Point{
			X: int(math.Round(-dy / length * off)),
			Y: int(math.Round(dx / length * off)),
		}
		probes = append(probes, imaging.Segment{
			Start: imaging.Point{X: base.Start.X + shift.X, Y: base.Start.Y + shift.Y},
			End:   imaging.Point{X: base.End.X + shift.X, Y: base.End.Y + shift.Y},
		})
	}
	return probes
}

// MaxProbes bounds the number of probes one aggregate run accepts. It
// covers a full sweep at a quarter of a degree.
const MaxProbes = 1440

// RadialProbeCount is the number of segments RadialProbes returns for the
// same arguments, computed without building them.
func RadialProbeCount(stepDeg float64, count int) int {
	if stepDeg <= 0 {
		return 1
	}
	if count <= 0 {
		count = FullSweepCount(stepDeg)
	}
	return count + 1
}

// FullSweepCount is the number of extra radial probes that cover a full
// turn at stepDeg without repeating the base direction.
func FullSweepCount(stepDeg float64) int {
	if stepDeg <= 0 {
		return 0
	}
	q := 360 / stepDeg
	if r := math.Round(q); math.Abs(q-r) < 1e-9 {
		return int(r) - 1
	}
	return int(math.Floor(q))
}

// NormalizeDegrees maps an angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// RadialProbes returns count+1 segments fanning out from center.
//
// The first probe is center->ref. Probe i points at the base angle plus
// i*stepDeg and has the same length as the base. count <= 0 asks for a
// full sweep (see FullSweepCount). With stepDeg <= 0 only the base probe
// is returned.
func RadialProbes(center, ref imaging.Point, stepDeg float64, count int) []imaging.Segment {
	base := imaging.Segment{Start: center, End: ref}
	if stepDeg <= 0 {
		return []imaging.Segment{base}
	}
	if count <= 0 {
		count = FullSweepCount(stepDeg)
	}

	radius := base.Length()
	baseDeg := math.Atan2(float64(ref.Y-center.Y), float64(ref.X-center.X)) * 180 / math.Pi

	probes := make([]imaging.Segment, 0, count+1)
	probes = append(probes, base)
	for i := 1; i <= count; i++ {
		rad := NormalizeDegrees(baseDeg+float64(i)*stepDeg) * math.Pi / 180
		probes = append(probes, imaging.Segment{
			Start: center,
			End: imaging.Point{
				X: center.X + int(math.Round(radius*math.Cos(rad))),
				Y: center.Y + int(math.Round(radius*math.Sin(rad))),
			},
		})
	}
	return probes
}

// ProbeAngle returns the direction of a probe in degrees, normalized into
// [0, 360).
func ProbeAngle(p imaging.Segment) float64 {
	deg := math.Atan2(float64(p.End.Y-p.Start.Y), float64(p.End.X-p.Start.X)) * 180 / math.Pi
	return NormalizeDegrees(deg)
}
