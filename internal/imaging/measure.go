package imaging

import (
	"math"
)

// DistanceResult contains measurement information for a probe segment
type DistanceResult struct {
	DistancePixels        float64 `json:"distance_pixels"`
	DeltaX                int     `json:"delta_x"`
	DeltaY                int     `json:"delta_y"`
	AngleDegrees          float64 `json:"angle_degrees"`
	DistancePercentWidth  float64 `json:"distance_percent_width"`
	DistancePercentHeight float64 `json:"distance_percent_height"`
	Samples               int     `json:"samples"`
}

// MeasureProbe calculates the length and orientation of a segment relative
// to the grid it will be sampled from
func MeasureProbe(seg Segment, src GraySource) *DistanceResult {
	width := float64(src.Width())
	height := float64(src.Height())

	deltaX := seg.End.X - seg.Start.X
	deltaY := seg.End.Y - seg.Start.Y

	distance := seg.Length()

	// Calculate angle in degrees (0 = horizontal right, 90 = down)
	angle := math.Atan2(float64(deltaY), float64(deltaX)) * 180 / math.Pi

	result := &DistanceResult{
		DistancePixels: math.Round(distance*100) / 100,
		DeltaX:         deltaX,
		DeltaY:         deltaY,
		AngleDegrees:   math.Round(angle*10) / 10,
		Samples:        maxInt(absInt(deltaX), absInt(deltaY)) + 1,
	}
	if width > 0 {
		result.DistancePercentWidth = math.Round(distance/width*1000) / 10
	}
	if height > 0 {
		result.DistancePercentHeight = math.Round(distance/height*1000) / 10
	}
	return result
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
