package detection

import (
	"fmt"

	"github.com/ironsheep/edge-probe-mcp/internal/imaging"
)

// ProfileAnalysis is everything the pipeline derived from one probe.
type ProfileAnalysis struct {
	Profile imaging.Profile `json:"-"`
	Extrema ExtremaSet      `json:"extrema"`
	Edges   []EdgePoint     `json:"edges"`
	Stats   RefineStats     `json:"stats"`
}

// AnalyzeProfile samples src along probe, simplifies the profile with the
// given persistence threshold and refines every interval between the
// surviving extrema.
//
// Failures are returned as *ProbeError so callers can tell which stage
// rejected the probe.
func AnalyzeProfile(src imaging.GraySource, probe imaging.Probe, threshold float64, probeID int) (*ProfileAnalysis, error) {
	if seg, ok := probe.(imaging.Segment); ok && seg.IsDegenerate() {
		return nil, &ProbeError{
			ProbeID: probeID,
			Stage:   StageSample,
			Err:     fmt.Errorf("%w: zero-length segment at (%d, %d)", ErrInvalidProbe, seg.Start.X, seg.Start.Y),
		}
	}

	profile, err := imaging.SampleProfile(src, probe)
	if err != nil {
		return nil, &ProbeError{ProbeID: probeID, Stage: StageSample, Err: classifySampleError(err)}
	}

	values := profile.Values()
	if len(values) == 0 {
		return nil, &ProbeError{ProbeID: probeID, Stage: StageSimplify, Err: ErrEmptyProfile}
	}

	extrema := Simplify(values, threshold)
	edges, stats := RefineDetailed(profile, extrema, probeID)

	return &ProfileAnalysis{
		Profile: profile,
		Extrema: extrema,
		Edges:   edges,
		Stats:   stats,
	}, nil
}
