package detection

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/edge-probe-mcp/internal/imaging"
)

// Options control one aggregate run.
type Options struct {
	// KernelLength is the Gaussian kernel length applied before sampling.
	// Even lengths and lengths <= 1 disable smoothing.
	KernelLength int

	// Persistence is the simplification threshold.
	Persistence float64

	// Workers > 1 processes probes concurrently.
	Workers int

	// KeepAllEdges keeps every refined edge of a probe instead of only the
	// last one.
	KeepAllEdges bool
}

// ProbeResult holds the edges found on one probe.
type ProbeResult struct {
	ProbeID int             `json:"probe_id"`
	Probe   imaging.Segment `json:"probe"`

	// AngleDegrees is the probe direction in [0, 360).
	AngleDegrees float64     `json:"angle_degrees"`
	Edges        []EdgePoint `json:"edges"`
}

// Last returns the final edge of the probe, if any.
func (r ProbeResult) Last() (EdgePoint, bool) {
	if len(r.Edges) == 0 {
		return EdgePoint{}, false
	}
	return r.Edges[len(r.Edges)-1], true
}

// AggregateResult is the outcome of running a probe family.
type AggregateResult struct {
	// Probes has one entry per probe, in generation order. Probes that
	// failed or found nothing have no edges.
	Probes []ProbeResult `json:"probes"`

	// Failures lists the probes that could not be processed.
	Failures []*ProbeError `json:"failures,omitempty"`

	KernelLength int     `json:"kernel_length"`
	Persistence  float64 `json:"persistence"`
}

// EdgeCount returns the number of edges over all probes.
func (r *AggregateResult) EdgeCount() int {
	n := 0
	for _, p := range r.Probes {
		n += len(p.Edges)
	}
	return n
}

// Aggregator runs the sample/simplify/refine pipeline over a family of
// probes on one image.
type Aggregator struct {
	smoother *imaging.Smoother
	opts     Options
}

// NewAggregator creates an Aggregator reading from smoother.
func NewAggregator(smoother *imaging.Smoother, opts Options) *Aggregator {
	return &Aggregator{smoother: smoother, opts: opts}
}

// Run processes every probe and collects their edges.
//
// A probe that cannot be processed is recorded in Failures and leaves an
// empty entry; it never aborts the run. An error is returned only when the
// run itself cannot start.
func (a *Aggregator) Run(probes []imaging.Segment) (*AggregateResult, error) {
	if a.smoother == nil {
		return nil, fmt.Errorf("%s: %w: no image loaded", StageSample, ErrInvalidParameter)
	}
	if len(probes) == 0 {
		return nil, fmt.Errorf("%s: %w: no probes", StageGenerate, ErrInvalidParameter)
	}
	if len(probes) > MaxProbes {
		return nil, fmt.Errorf("%s: %w: %d probes exceeds the limit of %d", StageGenerate, ErrInvalidParameter, len(probes), MaxProbes)
	}

	grid := a.smoother.Grid(a.opts.KernelLength)

	results := make([]ProbeResult, len(probes))
	errs := make([]*ProbeError, len(probes))

	if a.opts.Workers > 1 {
		var g errgroup.Group
		g.SetLimit(a.opts.Workers)
		for i, p := range probes {
			i, p := i, p
			g.Go(func() error {
				results[i], errs[i] = a.runProbe(grid, i, p)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, p := range probes {
			results[i], errs[i] = a.runProbe(grid, i, p)
		}
	}

	res := &AggregateResult{
		Probes:       results,
		KernelLength: a.opts.KernelLength,
		Persistence:  a.opts.Persistence,
	}
	for _, e := range errs {
		if e != nil {
			res.Failures = append(res.Failures, e)
		}
	}
	return res, nil
}

func (a *Aggregator) runProbe(grid imaging.GraySource, id int, probe imaging.Segment) (ProbeResult, *ProbeError) {
	res := ProbeResult{ProbeID: id, Probe: probe, AngleDegrees: ProbeAngle(probe)}

	analysis, err := AnalyzeProfile(grid, probe, a.opts.Persistence, id)
	if err != nil {
		var pe *ProbeError
		if errors.As(err, &pe) {
			return res, pe
		}
		return res, &ProbeError{ProbeID: id, Stage: StageSample, Err: err}
	}

	switch {
	case len(analysis.Edges) == 0:
	case a.opts.KeepAllEdges:
		res.Edges = analysis.Edges
	default:
		res.Edges = analysis.Edges[len(analysis.Edges)-1:]
	}
	return res, nil
}
