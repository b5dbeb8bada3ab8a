package detection

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/edge-probe-mcp/internal/imaging"
)

var (
	// ErrInvalidProbe marks a probe that cannot be sampled: zero length,
	// entirely outside the grid, or split into pieces by the grid border.
	ErrInvalidProbe = errors.New("invalid probe")

	// ErrEmptyProfile is returned when a probe produced no samples to work on.
	ErrEmptyProfile = errors.New("empty profile")

	// ErrDegenerateInterval marks an interval between extrema that spans a
	// single sample, so no spline can be fitted.
	ErrDegenerateInterval = errors.New("degenerate interval")

	// ErrInsufficientFitData is returned when fewer edge points than required
	// match the requested direction. It is a "cannot fit" outcome, not a
	// failure of the run.
	ErrInsufficientFitData = errors.New("insufficient data to fit boundary")

	// ErrInvalidParameter reports a caller-supplied parameter that makes the
	// whole run meaningless (no probes, missing grid, unknown mode).
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Stage names the pipeline step a probe failed in.
type Stage string

const (
	StageGenerate Stage = "generate"
	StageSample   Stage = "sample"
	StageSimplify Stage = "simplify"
	StageRefine   Stage = "refine"
	StageFit      Stage = "fit"
)

// ProbeError records why one probe contributed nothing to an aggregate run.
type ProbeError struct {
	ProbeID int
	Stage   Stage
	Err     error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %d: %s: %v", e.ProbeID, e.Stage, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the failure as a flat object for tool results.
func (e *ProbeError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ProbeID int    `json:"probe_id"`
		Stage   Stage  `json:"stage"`
		Error   string `json:"error"`
	}{e.ProbeID, e.Stage, e.Err.Error()})
}

// classifySampleError maps a sampler error onto the detection taxonomy.
func classifySampleError(err error) error {
	if errors.Is(err, imaging.ErrProbeOutOfBounds) || errors.Is(err, imaging.ErrProbeDiscontinuous) {
		return fmt.Errorf("%w: %w", ErrInvalidProbe, err)
	}
	return err
}
