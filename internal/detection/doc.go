// Package detection locates boundaries in intensity profiles.
//
// It takes profiles read by the imaging package and finds where along each
// probe the intensity changes most sharply, then combines the results of
// many probes into a line or circle fit.
//
// # Pipeline
//
// Every probe goes through the same steps:
//
//  1. Sampling: read the (optionally blurred) grid along the probe
//  2. Simplification: keep only the extrema whose persistence reaches the
//     threshold (Simplify)
//  3. Refinement: fit a natural cubic spline between consecutive extrema
//     and take the steepest point as the edge (Refine)
//
// An Aggregator runs the pipeline over a family of probes built by
// ParallelProbes or RadialProbes, and Fit turns the last edge of each probe
// into a boundary.
//
// # Persistence
//
// A local minimum is paired with the local maximum at which its basin
// merges into a deeper one. The difference of the two values is the pair's
// persistence. Small fluctuations have low persistence and vanish at any
// useful threshold; real transitions survive.
//
// # Direction
//
// An edge is Rising when intensity increases along the probe and Falling
// when it decreases. Fits only use edges of one direction, so the probe
// orientation decides which side of a boundary is measured.
//
// # Failures
//
// A probe that cannot be processed (zero length, entirely off the grid)
// is reported as a ProbeError in the aggregate result and does not stop
// the run. A fit with too few edge points returns ErrInsufficientFitData.
package detection
