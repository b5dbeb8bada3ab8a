// Package imaging provides the grid-level half of the edge probing pipeline.
//
// It turns decoded images into grayscale intensity grids, blurs them, and
// reads intensity profiles along probes (segments and arcs). Everything the
// detection package needs from pixels goes through the GraySource interface,
// so the pipeline never touches image.Image directly.
//
// # Coordinate System
//
// All grid coordinates in this package are 0-based:
//   - X: column (0 = leftmost pixel)
//   - Y: row (0 = topmost pixel)
//   - GraySource.Sample takes (row, col), i.e. (Y, X)
//   - Angles are in degrees from +X towards +Y (clockwise on screen)
//
// # Profiles
//
// A probe is discretized into 8-connected cells from its start to its end.
// The order of the cells is the order of the profile: Index is the position
// in that sequence, not a spatial coordinate. No intensity interpolation
// happens while sampling.
//
// # Smoothing
//
// Smooth blurs a whole grid once with a separable Gaussian of odd kernel
// length; profiles are then read from the blurred grid. Kernel lengths that
// are even or not greater than 1 mean "no smoothing". A Smoother keeps the
// last blurred grid per source so repeated probes over the same image share
// one blur.
//
// # Thread Safety
//
// Grid values are immutable once built. ImageCache and Smoother are safe for
// concurrent use.
package imaging
