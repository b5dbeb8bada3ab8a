package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/effect"
	"github.com/lucasb-eyer/go-colorful"
)

// GraySource is read-only access to a 2-D grid of 8-bit intensities.
//
// Rows run top to bottom (Y) and columns left to right (X). Implementations
// must be safe for concurrent reads.
type GraySource interface {
	Width() int
	Height() int
	Sample(row, col int) uint8
}

// Grid is a grayscale intensity grid backed by a single row-major buffer.
//
// A Grid is never modified after construction; every transformation in this
// package (smoothing, conversion) returns a new Grid.
type Grid struct {
	width  int
	height int
	pix    []uint8
}

// NewGrid wraps pix as a width x height grid. The slice is owned by the
// returned Grid and must not be modified by the caller afterwards.
func NewGrid(width, height int, pix []uint8) (*Grid, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", width, height)
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("grid buffer has %d samples, want %d (%dx%d)", len(pix), width*height, width, height)
	}
	return &Grid{width: width, height: height, pix: pix}, nil
}

// GridFromSource copies any GraySource into a Grid.
func GridFromSource(src GraySource) *Grid {
	if g, ok := src.(*Grid); ok {
		return g.Clone()
	}
	w, h := src.Width(), src.Height()
	pix := make([]uint8, w*h)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			pix[row*w+col] = src.Sample(row, col)
		}
	}
	return &Grid{width: w, height: h, pix: pix}
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// Sample returns the intensity at (row, col). It panics when the cell is
// outside the grid; use InBounds first for untrusted coordinates.
func (g *Grid) Sample(row, col int) uint8 {
	return g.pix[row*g.width+col]
}

// InBounds reports whether (row, col) addresses a cell of the grid.
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.height && col >= 0 && col < g.width
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	pix := make([]uint8, len(g.pix))
	copy(pix, g.pix)
	return &Grid{width: g.width, height: g.height, pix: pix}
}

// Equal reports whether both grids have the same size and samples.
func (g *Grid) Equal(other *Grid) bool {
	if other == nil || g.width != other.width || g.height != other.height {
		return false
	}
	for i := range g.pix {
		if g.pix[i] != other.pix[i] {
			return false
		}
	}
	return true
}

// ToImage returns the grid as an *image.Gray anchored at the origin.
func (g *Grid) ToImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.width, g.height))
	for row := 0; row < g.height; row++ {
		copy(img.Pix[row*img.Stride:row*img.Stride+g.width], g.pix[row*g.width:(row+1)*g.width])
	}
	return img
}

// GrayModel selects how color images are reduced to a single intensity.
type GrayModel int

const (
	// GrayLuma uses ITU-R BT.601 luma weights (0.299 R + 0.587 G + 0.114 B).
	GrayLuma GrayModel = iota

	// GrayLightness uses CIE L* (perceptual lightness, D65) scaled to 0-255.
	GrayLightness
)

// String returns the model name accepted by ParseGrayModel.
func (m GrayModel) String() string {
	switch m {
	case GrayLightness:
		return "lightness"
	default:
		return "luma"
	}
}

// ParseGrayModel parses "luma" or "lightness". An empty string selects luma.
func ParseGrayModel(s string) (GrayModel, error) {
	switch s {
	case "", "luma":
		return GrayLuma, nil
	case "lightness":
		return GrayLightness, nil
	default:
		return GrayLuma, fmt.Errorf("unknown gray model: %s", s)
	}
}

// GridFromImage converts a decoded image to a Grid using the given model.
//
// Images that are already *image.Gray are copied sample for sample
// regardless of the model.
func GridFromImage(img image.Image, model GrayModel) *Grid {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	pix := make([]uint8, width*height)

	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < height; y++ {
			off := gray.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(pix[y*width:(y+1)*width], gray.Pix[off:off+width])
		}
		return &Grid{width: width, height: height, pix: pix}
	}

	switch model {
	case GrayLightness:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pix[y*width+x] = lightness(img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
	default:
		luma := effect.GrayscaleWithWeights(img, 0.299, 0.587, 0.114)
		lb := luma.Bounds()
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pix[y*width+x] = luma.Pix[luma.PixOffset(lb.Min.X+x, lb.Min.Y+y)]
			}
		}
	}

	return &Grid{width: width, height: height, pix: pix}
}

// lightness maps CIE L* onto 0-255. go-colorful reports L* in [0, 1].
// Fully transparent pixels are treated as black.
func lightness(c color.Color) uint8 {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		return 0
	}
	l, _, _ := cf.Lab()
	v := math.Round(l * 255)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
