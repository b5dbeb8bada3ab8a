package imaging

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/disintegration/imaging"
)

// ImageCache provides thread-safe caching of decoded images and of the
// smoothing sessions built on top of them.
//
// Images are keyed by their file path. Sessions are keyed by path and gray
// model, so switching between luma and lightness keeps both grids alive.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Memory Management
//
// Cached images and sessions remain in memory until explicitly removed via
// Evict() or Clear().
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	sess, err := cache.Session("/path/to/part.png", imaging.GrayLuma)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	blurred := sess.Grid(5)
type ImageCache struct {
	mu       sync.RWMutex
	images   map[string]image.Image
	sessions map[sessionKey]*Smoother
}

type sessionKey struct {
	path  string
	model GrayModel
}

// NewImageCache creates and initializes a new empty image cache.
//
// The returned cache is ready for immediate use and is safe for concurrent access.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images:   make(map[string]image.Image),
		sessions: make(map[sessionKey]*Smoother),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Parameters:
//   - path: Absolute or relative file path to the image. Supported formats
//     are those of github.com/disintegration/imaging (PNG, JPEG, GIF, TIFF,
//     BMP).
//
// Returns:
//   - image.Image: The decoded image with JPEG EXIF orientation applied, so
//     the grid matches what a viewer displays and probe coordinates line up.
//   - error: Non-nil if the file cannot be opened or decoded.
//
// The image is cached using the exact path string provided. Different paths
// to the same file (e.g., relative vs absolute) result in separate entries.
//
// # Errors
//
//   - Returns error if the file does not exist or cannot be read
//   - Returns error if the file is not a supported image
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Session returns the smoothing session for path under the given gray
// model, creating it on first use.
//
// Parameters:
//   - path: Image file path, loaded through Load.
//   - model: How color pixels are reduced to intensity.
//
// Returns:
//   - *Smoother: The shared session. Its blurred grids are cached per kernel
//     length for every later caller of the same (path, model).
//   - error: Non-nil if the image cannot be loaded.
func (c *ImageCache) Session(path string, model GrayModel) (*Smoother, error) {
	key := sessionKey{path: path, model: model}

	c.mu.RLock()
	if s, ok := c.sessions[key]; ok {
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	img, err := c.Load(path)
	if err != nil {
		return nil, err
	}
	s := NewSmoother(GridFromImage(img, model))

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another caller may have raced us; keep the first session so cached
	// blurs are shared.
	if existing, ok := c.sessions[key]; ok {
		return existing, nil
	}
	c.sessions[key] = s
	return s, nil
}

// Clear removes all images and sessions from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.sessions = make(map[sessionKey]*Smoother)
	c.mu.Unlock()
}

// Evict removes a specific image, and every session derived from it.
//
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	for key := range c.sessions {
		if key.path == path {
			delete(c.sessions, key)
		}
	}
	c.mu.Unlock()
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels (after EXIF orientation).
	Width int `json:"width"`

	// Height is the image height in pixels (after EXIF orientation).
	Height int `json:"height"`

	// Format is the format derived from the file extension, lower case, or
	// "unknown".
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// Grayscale is true when the decoded image is already single channel
	// and the gray model has no effect.
	Grayscale bool `json:"grayscale"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image and returns metadata about it.
//
// Parameters:
//   - cache: The image cache to use for loading.
//   - path: File path to the image.
//
// Returns:
//   - *ImageInfo: Metadata including dimensions, format, color depth and
//     file size.
//   - error: Non-nil if the image cannot be loaded or the file cannot be
//     stat'd.
//
// # Format Detection
//
// The format is determined by file extension using imaging.FormatFromFilename.
//
// # Color Depth Detection
//
// Color depth is determined by the Go image type:
//   - *image.RGBA64, *image.NRGBA64, *image.Gray16 -> "16-bit"
//   - All other types -> "8-bit"
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	if f, err := imaging.FormatFromFilename(path); err == nil {
		format = lowerFormat(f)
	}

	colorDepth := "8-bit"
	grayscale := false
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64:
		colorDepth = "16-bit"
	case *image.Gray16:
		colorDepth = "16-bit"
		grayscale = true
	case *image.Gray:
		grayscale = true
	}

	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		ColorDepth:    colorDepth,
		Grayscale:     grayscale,
		FileSizeBytes: stat.Size(),
	}, nil
}

func lowerFormat(f imaging.Format) string {
	switch f {
	case imaging.JPEG:
		return "jpeg"
	case imaging.PNG:
		return "png"
	case imaging.GIF:
		return "gif"
	case imaging.TIFF:
		return "tiff"
	case imaging.BMP:
		return "bmp"
	default:
		return "unknown"
	}
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of an image without additional metadata.
//
// Parameters:
//   - cache: The image cache to use for loading.
//   - path: File path to the image.
//
// Returns:
//   - *DimensionsResult: Width and height in pixels.
//   - error: Non-nil if the image cannot be loaded.
//
// This is a lightweight alternative to LoadImageInfo when only dimensions
// are needed.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &DimensionsResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
