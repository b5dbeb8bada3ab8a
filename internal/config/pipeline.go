package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ironsheep/edge-probe-mcp/internal/detection"
	"github.com/ironsheep/edge-probe-mcp/internal/imaging"
)

// EnvConfigPath names the environment variable that points at a pipeline
// config file.
const EnvConfigPath = "EDGE_PROBE_CONFIG"

// Defaults used when a field is not set.
const (
	DefaultKernelLength  = 3
	DefaultPersistence   = 10.0
	DefaultOffsetCount   = 5
	DefaultOffsetSpacing = 5.0
	DefaultAngleStep     = 10.0
	DefaultWorkers       = 1
	DefaultGrayModel     = "luma"
	DefaultCircleMethod  = "enclosing"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// PipelineConfig holds the default parameters of the probing tools.
// Tool arguments override these per call. Fields left out of a config file
// keep their defaults, so partial files are fine.
type PipelineConfig struct {
	// Smoothing and simplification
	KernelLength *int     `json:"kernel_length,omitempty"`
	Persistence  *float64 `json:"persistence,omitempty"`

	// Probe families
	OffsetCount   *int     `json:"offset_count,omitempty"`
	OffsetSpacing *float64 `json:"offset_spacing,omitempty"`
	AngleStep     *float64 `json:"angle_step,omitempty"`

	// Fitting
	MinFitPoints *int    `json:"min_fit_points,omitempty"`
	CircleMethod *string `json:"circle_method,omitempty"`

	// Execution
	Workers   *int    `json:"workers,omitempty"`
	GrayModel *string `json:"gray_model,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyPipelineConfig returns a config with every field unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// DefaultPipelineConfig returns a config with every field set to its default.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		KernelLength:  ptrInt(DefaultKernelLength),
		Persistence:   ptrFloat64(DefaultPersistence),
		OffsetCount:   ptrInt(DefaultOffsetCount),
		OffsetSpacing: ptrFloat64(DefaultOffsetSpacing),
		AngleStep:     ptrFloat64(DefaultAngleStep),
		MinFitPoints:  ptrInt(detection.MinFitPoints),
		CircleMethod:  ptrString(DefaultCircleMethod),
		Workers:       ptrInt(DefaultWorkers),
		GrayModel:     ptrString(DefaultGrayModel),
	}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads the file named by EDGE_PROBE_CONFIG. An unset variable
// yields an empty config, which behaves like the defaults.
func LoadFromEnv() (*PipelineConfig, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return EmptyPipelineConfig(), nil
	}
	return LoadPipelineConfig(path)
}

// Validate checks that the set values are usable.
func (c *PipelineConfig) Validate() error {
	if c.Persistence != nil && *c.Persistence < 0 {
		return fmt.Errorf("persistence must be non-negative, got %f", *c.Persistence)
	}
	if c.OffsetCount != nil && *c.OffsetCount < 0 {
		return fmt.Errorf("offset_count must be non-negative, got %d", *c.OffsetCount)
	}
	if c.OffsetSpacing != nil && *c.OffsetSpacing <= 0 {
		return fmt.Errorf("offset_spacing must be positive, got %f", *c.OffsetSpacing)
	}
	if c.AngleStep != nil && (*c.AngleStep <= 0 || *c.AngleStep > 360) {
		return fmt.Errorf("angle_step must be in (0, 360], got %f", *c.AngleStep)
	}
	if c.MinFitPoints != nil && *c.MinFitPoints < 2 {
		return fmt.Errorf("min_fit_points must be at least 2, got %d", *c.MinFitPoints)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.GrayModel != nil {
		if _, err := imaging.ParseGrayModel(*c.GrayModel); err != nil {
			return fmt.Errorf("gray_model: %w", err)
		}
	}
	if c.CircleMethod != nil {
		if _, err := detection.ParseCircleMethod(*c.CircleMethod); err != nil {
			return fmt.Errorf("circle_method: %w", err)
		}
	}
	return nil
}

// GetKernelLength returns the kernel_length value or the default.
// Even values and values <= 1 are valid and disable smoothing.
func (c *PipelineConfig) GetKernelLength() int {
	if c.KernelLength == nil {
		return DefaultKernelLength
	}
	return *c.KernelLength
}

// GetPersistence returns the persistence value or the default.
func (c *PipelineConfig) GetPersistence() float64 {
	if c.Persistence == nil {
		return DefaultPersistence
	}
	return *c.Persistence
}

// GetOffsetCount returns the offset_count value or the default.
func (c *PipelineConfig) GetOffsetCount() int {
	if c.OffsetCount == nil {
		return DefaultOffsetCount
	}
	return *c.OffsetCount
}

// GetOffsetSpacing returns the offset_spacing value or the default.
func (c *PipelineConfig) GetOffsetSpacing() float64 {
	if c.OffsetSpacing == nil {
		return DefaultOffsetSpacing
	}
	return *c.OffsetSpacing
}

// GetAngleStep returns the angle_step value or the default.
func (c *PipelineConfig) GetAngleStep() float64 {
	if c.AngleStep == nil {
		return DefaultAngleStep
	}
	return *c.AngleStep
}

// GetMinFitPoints returns the min_fit_points value or the default.
func (c *PipelineConfig) GetMinFitPoints() int {
	if c.MinFitPoints == nil {
		return detection.MinFitPoints
	}
	return *c.MinFitPoints
}

// GetCircleMethod returns the parsed circle_method or the default.
func (c *PipelineConfig) GetCircleMethod() detection.CircleMethod {
	if c.CircleMethod == nil {
		return detection.CircleEnclosing
	}
	m, err := detection.ParseCircleMethod(*c.CircleMethod)
	if err != nil {
		return detection.CircleEnclosing
	}
	return m
}

// GetWorkers returns the workers value or the default.
func (c *PipelineConfig) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}

// GetGrayModel returns the parsed gray_model or the default.
func (c *PipelineConfig) GetGrayModel() imaging.GrayModel {
	if c.GrayModel == nil {
		return imaging.GrayLuma
	}
	m, err := imaging.ParseGrayModel(*c.GrayModel)
	if err != nil {
		return imaging.GrayLuma
	}
	return m
}
