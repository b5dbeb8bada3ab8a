package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/edge-probe-mcp/internal/detection"
	"github.com/ironsheep/edge-probe-mcp/internal/imaging"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()

	if cfg.KernelLength == nil || *cfg.KernelLength != 3 {
		t.Errorf("Expected KernelLength 3, got %v", cfg.KernelLength)
	}
	if cfg.Persistence == nil || *cfg.Persistence != 10 {
		t.Errorf("Expected Persistence 10, got %v", cfg.Persistence)
	}
	if cfg.GrayModel == nil || *cfg.GrayModel != "luma" {
		t.Errorf("Expected GrayModel luma, got %v", cfg.GrayModel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}

	// An empty config answers with the same defaults through the getters.
	empty := EmptyPipelineConfig()
	if empty.GetKernelLength() != cfg.GetKernelLength() {
		t.Errorf("GetKernelLength() = %d, want %d", empty.GetKernelLength(), cfg.GetKernelLength())
	}
	if empty.GetPersistence() != cfg.GetPersistence() {
		t.Errorf("GetPersistence() = %f, want %f", empty.GetPersistence(), cfg.GetPersistence())
	}
	if empty.GetOffsetCount() != 5 || empty.GetOffsetSpacing() != 5 {
		t.Errorf("offset defaults: got %d/%f", empty.GetOffsetCount(), empty.GetOffsetSpacing())
	}
	if empty.GetAngleStep() != 10 {
		t.Errorf("GetAngleStep() = %f, want 10", empty.GetAngleStep())
	}
	if empty.GetMinFitPoints() != detection.MinFitPoints {
		t.Errorf("GetMinFitPoints() = %d, want %d", empty.GetMinFitPoints(), detection.MinFitPoints)
	}
	if empty.GetWorkers() != 1 {
		t.Errorf("GetWorkers() = %d, want 1", empty.GetWorkers())
	}
	if empty.GetGrayModel() != imaging.GrayLuma {
		t.Errorf("GetGrayModel() = %v, want luma", empty.GetGrayModel())
	}
	if empty.GetCircleMethod() != detection.CircleEnclosing {
		t.Errorf("GetCircleMethod() = %v, want enclosing", empty.GetCircleMethod())
	}
}

func TestLoadPipelineConfig(t *testing.T) {
	path := writeConfig(t, "pipeline.json", `{
  "kernel_length": 5,
  "persistence": 25.5,
  "angle_step": 7,
  "workers": 4,
  "gray_model": "lightness",
  "circle_method": "least_squares"
}`)

	cfg, err := LoadPipelineConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetKernelLength() != 5 {
		t.Errorf("GetKernelLength() = %d, want 5", cfg.GetKernelLength())
	}
	if cfg.GetPersistence() != 25.5 {
		t.Errorf("GetPersistence() = %f, want 25.5", cfg.GetPersistence())
	}
	if cfg.GetAngleStep() != 7 {
		t.Errorf("GetAngleStep() = %f, want 7", cfg.GetAngleStep())
	}
	if cfg.GetWorkers() != 4 {
		t.Errorf("GetWorkers() = %d, want 4", cfg.GetWorkers())
	}
	if cfg.GetGrayModel() != imaging.GrayLightness {
		t.Errorf("GetGrayModel() = %v, want lightness", cfg.GetGrayModel())
	}
	if cfg.GetCircleMethod() != detection.CircleLeastSquares {
		t.Errorf("GetCircleMethod() = %v, want least_squares", cfg.GetCircleMethod())
	}

	// Omitted fields keep their defaults.
	if cfg.OffsetCount != nil {
		t.Errorf("OffsetCount should be unset, got %v", *cfg.OffsetCount)
	}
	if cfg.GetOffsetCount() != DefaultOffsetCount {
		t.Errorf("GetOffsetCount() = %d, want %d", cfg.GetOffsetCount(), DefaultOffsetCount)
	}
}

func TestLoadPipelineConfig_KernelLengthNotValidated(t *testing.T) {
	// Even and tiny kernels mean "no smoothing" and must load.
	for _, body := range []string{`{"kernel_length": 4}`, `{"kernel_length": 0}`, `{"kernel_length": -2}`} {
		path := writeConfig(t, "k.json", body)
		if _, err := LoadPipelineConfig(path); err != nil {
			t.Errorf("%s: unexpected error %v", body, err)
		}
	}
}

func TestLoadPipelineConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "cfg.json", `{"persistence": }`, "parse"},
		{"negative persistence", "cfg.json", `{"persistence": -1}`, "persistence"},
		{"zero spacing", "cfg.json", `{"offset_spacing": 0}`, "offset_spacing"},
		{"angle step too large", "cfg.json", `{"angle_step": 400}`, "angle_step"},
		{"min fit points", "cfg.json", `{"min_fit_points": 1}`, "min_fit_points"},
		{"negative workers", "cfg.json", `{"workers": -3}`, "workers"},
		{"gray model", "cfg.json", `{"gray_model": "hsv"}`, "gray_model"},
		{"circle method", "cfg.json", `{"circle_method": "hough"}`, "circle_method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadPipelineConfig(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadPipelineConfig_MissingAndLarge(t *testing.T) {
	if _, err := LoadPipelineConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	big := `{"workers": 1, "pad": "` + strings.Repeat("x", maxFileSize) + `"}`
	path := writeConfig(t, "big.json", big)
	_, err := LoadPipelineConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unset variable: %v", err)
	}
	if cfg.GetKernelLength() != DefaultKernelLength {
		t.Errorf("GetKernelLength() = %d, want default", cfg.GetKernelLength())
	}

	path := writeConfig(t, "env.json", `{"persistence": 3}`)
	t.Setenv(EnvConfigPath, path)
	cfg, err = LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.GetPersistence() != 3 {
		t.Errorf("GetPersistence() = %f, want 3", cfg.GetPersistence())
	}
}
