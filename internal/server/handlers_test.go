package server

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ironsheep/edge-probe-mcp/internal/config"
)

// writeTestImage encodes img as PNG in a temp dir and returns its path.
func writeTestImage(t *testing.T, img image.Image) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "probe.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// createEdgeImage is dark left of column edge and bright from it on.
func createEdgeImage(t *testing.T, width, height, edge int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < edge {
				img.Set(x, y, color.RGBA{20, 20, 20, 255})
			} else {
				img.Set(x, y, color.RGBA{230, 230, 230, 255})
			}
		}
	}
	return writeTestImage(t, img)
}

// createDiscImage draws a bright disc on a dark background.
func createDiscImage(t *testing.T, width, height, cx, cy, r int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, color.RGBA{200, 200, 200, 255})
			} else {
				img.Set(x, y, color.RGBA{30, 30, 30, 255})
			}
		}
	}
	return writeTestImage(t, img)
}

func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()
	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleToolsCall(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleToolsCall returned nil")
	}
	return resp
}

// decodeResult unpacks the JSON text content of a successful tool call.
func decodeResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content: got %#v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("result is not JSON: %v\n%s", err, text)
	}
}

func wantToolError(t *testing.T, resp *MCPResponse, contains string) {
	t.Helper()
	if resp.Error == nil {
		t.Fatal("expected a tool error")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("error code: got %d, want -32000", resp.Error.Code)
	}
	data, _ := resp.Error.Data.(string)
	if !strings.Contains(data, contains) {
		t.Errorf("error data %q does not mention %q", data, contains)
	}
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := New()
	path := createEdgeImage(t, 100, 80, 50)

	var info struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Format string `json:"format"`
	}
	decodeResult(t, callTool(t, s, "image_load", map[string]interface{}{"path": path}), &info)

	if info.Width != 100 || info.Height != 80 {
		t.Errorf("size: got %dx%d, want 100x80", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("format: got %q, want png", info.Format)
	}
}

func TestHandleToolsCall_ImageDimensions(t *testing.T) {
	s := New()
	path := createEdgeImage(t, 200, 150, 10)

	var dims struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	decodeResult(t, callTool(t, s, "image_dimensions", map[string]interface{}{"path": path}), &dims)

	if dims.Width != 200 || dims.Height != 150 {
		t.Errorf("size: got %dx%d, want 200x150", dims.Width, dims.Height)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := New()
	resp := callTool(t, s, "image_load", map[string]interface{}{"path": "/nonexistent/image.png"})
	if resp.Error == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := New()
	wantToolError(t, callTool(t, s, "image_crop", map[string]interface{}{}), "unknown tool")
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New()
	resp := s.handleToolsCall(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`not json`),
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("expected -32602, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_ProbeProfileSegment(t *testing.T) {
	s := New()
	path := createEdgeImage(t, 100, 60, 50)

	var res ProfileResult
	decodeResult(t, callTool(t, s, "probe_profile", map[string]interface{}{
		"path": path,
		"x1":   20, "y1": 30, "x2": 80, "y2": 30,
		"kernel_length": 3,
		"persistence":   10,
	}), &res)

	if res.Shape != "segment" {
		t.Errorf("shape: got %q, want segment", res.Shape)
	}
	if res.Samples != 61 || len(res.Raw) != 61 || len(res.Smoothed) != 61 || len(res.Positions) != 61 {
		t.Fatalf("sample counts: samples=%d raw=%d smoothed=%d positions=%d",
			res.Samples, len(res.Raw), len(res.Smoothed), len(res.Positions))
	}
	if res.Raw[0] != 20 || res.Raw[60] != 230 {
		t.Errorf("raw ends: got %v..%v, want 20..230", res.Raw[0], res.Raw[60])
	}
	if res.Raw[29] != 20 || res.Smoothed[29] == 20 {
		t.Error("smoothing did not soften the transition")
	}
	if len(res.Edges) != 1 {
		t.Fatalf("edges: got %d, want 1", len(res.Edges))
	}
	if x := res.Edges[0].Pos.X; x != 49 && x != 50 {
		t.Errorf("edge X: got %d, want 49 or 50", x)
	}
	if res.Edges[0].Direction.String() != "rising" {
		t.Errorf("direction: got %v, want rising", res.Edges[0].Direction)
	}
	if res.Measurement == nil || res.Measurement.DistancePixels != 60 {
		t.Errorf("measurement: got %+v", res.Measurement)
	}
	if len(res.Extrema) < 2 || res.Extrema[0] != 0 {
		t.Errorf("extrema: got %v", res.Extrema)
	}
}

func TestHandleToolsCall_ProbeProfileArc(t *testing.T) {
	s := New()
	path := createDiscImage(t, 100, 100, 50, 50, 20)

	var res ProfileResult
	decodeResult(t, callTool(t, s, "probe_profile", map[string]interface{}{
		"path":      path,
		"shape":     "arc",
		"center_x":  50,
		"center_y":  50,
		"radius":    10,
		"sweep_deg": 360,
	}), &res)

	// The whole arc lies inside the disc: a flat profile with no edges.
	if res.Samples == 0 {
		t.Fatal("arc produced no samples")
	}
	if len(res.Edges) != 0 {
		t.Errorf("edges: got %d, want 0", len(res.Edges))
	}
	if res.Measurement != nil {
		t.Error("arcs have no segment measurement")
	}
}

func TestHandleToolsCall_ProbeProfileErrors(t *testing.T) {
	s := New()
	path := createEdgeImage(t, 50, 50, 25)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"zero length", map[string]interface{}{"path": path, "x1": 5, "y1": 5, "x2": 5, "y2": 5}, "invalid probe"},
		{"off grid", map[string]interface{}{"path": path, "x1": 100, "y1": 100, "x2": 120, "y2": 100}, "outside"},
		{"bad shape", map[string]interface{}{"path": path, "shape": "spiral"}, "shape"},
		{"arc radius", map[string]interface{}{"path": path, "shape": "arc"}, "radius"},
		{"arc crossing border", map[string]interface{}{"path": path, "shape": "arc", "center_x": 2, "center_y": 25, "radius": 10, "start_deg": 90, "sweep_deg": 180}, "re-enters"},
		{"negative persistence", map[string]interface{}{"path": path, "x2": 10, "persistence": -1}, "persistence"},
		{"bad gray model", map[string]interface{}{"path": path, "x2": 10, "gray_model": "hsv"}, "gray model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantToolError(t, callTool(t, s, "probe_profile", tt.args), tt.want)
		})
	}
}

func TestHandleToolsCall_BoundaryLine(t *testing.T) {
	s := New()
	path := createEdgeImage(t, 100, 100, 50)

	var res BoundaryResult
	decodeResult(t, callTool(t, s, "boundary_line", map[string]interface{}{
		"path": path,
		"x1":   20, "y1": 50, "x2": 80, "y2": 50,
		"direction":    "rising",
		"offset_count": 4,
		"workers":      3,
	}), &res)

	if _, err := uuid.Parse(res.RunID); err != nil {
		t.Errorf("run_id %q is not a UUID: %v", res.RunID, err)
	}
	if !res.Fitted || res.Line == nil {
		t.Fatalf("line not fitted: %s", res.Reason)
	}
	if res.ProbeCount != 9 || len(res.Probes) != 9 {
		t.Errorf("probe count: got %d/%d, want 9", res.ProbeCount, len(res.Probes))
	}
	if res.EdgeCount != 9 || len(res.Points) != 9 {
		t.Errorf("edges: got %d, points %d, want 9", res.EdgeCount, len(res.Points))
	}
	if res.Line.AngleDegrees < 89.999 || res.Line.AngleDegrees > 90.001 {
		t.Errorf("angle: got %v, want 90", res.Line.AngleDegrees)
	}
	if res.Line.Point.X < 49 || res.Line.Point.X > 50 {
		t.Errorf("line X: got %v, want 49..50", res.Line.Point.X)
	}
	if res.Shape != "line" {
		t.Errorf("shape: got %q", res.Shape)
	}
}

func TestHandleToolsCall_BoundaryLineInsufficient(t *testing.T) {
	s := New()
	path := createEdgeImage(t, 100, 100, 50)

	var res BoundaryResult
	decodeResult(t, callTool(t, s, "boundary_line", map[string]interface{}{
		"path": path,
		"x1":   20, "y1": 50, "x2": 80, "y2": 50,
		"direction": "falling",
	}), &res)

	if res.Fitted {
		t.Error("no falling edges exist, fit should fail")
	}
	if !strings.Contains(res.Reason, "insufficient") {
		t.Errorf("reason: got %q", res.Reason)
	}
	if res.Line != nil || res.Circle != nil {
		t.Error("unfitted result carries a shape")
	}
	if res.ProbeCount != 11 {
		t.Errorf("probe count with config defaults: got %d, want 11", res.ProbeCount)
	}
}

func TestHandleToolsCall_BoundaryLineErrors(t *testing.T) {
	s := New()
	path := createEdgeImage(t, 100, 100, 50)

	wantToolError(t, callTool(t, s, "boundary_line", map[string]interface{}{
		"path": path, "x1": 20, "y1": 50, "x2": 80, "y2": 50,
	}), "direction")

	wantToolError(t, callTool(t, s, "boundary_line", map[string]interface{}{
		"path": path, "x1": 20, "y1": 50, "x2": 20, "y2": 50, "direction": "rising",
	}), "zero length")
}

func TestHandleToolsCall_BoundaryLineProbeLimits(t *testing.T) {
	s := New()
	path := createEdgeImage(t, 100, 100, 50)
	base := func(extra map[string]interface{}) map[string]interface{} {
		args := map[string]interface{}{
			"path": path, "x1": 20, "y1": 50, "x2": 80, "y2": 50, "direction": "rising",
		}
		for k, v := range extra {
			args[k] = v
		}
		return args
	}

	tests := []struct {
		name  string
		extra map[string]interface{}
		want  string
	}{
		{"negative offset count", map[string]interface{}{"offset_count": -1}, "offset_count must be non-negative"},
		{"zero spacing", map[string]interface{}{"offset_spacing": 0}, "offset_spacing must be positive"},
		{"negative spacing", map[string]interface{}{"offset_spacing": -2.5}, "offset_spacing must be positive"},
		{"too many probes", map[string]interface{}{"offset_count": 720}, "more than 1440 probes"},
		{"huge offset count", map[string]interface{}{"offset_count": 1 << 40}, "more than 1440 probes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantToolError(t, callTool(t, s, "boundary_line", base(tt.extra)), tt.want)
		})
	}
}

func TestHandleToolsCall_BoundaryCircleProbeLimits(t *testing.T) {
	s := New()
	path := createDiscImage(t, 100, 100, 50, 50, 20)
	base := func(extra map[string]interface{}) map[string]interface{} {
		args := map[string]interface{}{
			"path": path, "center_x": 50, "center_y": 50, "ref_x": 85, "ref_y": 50, "direction": "falling",
		}
		for k, v := range extra {
			args[k] = v
		}
		return args
	}

	tests := []struct {
		name  string
		extra map[string]interface{}
		want  string
	}{
		{"tiny step full sweep", map[string]interface{}{"angle_step": 0.0001}, "more than 1440 probes"},
		{"zero step", map[string]interface{}{"angle_step": 0}, "angle_step must be in (0, 360]"},
		{"negative step", map[string]interface{}{"angle_step": -10}, "angle_step must be in (0, 360]"},
		{"step above a turn", map[string]interface{}{"angle_step": 400}, "angle_step must be in (0, 360]"},
		{"negative count", map[string]interface{}{"count": -3}, "count must be non-negative"},
		{"count too large", map[string]interface{}{"angle_step": 1, "count": 5000}, "more than 1440 probes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantToolError(t, callTool(t, s, "boundary_circle", base(tt.extra)), tt.want)
		})
	}

	// A quarter-degree full sweep is the largest fan accepted.
	var res BoundaryResult
	decodeResult(t, callTool(t, s, "boundary_circle", base(map[string]interface{}{
		"angle_step": 0.25, "persistence": 20, "workers": 4,
	})), &res)
	if res.ProbeCount != 1440 {
		t.Errorf("probe count: got %d, want 1440", res.ProbeCount)
	}
}

func TestHandleToolsCall_BoundaryCircle(t *testing.T) {
	s := New()
	path := createDiscImage(t, 100, 100, 50, 50, 20)

	for _, method := range []string{"enclosing", "least_squares"} {
		t.Run(method, func(t *testing.T) {
			var res BoundaryResult
			decodeResult(t, callTool(t, s, "boundary_circle", map[string]interface{}{
				"path":     path,
				"center_x": 50, "center_y": 50,
				"ref_x": 85, "ref_y": 50,
				"direction":     "falling",
				"angle_step":    30,
				"circle_method": method,
				"persistence":   20,
			}), &res)

			if !res.Fitted || res.Circle == nil {
				t.Fatalf("circle not fitted: %s", res.Reason)
			}
			if res.ProbeCount != 12 {
				t.Errorf("probe count: got %d, want 12", res.ProbeCount)
			}
			if string(res.Circle.Method) != method {
				t.Errorf("method: got %q, want %q", res.Circle.Method, method)
			}
			if res.Circle.Radius < 18.5 || res.Circle.Radius > 21.5 {
				t.Errorf("radius: got %v, want ~20", res.Circle.Radius)
			}
		})
	}
}

func TestHandleToolsCall_BoundaryCircleErrors(t *testing.T) {
	s := New()
	path := createDiscImage(t, 60, 60, 30, 30, 10)

	wantToolError(t, callTool(t, s, "boundary_circle", map[string]interface{}{
		"path": path, "center_x": 30, "center_y": 30, "ref_x": 30, "ref_y": 30, "direction": "falling",
	}), "reference point")

	wantToolError(t, callTool(t, s, "boundary_circle", map[string]interface{}{
		"path": path, "center_x": 30, "center_y": 30, "ref_x": 50, "ref_y": 30,
		"direction": "falling", "circle_method": "hough",
	}), "circle method")
}

func TestHandleToolsCall_ConfigDefaults(t *testing.T) {
	cfg := config.EmptyPipelineConfig()
	count, step := 2, 90.0
	cfg.OffsetCount = &count
	cfg.AngleStep = &step
	s := NewWithConfig(cfg)

	line := createEdgeImage(t, 100, 100, 50)
	var res BoundaryResult
	decodeResult(t, callTool(t, s, "boundary_line", map[string]interface{}{
		"path": line, "x1": 20, "y1": 50, "x2": 80, "y2": 50, "direction": "rising",
	}), &res)
	if res.ProbeCount != 5 {
		t.Errorf("offset_count from config: got %d probes, want 5", res.ProbeCount)
	}

	disc := createDiscImage(t, 100, 100, 50, 50, 20)
	decodeResult(t, callTool(t, s, "boundary_circle", map[string]interface{}{
		"path": disc, "center_x": 50, "center_y": 50, "ref_x": 80, "ref_y": 50, "direction": "falling",
	}), &res)
	if res.ProbeCount != 4 {
		t.Errorf("angle_step from config: got %d probes, want 4", res.ProbeCount)
	}
}

func TestExecuteTool_AllTools(t *testing.T) {
	s := New()
	path := createEdgeImage(t, 40, 40, 20)

	args := map[string]string{
		"image_load":       `{"path":"` + path + `"}`,
		"image_dimensions": `{"path":"` + path + `"}`,
		"probe_profile":    `{"path":"` + path + `","x1":5,"y1":20,"x2":35,"y2":20}`,
		"boundary_line":    `{"path":"` + path + `","x1":5,"y1":20,"x2":35,"y2":20,"direction":"rising"}`,
		"boundary_circle":  `{"path":"` + path + `","center_x":20,"center_y":20,"ref_x":30,"ref_y":20,"direction":"rising"}`,
	}

	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			a, ok := args[tool.Name]
			if !ok {
				t.Fatalf("no arguments for tool %s", tool.Name)
			}
			if _, err := s.executeTool(tool.Name, json.RawMessage(a)); err != nil {
				t.Errorf("executeTool(%s) failed: %v", tool.Name, err)
			}
		})
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := New()
	for _, tool := range GetToolDefinitions() {
		if _, err := s.executeTool(tool.Name, json.RawMessage(`{bad`)); err == nil {
			t.Errorf("%s accepted invalid JSON", tool.Name)
		}
	}
}
