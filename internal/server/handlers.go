package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ironsheep/edge-probe-mcp/internal/detection"
	"github.com/ironsheep/edge-probe-mcp/internal/imaging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "boundary_line").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
// A boundary tool that could not find enough edges is not an error; its
// result carries "fitted": false and the reason.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.debugf("tool %s failed: %v", params.Name, err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Fills unset parameters from the pipeline config
//  3. Loads the image session (grid plus blur cache) for the path
//  4. Runs the probe pipeline and, for boundary tools, the fit
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Single Probe
	case "probe_profile":
		return s.handleProbeProfile(args)

	// Boundary Fits
	case "boundary_line":
		return s.handleBoundaryLine(args)
	case "boundary_circle":
		return s.handleBoundaryCircle(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Shared Pipeline Parameters ===

// pipelineArgs are the parameters every probing tool accepts. Pointer
// fields distinguish "not given" from an explicit zero, which is a valid
// kernel length and persistence.
type pipelineArgs struct {
	Path         string   `json:"path"`
	KernelLength *int     `json:"kernel_length"`
	Persistence  *float64 `json:"persistence"`
	GrayModel    string   `json:"gray_model"`
}

type pipelineParams struct {
	kernel      int
	persistence float64
	session     *imaging.Smoother
}

func (s *Server) resolvePipeline(a pipelineArgs) (*pipelineParams, error) {
	p := &pipelineParams{
		kernel:      s.cfg.GetKernelLength(),
		persistence: s.cfg.GetPersistence(),
	}
	if a.KernelLength != nil {
		p.kernel = *a.KernelLength
	}
	if a.Persistence != nil {
		p.persistence = *a.Persistence
	}
	if p.persistence < 0 {
		return nil, fmt.Errorf("%w: persistence must be non-negative, got %v", detection.ErrInvalidParameter, p.persistence)
	}

	model := s.cfg.GetGrayModel()
	if a.GrayModel != "" {
		m, err := imaging.ParseGrayModel(a.GrayModel)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", detection.ErrInvalidParameter, err)
		}
		model = m
	}

	session, err := s.cache.Session(a.Path, model)
	if err != nil {
		return nil, err
	}
	p.session = session
	return p, nil
}

// === Single Probe Handler ===

type probeProfileArgs struct {
	pipelineArgs
	Shape string `json:"shape"`

	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`

	CenterX  int     `json:"center_x"`
	CenterY  int     `json:"center_y"`
	Radius   float64 `json:"radius"`
	StartDeg float64 `json:"start_deg"`
	SweepDeg float64 `json:"sweep_deg"`
}

// ProfileResult is the outcome of probe_profile.
type ProfileResult struct {
	Shape        string                      `json:"shape"`
	KernelLength int                         `json:"kernel_length"`
	Persistence  float64                     `json:"persistence"`
	Samples      int                         `json:"samples"`
	Positions    []imaging.Point             `json:"positions"`
	Raw          []float64                   `json:"raw"`
	Smoothed     []float64                   `json:"smoothed"`
	Extrema      detection.ExtremaSet        `json:"extrema"`
	Pairs        []detection.PersistencePair `json:"pairs"`
	Edges        []detection.EdgePoint       `json:"edges"`
	Stats        detection.RefineStats       `json:"stats"`
	Measurement  *imaging.DistanceResult     `json:"measurement,omitempty"`
}

func (s *Server) handleProbeProfile(args json.RawMessage) (interface{}, error) {
	var a probeProfileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Shape == "" {
		a.Shape = "segment"
	}

	var probe imaging.Probe
	var segment *imaging.Segment
	switch a.Shape {
	case "segment":
		seg := imaging.Segment{
			Start: imaging.Point{X: a.X1, Y: a.Y1},
			End:   imaging.Point{X: a.X2, Y: a.Y2},
		}
		probe, segment = seg, &seg
	case "arc":
		if a.Radius <= 0 {
			return nil, fmt.Errorf("%w: arc radius must be positive, got %v", detection.ErrInvalidParameter, a.Radius)
		}
		probe = imaging.Arc{
			Center:   imaging.Point{X: a.CenterX, Y: a.CenterY},
			Radius:   a.Radius,
			StartDeg: a.StartDeg,
			SweepDeg: a.SweepDeg,
		}
	default:
		return nil, fmt.Errorf("%w: unknown probe shape %q", detection.ErrInvalidParameter, a.Shape)
	}

	p, err := s.resolvePipeline(a.pipelineArgs)
	if err != nil {
		return nil, err
	}

	analysis, err := detection.AnalyzeProfile(p.session.Grid(p.kernel), probe, p.persistence, 0)
	if err != nil {
		return nil, err
	}
	raw, err := imaging.SampleProfile(p.session.Source(), probe)
	if err != nil {
		return nil, err
	}

	smoothed := analysis.Profile.Values()
	result := &ProfileResult{
		Shape:        a.Shape,
		KernelLength: p.kernel,
		Persistence:  p.persistence,
		Samples:      len(analysis.Profile),
		Positions:    analysis.Profile.Positions(),
		Raw:          raw.Values(),
		Smoothed:     smoothed,
		Extrema:      analysis.Extrema,
		Pairs:        detection.Pairs(smoothed),
		Edges:        analysis.Edges,
		Stats:        analysis.Stats,
	}
	if segment != nil {
		result.Measurement = imaging.MeasureProbe(*segment, p.session.Source())
	}
	return result, nil
}

// === Boundary Fit Handlers ===

type boundaryArgs struct {
	pipelineArgs
	Direction    string `json:"direction"`
	MinFitPoints int    `json:"min_fit_points"`
	Workers      int    `json:"workers"`
	KeepAllEdges bool   `json:"keep_all_edges"`
}

// BoundaryResult is the outcome of a boundary tool: the aggregate run over
// all probes plus the fitted shape, if one could be fitted.
type BoundaryResult struct {
	RunID     string              `json:"run_id"`
	Shape     detection.Shape     `json:"shape"`
	Direction detection.Direction `json:"direction"`

	Fitted bool                 `json:"fitted"`
	Reason string               `json:"reason,omitempty"`
	Line   *detection.LineFit   `json:"line,omitempty"`
	Circle *detection.CircleFit `json:"circle,omitempty"`
	Points []detection.Vec      `json:"points"`

	ProbeCount   int                     `json:"probe_count"`
	EdgeCount    int                     `json:"edge_count"`
	KernelLength int                     `json:"kernel_length"`
	Persistence  float64                 `json:"persistence"`
	Probes       []detection.ProbeResult `json:"probes"`
	Failures     []*detection.ProbeError `json:"failures,omitempty"`
}

func (s *Server) runBoundary(a boundaryArgs, probes []imaging.Segment, req detection.FitRequest) (*BoundaryResult, error) {
	dir, err := detection.ParseDirection(a.Direction)
	if err != nil {
		return nil, err
	}
	req.Direction = dir

	req.MinPoints = s.cfg.GetMinFitPoints()
	if a.MinFitPoints != 0 {
		req.MinPoints = a.MinFitPoints
	}

	p, err := s.resolvePipeline(a.pipelineArgs)
	if err != nil {
		return nil, err
	}

	workers := s.cfg.GetWorkers()
	if a.Workers > 0 {
		workers = a.Workers
	}

	agg := detection.NewAggregator(p.session, detection.Options{
		KernelLength: p.kernel,
		Persistence:  p.persistence,
		Workers:      workers,
		KeepAllEdges: a.KeepAllEdges,
	})
	run, err := agg.Run(probes)
	if err != nil {
		return nil, err
	}

	result := &BoundaryResult{
		RunID:        uuid.NewString(),
		Shape:        req.Shape,
		Direction:    dir,
		ProbeCount:   len(run.Probes),
		EdgeCount:    run.EdgeCount(),
		KernelLength: run.KernelLength,
		Persistence:  run.Persistence,
		Probes:       run.Probes,
		Failures:     run.Failures,
	}

	fit, err := detection.Fit(run, req)
	switch {
	case errors.Is(err, detection.ErrInsufficientFitData):
		result.Reason = err.Error()
		result.Points = detection.CollectPoints(run, dir)
	case err != nil:
		return nil, err
	default:
		result.Fitted = true
		result.Line = fit.Line
		result.Circle = fit.Circle
		result.Points = fit.Points
	}

	s.debugf("run %s: %s %s, %d probes, %d edges, %d failures, fitted=%v",
		result.RunID, req.Shape, dir, result.ProbeCount, result.EdgeCount, len(result.Failures), result.Fitted)
	return result, nil
}

type boundaryLineArgs struct {
	boundaryArgs
	X1            int      `json:"x1"`
	Y1            int      `json:"y1"`
	X2            int      `json:"x2"`
	Y2            int      `json:"y2"`
	OffsetCount   *int     `json:"offset_count"`
	OffsetSpacing *float64 `json:"offset_spacing"`
}

func (s *Server) handleBoundaryLine(args json.RawMessage) (interface{}, error) {
	var a boundaryLineArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	n := s.cfg.GetOffsetCount()
	if a.OffsetCount != nil {
		n = *a.OffsetCount
	}
	spacing := s.cfg.GetOffsetSpacing()
	if a.OffsetSpacing != nil {
		spacing = *a.OffsetSpacing
	}

	if n < 0 {
		return nil, fmt.Errorf("%s: %w: offset_count must be non-negative, got %d", detection.StageGenerate, detection.ErrInvalidParameter, n)
	}
	if spacing <= 0 {
		return nil, fmt.Errorf("%s: %w: offset_spacing must be positive, got %v", detection.StageGenerate, detection.ErrInvalidParameter, spacing)
	}
	if total := 2*n + 1; n > detection.MaxProbes || total > detection.MaxProbes {
		return nil, fmt.Errorf("%s: %w: offset_count %d gives more than %d probes", detection.StageGenerate, detection.ErrInvalidParameter, n, detection.MaxProbes)
	}

	base := imaging.Segment{
		Start: imaging.Point{X: a.X1, Y: a.Y1},
		End:   imaging.Point{X: a.X2, Y: a.Y2},
	}
	if base.IsDegenerate() {
		return nil, fmt.Errorf("%s: %w: base probe has zero length", detection.StageGenerate, detection.ErrInvalidProbe)
	}

	probes := detection.ParallelProbes(base, n, spacing)
	return s.runBoundary(a.boundaryArgs, probes, detection.FitRequest{Shape: detection.ShapeLine})
}

type boundaryCircleArgs struct {
	boundaryArgs
	CenterX      int      `json:"center_x"`
	CenterY      int      `json:"center_y"`
	RefX         int      `json:"ref_x"`
	RefY         int      `json:"ref_y"`
	AngleStep    *float64 `json:"angle_step"`
	Count        int      `json:"count"`
	CircleMethod string   `json:"circle_method"`
}

func (s *Server) handleBoundaryCircle(args json.RawMessage) (interface{}, error) {
	var a boundaryCircleArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	step := s.cfg.GetAngleStep()
	if a.AngleStep != nil {
		step = *a.AngleStep
	}

	if step <= 0 || step > 360 {
		return nil, fmt.Errorf("%s: %w: angle_step must be in (0, 360], got %v", detection.StageGenerate, detection.ErrInvalidParameter, step)
	}
	if a.Count < 0 {
		return nil, fmt.Errorf("%s: %w: count must be non-negative, got %d", detection.StageGenerate, detection.ErrInvalidParameter, a.Count)
	}
	if total := detection.RadialProbeCount(step, a.Count); a.Count >= detection.MaxProbes || total > detection.MaxProbes {
		return nil, fmt.Errorf("%s: %w: angle_step %v and count %d give more than %d probes", detection.StageGenerate, detection.ErrInvalidParameter, step, a.Count, detection.MaxProbes)
	}

	method := s.cfg.GetCircleMethod()
	if a.CircleMethod != "" {
		m, err := detection.ParseCircleMethod(a.CircleMethod)
		if err != nil {
			return nil, err
		}
		method = m
	}

	center := imaging.Point{X: a.CenterX, Y: a.CenterY}
	ref := imaging.Point{X: a.RefX, Y: a.RefY}
	if center == ref {
		return nil, fmt.Errorf("%s: %w: reference point equals center", detection.StageGenerate, detection.ErrInvalidProbe)
	}

	probes := detection.RadialProbes(center, ref, step, a.Count)
	return s.runBoundary(a.boundaryArgs, probes, detection.FitRequest{
		Shape:        detection.ShapeCircle,
		CircleMethod: method,
	})
}
