package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func intProperty(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": desc}
}

func numberProperty(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": desc}
}

// pipelineProperties are the smoothing and simplification parameters shared
// by all probing tools.
func pipelineProperties(props map[string]interface{}) map[string]interface{} {
	props["kernel_length"] = intProperty("Gaussian kernel length applied before sampling. Odd values >= 3 blur; even values or values <= 1 disable smoothing. Default from config (3)")
	props["persistence"] = numberProperty("Minimum intensity difference for an extremum pair to count as a real transition. Default from config (10)")
	props["gray_model"] = map[string]interface{}{
		"type":        "string",
		"description": "How color is reduced to intensity. Default from config (luma)",
		"enum":        []string{"luma", "lightness"},
	}
	return props
}

func directionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Which transitions to fit along each probe: rising (dark to bright) or falling (bright to dark)",
		"enum":        []string{"rising", "falling"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. Subsequent probe calls on the same path reuse the decoded image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Single Probe
		{
			Name:        "probe_profile",
			Description: "Read the intensity profile along one probe (a segment or an arc) and locate its edges. Returns raw and smoothed intensities, the surviving extrema and every refined edge with its direction.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": pipelineProperties(map[string]interface{}{
					"path": pathProperty(),
					"shape": map[string]interface{}{
						"type":        "string",
						"description": "Probe shape. Default segment",
						"enum":        []string{"segment", "arc"},
						"default":     "segment",
					},
					"x1":        intProperty("Segment start X (0-based)"),
					"y1":        intProperty("Segment start Y (0-based)"),
					"x2":        intProperty("Segment end X"),
					"y2":        intProperty("Segment end Y"),
					"center_x":  intProperty("Arc center X"),
					"center_y":  intProperty("Arc center Y"),
					"radius":    numberProperty("Arc radius in pixels"),
					"start_deg": numberProperty("Arc start angle in degrees, from +X towards +Y"),
					"sweep_deg": numberProperty("Arc sweep in degrees; negative sweeps run counterclockwise"),
				}),
				"required": []string{"path"},
			},
		},

		// Boundary Fits
		{
			Name:        "boundary_line",
			Description: "Fit a straight boundary. Runs 2N+1 parallel probes offset from the base segment, keeps the last edge of the requested direction on each and fits a line through them.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": pipelineProperties(map[string]interface{}{
					"path":           pathProperty(),
					"x1":             intProperty("Base probe start X"),
					"y1":             intProperty("Base probe start Y"),
					"x2":             intProperty("Base probe end X"),
					"y2":             intProperty("Base probe end Y"),
					"direction":      directionProperty(),
					"offset_count":   intProperty("N: probes on each side of the base probe (2N+1 <= 1440). Default from config (5)"),
					"offset_spacing": numberProperty("Distance in pixels between neighbouring probes (> 0). Default from config (5)"),
					"min_fit_points": intProperty("Probes that must contribute an edge before a line is fitted (>= 2). Default 3"),
					"workers":        intProperty("Probes processed concurrently. Default from config (1)"),
					"keep_all_edges": map[string]interface{}{
						"type":        "boolean",
						"description": "Report every edge per probe instead of only the last one. The fit still uses the last edge",
					},
				}),
				"required": []string{"path", "x1", "y1", "x2", "y2", "direction"},
			},
		},
		{
			Name:        "boundary_circle",
			Description: "Fit a round boundary. Runs probes fanning out from a center point, keeps the last edge of the requested direction on each and fits a circle through them.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": pipelineProperties(map[string]interface{}{
					"path":           pathProperty(),
					"center_x":       intProperty("Fan center X"),
					"center_y":       intProperty("Fan center Y"),
					"ref_x":          intProperty("End X of the first probe; sets probe length and base angle"),
					"ref_y":          intProperty("End Y of the first probe"),
					"direction":      directionProperty(),
					"angle_step":     numberProperty("Degrees between probes, in (0, 360]. Default from config (10)"),
					"count":          intProperty("Probes after the first. 0 sweeps the full circle. At most 1440 probes in total"),
					"circle_method":  map[string]interface{}{"type": "string", "enum": []string{"enclosing", "least_squares"}, "description": "enclosing: smallest circle containing every edge point. least_squares: algebraic best fit. Default from config (enclosing)"},
					"min_fit_points": intProperty("Probes that must contribute an edge before a circle is fitted (>= 2). Default 3"),
					"workers":        intProperty("Probes processed concurrently. Default from config (1)"),
					"keep_all_edges": map[string]interface{}{
						"type":        "boolean",
						"description": "Report every edge per probe instead of only the last one. The fit still uses the last edge",
					},
				}),
				"required": []string{"path", "center_x", "center_y", "ref_x", "ref_y", "direction"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
