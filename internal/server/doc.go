// Package server implements the MCP (Model Context Protocol) server for
// sub-pixel boundary probing.
//
// This package provides a JSON-RPC 2.0 server that exposes the detection
// pipeline through the MCP protocol, so a client can locate edges along
// probes and fit straight or round boundaries through them.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Single Probe:
//   - probe_profile: Raw and smoothed profile, extrema and edges along a
//     segment or arc
//
// Boundary Fits:
//   - boundary_line: Parallel probes around a base segment, line fit
//   - boundary_circle: Radial probes from a center, circle fit
//
// # Sessions
//
// Images are decoded once per path and reduced to an intensity grid for the
// requested gray model. Blurred grids are cached per kernel length, so
// repeated calls with the same smoothing skip the convolution.
//
// # Configuration
//
// Parameters a call leaves out come from the server's
// [config.PipelineConfig], loaded from the file named by EDGE_PROBE_CONFIG.
// Setting EDGE_PROBE_LOG_LEVEL=debug logs each boundary run and every tool
// failure to stderr.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// A boundary tool that ran but found too few edges of the requested
// direction is not an error. Its result has "fitted": false, a "reason",
// and whatever points were collected. Probes that failed individually are
// listed under "failures" without aborting the run.
//
// # Usage
//
//	srv := server.NewWithConfig(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
