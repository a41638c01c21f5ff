// Package mcp exposes the dashboard's data to MCP clients.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("scaledash", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("scaledash body-composition server. Query scale readings (total mass, BMI, body fat, water, muscle and bone mass), window statistics, and the state of the dashboard chart."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolListQuantities, Handler: h.listQuantities},
		server.ServerTool{Tool: toolGetMeasurements, Handler: h.getMeasurements},
		server.ServerTool{Tool: toolGetWindowStats, Handler: h.getWindowStats},
		server.ServerTool{Tool: toolGetDashboardState, Handler: h.getDashboardState},
		server.ServerTool{Tool: toolSetTimeRange, Handler: h.setTimeRange},
	)

	s.AddResources(
		server.ServerResource{Resource: resDashboard, Handler: h.dashboard},
		server.ServerResource{Resource: resQuantities, Handler: h.quantityCatalog},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resDashboard = mcp.NewResource(
	"scaledash://dashboard",
	"Dashboard State",
	mcp.WithResourceDescription("Selected quantities, running-mean setting, visible time window and y-axis ranges of the chart"),
	mcp.WithMIMEType("application/json"),
)

var resQuantities = mcp.NewResource(
	"scaledash://quantities",
	"Quantity Catalog",
	mcp.WithResourceDescription("All plottable quantities with labels, colors and axis sides"),
	mcp.WithMIMEType("application/json"),
)
