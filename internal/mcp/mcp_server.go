// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/pra/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the archive MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.StoreManager) *server.MCPServer {
	s := server.NewMCPServer(
		"PRA Archive Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	// --- 1. Tool: archive_status ---
	s.AddTool(mcp.NewTool("archive_status",
		mcp.WithDescription("Report archived rows, sizes and pending staging files per dataset and entity."),
		mcp.WithString("dataset", mcp.Description("Restrict the report to one dataset (e.g. sonar_measures, jenkins_builds, jenkins_tests).")),
	), h.handleArchiveStatus)

	// --- 2. Tool: merge_archives ---
	s.AddTool(mcp.NewTool("merge_archives",
		mcp.WithDescription("Merge every pending staging file into its archive and return the per-entity outcomes."),
		mcp.WithString("data_dir", mcp.Description("Data directory holding the datasets (defaults to the configured one).")),
	), h.handleMergeArchives)

	// --- 3. Tool: list_runs ---
	s.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List the most recent fetch and merge runs recorded in the run ledger."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return (0 returns all).")),
	), h.handleListRuns)

	return s
}

// StartMCPServer starts the archive MCP server over stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.StoreManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}
