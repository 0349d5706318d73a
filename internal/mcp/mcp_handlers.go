package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/pra/core"
	"github.com/huangsam/pra/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.StoreManager
}

func (h *toolHandler) handleArchiveStatus(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()

	var datasets []string
	if d := request.GetString("dataset", ""); d != "" {
		datasets = append(datasets, d)
	}

	statuses, err := core.CollectStatus(cfg, datasets...)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
	}
	return jsonResult(statuses)
}

func (h *toolHandler) handleMergeArchives(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	if d := request.GetString("data_dir", ""); d != "" {
		cfg.DataDir = d
	}

	outcomes, err := core.RunMerge(ctx, cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("merge failed: %v", err)), nil
	}
	return jsonResult(outcomes)
}

func (h *toolHandler) handleListRuns(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)
	if limit < 0 {
		return mcp.NewToolResultError(fmt.Sprintf("limit must be non-negative, got %d", limit)), nil
	}
	if h.mgr == nil {
		return mcp.NewToolResultError("run ledger is not configured"), nil
	}

	runs, err := h.mgr.GetLedgerStore().ListRuns(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing runs failed: %v", err)), nil
	}
	return jsonResult(runs)
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
