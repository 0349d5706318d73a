package cmd

import (
	"github.com/huangsam/pra/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the PRA MCP server",
	Long:  `Launch an MCP server that allows AI agents to inspect and merge archives and list ledger runs via standard tools.`,
	// Logs go to stderr, so stdio stays free for the protocol.
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, storeManager)
	},
}
