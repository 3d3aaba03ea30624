package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an MCP server over the window cache",
	Long: `Start tracking and expose the live window cache to AI agents via the Model Context Protocol.

Tools: list_windows, window_cache, tracked_apps, capture_preview.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("transport", "stdio", "Transport: stdio or streamable-http")
	serveCmd.Flags().Int("port", 8373, "Port for streamable-http transport")
}

func runServe(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")

	mcpCfg := MCPConfig{
		Transport: transport,
		Port:      port,
	}

	srv, err := newMCPServer(mcpCfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.close()

	return srv.serve(mcpCfg)
}
