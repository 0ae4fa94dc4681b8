package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	hookmcp "github.com/oculairmedia/Claudecode-graphiti-hook/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the graphiti-hook MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the graphiti-hook MCP server on stdio",
	Long: `Start the graphiti-hook MCP server on stdio transport.

The server exposes the knowledge graph and the session analyzer as MCP tools
that AI coding assistants can call: search_memory, analyze_session,
get_delivery_stats.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Graphiti == nil || Analyzer == nil || Transcripts == nil {
			return fmt.Errorf("services not initialized")
		}

		srv := hookmcp.NewServer(Graphiti, Transcripts, Analyzer, StatsCalc, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
