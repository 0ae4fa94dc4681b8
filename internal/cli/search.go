package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/integration"
)

var (
	searchMaxNodes int
	searchMaxFacts int
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the Graphiti knowledge graph",
	Long: `Search the configured Graphiti group for entity nodes and relationship
facts related to the query.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Graphiti == nil {
			return fmt.Errorf("graphiti client not initialized")
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		result, err := Graphiti.Search(ctx, args[0], searchMaxNodes, searchMaxFacts)
		if err != nil {
			return err
		}

		if searchJSON {
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting results as JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		writeSearchResult(cmd.OutOrStdout(), args[0], result)
		return nil
	},
}

func writeSearchResult(w io.Writer, query string, result *integration.SearchResult) {
	if len(result.Nodes) == 0 && len(result.Facts) == 0 {
		fmt.Fprintf(w, "No results for %q.\n", query)
		return
	}

	if len(result.Nodes) > 0 {
		fmt.Fprintf(w, "Nodes (%d):\n", len(result.Nodes))
		for _, n := range result.Nodes {
			fmt.Fprintf(w, "  %s\n", n.Name)
			if n.Summary != "" {
				fmt.Fprintf(w, "    %s\n", n.Summary)
			}
		}
	}

	if len(result.Facts) > 0 {
		if len(result.Nodes) > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Facts (%d):\n", len(result.Facts))
		for _, f := range result.Facts {
			line := "  - " + f.Fact
			if f.ValidAt != "" {
				line += " (since " + f.ValidAt + ")"
			}
			fmt.Fprintln(w, line)
		}
	}
}

func init() {
	searchCmd.Flags().IntVar(&searchMaxNodes, "max-nodes", 5, "Maximum entity nodes to return")
	searchCmd.Flags().IntVar(&searchMaxFacts, "max-facts", 10, "Maximum facts to return")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output results as JSON")
	rootCmd.AddCommand(searchCmd)
}
