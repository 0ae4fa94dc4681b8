package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "graphiti-hook",
	Short: "Claude Code hook that records sessions in a Graphiti knowledge graph",
	Long: `graphiti-hook observes Claude Code sessions through its hook events.

Each tool use is classified, enriched with the conversation that led to it,
and sent to a Graphiti server as a natural-language message. When a session
stops, the whole transcript is analyzed and a session summary is sent too.

Hook subcommands never fail the host: errors are written to the hook log.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "graphiti-hook %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
