package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	statsJSON  bool
	statsSince string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display message delivery statistics",
	Long: `Display delivery statistics derived from the hook log.

Counts every submission outcome by status and tool, the share of submitted
messages Graphiti accepted, retries, mean latency and how often the
transcript could not be read.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if StatsCalc == nil {
			return fmt.Errorf("stats calculator not initialized")
		}

		sinceTime, err := parseSinceDuration(statsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		stats, err := StatsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating stats: %w", err)
		}

		w := cmd.OutOrStdout()
		if statsJSON {
			data, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting stats as JSON: %w", err)
			}
			fmt.Fprintln(w, string(data))
			return nil
		}

		fmt.Fprintf(w, "Delivery stats (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(w, "  %-24s %d\n", "Outcomes recorded:", stats.Total)
		fmt.Fprintf(w, "  %-24s %d\n", "Sessions:", stats.Sessions)
		fmt.Fprintf(w, "  %-24s %.1f%%\n", "Delivery rate:", stats.DeliveryRate*100)
		fmt.Fprintf(w, "  %-24s %d\n", "Retried:", stats.Retried)
		fmt.Fprintf(w, "  %-24s %.0f ms\n", "Mean latency:", stats.MeanElapsedMS)
		fmt.Fprintf(w, "  %-24s %d\n", "Transcript gaps:", stats.TranscriptGaps)

		if len(stats.ByStatus) > 0 {
			fmt.Fprintln(w, "\n  By status:")
			for _, status := range slices.Sorted(maps.Keys(stats.ByStatus)) {
				fmt.Fprintf(w, "    %-20s %d\n", status+":", stats.ByStatus[status])
			}
		}

		if len(stats.ByTool) > 0 {
			fmt.Fprintln(w, "\n  By tool:")
			for _, tool := range slices.Sorted(maps.Keys(stats.ByTool)) {
				fmt.Fprintf(w, "    %-20s %d\n", tool+":", stats.ByTool[tool])
			}
		}

		if stats.OldestOutcome != nil {
			fmt.Fprintf(w, "\n  %-24s %s\n", "Oldest outcome:", stats.OldestOutcome.Format(time.RFC3339))
		}
		if stats.NewestOutcome != nil {
			fmt.Fprintf(w, "  %-24s %s\n", "Newest outcome:", stats.NewestOutcome.Format(time.RFC3339))
		}

		return nil
	},
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output stats as JSON")
	statsCmd.Flags().StringVar(&statsSince, "since", "7d", "Time window for stats (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(statsCmd)
}
