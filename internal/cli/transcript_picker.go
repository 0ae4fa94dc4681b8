package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/integration"
)

// pickerLimit caps how many recent transcripts the picker lists.
const pickerLimit = 15

// pickTranscript shows a numbered list of the most recent transcripts and
// returns the selected one. Returns an error if none are available or the
// user cancels.
func pickTranscript(in io.Reader, out io.Writer) (integration.TranscriptInfo, error) {
	claudeDir := integration.ResolveClaudeDir(activeConfig().Transcript.ClaudeDir)
	transcripts, err := integration.ListTranscripts(claudeDir)
	if err != nil {
		return integration.TranscriptInfo{}, fmt.Errorf("listing transcripts: %w", err)
	}
	if len(transcripts) == 0 {
		return integration.TranscriptInfo{}, fmt.Errorf("no transcripts found under %s", claudeDir)
	}
	if len(transcripts) > pickerLimit {
		transcripts = transcripts[:pickerLimit]
	}

	fmt.Fprintln(out, "\nRecent sessions:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-4s %-38s %-16s %-9s %s\n", "#", "SESSION", "MODIFIED", "SIZE", "PROJECT")
	fmt.Fprintf(out, "  %-4s %-38s %-16s %-9s %s\n", "---", "-------", "--------", "----", "-------")
	for i, t := range transcripts {
		fmt.Fprintf(out, "  %-4d %-38s %-16s %-9s %s\n",
			i+1, t.SessionID, t.ModTime.Local().Format("2006-01-02 15:04"), humanSize(t.Size), t.Project)
	}
	fmt.Fprintln(out)

	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(out, "Select session [1-%d] (or 'q' to cancel): ", len(transcripts))
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			return integration.TranscriptInfo{}, fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "q" || input == "Q" {
			return integration.TranscriptInfo{}, fmt.Errorf("cancelled")
		}

		num, convErr := strconv.Atoi(input)
		if convErr != nil || num < 1 || num > len(transcripts) {
			fmt.Fprintf(out, "  Invalid selection. Enter a number between 1 and %d.\n", len(transcripts))
			if err != nil {
				return integration.TranscriptInfo{}, fmt.Errorf("reading input: %w", err)
			}
			continue
		}

		return transcripts[num-1], nil
	}
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fM", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fK", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
