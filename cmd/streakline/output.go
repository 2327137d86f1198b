package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cuemby/streakline/pkg/enrollment"
	"github.com/cuemby/streakline/pkg/progress"
	"github.com/cuemby/streakline/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", outputTable, "Output format: table, json, yaml")
}

// printStructured writes v as JSON or YAML. It reports false for table output
// so the caller renders its own view.
func printStructured(cmd *cobra.Command, out io.Writer, v interface{}) (bool, error) {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case outputYAML:
		// Round-trip through JSON so the YAML keys match the API field names
		data, err := json.Marshal(v)
		if err != nil {
			return true, err
		}
		var generic interface{}
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return true, err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return true, err
		}
		return true, enc.Close()
	case outputTable, "":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q", format)
	}
}

func printResult(out io.Writer, result *enrollment.Result) {
	switch {
	case result.State == enrollment.StateFailed:
		fmt.Fprintf(out, "✗ Enrollment failed: %s\n", result.Reason)
	case result.Partial():
		fmt.Fprintf(out, "! Enrollment committed with missing calendar actions\n")
	default:
		fmt.Fprintf(out, "✓ Enrollment committed\n")
	}
	if result.ParticipantID != "" {
		fmt.Fprintf(out, "  Participant: %s\n", result.ParticipantID)
	}
	if result.Resumed {
		fmt.Fprintf(out, "  Resumed an existing enrollment\n")
	}
	if len(result.Created) > 0 {
		fmt.Fprintf(out, "  Calendar actions created: %s\n", strings.Join(result.Created, ", "))
	}
	if len(result.FailedActivities) > 0 {
		fmt.Fprintf(out, "  Calendar actions missing: %s\n", strings.Join(result.FailedActivities, ", "))
		fmt.Fprintf(out, "  Run 'streakline retry-actions' to create them\n")
	}
}

func printStanding(out io.Writer, s *progress.Standing) {
	fmt.Fprintf(out, "User:          %s\n", s.UserID)
	fmt.Fprintf(out, "Rank:          %s\n", s.RankLabel)
	fmt.Fprintf(out, "Today:         %d%% (%d of %d)\n", s.TodayPercentage, len(s.CompletedToday), s.RequiredDaily)
	if len(s.RemainingToday) > 0 {
		fmt.Fprintf(out, "Remaining:     %s\n", strings.Join(s.RemainingToday, ", "))
	}
	fmt.Fprintf(out, "Completions:   %d\n", s.TotalCompletions)
	fmt.Fprintf(out, "Streak:        %d days\n", s.CurrentStreak)
	fmt.Fprintf(out, "Progress:      %.0f%%\n", s.CompletionPercentage)
	if s.CatchUp.Message != "" {
		fmt.Fprintf(out, "\n%s\n", s.CatchUp.Message)
	}
}

func printLeaderboard(out io.Writer, board []*types.ParticipantSummary) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tUSER\tCOMPLETIONS\tSTREAK\tPROGRESS\tJOINED")
	for i, row := range board {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.0f%%\t%s\n",
			i+1, row.UserID, row.TotalCompletions, row.CurrentStreak,
			row.CompletionPercentage, row.JoinedAt.Format(types.DayLayout))
	}
	return w.Flush()
}
