package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cuemby/streakline/pkg/completion"
	"github.com/cuemby/streakline/pkg/types"
	"github.com/spf13/cobra"
)

var completeCmd = &cobra.Command{
	Use:   "complete CHALLENGE ACTIVITY",
	Short: "Record an activity as done",
	Long: `Record an activity as done for today, or for --day. Recording the same
activity twice on one day is accepted and stored once.`,
	Args: cobra.ExactArgs(2),
	RunE: runComplete,
}

func init() {
	completeCmd.Flags().String("user", "", "Enrolled user (required)")
	completeCmd.Flags().String("day", "", "Day as YYYY-MM-DD (default today)")
	_ = completeCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(completeCmd)
}

func runComplete(cmd *cobra.Command, args []string) error {
	challengeID, activityID := args[0], args[1]
	userID, _ := cmd.Flags().GetString("user")
	dayArg, _ := cmd.Flags().GetString("day")

	var day types.Day
	if dayArg != "" {
		parsed, err := types.ParseDay(dayArg)
		if err != nil {
			return err
		}
		day = parsed
	}

	b, err := openBackend(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	outcome, day, err := b.Complete(ctx, challengeID, userID, activityID, day)
	if err != nil {
		return err
	}

	if outcome == completion.AlreadyRecorded {
		fmt.Fprintf(cmd.OutOrStdout(), "Already recorded: %s on %s\n", activityID, day)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Recorded: %s on %s\n", activityID, day)
	return nil
}
