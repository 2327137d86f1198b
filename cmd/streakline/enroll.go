package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/cuemby/streakline/pkg/enrollment"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll CHALLENGE",
	Short: "Enroll a user into a challenge",
	Long: `Enroll a user into a challenge with the selected activities.

Links are applied in the order given. Linking a habit that already backs
another activity moves it to the later one; "--link ACTIVITY=" keeps the
activity as a new calendar item.

Examples:
  streakline enroll reset-21 --user u1 --select run,read,journal \
    --link run=h1 --time read=08:00 --time journal="9:30 PM"`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

var retryActionsCmd = &cobra.Command{
	Use:   "retry-actions CHALLENGE",
	Short: "Create calendar actions still missing after a partial enrollment",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetryActions,
}

func init() {
	enrollCmd.Flags().String("user", "", "User to enroll (required)")
	enrollCmd.Flags().StringSlice("select", nil, "Activity IDs to select (required)")
	enrollCmd.Flags().StringArray("link", nil, "ACTIVITY=HABIT link, repeatable")
	enrollCmd.Flags().StringArray("time", nil, "ACTIVITY=TIME for new activities, repeatable")
	enrollCmd.Flags().Bool("suggest", false, "Link undecided activities to habits with the same title")
	_ = enrollCmd.MarkFlagRequired("user")
	_ = enrollCmd.MarkFlagRequired("select")
	addOutputFlag(enrollCmd)

	retryActionsCmd.Flags().String("user", "", "Enrolled user (required)")
	retryActionsCmd.Flags().StringSlice("activity", nil, "Only retry these activities")
	_ = retryActionsCmd.MarkFlagRequired("user")
	addOutputFlag(retryActionsCmd)

	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(retryActionsCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	challengeID := args[0]
	userID, _ := cmd.Flags().GetString("user")
	selected, _ := cmd.Flags().GetStringSlice("select")
	linkArgs, _ := cmd.Flags().GetStringArray("link")
	timeArgs, _ := cmd.Flags().GetStringArray("time")
	suggest, _ := cmd.Flags().GetBool("suggest")

	choices, err := parseChoices(selected, linkArgs, timeArgs)
	if err != nil {
		return err
	}
	choices.SuggestLinks = suggest

	b, err := openBackend(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, runErr := b.Enroll(ctx, challengeID, userID, choices)
	if result == nil {
		return runErr
	}
	return report(cmd, result, runErr)
}

func runRetryActions(cmd *cobra.Command, args []string) error {
	challengeID := args[0]
	userID, _ := cmd.Flags().GetString("user")
	activityIDs, _ := cmd.Flags().GetStringSlice("activity")

	b, err := openBackend(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, runErr := b.RetryActions(ctx, challengeID, userID, activityIDs)
	if result == nil {
		return runErr
	}
	return report(cmd, result, runErr)
}

// report prints result and returns runErr so the exit code reflects failure
func report(cmd *cobra.Command, result *enrollment.Result, runErr error) error {
	out := cmd.OutOrStdout()
	handled, err := printStructured(cmd, out, result)
	if err != nil {
		return err
	}
	if !handled {
		printResult(out, result)
	}
	if runErr != nil {
		return runErr
	}
	if result.Partial() {
		return fmt.Errorf("%d calendar actions missing", len(result.FailedActivities))
	}
	return nil
}

// parseChoices turns repeated ACTIVITY=VALUE flags into join flow choices
func parseChoices(selected, links, times []string) (enrollment.Choices, error) {
	choices := enrollment.Choices{SelectedActivityIDs: selected}

	for _, arg := range links {
		activityID, habitID, err := splitAssignment(arg)
		if err != nil {
			return choices, fmt.Errorf("--link: %w", err)
		}
		choices.Links = append(choices.Links, enrollment.LinkChoice{ActivityID: activityID, HabitID: habitID})
	}

	for _, arg := range times {
		activityID, t, err := splitAssignment(arg)
		if err != nil {
			return choices, fmt.Errorf("--time: %w", err)
		}
		if t == "" {
			return choices, fmt.Errorf("--time: %q has no time", arg)
		}
		if choices.Times == nil {
			choices.Times = make(map[string]string)
		}
		choices.Times[activityID] = t
	}
	return choices, nil
}

func splitAssignment(arg string) (string, string, error) {
	key, value, ok := strings.Cut(arg, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("expected ACTIVITY=VALUE, got %q", arg)
	}
	return key, strings.TrimSpace(value), nil
}
