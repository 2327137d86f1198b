package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var standingsCmd = &cobra.Command{
	Use:   "standings CHALLENGE",
	Short: "Show a user's standing in a challenge",
	Args:  cobra.ExactArgs(1),
	RunE:  runStandings,
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard CHALLENGE",
	Short: "Show the challenge leaderboard",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeaderboard,
}

func init() {
	standingsCmd.Flags().String("user", "", "User to show (required)")
	standingsCmd.Flags().Bool("refresh", false, "Recompute streaks and totals before reading")
	_ = standingsCmd.MarkFlagRequired("user")
	addOutputFlag(standingsCmd)

	leaderboardCmd.Flags().Bool("refresh", false, "Recompute streaks and totals before reading")
	addOutputFlag(leaderboardCmd)

	rootCmd.AddCommand(standingsCmd)
	rootCmd.AddCommand(leaderboardCmd)
}

func runStandings(cmd *cobra.Command, args []string) error {
	challengeID := args[0]
	userID, _ := cmd.Flags().GetString("user")

	refresh, _ := cmd.Flags().GetBool("refresh")

	b, err := openBackend(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	standing, err := b.Standing(ctx, challengeID, userID, refresh)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	handled, err := printStructured(cmd, out, standing)
	if handled || err != nil {
		return err
	}
	printStanding(out, standing)
	return nil
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	challengeID := args[0]

	refresh, _ := cmd.Flags().GetBool("refresh")

	b, err := openBackend(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	board, err := b.Leaderboard(ctx, challengeID, refresh)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	handled, err := printStructured(cmd, out, board)
	if handled || err != nil {
		return err
	}
	if len(board) == 0 {
		fmt.Fprintln(out, "No participants yet")
		return nil
	}
	return printLeaderboard(out, board)
}
