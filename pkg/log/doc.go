/*
Package log provides structured logging for streakline using zerolog.

A single package-level Logger is configured once by Init and shared by every
component. Components derive child loggers carrying their identity:

	logger := log.WithComponent("enrollment")
	logger.Info().
		Str("challenge_id", plan.ChallengeID).
		Str("state", string(state)).
		Msg("enrollment state changed")

Output is either human-readable console lines or JSON. When Config.File is set,
every entry is additionally written as JSON to a size-rotated file managed by
lumberjack, so a long-running `streakline serve` keeps a bounded on-disk history.

Levels:

  - debug: every enrollment state transition and poll attempt
  - info:  committed enrollments, recorded completions, reconcile cycles
  - warn:  verification mismatches, partial calendar action failures
  - error: rejected writes and storage failures
*/
package log
