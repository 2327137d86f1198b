/*
Package reconciler keeps participant standings in line with raw completions.

Participants carry derived fields (total completions, current and longest
streak, completion percentage) that the leaderboard sorts on. Enrollment and
completion recording never write them; the reconciler recomputes them on a
fixed interval and writes back only what changed.

# Architecture

	┌────────────────────────────────────────────┐
	│            Reconciliation Loop             │
	│          (every 30 seconds default)        │
	└──────────────────┬─────────────────────────┘
	                   │
	                   ▼
	          for each challenge
	                   │
	                   ▼
	         for each participant
	                   │
	      ┌────────────┴────────────┐
	      ▼                         ▼
	 ListCompletions           ComputeStats
	      │                         │
	      └────────────┬────────────┘
	                   ▼
	    UpdateParticipant (if changed)
	                   │
	                   ▼
	      standings.updated event

# Rules

A day is complete when the participant recorded at least DailyGoal
completions on it: the challenge's required-daily count, lowered to the
number of selected activities when fewer were selected.

  - Total completions: completions of selected activities inside the window
  - Current streak: consecutive complete days ending today, or ending
    yesterday while today is not yet complete
  - Longest streak: the longest run of complete days in the window
  - Completion percentage: complete days over elapsed window days, rounded
    to a whole number, capped at 100

The window starts at the challenge start date, or at the participant's join
day when the challenge has none, and ends today or at the challenge end.

# Usage

	rec := reconciler.NewReconciler(store,
		reconciler.WithInterval(30*time.Second),
		reconciler.WithPublisher(broker),
	)
	rec.Start()
	defer rec.Stop()

ReconcileOnce runs a single cycle and is what tests and `streakline
standings --refresh` call.

# Monitoring Metrics

	streakline_reconciliation_duration_seconds - Time to complete a cycle
	streakline_reconciliation_cycles_total     - Total cycles
*/
package reconciler
