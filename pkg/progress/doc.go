/*
Package progress turns participant and completion state into dashboard
standings.

Compute is a pure function over a Snapshot. Lifetime figures (total
completions, streak, completion percentage) come from the leaderboard rows as
the store wrote them. Compute only derives the day-scoped view:

  - today's percentage: completed-today / required-daily, rounded, capped at 100
  - rank: 1-based position on the leaderboard, "-" when absent
  - catch-up: the gap to the participant directly ahead, or the lead over
    the runner-up when first

The leaderboard is taken in the order given.
*/
package progress
