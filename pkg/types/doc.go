/*
Package types defines the domain model shared by every streakline package.

# Entities

	Challenge ──< ChallengeActivity            (template data, immutable)
	    │
	    └──< Participant ──< Completion        (one per user, append-only events)
	              │
	              ├── LinkedHabits  activityID -> Habit.ID
	              ├── ActivityTimes activityID -> "HH:MM"
	              └──< CalendarAction          (one per unlinked activity)

Challenge and ChallengeActivity are created by an administrative path and never
change. A Participant is created when a user joins a challenge; its derived fields
(TotalCompletions, CurrentStreak, LongestStreak, CompletionPercentage) are owned by
the store side and written back by the reconciler.

A Completion is unique per (participant, activity, day). CompletionKey builds the
key that storage uses to enforce that.

# Days

Day is a calendar date with no time-of-day. It marshals as "YYYY-MM-DD" in both
JSON and YAML through encoding.TextMarshaler. DayOf converts an instant to a Day in
a given location, which is how "today" is resolved everywhere.
*/
package types
