/*
Package storage provides BoltDB-backed persistence for streakline.

BoltStore implements Store on a single bbolt file (<dataDir>/streakline.db).
Values are JSON-encoded and kept in one bucket per collection:

	┌──────────────────── streakline.db ─────────────────────┐
	│  challenges          challenge ID      -> Challenge     │
	│  habits              habit ID          -> Habit         │
	│  participants        participant ID    -> Participant   │
	│  participant_index   challengeID\0user -> participant ID│
	│  calendar_actions    action ID         -> CalendarAction│
	│  completions         pid/activity/day  -> Completion    │
	└─────────────────────────────────────────────────────────┘

# Invariants

  - One participant per (challenge, user). CreateParticipant checks and writes
    the index in the same transaction and returns ErrAlreadyExists on a clash.
  - One completion per (participant, activity, day). The bucket key is the
    tuple itself, so PutCompletion is a put-if-absent and reports whether it
    wrote anything.
  - UpdateParticipant is a read-modify-write inside one bbolt write transaction.
    The enrollment path (links, schedule) and the reconciler (derived stats)
    both go through it, so neither overwrites the other's fields.

Completions for one participant share a key prefix and are read with a cursor
Seek instead of a full bucket scan.

# Leaderboard order

Leaderboard sorts by total completions descending, then current streak
descending, then join time ascending, then user ID. Callers treat the result as
already ranked and never re-sort it.

Missing records are reported with errors wrapping ErrNotFound; check them with
errors.Is.
*/
package storage
