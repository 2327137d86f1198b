/*
Package enrollment joins a user to a challenge against a store whose writes
become visible with a delay.

An enrollment is an explicit state value moved forward by Coordinator.Step:

	NotStarted
	  └─► AwaitingParticipantVisible   poll until the participant reads back
	        └─► LinksPending            write the whole link map, read it back
	              └─► SchedulePending    write the whole schedule, read it back
	                    └─► VerifyCommitted      one consolidated check
	                          └─► MaterializingActions   one calendar action per unlinked activity
	                                └─► Committed

Any fatal step moves to Failed with a *StepError naming the state, the
gateway operation and a Kind. Kinds stay distinct in logs and metrics:
a rejected write is not a verification mismatch, and neither is a
participant that never became visible.

Nothing is rolled back. Run always reads before it creates, so calling it
again after a failure resumes the participant that already exists. Calendar
actions are created concurrently; the ones that fail are listed in
Result.FailedActivities and can be retried with RetryActions.

A Session guards against two enrollments running for the same caller at once.
*/
package enrollment
