/*
Package gateway defines the contract the engine needs from the remote store and
provides two implementations.

Gateway covers create/read/update by ID, lookups by foreign key, completion
recording, and the leaderboard. It makes one weak promise about reads: a write
the gateway acknowledged may not be visible to the next read. Callers that must
know a write landed poll for it (see package enrollment).

StoreGateway runs directly on a storage.Store. Its writes are visible at once.
Link and schedule updates replace the whole map in one call and are checked
against the participant's selection inside the store transaction.

Lagged decorates any Gateway and delays participant visibility:

	create/update at T  ──ack──►  caller
	read before T+delay ───────►  previous view (or ErrNotFound after a create)
	read at/after T+delay ─────►  latest state

`streakline serve --visibility-delay` uses it to exercise the polling paths
against a local store, and the tests use it to check that enrollment waits for
writes instead of sleeping.
*/
package gateway
