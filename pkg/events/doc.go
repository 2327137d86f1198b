/*
Package events provides an in-process publish/subscribe broker.

The engine itself never refreshes caller-side caches. Instead it publishes an
event when something a caller may have cached changes:

  - enrollment.committed   a user joined a challenge; refresh challenges and calendar items
  - enrollment.partial     joined, but some calendar actions still need a retry
  - enrollment.failed      the enrollment stopped in its Failed state
  - actions.materialized   a targeted calendar action retry finished
  - completion.recorded    a completion was stored (not emitted for duplicates)
  - standings.updated      the reconciler rewrote derived participant stats

Subscribers receive events on a buffered channel. A slow subscriber whose buffer
is full misses events rather than stalling publishers. Subscribe accepts an
optional list of event types to filter on.
*/
package events
