// Package completion records that a participant did an activity on a day.
// Recording is idempotent and one-way.
package completion
