// Package linking resolves which selected challenge activities are backed by a
// habit the user already tracks.
//
// The resolver keeps "one habit, one activity": linking a habit that already
// backs another activity removes the earlier mapping and Link returns the
// activity that lost it, so the caller can show the change. KeepAsNew clears a
// mapping. Nothing here touches the store.
package linking
