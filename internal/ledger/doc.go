// Package ledger hosts AccessControl deployments, each with a token bound to
// it, and commits every call through three stages: the in-memory instance,
// the store, then live watchers.
//
// A call that the instance rejects leaves no trace except an audit entry. A
// call the instance accepts but the store refuses is rolled back from memory
// before the error is returned, so memory and disk never disagree.
//
// At startup Load replays the stored logs through the same guarded
// operations that produced them; a log that does not replay cleanly is
// reported as corrupt.
package ledger
