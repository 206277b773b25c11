// Package subscription tracks the set of active channel subscriptions for one
// streaming connection.
//
// The registry is the source of truth for transparent resubscription: after a
// reconnect the manager enumerates it wholesale and replays every entry so the
// server resends fresh snapshots. Entries are added on subscribe calls,
// removed on unsubscribe calls, and cleared on a manual disconnect.
//
// The registry is not internally synchronized. It is owned by the connection
// manager goroutine; reads from other goroutines go through the client
// boundary.
package subscription
