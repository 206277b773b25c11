// Package recorder archives the live event stream into TimescaleDB.
//
// Events flow from the stream client into a growable spool, decoupling the
// feed from database latency, then batch into two hypertables:
//   - book_updates: one row per price level per snapshot or delta
//   - trades: one row per execution, keyed by trade_id
//
// Inserts are append-only with ON CONFLICT DO NOTHING, so frames replayed
// after a resubscribe dedupe instead of duplicating. Prices and sizes are
// stored as integer micros, the venue's native REST scale.
package recorder
