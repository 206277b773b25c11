// Package backfill recovers trades the stream never delivered.
//
// The trades channel carries only executions that happen while the
// connection is up; prints during an outage are gone by the time the
// stream resumes. The backfiller periodically pulls recent trade history
// over REST for each tracked orderbook and replays it into a sink as
// ordinary trade events, oldest first. Sinks deduplicate by trade id, so
// overlap with the live stream is harmless.
package backfill
