// Package connection implements the streaming client's Connection Manager.
//
// The Connection Manager:
//   - Owns the single WebSocket connection to the venue
//   - Runs the lifecycle state machine (connect, reconnect, disconnect)
//   - Probes liveness with JSON pings and a pong timeout
//   - Recovers from drops with full-jitter exponential backoff
//   - Replays registered subscriptions after every reconnect
//   - Drives the Message Router and delivers its events to the application
package connection
