// Package wire defines the JSON message types exchanged with the Meridian
// WebSocket API and the typed events the client surfaces to applications.
//
// Message flow:
//   - Outbound: Request frames (subscribe, unsubscribe, ping) built from
//     channel Params.
//   - Inbound: an Envelope carrying a channel tag and a raw payload, decoded
//     into the typed payload for that channel.
//   - Events: the high-level Event stream delivered to the consuming
//     application after payloads have been applied to local state.
//
// All prices, sizes and amounts are decimal strings on the wire and are
// decoded into exact decimals, never floats.
package wire
