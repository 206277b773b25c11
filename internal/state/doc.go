// Package state implements the entity state stores that mirror
// server-authoritative data: orderbook depth, user orders and balances,
// price-history candles, and rolling trade history.
//
// Each store owns the reconciliation algorithm for one entity kind and is
// independent of the transport. Stores are not internally synchronized: the
// connection manager's background loop is the sole writer, and concurrent
// reads are guarded at the client boundary.
package state
