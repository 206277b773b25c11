// Package api provides the Meridian REST API client used to bootstrap and
// backfill stream state.
//
// REST endpoints:
//   - Production: https://api.meridian.xyz
//   - Staging: https://api.staging.meridian.xyz
//
// Key routes: /api/markets, /api/orderbook/{id}, /api/trades,
// /api/price-history, /api/time.
//
// Unlike the WebSocket feed, which carries prices as decimal strings, REST
// orderbook and price-history responses carry integers scaled by 1e6. The
// converters in this package lift both encodings into exact decimals.
package api
