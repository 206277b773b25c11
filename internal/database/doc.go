// Package database provides connection pool management for TimescaleDB.
//
// The recorder daemon persists captured stream data (orderbook updates,
// trades, candles) into TimescaleDB hypertables. The console viewer does
// not open a database connection.
package database
