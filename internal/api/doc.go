// Package api defines wire-format types and converters for the daemon HTTP
// API, plus the client the CLI uses to query a running daemon.
//
// # Key Types
//
// DaemonStatus: runtime information including the pairing snapshot, today's
// outcome counts and preflight results.
//
// Outcome: one indexed pairing outcome.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Enums (pairing state, code kind, result) are
// exposed as lowercase strings. Timestamps use RFC3339 with milliseconds.
package api
