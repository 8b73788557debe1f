// Package history keeps a SQLite index of pairing outcomes.
//
// The monthly CSV journal remains the record of truth for operators; the
// index serves the CLI history view and the daemon status API, which need
// recent rows and per-result counts without scanning CSV files.
package history
