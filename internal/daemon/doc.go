// Package daemon coordinates the long-running QR-Assure process.
//
// Run takes the single-instance flock, builds the scanner, indicator and
// recorders through a caller-supplied Builder, then drives the pairing loop
// until the context ends. Teardown always runs: the indicator lines are
// switched off and released, the port and stores are closed, and the lock is
// dropped. A chi-routed HTTP API exposes read-only status and outcome history.
//
// Keep orchestration logic here; protocol rules live in internal/pairing and
// device handling in internal/scanner and internal/indicator.
package daemon
