// Package preflight provides readiness checks for the devices and paths
// QR-Assure depends on.
//
// The daemon runs them at startup and logs the results; the CLI "doctor"
// command renders them for operators. A failed required check explains why
// the daemon will not start; optional checks only describe degraded modes.
package preflight
