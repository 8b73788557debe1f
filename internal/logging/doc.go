// Package logging assembles structured slog loggers and formatting helpers used
// across QR-Assure.
//
// It owns the console and JSON handlers, level parsing, output fan-out to
// stdout and per-run log files, and retention of old run logs. Component
// loggers tag every line with the subsystem that emitted it (pairing, scanner,
// indicator, journal) so a field technician can follow one pairing attempt
// through the process log.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
