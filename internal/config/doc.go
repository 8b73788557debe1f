// Package config loads, normalizes, and validates QR-Assure configuration data.
//
// It supplies deployment defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the QRASSURE_TERMINAL_ID
// environment fallback. The Config type centralizes every knob the daemon and
// CLI need: serial parameters, indicator wiring, code layout offsets, journal
// location, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a validated code layout, and clear validation errors. A
// loaded Config is treated as read-only for the lifetime of the process.
package config
