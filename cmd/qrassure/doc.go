// Command qrassure runs the QR-Assure pairing daemon and the operator tools
// around it: configuration scaffolding, journal and history inspection,
// live status from the daemon API, and environment preflight checks.
package main
