// Package pairing runs the two-scan pairing protocol.
//
// A Machine reads scans, classifies them by length, holds the first accepted
// code in a pending slot and resolves it against the second scan: opposite
// kinds are compared, a repeated kind is rejected, an unrecognized scan is
// recorded verbatim, and a slot older than the pairing timeout is dropped.
// Outcomes go to an outcome.Recorder; operator feedback goes to an Indicator.
package pairing
