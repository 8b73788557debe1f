// Package outcome defines the record produced when a pairing attempt ends and
// the append-only journal that persists it.
//
// The journal writes one CSV file per calendar month (YYYYMM.csv) and keeps
// only the most recently modified files. Write and rotation failures are
// logged and swallowed: the acquisition loop must keep running even when the
// storage medium misbehaves.
package outcome
