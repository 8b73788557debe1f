// Package qrcode classifies raw scanner output and extracts the comparable
// fields from manual and process QR codes.
//
// Classification is a pure function of a scan's character count. Extraction
// slices fixed character ranges from the raw text; the ranges come from a
// Layout that is validated once at startup and never changes afterwards.
// Malformed input is reported with errors wrapping ErrFormat so callers can
// decide per state whether to drop or retry the read.
package qrcode
