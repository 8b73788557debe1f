// Package scanner reads newline-terminated scans from the serial QR reader.
//
// Reader owns the port: it opens it at startup, assembles bytes into lines
// under the configured read and inter-byte timeouts, decodes them from the
// scanner's character set and reopens the port after I/O failures. The
// HotplugWatcher listens for udev tty events so a replugged scanner is picked
// up without restarting the daemon.
package scanner
