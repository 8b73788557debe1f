// Package indicator drives the operator-facing LEDs and buzzer.
//
// A Driver switches individual lines; GPIODriver talks to the Linux GPIO
// character device and MockDriver logs each call for hosts without GPIO.
// Panel layers the success, error and waiting patterns on top of a Driver.
package indicator
