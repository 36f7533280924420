// Package hal abstracts the board peripherals: the buzzer, the status LED
// and the reset button.
//
// Device is the hardware boundary. GPIO implements it on top of the Linux
// GPIO character device; tests substitute an in-memory fake. Signaller
// builds the named feedback patterns (success beep, reset and setup pulse
// trains, boot blink) on top of Device so callers never touch raw pin
// timings.
package hal
