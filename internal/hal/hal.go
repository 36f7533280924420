package hal

// Device abstracts the board's physical I/O: one buzzer output, one LED
// output, and one pulled-up reset button input.
//
// The abstraction exists so the controller and signaller can run against an
// in-memory fake on a development machine; the only production
// implementation is the GPIO character device in gpio.go.
type Device interface {
	// SetBuzzer drives the buzzer output.
	SetBuzzer(on bool) error

	// SetLED drives the status LED output.
	SetLED(on bool) error

	// ResetPressed reads the reset button. The line is pulled up, so a
	// pressed button reads low; implementations return the logical state.
	ResetPressed() (bool, error)

	// Close releases the underlying I/O lines.
	Close() error
}
