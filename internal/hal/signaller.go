package hal

import "time"

// Beep pattern timings. The patterns are the device's only user interface:
// each must stay audibly distinct from the others.
const (
	// successBeepDuration is the length of the single confirmation beep.
	successBeepDuration = 100 * time.Millisecond

	// pulseDuration is the length of each pulse in multi-pulse patterns.
	pulseDuration = 50 * time.Millisecond

	// setupPulseGap separates the three "entering setup" pulses.
	setupPulseGap = 200 * time.Millisecond

	// resetPulseGap separates the two "reset" pulses.
	resetPulseGap = 250 * time.Millisecond

	// bootBlinkDuration is the on/off period of the boot LED sequence.
	bootBlinkDuration = 500 * time.Millisecond
)

// Signaller plays the audible and visual feedback patterns on a Device.
// Feedback is best effort: GPIO write failures are swallowed because there
// is no channel left to report them on.
//
//	1 beep   - connected and subscribed
//	2 pulses - reset button acknowledged
//	3 pulses - entering setup mode
type Signaller struct {
	dev Device

	// sleep is swappable so tests run without real delays.
	sleep func(time.Duration)
}

// NewSignaller creates a Signaller for the given device.
func NewSignaller(dev Device) *Signaller {
	return &Signaller{
		dev:   dev,
		sleep: time.Sleep,
	}
}

// Success plays the single confirmation beep, mirrored on the LED.
func (s *Signaller) Success() {
	s.buzzer(true)
	s.led(true)
	s.sleep(successBeepDuration)
	s.buzzer(false)
	s.led(false)
}

// Reset plays the 2-pulse reset acknowledgement.
func (s *Signaller) Reset() {
	s.pulses(2, resetPulseGap)
}

// Setup plays the 3-pulse "entering setup mode" pattern.
func (s *Signaller) Setup() {
	s.pulses(3, setupPulseGap)
}

// BootBlink plays the LED double blink that marks the start of the boot
// sequence. It is visual only; the buzzer stays quiet until the device has
// something to report.
func (s *Signaller) BootBlink() {
	for i := 0; i < 2; i++ {
		s.led(true)
		s.sleep(bootBlinkDuration)
		s.led(false)
		s.sleep(bootBlinkDuration)
	}
}

// pulses plays n short buzzer pulses separated by gap.
func (s *Signaller) pulses(n int, gap time.Duration) {
	for i := 0; i < n; i++ {
		if i > 0 {
			s.sleep(gap)
		}
		s.buzzer(true)
		s.sleep(pulseDuration)
		s.buzzer(false)
	}
}

func (s *Signaller) buzzer(on bool) {
	_ = s.dev.SetBuzzer(on)
}

func (s *Signaller) led(on bool) {
	_ = s.dev.SetLED(on)
}
