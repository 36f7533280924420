package hal

import (
	"fmt"

	gpiod "github.com/warthog618/go-gpiocdev"

	"github.com/nerrad567/beeper-core/internal/infrastructure/config"
)

// GPIO implements Device using the Linux GPIO character device.
type GPIO struct {
	chip   *gpiod.Chip
	buzzer *gpiod.Line
	led    *gpiod.Line
	reset  *gpiod.Line
}

// OpenGPIO requests the buzzer, LED and reset button lines from the
// configured GPIO chip.
//
// The buzzer and LED are requested as outputs driven low; the reset button
// as an input with the internal pull-up enabled, matching the wiring where
// the button shorts the pin to ground.
//
// Parameters:
//   - cfg: Hardware configuration (chip name and pin offsets)
//
// Returns:
//   - *GPIO: Device ready for use
//   - error: If the chip or any line cannot be requested
func OpenGPIO(cfg config.HardwareConfig) (*GPIO, error) {
	chip, err := gpiod.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("opening chip %s: %w", cfg.Chip, err)
	}

	g := &GPIO{chip: chip}

	g.buzzer, err = chip.RequestLine(cfg.BuzzerPin, gpiod.AsOutput(0))
	if err != nil {
		g.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("requesting buzzer pin %d: %w", cfg.BuzzerPin, err)
	}

	g.led, err = chip.RequestLine(cfg.LEDPin, gpiod.AsOutput(0))
	if err != nil {
		g.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("requesting LED pin %d: %w", cfg.LEDPin, err)
	}

	g.reset, err = chip.RequestLine(cfg.ResetButtonPin, gpiod.AsInput, gpiod.WithPullUp)
	if err != nil {
		g.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("requesting reset button pin %d: %w", cfg.ResetButtonPin, err)
	}

	return g, nil
}

// SetBuzzer drives the buzzer output.
func (g *GPIO) SetBuzzer(on bool) error {
	if err := g.buzzer.SetValue(boolToValue(on)); err != nil {
		return fmt.Errorf("setting buzzer: %w", err)
	}
	return nil
}

// SetLED drives the status LED output.
func (g *GPIO) SetLED(on bool) error {
	if err := g.led.SetValue(boolToValue(on)); err != nil {
		return fmt.Errorf("setting LED: %w", err)
	}
	return nil
}

// ResetPressed reads the reset button. The line is pulled up: 0 means the
// button is held down.
func (g *GPIO) ResetPressed() (bool, error) {
	val, err := g.reset.Value()
	if err != nil {
		return false, fmt.Errorf("reading reset button: %w", err)
	}
	return val == 0, nil
}

// Close releases all requested lines and the chip.
func (g *GPIO) Close() error {
	var errs []error

	for _, line := range []*gpiod.Line{g.buzzer, g.led, g.reset} {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("closing GPIO: %v", errs)
	}
	return nil
}

// boolToValue converts a logical state to a GPIO line value.
func boolToValue(on bool) int {
	if on {
		return 1
	}
	return 0
}
