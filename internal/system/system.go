package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Sentinel errors for system operations.
var (
	// ErrNoMachineID indicates the machine ID file is missing or empty.
	ErrNoMachineID = errors.New("machine id unavailable")
)

const (
	// machineIDPath is where systemd keeps the stable host identifier.
	machineIDPath = "/etc/machine-id"

	// commandTimeout bounds the reboot and rtcwake invocations themselves.
	// rtcwake arms the RTC and suspends; it does not return until wake, so
	// the sleep duration is added on top.
	commandTimeout = 30 * time.Second
)

// runCommandFunc executes a command and returns its combined output.
type runCommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Power performs restarts and timed deep sleeps by shelling out to the
// host's reboot and rtcwake binaries.
type Power struct {
	run runCommandFunc
}

// NewPower creates a Power using the real command runner.
func NewPower() *Power {
	return &Power{run: runCommand}
}

// Restart reboots the host. On success the call does not meaningfully
// return; the process is torn down by the system shortly after.
func (p *Power) Restart(ctx context.Context) error {
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	output, err := p.run(cmdCtx, "reboot")
	if err != nil {
		return fmt.Errorf("reboot failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// DeepSleep suspends the host for the given duration using the RTC as the
// wake source. The call blocks until the host resumes.
func (p *Power) DeepSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("sleep duration must be positive, got %v", d)
	}

	seconds := int(d.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	cmdCtx, cancel := context.WithTimeout(ctx, d+commandTimeout)
	defer cancel()

	output, err := p.run(cmdCtx, "rtcwake", "-m", "mem", "-s", fmt.Sprintf("%d", seconds))
	if err != nil {
		return fmt.Errorf("rtcwake failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// DeviceID returns the host's stable machine identifier, used to derive a
// unique MQTT client ID so two devices on one account never evict each
// other's session.
func DeviceID() (string, error) {
	return deviceIDFromFile(machineIDPath)
}

func deviceIDFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoMachineID, err)
	}

	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNoMachineID, path)
	}
	return id, nil
}
