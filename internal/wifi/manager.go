package wifi

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nerrad567/beeper-core/internal/infrastructure/config"
)

// Sentinel errors for WiFi management.
var (
	// ErrJoinTimeout indicates the join attempt did not reach a connected
	// state within the configured timeout.
	ErrJoinTimeout = errors.New("wifi join timed out")

	// ErrJoinFailed indicates nmcli rejected the join attempt outright,
	// typically wrong credentials or an unknown SSID.
	ErrJoinFailed = errors.New("wifi join failed")
)

// hotspotConnectionName is the NetworkManager connection name used for the
// provisioning access point, so it can be torn down by name.
const hotspotConnectionName = "beeper-setup"

// commandTimeout bounds individual nmcli invocations that are expected to
// return promptly (status checks, hotspot up/down).
const commandTimeout = 15 * time.Second

// Logger defines the logging interface for the WiFi manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// runCommandFunc executes a command and returns its combined output.
type runCommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Manager joins wireless networks and hosts the provisioning access point.
type Manager struct {
	cfg    config.WiFiConfig
	apCfg  config.APConfig
	logger Logger

	run runCommandFunc
}

// NewManager creates a WiFi manager for the configured interface.
func NewManager(cfg config.WiFiConfig, apCfg config.APConfig, logger Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		apCfg:  apCfg,
		logger: logger,
		run:    runCommand,
	}
}

// Join connects the interface to the given network in station mode. An
// empty password joins an open network.
//
// The nmcli connect runs in the background while the interface state is
// polled, so the attempt is bounded by the configured join timeout even if
// nmcli itself hangs mid-association.
func (m *Manager) Join(ctx context.Context, ssid, password string) error {
	if ssid == "" {
		return fmt.Errorf("%w: ssid is empty", ErrJoinFailed)
	}

	joinCtx, cancel := context.WithTimeout(ctx, m.cfg.JoinTimeout)
	defer cancel()

	m.logger.Info("joining wifi network", "ssid", ssid, "interface", m.cfg.Interface)

	args := []string{"dev", "wifi", "connect", ssid, "ifname", m.cfg.Interface}
	if password != "" {
		args = append(args, "password", password)
	}

	errc := make(chan error, 1)
	go func() {
		output, err := m.run(joinCtx, "nmcli", args...)
		if err != nil && joinCtx.Err() == nil {
			errc <- fmt.Errorf("%w: %v (output: %s)", ErrJoinFailed, err, strings.TrimSpace(string(output)))
			return
		}
		errc <- nil
	}()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	nmcliDone := false
	for {
		select {
		case <-joinCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w after %v", ErrJoinTimeout, m.cfg.JoinTimeout)

		case err := <-errc:
			if err != nil {
				return err
			}
			// nmcli exited cleanly; confirm the link actually came up.
			nmcliDone = true
			if m.connected(joinCtx) {
				m.logger.Info("wifi connected", "ssid", ssid)
				return nil
			}

		case <-ticker.C:
			if m.connected(joinCtx) {
				if !nmcliDone {
					m.logger.Debug("wifi link up before nmcli returned", "ssid", ssid)
				}
				m.logger.Info("wifi connected", "ssid", ssid)
				return nil
			}
		}
	}
}

// connected reports whether the interface is in NetworkManager's connected
// state. Errors are treated as not connected; the caller keeps polling
// until its deadline.
func (m *Manager) connected(ctx context.Context) bool {
	output, err := m.run(ctx, "nmcli", "-t", "-f", "GENERAL.STATE", "dev", "show", m.cfg.Interface)
	if err != nil {
		return false
	}
	// Output looks like "GENERAL.STATE:100 (connected)".
	return strings.Contains(string(output), "(connected)")
}

// StartAccessPoint brings up the provisioning hotspot on the interface.
func (m *Manager) StartAccessPoint(ctx context.Context) error {
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	m.logger.Info("starting provisioning access point", "ssid", m.apCfg.SSID)

	args := []string{
		"dev", "wifi", "hotspot",
		"ifname", m.cfg.Interface,
		"con-name", hotspotConnectionName,
		"ssid", m.apCfg.SSID,
	}
	if m.apCfg.Password != "" {
		args = append(args, "password", m.apCfg.Password)
	}

	output, err := m.run(cmdCtx, "nmcli", args...)
	if err != nil {
		return fmt.Errorf("starting access point: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// StopAccessPoint tears down the provisioning hotspot. Stopping a hotspot
// that is not running is not an error.
func (m *Manager) StopAccessPoint(ctx context.Context) error {
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	output, err := m.run(cmdCtx, "nmcli", "connection", "down", hotspotConnectionName)
	if err != nil {
		// nmcli exits non-zero when the connection is already down or
		// unknown; both are fine here.
		if strings.Contains(string(output), "not an active connection") ||
			strings.Contains(string(output), "unknown connection") {
			return nil
		}
		return fmt.Errorf("stopping access point: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}

	m.logger.Info("provisioning access point stopped")
	return nil
}
