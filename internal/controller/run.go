package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/beeper-core/internal/credentials"
	"github.com/nerrad567/beeper-core/internal/infrastructure/mqtt"
)

// Run drives the device from boot to shutdown.
//
// The sequence is:
//  1. Boot blink, load stored credentials
//  2. No credentials: setup mode (AP + portal) until provisioned or reset
//  3. Join the stored network; on failure fall back to setup mode
//  4. Dial the broker with bounded retries; on exhaustion fall back to setup mode
//  5. Subscribe, confirmation beep, then the steady-state poll loop
//
// Run blocks until ctx is cancelled or the device restarts underneath it.
//
// Returns:
//   - error: nil on clean shutdown, otherwise the fault that ended the run
func (c *Controller) Run(ctx context.Context) error {
	c.signals.BootBlink()

	creds, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if !creds.Provisioned() {
		c.setState(StateUnprovisioned, "no stored network")
		return c.runSetupMode(ctx)
	}

	c.setState(StateConnectingWiFi, "")
	if err := c.network.Join(ctx, creds.WiFiSSID, creds.WiFiPassword); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("wifi join failed, falling back to setup mode", "error", err)
		return c.runSetupMode(ctx)
	}

	conn, err := c.connectBroker(ctx, creds)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("broker unreachable, falling back to setup mode", "error", err)
		return c.runSetupMode(ctx)
	}

	c.setConn(conn)
	c.setState(StateSubscribed, "")
	c.signals.Success()
	c.touchActivity()

	return c.runLoop(ctx, creds)
}

// connectBroker makes bounded connection attempts against the broker.
// Each attempt is a full dial plus feed subscription; a connection that
// cannot subscribe counts as a failed attempt.
func (c *Controller) connectBroker(ctx context.Context, creds credentials.DeviceConfig) (BrokerConn, error) {
	c.setState(StateConnectingBroker, "")

	if !creds.HasBrokerCredentials() {
		return nil, fmt.Errorf("stored config has no broker credentials")
	}

	feedKey := creds.FeedKey
	if feedKey == "" {
		feedKey = credentials.DefaultFeedKey
	}
	topic, err := mqtt.FeedTopic(creds.BrokerUsername, feedKey)
	if err != nil {
		return nil, fmt.Errorf("building feed topic: %w", err)
	}

	c.mu.Lock()
	c.topic = topic
	c.feedKey = feedKey
	c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.Broker.MaxConnectAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.cfg.Broker.RetryDelay); err != nil {
				return nil, err
			}
		}

		conn, err := c.dial(creds)
		if err != nil {
			lastErr = err
			c.logger.Warn("broker connection attempt failed",
				"attempt", attempt,
				"max_attempts", c.cfg.Broker.MaxConnectAttempts,
				"error", err,
			)
			continue
		}
		return conn, nil
	}

	return nil, fmt.Errorf("broker unreachable after %d attempts: %w", c.cfg.Broker.MaxConnectAttempts, lastErr)
}

// dial makes one connection attempt and subscribes to the feed.
func (c *Controller) dial(creds credentials.DeviceConfig) (BrokerConn, error) {
	conn, err := c.dialer.Dial(mqtt.Credentials{
		Username: creds.BrokerUsername,
		Key:      creds.BrokerKey,
	}, mqtt.ClientID(c.deviceID))
	if err != nil {
		return nil, err
	}

	conn.SetOnDisconnect(func(err error) {
		c.logger.Warn("broker connection lost", "error", err)
	})

	if err := conn.Subscribe(c.feedTopic(), feedQoS, c.handleFeedMessage); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// runLoop is the steady-state cycle: reset button, connection health, idle
// timer. Each tick does at most one reconnect attempt.
func (c *Controller) runLoop(ctx context.Context, creds credentials.DeviceConfig) error {
	ticker := time.NewTicker(c.cfg.WiFi.PollInterval)
	defer ticker.Stop()
	defer func() {
		if conn := c.currentConn(); conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		pressed, err := c.device.ResetPressed()
		if err != nil {
			c.logger.Warn("reset button read failed", "error", err)
		}
		if pressed {
			return c.factoryReset(ctx)
		}

		conn := c.currentConn()
		if conn == nil || !conn.IsConnected() {
			c.setState(StateDegraded, "connection lost")
			if !c.reconnect(creds) {
				// Hold off before the next attempt so a fast refusal
				// does not turn every tick into a dial.
				if err := c.sleep(ctx, c.cfg.Broker.RetryDelay); err != nil {
					return nil
				}
			}
			continue
		}

		if after := c.cfg.Idle.DeepSleepAfter; after > 0 && c.idleFor() >= after {
			c.deepSleep(ctx)
		}
	}
}

// reconnect makes a single dial attempt from the degraded state and
// reports whether the connection was re-established.
func (c *Controller) reconnect(creds credentials.DeviceConfig) bool {
	if old := c.currentConn(); old != nil {
		old.Close()
		c.setConn(nil)
	}

	conn, err := c.dial(creds)
	if err != nil {
		c.logger.Warn("reconnect attempt failed", "error", err)
		return false
	}

	c.setConn(conn)
	c.setState(StateSubscribed, "reconnected")
	c.signals.Success()
	c.touchActivity()
	return true
}

// factoryReset clears the stored credentials and restarts the device.
func (c *Controller) factoryReset(ctx context.Context) error {
	c.logger.Info("reset button pressed, clearing credentials")
	c.signals.Reset()
	if c.tel != nil {
		c.tel.WriteLifecycleEvent(c.deviceID, "factory_reset")
	}

	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	if err := c.power.Restart(ctx); err != nil {
		return fmt.Errorf("restart after reset: %w", err)
	}
	return nil
}

// deepSleep powers the device down for the configured interval. The broker
// connection is closed first; the poll loop re-establishes it after wake.
func (c *Controller) deepSleep(ctx context.Context) {
	c.logger.Info("idle threshold reached, entering deep sleep",
		"idle_for", c.idleFor().String(),
		"sleep_for", c.cfg.Idle.DeepSleepFor.String(),
	)
	if c.tel != nil {
		c.tel.WriteLifecycleEvent(c.deviceID, "deep_sleep")
	}

	if conn := c.currentConn(); conn != nil {
		conn.Close()
		c.setConn(nil)
	}

	if err := c.power.DeepSleep(ctx, c.cfg.Idle.DeepSleepFor); err != nil {
		c.logger.Error("deep sleep failed", "error", err)
	}

	// Waking counts as activity, otherwise the idle timer would fire again
	// on the very next tick.
	c.touchActivity()
}

// runSetupMode raises the provisioning AP and portal and waits for either
// provisioning (the portal restarts the device), a reset press, or shutdown.
func (c *Controller) runSetupMode(ctx context.Context) error {
	c.signals.Setup()
	if c.tel != nil {
		c.tel.WriteLifecycleEvent(c.deviceID, "setup_mode")
	}

	if err := c.network.StartAccessPoint(ctx); err != nil {
		return fmt.Errorf("starting access point: %w", err)
	}
	defer func() {
		if err := c.network.StopAccessPoint(context.Background()); err != nil {
			c.logger.Warn("stopping access point failed", "error", err)
		}
	}()

	if err := c.portal.Start(ctx); err != nil {
		return fmt.Errorf("starting portal: %w", err)
	}
	defer func() {
		if err := c.portal.Close(); err != nil {
			c.logger.Warn("closing portal failed", "error", err)
		}
	}()

	c.logger.Info("setup mode active", "ap_ssid", c.cfg.AP.SSID)

	ticker := time.NewTicker(c.cfg.WiFi.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pressed, err := c.device.ResetPressed()
			if err == nil && pressed {
				return c.factoryReset(ctx)
			}
		}
	}
}
