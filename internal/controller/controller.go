package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/beeper-core/internal/credentials"
	"github.com/nerrad567/beeper-core/internal/hal"
	"github.com/nerrad567/beeper-core/internal/infrastructure/config"
	"github.com/nerrad567/beeper-core/internal/infrastructure/logging"
	"github.com/nerrad567/beeper-core/internal/infrastructure/mqtt"
)

// ConnectionState describes where the device is in its lifecycle.
type ConnectionState int

// Lifecycle states, in rough boot order.
const (
	StateUnprovisioned ConnectionState = iota
	StateConnectingWiFi
	StateConnectingBroker
	StateSubscribed
	StateDegraded
)

// String returns the state name for logging.
func (s ConnectionState) String() string {
	switch s {
	case StateUnprovisioned:
		return "unprovisioned"
	case StateConnectingWiFi:
		return "connecting_wifi"
	case StateConnectingBroker:
		return "connecting_broker"
	case StateSubscribed:
		return "subscribed"
	case StateDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Network joins wireless networks and hosts the provisioning access point.
// Implemented by wifi.Manager.
type Network interface {
	Join(ctx context.Context, ssid, password string) error
	StartAccessPoint(ctx context.Context) error
	StopAccessPoint(ctx context.Context) error
}

// BrokerConn is an established broker connection. Implemented by mqtt.Client.
type BrokerConn interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	PublishString(topic string, payload string, qos byte, retained bool) error
	IsConnected() bool
	SetOnDisconnect(callback func(err error))
	Close() error
}

// BrokerDialer performs a single connection attempt against the broker.
type BrokerDialer interface {
	Dial(creds mqtt.Credentials, clientID string) (BrokerConn, error)
}

// Signals plays the feedback patterns. Implemented by hal.Signaller.
type Signals interface {
	Success()
	Reset()
	Setup()
	BootBlink()
}

// Power performs restarts and timed deep sleeps. Implemented by system.Power.
type Power interface {
	Restart(ctx context.Context) error
	DeepSleep(ctx context.Context, d time.Duration) error
}

// Portal is the provisioning web server. Implemented by portal.Server.
type Portal interface {
	Start(ctx context.Context) error
	Close() error
}

// Telemetry records operational events. Implemented by influxdb.Client.
// A nil Telemetry disables recording.
type Telemetry interface {
	WriteSignalEvent(deviceID string, feedKey string, payload string, triggered bool)
	WriteConnectionEvent(deviceID string, state string, detail string)
	WriteLifecycleEvent(deviceID string, event string)
}

// Deps holds the dependencies required by the controller.
type Deps struct {
	Config    *config.Config
	Logger    *logging.Logger
	Store     credentials.Store
	Network   Network
	Dialer    BrokerDialer
	Device    hal.Device
	Signals   Signals
	Power     Power
	Portal    Portal
	Telemetry Telemetry // optional
	DeviceID  string
}

// Controller is the device lifecycle state machine.
//
// Run() drives it to completion; all other methods are safe for concurrent
// use (the feed message handler runs on the MQTT client's goroutines).
type Controller struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    credentials.Store
	network  Network
	dialer   BrokerDialer
	device   hal.Device
	signals  Signals
	power    Power
	portal   Portal
	tel      Telemetry
	deviceID string

	// sleep is swappable so tests run without real retry delays.
	sleep func(ctx context.Context, d time.Duration) error

	mu           sync.Mutex
	state        ConnectionState
	conn         BrokerConn
	topic        string
	feedKey      string
	lastActivity time.Time
}

// New creates a controller with the given dependencies.
//
// Parameters:
//   - deps: Required dependencies (everything except Telemetry)
//
// Returns:
//   - *Controller: Ready to Run
//   - error: If required dependencies are missing
func New(deps Deps) (*Controller, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if deps.Network == nil {
		return nil, fmt.Errorf("network manager is required")
	}
	if deps.Dialer == nil {
		return nil, fmt.Errorf("broker dialer is required")
	}
	if deps.Device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if deps.Signals == nil {
		return nil, fmt.Errorf("signaller is required")
	}
	if deps.Power == nil {
		return nil, fmt.Errorf("power manager is required")
	}
	if deps.Portal == nil {
		return nil, fmt.Errorf("portal is required")
	}

	return &Controller{
		cfg:      deps.Config,
		logger:   deps.Logger,
		store:    deps.Store,
		network:  deps.Network,
		dialer:   deps.Dialer,
		device:   deps.Device,
		signals:  deps.Signals,
		power:    deps.Power,
		portal:   deps.Portal,
		tel:      deps.Telemetry,
		deviceID: deps.DeviceID,
		sleep:    sleepCtx,
		state:    StateUnprovisioned,
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState transitions to a new state and records the transition.
func (c *Controller) setState(state ConnectionState, detail string) {
	c.mu.Lock()
	prev := c.state
	c.state = state
	c.mu.Unlock()

	if prev == state {
		return
	}

	c.logger.Info("state transition", "from", prev.String(), "to", state.String(), "detail", detail)
	if c.tel != nil {
		c.tel.WriteConnectionEvent(c.deviceID, state.String(), detail)
	}
}

// touchActivity marks now as the last broker activity, for the idle timer.
func (c *Controller) touchActivity() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// idleFor returns how long the device has been without broker activity.
func (c *Controller) idleFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastActivity.IsZero() {
		return 0
	}
	return time.Since(c.lastActivity)
}

// currentConn returns the active broker connection, if any.
func (c *Controller) currentConn() BrokerConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// setConn swaps the active broker connection.
func (c *Controller) setConn(conn BrokerConn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
