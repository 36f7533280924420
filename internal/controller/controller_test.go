package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/beeper-core/internal/credentials"
	"github.com/nerrad567/beeper-core/internal/infrastructure/config"
	"github.com/nerrad567/beeper-core/internal/infrastructure/logging"
	"github.com/nerrad567/beeper-core/internal/infrastructure/mqtt"
)

// waitTimeout bounds every wait in these tests. Generous because CI
// machines stall; the poll intervals in testConfig keep the happy path fast.
const waitTimeout = 5 * time.Second

func testConfig() *config.Config {
	return &config.Config{
		AP: config.APConfig{SSID: "BEEPER-SETUP", Password: "beeper1234"},
		WiFi: config.WiFiConfig{
			Interface:    "wlan0",
			JoinTimeout:  time.Second,
			PollInterval: 2 * time.Millisecond,
		},
		Broker: config.BrokerConfig{
			Host:               "io.adafruit.com",
			Port:               8883,
			TLS:                true,
			MaxConnectAttempts: 6,
			RetryDelay:         time.Millisecond,
		},
	}
}

func provisionedCreds() credentials.DeviceConfig {
	return credentials.DeviceConfig{
		WiFiSSID:       "HomeNet",
		WiFiPassword:   "secret123",
		BrokerUsername: "alice",
		BrokerKey:      "aio_test_key",
		FeedKey:        "beeper",
	}
}

// =============================================================================
// Fakes
// =============================================================================

type fakeStore struct {
	mu      sync.Mutex
	creds   credentials.DeviceConfig
	cleared bool
}

func (f *fakeStore) Save(_ context.Context, cfg credentials.DeviceConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = cfg
	return nil
}

func (f *fakeStore) Load(_ context.Context) (credentials.DeviceConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds, nil
}

func (f *fakeStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = credentials.DeviceConfig{}
	f.cleared = true
	return nil
}

func (f *fakeStore) wasCleared() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared
}

type fakeNetwork struct {
	mu        sync.Mutex
	joinErr   error
	joins     int
	apStarted chan struct{}
	apStopped bool
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{apStarted: make(chan struct{}, 1)}
}

func (f *fakeNetwork) Join(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins++
	return f.joinErr
}

func (f *fakeNetwork) StartAccessPoint(_ context.Context) error {
	select {
	case f.apStarted <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeNetwork) StopAccessPoint(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apStopped = true
	return nil
}

type fakeConn struct {
	mu           sync.Mutex
	connected    bool
	subscribed   map[string]mqtt.MessageHandler
	published    []string
	publishErr   error
	subscribeErr error
	closed       bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{connected: true, subscribed: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeConn) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subscribed[topic] = handler
	return nil
}

func (f *fakeConn) PublishString(topic string, payload string, _ byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, topic+"="+payload)
	return nil
}

func (f *fakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConn) SetOnDisconnect(func(err error)) {}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.closed = true
	return nil
}

func (f *fakeConn) drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeConn) publishedMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.published))
	copy(out, f.published)
	return out
}

// fakeDialer fails the first failures dials, then hands out fresh conns.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	dials    int
	conns    []*fakeConn
}

func (f *fakeDialer) Dial(_ mqtt.Credentials, _ string) (BrokerConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if f.dials <= f.failures {
		return nil, errors.New("connection refused")
	}
	conn := newFakeConn()
	f.conns = append(f.conns, conn)
	return conn, nil
}

func (f *fakeDialer) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

func (f *fakeDialer) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.conns) {
		return nil
	}
	return f.conns[i]
}

type fakeDevice struct {
	mu      sync.Mutex
	pressed bool
}

func (f *fakeDevice) SetBuzzer(bool) error { return nil }
func (f *fakeDevice) SetLED(bool) error    { return nil }
func (f *fakeDevice) Close() error         { return nil }

func (f *fakeDevice) ResetPressed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pressed, nil
}

func (f *fakeDevice) press() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pressed = true
}

type fakeSignals struct {
	mu     sync.Mutex
	played []string
}

func (f *fakeSignals) Success()   { f.record("success") }
func (f *fakeSignals) Reset()     { f.record("reset") }
func (f *fakeSignals) Setup()     { f.record("setup") }
func (f *fakeSignals) BootBlink() { f.record("boot_blink") }

func (f *fakeSignals) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, name)
}

func (f *fakeSignals) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.played {
		if p == name {
			n++
		}
	}
	return n
}

type fakePower struct {
	restarted chan struct{}
	slept     chan time.Duration
}

func newFakePower() *fakePower {
	return &fakePower{
		restarted: make(chan struct{}, 1),
		slept:     make(chan time.Duration, 1),
	}
}

func (f *fakePower) Restart(_ context.Context) error {
	select {
	case f.restarted <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakePower) DeepSleep(_ context.Context, d time.Duration) error {
	select {
	case f.slept <- d:
	default:
	}
	return nil
}

type fakePortal struct {
	mu      sync.Mutex
	started bool
	closed  bool
}

func (f *fakePortal) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakePortal) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePortal) wasStarted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// =============================================================================
// Harness
// =============================================================================

type harness struct {
	ctrl    *Controller
	store   *fakeStore
	network *fakeNetwork
	dialer  *fakeDialer
	device  *fakeDevice
	signals *fakeSignals
	power   *fakePower
	portal  *fakePortal
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()

	h := &harness{
		store:   &fakeStore{},
		network: newFakeNetwork(),
		dialer:  &fakeDialer{},
		device:  &fakeDevice{},
		signals: &fakeSignals{},
		power:   newFakePower(),
		portal:  &fakePortal{},
	}

	ctrl, err := New(Deps{
		Config:   cfg,
		Logger:   logging.Default(),
		Store:    h.store,
		Network:  h.network,
		Dialer:   h.dialer,
		Device:   h.device,
		Signals:  h.signals,
		Power:    h.power,
		Portal:   h.portal,
		DeviceID: "testdev",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.ctrl = ctrl
	return h
}

// runAsync starts Run in a goroutine and registers cleanup that cancels it
// and waits for exit.
func (h *harness) runAsync(t *testing.T) (context.CancelFunc, chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		done <- h.ctrl.Run(ctx)
		close(exited)
	}()

	// Cleanup waits on exited rather than done so a test that has already
	// drained done does not starve the wait.
	t.Cleanup(func() {
		cancel()
		select {
		case <-exited:
		case <-time.After(waitTimeout):
			t.Error("Run() did not exit after cancel")
		}
	})
	return cancel, done
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// =============================================================================
// Boot sequence
// =============================================================================

func TestRunUnprovisionedEntersSetupMode(t *testing.T) {
	h := newHarness(t, testConfig())

	h.runAsync(t)

	select {
	case <-h.network.apStarted:
	case <-time.After(waitTimeout):
		t.Fatal("access point not started")
	}

	waitFor(t, "portal start", h.portal.wasStarted)
	if got := h.signals.count("setup"); got != 1 {
		t.Errorf("setup beep count = %d, want 1", got)
	}
	if got := h.ctrl.State(); got != StateUnprovisioned {
		t.Errorf("State() = %v, want %v", got, StateUnprovisioned)
	}
	if h.dialer.dialCount() != 0 {
		t.Error("broker dialed before provisioning")
	}
}

func TestRunWiFiFailureFallsBackToSetup(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.creds = provisionedCreds()
	h.network.joinErr = errors.New("join timed out")

	h.runAsync(t)

	select {
	case <-h.network.apStarted:
	case <-time.After(waitTimeout):
		t.Fatal("access point not started after join failure")
	}

	if h.dialer.dialCount() != 0 {
		t.Error("broker dialed despite wifi failure")
	}
	if got := h.signals.count("setup"); got != 1 {
		t.Errorf("setup beep count = %d, want 1", got)
	}
}

func TestRunBrokerRetriesThenConnects(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.creds = provisionedCreds()
	h.dialer.failures = 5

	h.runAsync(t)

	waitFor(t, "subscribed state", func() bool { return h.ctrl.State() == StateSubscribed })

	if got := h.dialer.dialCount(); got != 6 {
		t.Errorf("dial count = %d, want 6", got)
	}
	if got := h.signals.count("success"); got != 1 {
		t.Errorf("success beep count = %d, want 1", got)
	}
	conn := h.dialer.conn(0)
	conn.mu.Lock()
	_, subscribed := conn.subscribed["alice/feeds/beeper"]
	conn.mu.Unlock()
	if !subscribed {
		t.Error("feed subscription missing")
	}
}

func TestRunBrokerExhaustedFallsBackToSetup(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.creds = provisionedCreds()
	h.dialer.failures = 100

	h.runAsync(t)

	select {
	case <-h.network.apStarted:
	case <-time.After(waitTimeout):
		t.Fatal("access point not started after broker exhaustion")
	}

	if got := h.dialer.dialCount(); got != 6 {
		t.Errorf("dial count = %d, want exactly max_connect_attempts (6)", got)
	}
	if got := h.signals.count("success"); got != 0 {
		t.Errorf("success beep count = %d, want 0", got)
	}
}

func TestRunEmptyFeedKeyUsesDefault(t *testing.T) {
	h := newHarness(t, testConfig())
	creds := provisionedCreds()
	creds.FeedKey = ""
	h.store.creds = creds

	h.runAsync(t)

	waitFor(t, "subscribed state", func() bool { return h.ctrl.State() == StateSubscribed })

	conn := h.dialer.conn(0)
	conn.mu.Lock()
	_, subscribed := conn.subscribed["alice/feeds/beeper"]
	conn.mu.Unlock()
	if !subscribed {
		t.Error("default feed topic not subscribed")
	}
}

// =============================================================================
// Steady state
// =============================================================================

func TestRunLoopFactoryReset(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.creds = provisionedCreds()

	_, done := h.runAsync(t)

	waitFor(t, "subscribed state", func() bool { return h.ctrl.State() == StateSubscribed })
	h.device.press()

	select {
	case <-h.power.restarted:
	case <-time.After(waitTimeout):
		t.Fatal("restart not triggered by reset button")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("Run() did not exit after reset")
	}

	if !h.store.wasCleared() {
		t.Error("credentials not cleared on reset")
	}
	if got := h.signals.count("reset"); got != 1 {
		t.Errorf("reset beep count = %d, want 1", got)
	}
}

func TestRunLoopReconnectsAfterDrop(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.creds = provisionedCreds()

	h.runAsync(t)

	waitFor(t, "subscribed state", func() bool { return h.ctrl.State() == StateSubscribed })
	h.dialer.conn(0).drop()

	waitFor(t, "reconnect", func() bool {
		return h.dialer.dialCount() >= 2 && h.ctrl.State() == StateSubscribed
	})

	second := h.dialer.conn(1)
	if second == nil {
		t.Fatal("no second connection dialed")
	}
	second.mu.Lock()
	_, subscribed := second.subscribed["alice/feeds/beeper"]
	second.mu.Unlock()
	if !subscribed {
		t.Error("feed not re-subscribed after reconnect")
	}
	if got := h.signals.count("success"); got != 2 {
		t.Errorf("success beep count = %d, want 2 (boot + reconnect)", got)
	}
}

func TestRunLoopPacesFailedReconnects(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.creds = provisionedCreds()

	var sleepMu sync.Mutex
	var slept []time.Duration
	h.ctrl.sleep = func(_ context.Context, d time.Duration) error {
		sleepMu.Lock()
		slept = append(slept, d)
		sleepMu.Unlock()
		return nil
	}

	h.runAsync(t)

	waitFor(t, "subscribed state", func() bool { return h.ctrl.State() == StateSubscribed })

	// Make every further dial fail fast, then drop the connection.
	h.dialer.mu.Lock()
	h.dialer.failures = 1 << 30
	h.dialer.mu.Unlock()
	h.dialer.conn(0).drop()

	waitFor(t, "repeated reconnect attempts", func() bool { return h.dialer.dialCount() >= 3 })

	sleepMu.Lock()
	defer sleepMu.Unlock()
	if len(slept) == 0 {
		t.Fatal("no delay between failed reconnect attempts")
	}
	for _, d := range slept {
		if d != h.ctrl.cfg.Broker.RetryDelay {
			t.Errorf("reconnect delay = %v, want %v", d, h.ctrl.cfg.Broker.RetryDelay)
		}
	}
}

func TestRunLoopDeepSleepWhenIdle(t *testing.T) {
	cfg := testConfig()
	cfg.Idle.DeepSleepAfter = time.Millisecond
	cfg.Idle.DeepSleepFor = 42 * time.Second
	h := newHarness(t, cfg)
	h.store.creds = provisionedCreds()

	h.runAsync(t)

	select {
	case d := <-h.power.slept:
		if d != 42*time.Second {
			t.Errorf("DeepSleep duration = %v, want 42s", d)
		}
	case <-time.After(waitTimeout):
		t.Fatal("deep sleep not triggered when idle")
	}
}

// =============================================================================
// Feed messages
// =============================================================================

func newSubscribedController(t *testing.T) (*Controller, *fakeConn, *fakeSignals) {
	t.Helper()

	h := newHarness(t, testConfig())
	conn := newFakeConn()
	h.ctrl.setConn(conn)
	h.ctrl.mu.Lock()
	h.ctrl.topic = "alice/feeds/beeper"
	h.ctrl.feedKey = "beeper"
	h.ctrl.mu.Unlock()
	return h.ctrl, conn, h.signals
}

func TestHandleFeedMessagePayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		beep    bool
	}{
		{"bare true", "true", true},
		{"uppercase", "TRUE", true},
		{"mixed case", "True", true},
		{"embedded", `{"value":"true"}`, true},
		{"numeric one", "1", true},
		{"padded one", " 1 ", true},
		{"false", "false", false},
		{"zero", "0", false},
		{"empty", "", false},
		{"ten", "10", false},
		{"word", "ring", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, conn, signals := newSubscribedController(t)

			if err := ctrl.handleFeedMessage("alice/feeds/beeper", []byte(tt.payload)); err != nil {
				t.Fatalf("handleFeedMessage() error = %v", err)
			}

			wantBeeps := 0
			wantPublished := []string(nil)
			if tt.beep {
				wantBeeps = 1
				wantPublished = []string{"alice/feeds/beeper=false"}
			}

			if got := signals.count("success"); got != wantBeeps {
				t.Errorf("beep count = %d, want %d", got, wantBeeps)
			}
			got := conn.publishedMessages()
			if len(got) != len(wantPublished) {
				t.Fatalf("published = %v, want %v", got, wantPublished)
			}
			for i := range wantPublished {
				if got[i] != wantPublished[i] {
					t.Errorf("published[%d] = %q, want %q", i, got[i], wantPublished[i])
				}
			}
		})
	}
}

func TestHandleFeedMessagePublishFailureIsSwallowed(t *testing.T) {
	ctrl, conn, signals := newSubscribedController(t)
	conn.mu.Lock()
	conn.publishErr = errors.New("broker rejected publish")
	conn.mu.Unlock()

	if err := ctrl.handleFeedMessage("alice/feeds/beeper", []byte("true")); err != nil {
		t.Errorf("handleFeedMessage() error = %v, want nil despite publish failure", err)
	}
	if got := signals.count("success"); got != 1 {
		t.Errorf("beep count = %d, want 1", got)
	}
}

func TestHandleFeedMessageUpdatesActivity(t *testing.T) {
	ctrl, _, _ := newSubscribedController(t)

	before := ctrl.idleFor()
	if err := ctrl.handleFeedMessage("alice/feeds/beeper", []byte("false")); err != nil {
		t.Fatalf("handleFeedMessage() error = %v", err)
	}
	after := ctrl.idleFor()

	// A non-matching payload still resets the idle timer.
	if before != 0 && after >= before {
		t.Errorf("idleFor() = %v after message, want less than %v", after, before)
	}
	ctrl.mu.Lock()
	zero := ctrl.lastActivity.IsZero()
	ctrl.mu.Unlock()
	if zero {
		t.Error("lastActivity not set by feed message")
	}
}

// =============================================================================
// Helpers
// =============================================================================

func TestShouldBeep(t *testing.T) {
	if !shouldBeep("it is TRUE") {
		t.Error("shouldBeep(embedded TRUE) = false, want true")
	}
	if shouldBeep("truthy") {
		t.Error("shouldBeep(truthy) = true, want false")
	}
	if shouldBeep("0") {
		t.Error("shouldBeep(0) = true, want false")
	}
}

func TestConnectionStateString(t *testing.T) {
	states := map[ConnectionState]string{
		StateUnprovisioned:    "unprovisioned",
		StateConnectingWiFi:   "connecting_wifi",
		StateConnectingBroker: "connecting_broker",
		StateSubscribed:       "subscribed",
		StateDegraded:         "degraded",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestNewMissingDeps(t *testing.T) {
	deps := Deps{
		Config:   testConfig(),
		Logger:   logging.Default(),
		Store:    &fakeStore{},
		Network:  newFakeNetwork(),
		Dialer:   &fakeDialer{},
		Device:   &fakeDevice{},
		Signals:  &fakeSignals{},
		Power:    newFakePower(),
		Portal:   &fakePortal{},
		DeviceID: "testdev",
	}

	mutations := map[string]func(*Deps){
		"config":  func(d *Deps) { d.Config = nil },
		"logger":  func(d *Deps) { d.Logger = nil },
		"store":   func(d *Deps) { d.Store = nil },
		"network": func(d *Deps) { d.Network = nil },
		"dialer":  func(d *Deps) { d.Dialer = nil },
		"device":  func(d *Deps) { d.Device = nil },
		"signals": func(d *Deps) { d.Signals = nil },
		"power":   func(d *Deps) { d.Power = nil },
		"portal":  func(d *Deps) { d.Portal = nil },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			d := deps
			mutate(&d)
			if _, err := New(d); err == nil {
				t.Errorf("New() without %s expected error, got nil", name)
			}
		})
	}
}
