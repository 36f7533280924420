package portal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/beeper-core/internal/credentials"
	"github.com/nerrad567/beeper-core/internal/infrastructure/config"
	"github.com/nerrad567/beeper-core/internal/infrastructure/logging"
)

// fakeStore records saved credentials in memory.
type fakeStore struct {
	mu      sync.Mutex
	saved   *credentials.DeviceConfig
	saveErr error
}

func (f *fakeStore) Save(_ context.Context, cfg credentials.DeviceConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = &cfg
	return nil
}

func (f *fakeStore) Load(_ context.Context) (credentials.DeviceConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		return credentials.DeviceConfig{}, nil
	}
	return *f.saved, nil
}

func (f *fakeStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = nil
	return nil
}

// fakePower signals on Restart instead of rebooting.
type fakePower struct {
	restarted chan struct{}
}

func newFakePower() *fakePower {
	return &fakePower{restarted: make(chan struct{}, 1)}
}

func (f *fakePower) Restart(_ context.Context) error {
	select {
	case f.restarted <- struct{}{}:
	default:
	}
	return nil
}

func newTestServer(t *testing.T, store credentials.Store, power Restarter) *Server {
	t.Helper()

	s, err := New(Deps{
		Config: config.PortalConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			RestartDelay: 10 * time.Millisecond,
		},
		Logger: logging.Default(),
		Store:  store,
		Power:  power,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.baseCtx = context.Background()
	return s
}

func validForm() url.Values {
	return url.Values{
		"ssid":     {"HomeNet"},
		"pass":     {"secret123"},
		"ada_user": {"alice"},
		"ada_key":  {"aio_test_key"},
		"feed_key": {"beeper"},
	}
}

func postForm(s *Server, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/save", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)
	return rec
}

func TestNewMissingDeps(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Store: &fakeStore{}, Power: newFakePower()}},
		{"no store", Deps{Logger: logging.Default(), Power: newFakePower()}},
		{"no power", Deps{Logger: logging.Default(), Store: &fakeStore{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}

func TestHandleForm(t *testing.T) {
	s := newTestServer(t, &fakeStore{}, newFakePower())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	for _, field := range []string{`name="ssid"`, `name="pass"`, `name="ada_user"`, `name="ada_key"`, `name="feed_key"`} {
		if !strings.Contains(body, field) {
			t.Errorf("form missing input %s", field)
		}
	}
	if !strings.Contains(body, `value="beeper"`) {
		t.Error("feed_key input should default to beeper")
	}
	// The page is the device's only self-documentation, so it must
	// explain the beep patterns and the bad-credentials symptom.
	for _, hint := range []string{"1 beep", "2 beeps", "3 beeps", "comes back to this page"} {
		if !strings.Contains(body, hint) {
			t.Errorf("form missing help text %q", hint)
		}
	}
}

func TestHandleSave(t *testing.T) {
	store := &fakeStore{}
	power := newFakePower()
	s := newTestServer(t, store, power)

	rec := postForm(s, validForm())

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /save status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	store.mu.Lock()
	saved := store.saved
	store.mu.Unlock()
	if saved == nil {
		t.Fatal("credentials not saved")
	}
	if saved.WiFiSSID != "HomeNet" || saved.BrokerUsername != "alice" || saved.FeedKey != "beeper" {
		t.Errorf("saved = %+v, want submitted values", saved)
	}

	select {
	case <-power.restarted:
	case <-time.After(time.Second):
		t.Error("restart not triggered after save")
	}
}

func TestHandleSaveOpenNetwork(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(t, store, newFakePower())

	form := validForm()
	form.Set("pass", "")
	rec := postForm(s, form)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /save status = %d, want %d", rec.Code, http.StatusOK)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.saved == nil || store.saved.WiFiPassword != "" {
		t.Errorf("saved = %+v, want empty wifi password", store.saved)
	}
}

func TestHandleSaveMissingFields(t *testing.T) {
	required := []string{"ssid", "ada_user", "ada_key", "feed_key"}

	for _, field := range required {
		t.Run(field, func(t *testing.T) {
			store := &fakeStore{}
			power := newFakePower()
			s := newTestServer(t, store, power)

			form := validForm()
			form.Set(field, "")
			rec := postForm(s, form)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != "Missing fields" {
				t.Errorf("body = %q, want %q", got, "Missing fields")
			}

			store.mu.Lock()
			saved := store.saved
			store.mu.Unlock()
			if saved != nil {
				t.Error("credentials saved despite missing field")
			}
			select {
			case <-power.restarted:
				t.Error("restart triggered despite missing field")
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}

func TestHandleSaveStoreFailure(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("disk full")}
	power := newFakePower()
	s := newTestServer(t, store, power)

	rec := postForm(s, validForm())

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	select {
	case <-power.restarted:
		t.Error("restart triggered despite save failure")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, &fakeStore{}, newFakePower())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", rec.Code, http.StatusOK)
	}
}
