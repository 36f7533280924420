package portal

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/beeper-core/internal/credentials"
)

// formHTML is the provisioning page. It is deliberately self-contained:
// the portal is served from a device AP with no internet access, so there
// can be no external assets.
const formHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Beeper Setup</title>
<style>
body { font-family: sans-serif; max-width: 420px; margin: 2em auto; padding: 0 1em; }
label { display: block; margin-top: 1em; font-weight: bold; }
input { width: 100%; padding: 0.5em; box-sizing: border-box; }
small { color: #555; }
button { margin-top: 1.5em; padding: 0.7em 2em; font-size: 1em; }
</style>
</head>
<body>
<h1>Beeper Setup</h1>
<p>Connect this device to your WiFi network and your Adafruit IO account.
When someone presses the button on the website, the beeper will sound.</p>
<form method="POST" action="/save">
<label>WiFi Network Name</label>
<input name="ssid" required>
<label>WiFi Password</label>
<input name="pass" type="password">
<small>Leave empty for an open network.</small>
<label>Adafruit IO Username</label>
<input name="ada_user" required>
<label>Adafruit IO Key</label>
<input name="ada_key" type="password" required>
<small>Found under "My Key" on io.adafruit.com.</small>
<label>Feed Key</label>
<input name="feed_key" value="beeper" required>
<small>The feed this device listens on.</small>
<button type="submit">Save</button>
</form>
<h2>Beep patterns</h2>
<p>1 beep: the device powered on and connected to your network.</p>
<p>2 beeps: the reset button was pressed. Settings are wiped and the
device restarts into this setup page.</p>
<p>3 beeps: the device entered setup mode, the one serving this page.</p>
<p>If you saved your settings but the device comes back to this page
after restarting, the WiFi name or password was probably wrong.</p>
</body>
</html>`

// savedHTML confirms the save before the device restarts and the AP drops.
const savedHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Beeper Setup</title></head>
<body style="font-family: sans-serif; max-width: 420px; margin: 2em auto;">
<h1>Saved!</h1>
<p>The device is restarting and will connect to your network.
This setup network will disappear in a moment.</p>
</body>
</html>`

// handleForm serves the provisioning form.
//
// GET /
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(formHTML))
}

// handleSave validates and persists the submitted credentials, then
// schedules a restart so the boot sequence runs with them.
//
// POST /save
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Missing fields", http.StatusBadRequest)
		return
	}

	cfg := credentials.DeviceConfig{
		WiFiSSID:       r.PostFormValue("ssid"),
		WiFiPassword:   r.PostFormValue("pass"),
		BrokerUsername: r.PostFormValue("ada_user"),
		BrokerKey:      r.PostFormValue("ada_key"),
		FeedKey:        r.PostFormValue("feed_key"),
	}

	// The WiFi password is the only optional field: open networks exist.
	if cfg.WiFiSSID == "" || cfg.BrokerUsername == "" || cfg.BrokerKey == "" || cfg.FeedKey == "" {
		http.Error(w, "Missing fields", http.StatusBadRequest)
		return
	}

	if err := s.store.Save(r.Context(), cfg); err != nil {
		s.logger.Error("saving credentials failed", "error", err)
		http.Error(w, "Failed to save settings", http.StatusInternalServerError)
		return
	}

	s.logger.Info("credentials saved, restarting",
		"ssid", cfg.WiFiSSID,
		"feed_key", cfg.FeedKey,
	)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(savedHTML))

	// Delay the restart so the confirmation page reaches the client
	// before the AP goes down with the rest of the device.
	go func() {
		select {
		case <-time.After(s.cfg.RestartDelay):
		case <-s.baseCtx.Done():
			return
		}
		if err := s.power.Restart(context.Background()); err != nil {
			s.logger.Error("restart after provisioning failed", "error", err)
		}
	}()
}

// handleHealth reports portal liveness.
//
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
