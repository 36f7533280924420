// Beeper Core - networked doorbell device agent
//
// This is the main entry point for the beeper device. The device joins a
// provisioned WiFi network, subscribes to a cloud feed over MQTT, and
// sounds its buzzer when the feed signals. Without stored credentials it
// raises a temporary access point and serves a provisioning portal instead.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/beeper-core/migrations"

	"github.com/nerrad567/beeper-core/internal/controller"
	"github.com/nerrad567/beeper-core/internal/credentials"
	"github.com/nerrad567/beeper-core/internal/hal"
	"github.com/nerrad567/beeper-core/internal/infrastructure/config"
	"github.com/nerrad567/beeper-core/internal/infrastructure/database"
	"github.com/nerrad567/beeper-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/beeper-core/internal/infrastructure/logging"
	"github.com/nerrad567/beeper-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/beeper-core/internal/portal"
	"github.com/nerrad567/beeper-core/internal/system"
	"github.com/nerrad567/beeper-core/internal/wifi"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// brokerDialer adapts mqtt.Connect to the controller's dialer interface.
type brokerDialer struct {
	cfg config.BrokerConfig
}

func (d brokerDialer) Dial(creds mqtt.Credentials, clientID string) (controller.BrokerConn, error) {
	return mqtt.Connect(d.cfg, creds, clientID)
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Beeper Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Stable device identity for the MQTT client ID
	deviceID, err := system.DeviceID()
	if err != nil {
		return fmt.Errorf("reading device identity: %w", err)
	}
	log.Info("device identity", "device_id", deviceID)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Credential store
	store := credentials.NewSQLiteStore(db.DB)

	// Board peripherals
	device, err := hal.OpenGPIO(cfg.Hardware)
	if err != nil {
		return fmt.Errorf("opening GPIO: %w", err)
	}
	defer func() {
		log.Info("releasing GPIO lines")
		if closeErr := device.Close(); closeErr != nil {
			log.Error("error closing GPIO", "error", closeErr)
		}
	}()
	log.Info("GPIO ready",
		"chip", cfg.Hardware.Chip,
		"buzzer_pin", cfg.Hardware.BuzzerPin,
		"led_pin", cfg.Hardware.LEDPin,
		"reset_pin", cfg.Hardware.ResetButtonPin,
	)

	signals := hal.NewSignaller(device)

	// Network and power management
	network := wifi.NewManager(cfg.WiFi, cfg.AP, log)
	power := system.NewPower()

	// Provisioning portal (started by the controller when needed)
	portalServer, err := portal.New(portal.Deps{
		Config: cfg.Portal,
		Logger: log,
		Store:  store,
		Power:  power,
	})
	if err != nil {
		return fmt.Errorf("creating portal: %w", err)
	}

	// Connect to InfluxDB (optional)
	var telemetry controller.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Lifecycle controller
	ctrl, err := controller.New(controller.Deps{
		Config:    cfg,
		Logger:    log,
		Store:     store,
		Network:   network,
		Dialer:    brokerDialer{cfg: cfg.Broker},
		Device:    device,
		Signals:   signals,
		Power:     power,
		Portal:    portalServer,
		Telemetry: telemetry,
		DeviceID:  deviceID,
	})
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	log.Info("initialisation complete, starting device lifecycle")

	if err := ctrl.Run(ctx); err != nil {
		return fmt.Errorf("device lifecycle: %w", err)
	}

	log.Info("Beeper Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BEEPER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BEEPER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
