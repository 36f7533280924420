package credentials

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Setting keys in the settings table.
const (
	keyWiFiSSID       = "wifi_ssid"
	keyWiFiPassword   = "wifi_password"
	keyBrokerUsername = "broker_username"
	keyBrokerKey      = "broker_key"
	keyFeedKey        = "feed_key"
)

// Store defines the interface for credential persistence.
// This abstraction allows for different implementations (SQLite, fake)
// and enables unit testing without database dependencies.
type Store interface {
	// Save persists all five fields as a single logical unit.
	Save(ctx context.Context, cfg DeviceConfig) error

	// Load returns the stored configuration, with empty-string defaults
	// for any missing field. A factory-fresh device loads the zero value.
	Load(ctx context.Context) (DeviceConfig, error)

	// Clear erases all stored fields. A subsequent Load returns the
	// zero value.
	Clear(ctx context.Context) error
}

// SQLiteStore implements Store using the settings table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed credential store.
// The db parameter should be an open connection with migrations applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save persists all five fields in one transaction.
// Either every field commits or none do: a power cut mid-save never leaves
// a half-provisioned device.
func (s *SQLiteStore) Save(ctx context.Context, cfg DeviceConfig) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	fields := map[string]string{
		keyWiFiSSID:       cfg.WiFiSSID,
		keyWiFiPassword:   cfg.WiFiPassword,
		keyBrokerUsername: cfg.BrokerUsername,
		keyBrokerKey:      cfg.BrokerKey,
		keyFeedKey:        cfg.FeedKey,
	}

	for key, value := range fields {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now,
		); err != nil {
			return fmt.Errorf("writing setting %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing credentials: %w", err)
	}
	return nil
}

// Load returns the stored configuration with empty-string defaults.
func (s *SQLiteStore) Load(ctx context.Context) (DeviceConfig, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	var cfg DeviceConfig
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return DeviceConfig{}, fmt.Errorf("scanning setting: %w", err)
		}
		switch key {
		case keyWiFiSSID:
			cfg.WiFiSSID = value
		case keyWiFiPassword:
			cfg.WiFiPassword = value
		case keyBrokerUsername:
			cfg.BrokerUsername = value
		case keyBrokerKey:
			cfg.BrokerKey = value
		case keyFeedKey:
			cfg.FeedKey = value
		}
	}
	if err := rows.Err(); err != nil {
		return DeviceConfig{}, fmt.Errorf("iterating settings: %w", err)
	}
	return cfg, nil
}

// Clear erases the entire settings namespace.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings"); err != nil {
		return fmt.Errorf("clearing settings: %w", err)
	}
	return nil
}
