// Package database provides SQLite database connectivity for Beeper Core.
//
// This package manages:
//   - Database connection with WAL mode for power-loss robustness
//   - Schema migrations embedded into the device binary
//   - Health checks and lifecycle management
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600; the file holds the
//     provisioned WiFi password and broker key
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
