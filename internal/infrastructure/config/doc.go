// Package config handles loading and validating Beeper Core configuration.
//
// This package manages:
//   - Compiled-in defaults mirroring the device constants (pins, AP name,
//     join timeout, broker retry bounds)
//   - Optional overrides from a YAML file
//   - Environment variable overrides (BEEPER_SECTION_KEY)
//   - Validation of required fields
//
// There is deliberately no flag parsing: the device has no command-line
// surface, and the YAML file may be absent on a factory-fresh unit.
//
// Security Considerations:
//   - Sensitive values (InfluxDB tokens) should be set via environment variables
//   - WiFi and broker credentials never live here; they are collected by the
//     provisioning portal and held in the credential store
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Broker.Host)
package config
