// Package influxdb provides optional event telemetry for the device.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, event writing and health monitoring. Telemetry is disabled by
// default: the device is fully functional without it, and Connect returns
// ErrDisabled when it is off so callers can skip wiring cleanly.
//
// # Purpose
//
// This package records operational history for:
//   - Feed signals received and whether they triggered the buzzer
//   - Connection state transitions (WiFi joined, broker subscribed, degraded)
//   - Provisioning and factory reset events
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback. Connection and health check errors are returned directly.
package influxdb
