// Package controller drives the device lifecycle: boot, provisioning
// fallback, broker connection and the steady-state poll loop.
//
// The controller owns all retry pacing. At boot it makes a bounded number
// of broker connection attempts before falling back to setup mode; once
// subscribed it polls on a fixed interval, making a single reconnect
// attempt per cycle whenever the connection is down. The MQTT client
// underneath performs exactly one attempt per dial and never reconnects on
// its own, so there is only ever one retry loop in the system.
//
// # States
//
//	Unprovisioned   - no stored network; setup mode is the only option
//	ConnectingWiFi  - joining the stored network
//	ConnectingBroker - dialing the cloud broker
//	Subscribed      - feed subscription active, signals are delivered
//	Degraded        - connection lost, reconnecting once per poll cycle
package controller
