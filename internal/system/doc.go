// Package system wraps the host-level operations the device needs: identity
// (the stable machine ID used to derive the MQTT client ID), restart, and
// timed deep sleep. All of them shell out to standard Linux tooling, so the
// command runner is injectable for tests.
package system
