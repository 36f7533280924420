// Package wifi manages the wireless interface through NetworkManager's
// nmcli tool: joining a stored network in station mode, and hosting the
// temporary provisioning access point when no usable network exists.
//
// Join drives the connect asynchronously and watches the interface state
// on a fixed poll interval, so a hung association surfaces as ErrJoinTimeout
// rather than blocking the boot sequence indefinitely.
package wifi
