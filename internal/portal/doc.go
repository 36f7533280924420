// Package portal provides the provisioning web server.
//
// When the device has no stored network, or cannot reach one, it raises a
// temporary access point and serves this portal on it. The portal is a
// single HTML form: network name and password, broker account username and
// key, and the feed key to watch. Saving writes the credentials to the
// store and restarts the device so the boot sequence picks them up.
//
// The server follows the same lifecycle pattern as the other components:
//
//	server, err := portal.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package portal
