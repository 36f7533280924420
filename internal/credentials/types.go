package credentials

// DefaultFeedKey is the feed name used when a stored config predates the
// feed_key field and has it empty. The portal pre-fills the same value.
const DefaultFeedKey = "beeper"

// DeviceConfig holds the five provisioned settings.
//
// The invariant is all-or-nothing: a factory-fresh device has every field
// empty, and a provisioned device has every field written as one group by
// the portal (the WiFi password may legitimately be empty for open
// networks). Nothing mutates individual fields at runtime; the only writers
// are a full re-provision and an explicit reset.
type DeviceConfig struct {
	// WiFiSSID is the network name to join in station mode.
	WiFiSSID string

	// WiFiPassword is the network passphrase. Empty for open networks.
	WiFiPassword string

	// BrokerUsername is the cloud broker account name.
	BrokerUsername string

	// BrokerKey is the cloud broker API key.
	BrokerKey string

	// FeedKey names the feed this device listens on.
	FeedKey string
}

// Provisioned reports whether the device has been through provisioning.
// An empty SSID means first boot (or post-reset): the controller must open
// the provisioning portal before any connection attempt.
func (c DeviceConfig) Provisioned() bool {
	return c.WiFiSSID != ""
}

// HasBrokerCredentials reports whether both broker fields are present.
// A broker connection attempt without them is treated as a failure.
func (c DeviceConfig) HasBrokerCredentials() bool {
	return c.BrokerUsername != "" && c.BrokerKey != ""
}
