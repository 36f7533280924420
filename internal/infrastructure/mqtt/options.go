package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/beeper-core/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for a single
	// connection attempt. Retry pacing lives in the controller, not here.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level the cloud broker supports.
	maxQoS = 1

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Credentials authenticates the client against the cloud broker. Key is the
// account's API key, used as the MQTT password.
type Credentials struct {
	Username string
	Key      string
}

// buildClientOptions creates paho MQTT options for the cloud broker.
//
// Auto-reconnect is deliberately disabled: the connection controller owns
// retry pacing (bounded attempts at boot, then one attempt per poll cycle),
// and a paho-level reconnect loop underneath it would fight that logic.
func buildClientOptions(cfg config.BrokerConfig, creds Credentials, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)
	opts.AddBroker(brokerURL)

	opts.SetClientID(clientID)
	opts.SetUsername(creds.Username)
	opts.SetPassword(creds.Key)

	// Clean session - the broker holds no state for us between connects.
	opts.SetCleanSession(true)

	// Reconnection is controller-owned.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.TLS {
		tlsConfig := &tls.Config{
			MinVersion: tlsMinVersion,
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts
}
