// Package mqtt provides connectivity to the cloud feed broker.
//
// This package manages:
//   - Single-attempt connections over TLS with username/key authentication
//   - Message publishing with QoS guarantees
//   - Feed topic subscriptions with panic-safe handlers
//   - Connection health monitoring
//
// # Reconnection
//
// Deliberately absent. Connect performs exactly one attempt, and a lost
// connection stays lost until the owner connects again. The connection
// controller paces retries (a bounded burst at boot, then one attempt per
// poll cycle), so a second retry loop inside the client would double
// connection attempts and confuse the state machine.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.Broker, mqtt.Credentials{
//	    Username: creds.BrokerUsername,
//	    Key:      creds.BrokerKey,
//	}, mqtt.ClientID(deviceID))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic, _ := mqtt.FeedTopic(creds.BrokerUsername, creds.FeedKey)
//	err = client.Subscribe(topic, 1, func(topic string, payload []byte) error {
//	    log.Printf("feed update: %s", payload)
//	    return nil
//	})
package mqtt
