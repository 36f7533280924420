package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSignalEvent records a feed message and whether it triggered the buzzer.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: This device's stable identifier
//   - feedKey: The feed the message arrived on
//   - payload: The raw message payload
//   - triggered: Whether the payload matched and the buzzer fired
func (c *Client) WriteSignalEvent(deviceID string, feedKey string, payload string, triggered bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"signal_events",
		map[string]string{
			"device_id": deviceID,
			"feed":      feedKey,
		},
		map[string]interface{}{
			"payload":   payload,
			"triggered": triggered,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteConnectionEvent records a connection state transition.
//
// Parameters:
//   - deviceID: This device's stable identifier
//   - state: The state entered (e.g., "subscribed", "degraded")
//   - detail: Free-form context, such as the disconnect reason (may be empty)
func (c *Client) WriteConnectionEvent(deviceID string, state string, detail string) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"value": 1,
	}
	if detail != "" {
		fields["detail"] = detail
	}

	point := write.NewPoint(
		"connection_events",
		map[string]string{
			"device_id": deviceID,
			"state":     state,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteLifecycleEvent records a provisioning, reset or power event.
//
// Parameters:
//   - deviceID: This device's stable identifier
//   - event: The lifecycle event name (e.g., "provisioned", "factory_reset", "deep_sleep")
func (c *Client) WriteLifecycleEvent(deviceID string, event string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"lifecycle_events",
		map[string]string{
			"device_id": deviceID,
			"event":     event,
		},
		map[string]interface{}{
			"value": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
