package controller

import "strings"

const (
	// feedQoS is the QoS for feed subscribe and publish. The cloud broker
	// supports at most QoS 1.
	feedQoS = 1

	// clearPayload is published back to the feed after a signal so the
	// feed value returns to its resting state.
	clearPayload = "false"
)

// handleFeedMessage processes one message from the feed subscription.
//
// Every message counts as broker activity for the idle timer, matched or
// not. A matched payload sounds the buzzer and writes the clear value back
// to the feed; a failed clear publish is logged and dropped, never retried,
// so a flaky link cannot queue up stale "false" writes.
func (c *Controller) handleFeedMessage(topic string, payload []byte) error {
	c.touchActivity()

	text := string(payload)
	triggered := shouldBeep(text)

	if c.tel != nil {
		c.tel.WriteSignalEvent(c.deviceID, c.feedKeyName(), text, triggered)
	}

	if !triggered {
		c.logger.Debug("feed message ignored", "topic", topic, "payload", text)
		return nil
	}

	c.logger.Info("signal received", "topic", topic)
	c.signals.Success()

	conn := c.currentConn()
	if conn == nil {
		return nil
	}
	if err := conn.PublishString(c.feedTopic(), clearPayload, feedQoS, false); err != nil {
		c.logger.Warn("feed clear publish failed", "error", err)
	}
	return nil
}

// shouldBeep reports whether a feed payload is a ring signal: any payload
// containing "true" in any case, or exactly "1" after trimming whitespace.
func shouldBeep(payload string) bool {
	if strings.Contains(strings.ToLower(payload), "true") {
		return true
	}
	return strings.TrimSpace(payload) == "1"
}

// feedTopic returns the subscribed feed topic.
func (c *Controller) feedTopic() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topic
}

// feedKeyName returns the feed key in use.
func (c *Controller) feedKeyName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feedKey
}
