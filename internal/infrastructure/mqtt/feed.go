package mqtt

import (
	"fmt"
	"strings"
)

// feedTopicFormat is the broker's per-account feed topic layout.
const feedTopicFormat = "%s/feeds/%s"

// clientIDPrefix namespaces this device's MQTT client ID.
const clientIDPrefix = "beeper-"

// FeedTopic builds the broker topic for a named feed on the given account,
// e.g. FeedTopic("alice", "beeper") returns "alice/feeds/beeper".
//
// Returns:
//   - string: The feed topic
//   - error: If either segment is empty or contains topic metacharacters
func FeedTopic(username, feedKey string) (string, error) {
	if err := validateSegment("username", username); err != nil {
		return "", err
	}
	if err := validateSegment("feed key", feedKey); err != nil {
		return "", err
	}
	return fmt.Sprintf(feedTopicFormat, username, feedKey), nil
}

// ClientID derives the MQTT client identifier from a stable device ID.
func ClientID(deviceID string) string {
	return clientIDPrefix + deviceID
}

// validateSegment rejects empty segments and MQTT topic metacharacters,
// which would silently change what the topic matches.
func validateSegment(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidTopic, name)
	}
	if strings.ContainsAny(value, "/+#") {
		return fmt.Errorf("%w: %s %q contains reserved characters", ErrInvalidTopic, name, value)
	}
	return nil
}
