package mqtt

import "fmt"

// Topic constants for the Herp Keeper message bus.
//
// The bus carries a single application channel ("messages") that every API
// instance publishes to and subscribes from, plus a system prefix for
// operational status.
const (
	// TopicMessages is the shared application channel. All profile update
	// facts flow through this topic, fanning out to every API instance.
	TopicMessages = "messages"

	// TopicPrefixSystem is the base for operational status topics.
	TopicPrefixSystem = "herpkeeper/system"
)

// Topics provides builders for Herp Keeper MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// Messages returns the shared application message channel.
func (Topics) Messages() string {
	return TopicMessages
}

// SystemStatus returns the system status topic.
//
// Example: herpkeeper/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
