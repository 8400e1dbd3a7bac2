package mqtt

import "fmt"

// Topic prefixes for the AV-over-IP core MQTT scheme.
//
// Bridge topics use the scheme: avoip/bridge/{bridge_id}/{category}[/{suffix}]
// Core topics use the scheme:   avoip/core/{category}/{suffix}
const (
	// TopicPrefixBridge is the base for all bridge topics.
	TopicPrefixBridge = "avoip/bridge"

	// TopicPrefixCore is the base for all core topics.
	TopicPrefixCore = "avoip/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "avoip/system"
)

// Topics provides builders for AV-over-IP MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	t := topics.CoreSectionChanged("matrix_assignments")
//	// Returns: "avoip/core/sections/matrix_assignments"
type Topics struct{}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeCommand returns the topic requests to a bridge are published to.
//
// Example: avoip/bridge/nhd-main/command
func (Topics) BridgeCommand(bridgeID string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixBridge, bridgeID)
}

// BridgeReply returns the per-request reply topic from a bridge.
//
// Example: avoip/bridge/nhd-main/reply/req-abc123
func (Topics) BridgeReply(bridgeID, requestID string) string {
	return fmt.Sprintf("%s/%s/reply/%s", TopicPrefixBridge, bridgeID, requestID)
}

// BridgeNotify returns the topic for one notification kind from a bridge.
//
// Example: avoip/bridge/nhd-main/notify/video_lost
func (Topics) BridgeNotify(bridgeID, kind string) string {
	return fmt.Sprintf("%s/%s/notify/%s", TopicPrefixBridge, bridgeID, kind)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: avoip/bridge/nhd-main/health
func (Topics) BridgeHealth(bridgeID string) string {
	return fmt.Sprintf("%s/%s/health", TopicPrefixBridge, bridgeID)
}

// =============================================================================
// Core Topics
// =============================================================================

// CoreSectionChanged returns the topic for snapshot section change events.
// External entity collaborators subscribe here to learn when a section's
// version advanced.
//
// Example: avoip/core/sections/device_status
func (Topics) CoreSectionChanged(section string) string {
	return fmt.Sprintf("%s/sections/%s", TopicPrefixCore, section)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic (used for LWT too).
//
// Example: avoip/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllBridgeReplies returns a pattern matching all replies from one bridge.
//
// Pattern: avoip/bridge/nhd-main/reply/+
func (Topics) AllBridgeReplies(bridgeID string) string {
	return fmt.Sprintf("%s/%s/reply/+", TopicPrefixBridge, bridgeID)
}

// AllBridgeNotifications returns a pattern matching all notifications from
// one bridge.
//
// Pattern: avoip/bridge/nhd-main/notify/#
func (Topics) AllBridgeNotifications(bridgeID string) string {
	return fmt.Sprintf("%s/%s/notify/#", TopicPrefixBridge, bridgeID)
}

// AllBridgeHealth returns a pattern matching all bridge health updates.
//
// Pattern: avoip/bridge/+/health
func (Topics) AllBridgeHealth() string {
	return fmt.Sprintf("%s/+/health", TopicPrefixBridge)
}

// AllCoreSectionEvents returns a pattern matching all section change events.
//
// Pattern: avoip/core/sections/+
func (Topics) AllCoreSectionEvents() string {
	return fmt.Sprintf("%s/sections/+", TopicPrefixCore)
}

// AllTopics returns a pattern matching all AV-over-IP topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: avoip/#
func (Topics) AllTopics() string {
	return "avoip/#"
}
