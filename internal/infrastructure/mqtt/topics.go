package mqtt

import "fmt"

// TopicPrefix is the root of every Lumiere topic.
const TopicPrefix = "lumiere"

// Topics provides builders for Lumiere MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.BridgeHealth("lumiere-lifx")
//	// Returns: "lumiere/bridge/lumiere-lifx/health"
type Topics struct{}

// LightsPalette is where palettes are broadcast.
//
// Example: lumiere/lights
func (Topics) LightsPalette() string {
	return TopicPrefix + "/lights"
}

// LightsRequest asks the coordinator to rebroadcast the current palette.
//
// Example: lumiere/lights/get
func (Topics) LightsRequest() string {
	return TopicPrefix + "/lights/get"
}

// BridgeStatus carries the retained online/offline status of a bridge.
//
// Example: lumiere/bridge/lumiere-lifx/status
func (Topics) BridgeStatus(bridgeID string) string {
	return fmt.Sprintf("%s/bridge/%s/status", TopicPrefix, bridgeID)
}

// BridgeHealth carries the periodic health report of a bridge.
//
// Example: lumiere/bridge/lumiere-lifx/health
func (Topics) BridgeHealth(bridgeID string) string {
	return fmt.Sprintf("%s/bridge/%s/health", TopicPrefix, bridgeID)
}

// AllBridgeHealth matches every bridge's health topic.
func (Topics) AllBridgeHealth() string {
	return TopicPrefix + "/bridge/+/health"
}
