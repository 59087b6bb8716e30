// Package mqtt provides MQTT connectivity for the Lumiere LIFX bridge.
//
// The bridge uses MQTT for two optional things: publishing its own
// status and health (retained, with a Last Will so a crash shows up as
// offline), and as an alternative coordination channel where palettes
// arrive on a topic instead of over Socket.IO.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Bridge.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.LightsPalette(), 1,
//	    func(topic string, payload []byte) error {
//	        return handlePalette(payload)
//	    })
//
// Subscriptions are tracked and restored after paho reconnects.
//
// Tests that need a broker at 127.0.0.1:1883 are behind the integration
// build tag.
package mqtt
