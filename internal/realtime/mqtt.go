package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/infrastructure/config"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of *mqtt.Client the MQTT channel uses.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	SetOnReconnecting(callback func())
}

// MQTTChannel carries the coordination channel over MQTT topics.
// Palettes arrive on the palette topic as {"colors":[...]}; "lights:get"
// is published to the request topic. Reconnection is left to paho; its
// reconnect attempts surface as EventReconnecting.
type MQTTChannel struct {
	client MQTTClient
	topics config.LumiereTopics
	qos    byte

	events chan Event
	done   chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewMQTTChannel subscribes to the palette topic on an already connected client.
//
// Returns:
//   - *MQTTChannel: Channel whose first event is EventConnect
//   - error: *ConnectionError if the client is offline or the subscription fails
func NewMQTTChannel(client MQTTClient, topics config.LumiereTopics, qos byte, buffer int) (*MQTTChannel, error) {
	if topics.Palette == "" {
		topics.Palette = mqtt.Topics{}.LightsPalette()
	}
	if topics.Request == "" {
		topics.Request = mqtt.Topics{}.LightsRequest()
	}
	if buffer < 1 {
		buffer = 1
	}

	if !client.IsConnected() {
		return nil, &ConnectionError{Op: "subscribe", URL: topics.Palette, Err: mqtt.ErrNotConnected}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &MQTTChannel{
		client: client,
		topics: topics,
		qos:    qos,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}

	c.push(Event{Name: EventConnect})

	client.SetOnConnect(func() {
		c.push(Event{Name: EventConnect})
	})
	client.SetOnDisconnect(func(err error) {
		c.push(Event{Name: EventDisconnect, Err: err})
	})
	client.SetOnReconnecting(func() {
		c.push(Event{Name: EventReconnecting})
	})

	err := client.Subscribe(topics.Palette, qos, func(_ string, payload []byte) error {
		c.push(Event{Name: EventLights, Payload: append([]byte(nil), payload...)})
		return nil
	})
	if err != nil {
		c.Close()
		return nil, &ConnectionError{Op: "subscribe", URL: topics.Palette, Err: err}
	}

	return c, nil
}

func (c *MQTTChannel) push(ev Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

// Events returns the event stream.
func (c *MQTTChannel) Events() <-chan Event {
	return c.events
}

// Emit publishes a request. Only EventLightsGet is meaningful over MQTT.
func (c *MQTTChannel) Emit(name string) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	if name != EventLightsGet {
		return fmt.Errorf("realtime: event %q not supported over mqtt", name)
	}
	if err := c.client.Publish(c.topics.Request, []byte("{}"), c.qos, false); err != nil {
		return fmt.Errorf("realtime: emitting %s: %w", name, err)
	}
	return nil
}

// Done is closed by Close; the MQTT channel does not stop on its own.
func (c *MQTTChannel) Done() <-chan struct{} {
	return c.done
}

// Err always returns nil.
func (c *MQTTChannel) Err() error {
	return nil
}

// Close unsubscribes and detaches from the client. The client stays connected.
func (c *MQTTChannel) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.client.SetOnConnect(nil)
		c.client.SetOnDisconnect(nil)
		c.client.SetOnReconnecting(nil)
		if c.client.IsConnected() {
			_ = c.client.Unsubscribe(c.topics.Palette)
		}
		close(c.done)
	})
	return nil
}
