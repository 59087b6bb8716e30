package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/infrastructure/config"
)

// testConfig points at a local broker. Only integration tests dial it.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "lumiere-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestClientID(t *testing.T) {
	cfg := testConfig()
	if got := clientID(cfg); got != "lumiere-test" {
		t.Errorf("clientID() = %q, want configured ID", got)
	}

	cfg.Broker.ClientID = ""
	a, b := clientID(cfg), clientID(cfg)
	if !strings.HasPrefix(a, "lumiere-lifx-") {
		t.Errorf("clientID() = %q, want lumiere-lifx- prefix", a)
	}
	if a == b {
		t.Errorf("generated client IDs collide: %q", a)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var got statusPayload
	if err := json.Unmarshal(buildStatusPayload("offline", "bridge-1", "client-1", "graceful_shutdown"), &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Status != "offline" || got.BridgeID != "bridge-1" || got.ClientID != "client-1" || got.Reason != "graceful_shutdown" {
		t.Errorf("payload = %+v", got)
	}
	if got.Timestamp == "" {
		t.Error("payload has no timestamp")
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "bridge"
	cfg.Auth.Password = "pw"

	opts := buildClientOptions(cfg, "id-1")

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want ssl://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "id-1" {
		t.Errorf("ClientID = %q, want id-1", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "pw" {
		t.Error("credentials not applied")
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig not set")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := newClient(testConfig(), "bridge-1")

	if c.IsConnected() {
		t.Fatal("IsConnected() = true before Connect")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
	if err := c.Publish("lumiere/x", []byte("{}"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() = %v, want ErrNotConnected", err)
	}
	handler := func(string, []byte) error { return nil }
	if err := c.Subscribe("lumiere/x", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() = %v, want ErrNotConnected", err)
	}
	if c.HasSubscription("lumiere/x") {
		t.Error("failed subscription was tracked")
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	c := newClient(testConfig(), "bridge-1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.HealthCheck(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() = %v, want context.Canceled", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := newClient(testConfig(), "bridge-1")

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"invalid qos", "lumiere/x", nil, 3, ErrInvalidQoS},
		{"payload too large", "lumiere/x", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newClient(testConfig(), "bridge-1")
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("lumiere/x", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("lumiere/x", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil) = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty) = %v, want ErrInvalidTopic", err)
	}
}

func TestDispatch_RecoversAndLogs(t *testing.T) {
	c := newClient(testConfig(), "bridge-1")
	logger := &mockLogger{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error { panic("boom") }, "lumiere/lights", nil)
	c.dispatch(func(string, []byte) error { return errors.New("bad payload") }, "lumiere/lights", nil)
	c.dispatch(func(string, []byte) error { return nil }, "lumiere/lights", nil)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errors) != 1 {
		t.Errorf("errors logged = %d, want 1", len(logger.errors))
	}
	if len(logger.warns) != 1 {
		t.Errorf("warnings logged = %d, want 1", len(logger.warns))
	}
}

func TestCallbacks(t *testing.T) {
	c := newClient(testConfig(), "bridge-1")

	var lost error
	c.SetOnDisconnect(func(err error) { lost = err })
	c.handleDisconnect(errors.New("network down"))

	if lost == nil || lost.Error() != "network down" {
		t.Errorf("OnDisconnect got %v", lost)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}

	reconnecting := 0
	c.SetOnReconnecting(func() { reconnecting++ })
	c.handleReconnecting()
	c.handleReconnecting()
	if reconnecting != 2 {
		t.Errorf("OnReconnecting calls = %d, want 2", reconnecting)
	}

	c.SetOnReconnecting(nil)
	c.handleReconnecting()
	if reconnecting != 2 {
		t.Errorf("OnReconnecting called after being cleared")
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client = %v", err)
	}
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{Topics{}.LightsPalette(), "lumiere/lights"},
		{Topics{}.LightsRequest(), "lumiere/lights/get"},
		{Topics{}.BridgeStatus("lifx-1"), "lumiere/bridge/lifx-1/status"},
		{Topics{}.BridgeHealth("lifx-1"), "lumiere/bridge/lifx-1/health"},
		{Topics{}.AllBridgeHealth(), "lumiere/bridge/+/health"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}
