package mqtt

import (
	"errors"
	"strings"
	"testing"

	"github.com/n1ckjansens/HA-Mikrotik/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for unit tests.
// No broker is contacted; tests needing one live in integration_test.go.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "presenced-test",
			TLS:      false,
		},
		Auth: config.MQTTAuthConfig{
			Username: "",
			Password: "",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	err := client.Close()
	if err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
}

func TestIsConnectedInitialState(t *testing.T) {
	client := &Client{}

	client.connMu.RLock()
	connected := client.connected
	client.connMu.RUnlock()

	if connected {
		t.Error("new client should not report connected")
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}

	if err := client.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(empty topic) error = %v, want ErrInvalidTopic", err)
	}

	if err := client.Publish("presence/status", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish(qos=3) error = %v, want ErrInvalidQoS", err)
	}

	big := make([]byte, maxPayloadSize+1)
	if err := client.Publish("presence/status", big, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish(oversize) error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty topic) error = %v, want ErrInvalidTopic", err)
	}

	if err := client.Subscribe("presence/command/+", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos=3) error = %v, want ErrInvalidQoS", err)
	}

	if err := client.Subscribe("presence/command/+", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
}

func TestUnsubscribeEmptyTopic(t *testing.T) {
	client := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty topic) error = %v, want ErrInvalidTopic", err)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
	if client.HasSubscription("presence/command/+") {
		t.Error("HasSubscription() = true for untracked topic")
	}

	client.subMu.Lock()
	client.subscriptions["presence/command/+"] = subscription{topic: "presence/command/+", qos: 1}
	client.subMu.Unlock()

	if !client.HasSubscription("presence/command/+") {
		t.Error("HasSubscription() = false for tracked topic")
	}
	if client.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", client.SubscriptionCount())
	}
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() string
		expected string
	}{
		{
			name: "ServiceStatus",
			builder: func() string {
				return Topics{}.ServiceStatus()
			},
			expected: "presence/status",
		},
		{
			name: "EntityState",
			builder: func() string {
				return Topics{}.EntityState("aa:bb:cc:dd:ee:ff_block_internet")
			},
			expected: "presence/state/aa:bb:cc:dd:ee:ff_block_internet",
		},
		{
			name: "EntityAvailability",
			builder: func() string {
				return Topics{}.EntityAvailability("global_dns_filter")
			},
			expected: "presence/availability/global_dns_filter",
		},
		{
			name: "EntityCommand",
			builder: func() string {
				return Topics{}.EntityCommand("aa:bb:cc:dd:ee:ff_block_internet")
			},
			expected: "presence/command/aa:bb:cc:dd:ee:ff_block_internet",
		},
		{
			name: "AllCommands",
			builder: func() string {
				return Topics{}.AllCommands()
			},
			expected: "presence/command/+",
		},
		{
			name: "AllStates",
			builder: func() string {
				return Topics{}.AllStates()
			},
			expected: "presence/state/+",
		},
		{
			name: "AllTopics",
			builder: func() string {
				return Topics{}.AllTopics()
			},
			expected: "presence/#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.builder()
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, result, tt.expected)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "svc"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("Servers count = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want tcp://127.0.0.1:1883", got)
	}
	if opts.ClientID != "presenced-test" {
		t.Errorf("ClientID = %q, want presenced-test", opts.ClientID)
	}
	if opts.Username != "svc" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect should be enabled")
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true

	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLSConfig not set")
	}
}

func TestConfigureLWT(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	configureLWT(opts, cfg.Broker.ClientID)

	if !opts.WillEnabled {
		t.Fatal("will not enabled")
	}
	if opts.WillTopic != "presence/status" {
		t.Errorf("will topic = %q, want presence/status", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("will should be retained")
	}
	payload := string(opts.WillPayload)
	if !strings.Contains(payload, `"status":"offline"`) {
		t.Errorf("will payload = %q, missing offline status", payload)
	}
	if !strings.Contains(payload, `"client_id":"presenced-test"`) {
		t.Errorf("will payload = %q, missing client id", payload)
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("presenced")
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload = %q, missing online status", online)
	}

	offline := buildOfflinePayload("presenced")
	if !strings.Contains(offline, `"status":"offline"`) {
		t.Errorf("offline payload = %q, missing offline status", offline)
	}
	if !strings.Contains(offline, "graceful_shutdown") {
		t.Errorf("offline payload = %q, missing graceful reason", offline)
	}
}
