// Package mqtt provides MQTT client connectivity for the presence daemon.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The daemon mirrors backend entity state onto MQTT so home automation
// consumers can read state and send commands without talking to the
// backend directly.
//
//	Backend ↔ presenced ↔ MQTT Broker ↔ Consumers
//
// State and availability topics are retained so new subscribers see the
// current values immediately. Command topics are not retained.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to entity commands
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish entity state
//	topic := mqtt.Topics{}.EntityState("aa:bb:cc:dd:ee:ff_block_internet")
//	client.PublishRetained(topic, []byte("on"))
package mqtt
