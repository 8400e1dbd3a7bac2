// Package mqtt provides MQTT client connectivity for the AV-over-IP core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The core uses MQTT as the internal message bus connecting it to the
// NetworkHD protocol bridge and to external entity collaborators. The
// broker (Mosquitto) decouples the core from the controller's wire
// protocol.
//
//	AV-over-IP Core ↔ MQTT Broker ↔ NetworkHD Bridge
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all replies from the bridge
//	err = client.Subscribe(mqtt.Topics{}.AllBridgeReplies("nhd-main"), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a section change event
//	topic := mqtt.Topics{}.CoreSectionChanged("matrix_assignments")
//	client.Publish(topic, []byte(`{"version":7}`), 1, false)
package mqtt
