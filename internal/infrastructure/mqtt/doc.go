// Package mqtt provides the MQTT publisher for the device catalog.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Topics
//
//	graylogic/catalog/report        latest update report (retained)
//	graylogic/catalog/source/{id}   latest result per source (retained)
//	graylogic/catalog/status        online/offline status (retained, LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.PublishRetained(mqtt.Topics{}.CatalogReport(), body)
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS) when the broker is not on localhost
//   - Anonymous access is only for local development
package mqtt
