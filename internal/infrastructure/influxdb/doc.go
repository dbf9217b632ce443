// Package influxdb provides InfluxDB connectivity for the device catalog.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, metric writing, and health monitoring.
//
// # Measurements
//
//   - catalog_source_refresh: one point per source per update cycle,
//     tagged by source and status, with records, hints and duration_ms
//   - catalog_cycle: one point per update cycle with total_devices,
//     errors and merged
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteCycle(report.TotalDevices, len(report.Errors), report.Fusion.Merged, report.Timestamp)
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered to the
// callback set with SetOnError. Connection and health check errors are
// returned directly.
package influxdb
