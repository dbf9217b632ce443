package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the catalog.
const (
	MeasurementSourceRefresh = "catalog_source_refresh"
	MeasurementCycle         = "catalog_cycle"
)

// WriteSourceRefresh records one source's contribution to an update cycle.
// Points are tagged by source and status so failures can be graphed per
// source.
func (c *Client) WriteSourceRefresh(source, status string, records, hints int, durationMS int64, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(sourceRefreshPoint(source, status, records, hints, durationMS, ts))
}

// WriteCycle records the outcome of a whole update cycle.
func (c *Client) WriteCycle(totalDevices, errors, merged int, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(cyclePoint(totalDevices, errors, merged, ts))
}

func sourceRefreshPoint(source, status string, records, hints int, durationMS int64, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSourceRefresh,
		map[string]string{
			"source": source,
			"status": status,
		},
		map[string]interface{}{
			"records":     records,
			"hints":       hints,
			"duration_ms": durationMS,
		},
		ts,
	)
}

func cyclePoint(totalDevices, errors, merged int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementCycle,
		nil,
		map[string]interface{}{
			"total_devices": totalDevices,
			"errors":        errors,
			"merged":        merged,
		},
		ts,
	)
}
