package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTickMetric records the outcome of a single poll cycle.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - coordinator: Which poll loop produced the tick (e.g., "devices", "global")
//   - success: Whether the backend fetch succeeded
//   - duration: Wall-clock time the tick took
//
// Example:
//
//	client.WriteTickMetric("devices", true, 120*time.Millisecond)
func (c *Client) WriteTickMetric(coordinator string, success bool, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"poll_tick",
		map[string]string{
			"coordinator": coordinator,
		},
		map[string]interface{}{
			"success":     success,
			"duration_ms": float64(duration.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSnapshotMetric records the size of the current device snapshot.
//
// Useful for spotting devices dropping off the network or registration
// churn over time.
//
// Parameters:
//   - deviceCount: Registered devices in the latest snapshot
//   - entityCount: Entities currently materialised from capabilities
func (c *Client) WriteSnapshotMetric(deviceCount int, entityCount int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"snapshot",
		nil,
		map[string]interface{}{
			"device_count": deviceCount,
			"entity_count": entityCount,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteStateTransition records an entity state change.
//
// Parameters:
//   - entityID: Unique entity identifier (e.g., "aa:bb:cc:dd:ee:ff_block_internet")
//   - scope: "device" or "global"
//   - source: "poll" for observed changes, "command" for user-initiated writes
func (c *Client) WriteStateTransition(entityID string, scope string, source string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"state_transition",
		map[string]string{
			"entity_id": entityID,
			"scope":     scope,
			"source":    source,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "presenced-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
