package influxdb

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteBatch writes one harvest batch: one point per sample, timestamped
// with the sample's read time in milliseconds, tagged with tags.
//
// Points are sent in timestamp order, in chunks of at most BatchSize. The
// first failing chunk aborts the write; chunks already sent are not rolled
// back, which is harmless because InfluxDB overwrites points with the same
// series and timestamp.
//
// Example:
//
//	err := client.WriteBatch(ctx, "harvest",
//	    map[string]string{"sn": "INV-1", "dtype": "inverter"},
//	    map[int64]map[string]any{1718000000000: {"power": 1200.5}})
func (c *Client) WriteBatch(ctx context.Context, measurement string, tags map[string]string, batch map[int64]map[string]any) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	points := BuildPoints(measurement, tags, batch)
	for chunk := range slices.Chunk(points, c.batchSize) {
		if err := c.writeAPI.WritePoint(ctx, chunk...); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}
	return nil
}

// BuildPoints converts a harvest batch into line-protocol points. Samples
// without a single usable field are skipped.
func BuildPoints(measurement string, tags map[string]string, batch map[int64]map[string]any) []*write.Point {
	points := make([]*write.Point, 0, len(batch))
	for _, ts := range slices.Sorted(maps.Keys(batch)) {
		fields := Fields(batch[ts])
		if len(fields) == 0 {
			continue
		}
		points = append(points, write.NewPoint(measurement, tags, fields, time.UnixMilli(ts)))
	}
	return points
}

// Fields flattens a sample into InfluxDB field values. Nested maps become
// dotted keys; values of unsupported types (slices, nil) are dropped.
func Fields(sample map[string]any) map[string]any {
	out := make(map[string]any, len(sample))
	flatten("", sample, out)
	return out
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64, bool, string:
			out[key] = val
		}
	}
}
