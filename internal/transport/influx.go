package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/cenkalti/backoff/v4"

	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/influxdb"
)

// defaultMeasurement is used for "influx://" endpoints without a host part.
const defaultMeasurement = "harvest"

// BatchWriter is the part of *influxdb.Client the InfluxDB sink needs.
type BatchWriter interface {
	WriteBatch(ctx context.Context, measurement string, tags map[string]string, batch map[int64]map[string]any) error
}

// InfluxSink writes packets as InfluxDB points tagged with the device
// headers. "influx://power" writes to measurement "power".
type InfluxSink struct {
	w BatchWriter
}

// NewInfluxSink returns a sink writing through w.
func NewInfluxSink(w BatchWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Deliver implements Sink.
func (s *InfluxSink) Deliver(ctx context.Context, endpoint string, p Packet) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %w", ErrRejected, err))
	}
	measurement := u.Host
	if measurement == "" {
		measurement = defaultMeasurement
	}

	batch := make(map[int64]map[string]any, len(p.Data))
	for ts, sample := range p.Data {
		batch[ts] = sample
	}

	if err := s.w.WriteBatch(ctx, measurement, p.Headers, batch); err != nil {
		if errors.Is(err, influxdb.ErrNotConnected) {
			return backoff.Permanent(fmt.Errorf("%w: %w", ErrRejected, err))
		}
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}
