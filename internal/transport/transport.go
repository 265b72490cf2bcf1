package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/srcfl/srcful-gateway-sub001/internal/device"
)

// Packet is one harvest batch on its way to an endpoint.
type Packet struct {
	// ID identifies the packet across retries and endpoints' logs.
	ID string

	// Headers describe the device (dtype, sn, model).
	Headers map[string]string

	// Data maps the read time in milliseconds to the sample.
	Data map[int64]device.Sample
}

// NewPacket assigns a fresh id to a batch.
func NewPacket(batch map[int64]device.Sample, headers map[string]string) Packet {
	return Packet{
		ID:      uuid.NewString(),
		Headers: headers,
		Data:    batch,
	}
}

// wirePacket is the JSON form shared by the HTTP and MQTT sinks.
type wirePacket struct {
	ID      string                   `json:"id"`
	Headers map[string]string        `json:"headers"`
	Data    map[string]device.Sample `json:"data"`
}

// MarshalJSON encodes the packet with millisecond keys as strings.
func (p Packet) MarshalJSON() ([]byte, error) {
	w := wirePacket{
		ID:      p.ID,
		Headers: p.Headers,
		Data:    make(map[string]device.Sample, len(p.Data)),
	}
	for ts, s := range p.Data {
		w.Data[strconv.FormatInt(ts, 10)] = s
	}

	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encoding packet %s: %w", p.ID, err)
	}
	return data, nil
}

// Sink delivers packets for one or more URL schemes.
//
// Deliver must respect ctx. Errors wrapped with backoff.Permanent are not
// retried.
type Sink interface {
	Deliver(ctx context.Context, endpoint string, p Packet) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, endpoint string, p Packet) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, endpoint string, p Packet) error {
	return f(ctx, endpoint, p)
}

// Logger defines the logging interface used by transport tasks.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Metrics receives delivery measurements.
type Metrics interface {
	Delivered(scheme string, samples int)
	DeliveryFailed(scheme string, final bool)
}

type noopMetrics struct{}

func (noopMetrics) Delivered(string, int)       {}
func (noopMetrics) DeliveryFailed(string, bool) {}
