package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/mqtt"
)

// Publisher is the part of *mqtt.Client the MQTT sink needs.
type Publisher interface {
	PublishDefault(topic string, payload []byte) error
	Topics() mqtt.Topics
}

// MQTTSink publishes packets as JSON. "mqtt://" publishes on the device's
// harvest topic; "mqtt://a/b" publishes on topic "a/b".
type MQTTSink struct {
	pub Publisher
}

// NewMQTTSink returns a sink publishing through pub.
func NewMQTTSink(pub Publisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

// Deliver implements Sink.
func (s *MQTTSink) Deliver(ctx context.Context, endpoint string, p Packet) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	topic, err := s.topic(endpoint, p)
	if err != nil {
		return backoff.Permanent(err)
	}

	payload, err := p.MarshalJSON()
	if err != nil {
		return backoff.Permanent(err)
	}

	if err := s.pub.PublishDefault(topic, payload); err != nil {
		if errors.Is(err, mqtt.ErrInvalidTopic) || errors.Is(err, mqtt.ErrPayloadTooLarge) {
			return backoff.Permanent(fmt.Errorf("%w: %w", ErrRejected, err))
		}
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}

func (s *MQTTSink) topic(endpoint string, p Packet) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRejected, err)
	}
	if u.Host != "" {
		return u.Host + strings.TrimSuffix(u.Path, "/"), nil
	}

	dtype, sn := p.Headers["dtype"], p.Headers["sn"]
	if dtype == "" || sn == "" {
		return "", fmt.Errorf("%w: packet has no dtype/sn headers", ErrRejected)
	}
	return s.pub.Topics().Harvest(dtype, sn), nil
}
