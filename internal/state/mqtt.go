package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
)

// RetainedPublisher is the part of *mqtt.Client MQTTPublisher needs.
type RetainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// MQTTPublisher publishes each snapshot as a retained message, so a
// subscriber sees the latest state as soon as it subscribes.
type MQTTPublisher struct {
	pub   RetainedPublisher
	topic string
}

// NewMQTTPublisher returns a sink publishing to topic.
func NewMQTTPublisher(pub RetainedPublisher, topic string) *MQTTPublisher {
	return &MQTTPublisher{pub: pub, topic: topic}
}

var _ Sink = (*MQTTPublisher)(nil)

// SaveState publishes st. The MQTT client applies its own publish timeout.
func (m *MQTTPublisher) SaveState(ctx context.Context, st blackboard.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := m.pub.PublishRetained(m.topic, doc); err != nil {
		return fmt.Errorf("publishing state: %w", err)
	}
	return nil
}
