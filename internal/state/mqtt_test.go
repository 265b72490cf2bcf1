package state

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeRetained struct {
	topic   string
	payload []byte
	err     error
}

func (f *fakeRetained) PublishRetained(topic string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.topic, f.payload = topic, payload
	return nil
}

func TestMQTTPublisher(t *testing.T) {
	pub := &fakeRetained{}
	sink := NewMQTTPublisher(pub, "gateway/gw-1/state")
	bb, _ := newTestBlackboard()
	bb.AddInfo("published")

	if err := sink.SaveState(context.Background(), bb.State()); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}
	if pub.topic != "gateway/gw-1/state" {
		t.Errorf("topic = %q", pub.topic)
	}

	var got struct {
		Version  string `json:"version"`
		Messages []struct {
			Text string `json:"message"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(pub.payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Version != "test" || len(got.Messages) != 1 || got.Messages[0].Text != "published" {
		t.Errorf("payload = %s", pub.payload)
	}
}

func TestMQTTPublisher_Errors(t *testing.T) {
	bb, _ := newTestBlackboard()
	errBroker := errors.New("not connected")

	sink := NewMQTTPublisher(&fakeRetained{err: errBroker}, "t")
	if err := sink.SaveState(context.Background(), bb.State()); !errors.Is(err, errBroker) {
		t.Errorf("SaveState() error = %v, want broker error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub := &fakeRetained{}
	if err := NewMQTTPublisher(pub, "t").SaveState(ctx, bb.State()); !errors.Is(err, context.Canceled) {
		t.Errorf("SaveState() cancelled error = %v", err)
	}
	if pub.payload != nil {
		t.Error("published despite cancelled context")
	}
}
