package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cenkalti/backoff/v4"

	"github.com/srcfl/srcful-gateway-sub001/internal/device"
	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/influxdb"
	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/mqtt"
)

func isPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}

func testPacket() Packet {
	return Packet{ID: "pkt-1", Headers: testHeaders(), Data: testBatch()}
}

// ===== HTTP =====

func TestHTTPSink_Delivers(t *testing.T) {
	var gotBody []byte
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := NewHTTPSink(nil).Deliver(context.Background(), srv.URL+"/gw/data", testPacket()); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if gotHeaders.Get("X-Packet-Id") != "pkt-1" || gotHeaders.Get("X-Device-Sn") != "INV-1" {
		t.Errorf("headers = %v", gotHeaders)
	}
	if gotHeaders.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", gotHeaders.Get("Content-Type"))
	}

	var body struct {
		ID   string                    `json:"id"`
		Data map[string]map[string]any `json:"data"`
	}
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if body.ID != "pkt-1" || len(body.Data) != 2 {
		t.Errorf("body = %s", gotBody)
	}
}

func TestHTTPSink_StatusClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantErr       error
		wantPermanent bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "accepted", status: http.StatusAccepted},
		{name: "server error", status: http.StatusBadGateway, wantErr: ErrDelivery},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: ErrDelivery},
		{name: "bad request", status: http.StatusBadRequest, wantErr: ErrRejected, wantPermanent: true},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: ErrRejected, wantPermanent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewHTTPSink(nil).Deliver(context.Background(), srv.URL, testPacket())
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Deliver() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Deliver() error = %v, want %v", err, tt.wantErr)
			}
			if isPermanent(err) != tt.wantPermanent {
				t.Errorf("permanent = %v, want %v", isPermanent(err), tt.wantPermanent)
			}
		})
	}
}

func TestHTTPSink_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewHTTPSink(nil).Deliver(context.Background(), url, testPacket())
	if !errors.Is(err, ErrDelivery) || isPermanent(err) {
		t.Errorf("Deliver() error = %v, want retryable ErrDelivery", err)
	}
}

// ===== MQTT =====

type fakePublisher struct {
	err     error
	topic   string
	payload []byte
}

func (f *fakePublisher) PublishDefault(topic string, payload []byte) error {
	f.topic, f.payload = topic, payload
	return f.err
}

func (f *fakePublisher) Topics() mqtt.Topics { return mqtt.Topics{Site: "gw-1"} }

func TestMQTTSink_Topics(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{endpoint: "mqtt://", want: "gateway/gw-1/harvest/inverter/INV-1"},
		{endpoint: "mqtt://site/harvest", want: "site/harvest"},
		{endpoint: "mqtt://flat/", want: "flat"},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			pub := &fakePublisher{}
			if err := NewMQTTSink(pub).Deliver(context.Background(), tt.endpoint, testPacket()); err != nil {
				t.Fatalf("Deliver() error = %v", err)
			}
			if pub.topic != tt.want {
				t.Errorf("topic = %q, want %q", pub.topic, tt.want)
			}
			if !json.Valid(pub.payload) {
				t.Errorf("payload is not JSON: %s", pub.payload)
			}
		})
	}
}

func TestMQTTSink_Errors(t *testing.T) {
	tests := []struct {
		name          string
		pubErr        error
		packet        Packet
		wantPermanent bool
	}{
		{name: "not connected", pubErr: mqtt.ErrNotConnected, packet: testPacket()},
		{name: "publish timeout", pubErr: mqtt.ErrPublishFailed, packet: testPacket()},
		{name: "too large", pubErr: mqtt.ErrPayloadTooLarge, packet: testPacket(), wantPermanent: true},
		{name: "missing headers", packet: Packet{ID: "x", Data: testBatch()}, wantPermanent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewMQTTSink(&fakePublisher{err: tt.pubErr}).Deliver(context.Background(), "mqtt://", tt.packet)
			if err == nil {
				t.Fatal("Deliver() error = nil")
			}
			if isPermanent(err) != tt.wantPermanent {
				t.Errorf("permanent = %v, want %v (err %v)", isPermanent(err), tt.wantPermanent, err)
			}
		})
	}
}

func TestMQTTSink_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub := &fakePublisher{}
	if err := NewMQTTSink(pub).Deliver(ctx, "mqtt://", testPacket()); !errors.Is(err, context.Canceled) {
		t.Errorf("Deliver() error = %v, want context.Canceled", err)
	}
	if pub.topic != "" {
		t.Error("published despite cancelled context")
	}
}

// ===== InfluxDB =====

type fakeBatchWriter struct {
	err         error
	measurement string
	tags        map[string]string
	batch       map[int64]map[string]any
}

func (f *fakeBatchWriter) WriteBatch(_ context.Context, measurement string, tags map[string]string, batch map[int64]map[string]any) error {
	f.measurement, f.tags, f.batch = measurement, tags, batch
	return f.err
}

func TestInfluxSink_Delivers(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{endpoint: "influx://", want: "harvest"},
		{endpoint: "influx://inverters", want: "inverters"},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			w := &fakeBatchWriter{}
			if err := NewInfluxSink(w).Deliver(context.Background(), tt.endpoint, testPacket()); err != nil {
				t.Fatalf("Deliver() error = %v", err)
			}
			if w.measurement != tt.want || w.tags["sn"] != "INV-1" || len(w.batch) != 2 {
				t.Errorf("measurement %q tags %v batch %v", w.measurement, w.tags, w.batch)
			}
			if w.batch[testNow-1000]["power"] != device.Sample{"power": 110.0}["power"] {
				t.Errorf("batch = %v", w.batch)
			}
		})
	}
}

func TestInfluxSink_Errors(t *testing.T) {
	w := &fakeBatchWriter{err: influxdb.ErrWriteFailed}
	err := NewInfluxSink(w).Deliver(context.Background(), "influx://", testPacket())
	if !errors.Is(err, ErrDelivery) || isPermanent(err) {
		t.Errorf("write failure: %v, want retryable", err)
	}

	w.err = influxdb.ErrNotConnected
	err = NewInfluxSink(w).Deliver(context.Background(), "influx://", testPacket())
	if !isPermanent(err) {
		t.Errorf("closed client: %v, want permanent", err)
	}
}
