package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

// HTTPSink POSTs packets as JSON. The device headers are repeated as
// X-Device-* request headers so a receiver can route without parsing.
type HTTPSink struct {
	client *resty.Client
}

// NewHTTPSink returns a sink using client, or a fresh resty client when nil.
// Retries are left to the transport task, so the client should not retry
// itself.
func NewHTTPSink(client *resty.Client) *HTTPSink {
	if client == nil {
		client = resty.New()
	}
	return &HTTPSink{client: client}
}

// Deliver implements Sink.
func (s *HTTPSink) Deliver(ctx context.Context, endpoint string, p Packet) error {
	body, err := p.MarshalJSON()
	if err != nil {
		return backoff.Permanent(err)
	}

	req := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Packet-Id", p.ID).
		SetBody(body)
	for k, v := range p.Headers {
		req.SetHeader("X-Device-"+k, v)
	}

	resp, err := req.Post(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", ErrDelivery, resp.Status())
	case code >= http.StatusBadRequest:
		return backoff.Permanent(fmt.Errorf("%w: %s", ErrRejected, resp.Status()))
	}
	return nil
}
