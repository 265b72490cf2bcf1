package transport

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
	"github.com/srcfl/srcful-gateway-sub001/internal/task"
)

// Task delivers one packet to one endpoint, rescheduling itself on failure
// until its retry budget is spent.
type Task struct {
	task.Base
	bb       *blackboard.Blackboard
	endpoint string
	scheme   string
	sink     Sink
	packet   Packet
	retry    backoff.BackOff
	timeout  time.Duration
	logger   Logger
	metrics  Metrics

	attempts int
}

// Endpoint returns the destination URL.
func (t *Task) Endpoint() string { return t.endpoint }

// Packet returns the packet being delivered.
func (t *Task) Packet() Packet { return t.packet }

// Attempts returns how many deliveries were tried.
func (t *Task) Attempts() int { return t.attempts }

// Execute performs one delivery attempt.
func (t *Task) Execute(int64) (task.Result, error) {
	t.attempts++

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	err := t.sink.Deliver(ctx, t.endpoint, t.packet)
	cancel()

	if err == nil {
		t.metrics.Delivered(t.scheme, len(t.packet.Data))
		t.logger.Debug("harvest delivered",
			"endpoint", t.endpoint,
			"packet", t.packet.ID,
			"samples", len(t.packet.Data),
			"attempts", t.attempts,
		)
		return task.Done(), nil
	}

	next := backoff.Stop
	var permanent *backoff.PermanentError
	if !errors.As(err, &permanent) {
		next = t.retry.NextBackOff()
	}

	if next == backoff.Stop {
		t.metrics.DeliveryFailed(t.scheme, true)
		t.logger.Warn("harvest delivery abandoned",
			"endpoint", t.endpoint,
			"packet", t.packet.ID,
			"attempts", t.attempts,
			"error", err,
		)
		return task.Done(), nil
	}

	t.metrics.DeliveryFailed(t.scheme, false)
	t.logger.Info("harvest delivery failed, retrying",
		"endpoint", t.endpoint,
		"packet", t.packet.ID,
		"retry_in", next,
		"error", err,
	)
	return task.Continue(t, t.bb.NowMs()+max(next.Milliseconds(), 1)), nil
}
