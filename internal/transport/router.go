package transport

import (
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
	"github.com/srcfl/srcful-gateway-sub001/internal/device"
	"github.com/srcfl/srcful-gateway-sub001/internal/task"
)

// Retry defaults.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultInitialInterval = 500 * time.Millisecond

	// maxInterval caps the delay between two attempts.
	maxInterval = 30 * time.Second
)

// Config tunes delivery. Zero values get defaults, except MaxRetries where
// zero means a single attempt.
type Config struct {
	// Timeout bounds one delivery attempt.
	Timeout time.Duration

	// MaxRetries is the number of attempts after the first one.
	MaxRetries int

	// InitialInterval is the delay before the first retry; later delays
	// grow exponentially up to 30s.
	InitialInterval time.Duration

	Logger  Logger
	Metrics Metrics
}

// Router maps endpoint schemes to sinks and builds transport tasks. Its
// NewTask method is a harvest.TransportFactory.
type Router struct {
	cfg Config

	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewRouter returns a Router with no sinks registered.
func NewRouter(cfg Config) *Router {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	return &Router{cfg: cfg, sinks: make(map[string]Sink)}
}

// Register routes endpoints with the given scheme to s, replacing any
// previous sink.
func (r *Router) Register(scheme string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[strings.ToLower(scheme)] = s
}

// Schemes returns the registered schemes, sorted.
func (r *Router) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.sinks))
	for s := range r.sinks {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// NewTask builds the task delivering batch to endpoint. It returns nil (and
// logs) when the endpoint cannot be routed, so the batch is dropped for that
// endpoint only.
func (r *Router) NewTask(dueMs int64, bb *blackboard.Blackboard, endpoint string, batch map[int64]device.Sample, headers map[string]string) task.Task {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" {
		r.cfg.Logger.Error("invalid harvest endpoint", "endpoint", endpoint, "error", err)
		return nil
	}

	scheme := strings.ToLower(u.Scheme)
	r.mu.RLock()
	sink, ok := r.sinks[scheme]
	r.mu.RUnlock()
	if !ok {
		r.cfg.Logger.Error("no transport for endpoint scheme", "endpoint", endpoint, "scheme", scheme)
		return nil
	}

	return &Task{
		Base:     task.NewBase(dueMs),
		bb:       bb,
		endpoint: endpoint,
		scheme:   scheme,
		sink:     sink,
		packet:   NewPacket(batch, headers),
		retry:    r.newBackOff(),
		timeout:  r.cfg.Timeout,
		logger:   r.cfg.Logger,
		metrics:  r.cfg.Metrics,
	}
}

func (r *Router) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	// #nosec G115 -- MaxRetries clamped to be non-negative
	return backoff.WithMaxRetries(b, uint64(r.cfg.MaxRetries))
}
