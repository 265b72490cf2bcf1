package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gateway"

// Harvest failure reasons.
const (
	reasonConnectionLost = "connection_lost"
	reasonReadError      = "read_error"
)

// Registry holds the gateway metrics. Safe for concurrent use.
type Registry struct {
	reg *prometheus.Registry

	tasks         *prometheus.CounterVec
	taskFailures  prometheus.Counter
	queueDepth    prometheus.Gauge
	activeWorkers prometheus.Gauge

	samples        *prometheus.CounterVec
	harvestFails   *prometheus.CounterVec
	batches        *prometheus.CounterVec
	batchPoints    *prometheus.CounterVec
	delivered      *prometheus.CounterVec
	deliveredSmpls *prometheus.CounterVec
	deliveryFails  *prometheus.CounterVec
}

// New creates a Registry with all gateway metrics and the Go runtime and
// process collectors registered.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tasks_total",
			Help:      "Tasks executed, by result kind",
		}, []string{"kind"}),
		taskFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "task_failures_total",
			Help:      "Tasks that returned an error or panicked",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Tasks waiting for their due time or a worker",
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "active_workers",
			Help:      "Workers currently executing a task",
		}),

		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "harvest",
			Name:      "samples_total",
			Help:      "Samples read from devices",
		}, []string{"sn"}),
		harvestFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "harvest",
			Name:      "failures_total",
			Help:      "Failed device reads",
		}, []string{"sn", "reason"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "harvest",
			Name:      "batches_total",
			Help:      "Barn flushes handed to transports",
		}, []string{"sn"}),
		batchPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "harvest",
			Name:      "batch_points_total",
			Help:      "Samples contained in flushed batches",
		}, []string{"sn"}),

		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "delivered_total",
			Help:      "Packets delivered, by endpoint scheme",
		}, []string{"scheme"}),
		deliveredSmpls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "delivered_samples_total",
			Help:      "Samples delivered, by endpoint scheme",
		}, []string{"scheme"}),
		deliveryFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "failures_total",
			Help:      "Failed delivery attempts; final=true when the packet was dropped",
		}, []string{"scheme", "final"}),
	}

	r.reg.MustRegister(
		r.tasks, r.taskFailures, r.queueDepth, r.activeWorkers,
		r.samples, r.harvestFails, r.batches, r.batchPoints,
		r.delivered, r.deliveredSmpls, r.deliveryFails,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Prometheus returns the underlying registry.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// WatchDevices registers a gauge that reports count() at scrape time.
func (r *Registry) WatchDevices(count func() int) error {
	return r.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "devices_open",
		Help:      "Open devices in the registry",
	}, func() float64 { return float64(count()) }))
}

// ===== Scheduler =====

func (r *Registry) TaskExecuted(kind string) { r.tasks.WithLabelValues(kind).Inc() }
func (r *Registry) TaskFailed()              { r.taskFailures.Inc() }
func (r *Registry) QueueDepth(n int)         { r.queueDepth.Set(float64(n)) }
func (r *Registry) ActiveWorkers(n int)      { r.activeWorkers.Set(float64(n)) }

// ===== Harvest =====

func (r *Registry) SampleHarvested(sn string) { r.samples.WithLabelValues(sn).Inc() }

func (r *Registry) HarvestFailed(sn string, connectionLost bool) {
	reason := reasonReadError
	if connectionLost {
		reason = reasonConnectionLost
	}
	r.harvestFails.WithLabelValues(sn, reason).Inc()
}

// BatchFlushed counts one flush of points samples into packets transport
// packets.
func (r *Registry) BatchFlushed(sn string, points, packets int) {
	r.batches.WithLabelValues(sn).Inc()
	r.batchPoints.WithLabelValues(sn).Add(float64(points))
}

// ===== Transport =====

func (r *Registry) Delivered(scheme string, samples int) {
	r.delivered.WithLabelValues(scheme).Inc()
	r.deliveredSmpls.WithLabelValues(scheme).Add(float64(samples))
}

func (r *Registry) DeliveryFailed(scheme string, final bool) {
	r.deliveryFails.WithLabelValues(scheme, strconv.FormatBool(final)).Inc()
}
