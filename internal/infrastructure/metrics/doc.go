// Package metrics exposes the gateway's Prometheus metrics.
//
// A Registry owns a private prometheus.Registry with the Go runtime and
// process collectors plus the gateway metrics below. It satisfies the
// Metrics interfaces of the scheduler, harvest and transport packages, so
// one value is passed to all three:
//
//	reg := metrics.New()
//	sched, _ := scheduler.New(bb, scheduler.Config{Metrics: reg})
//	router := transport.NewRouter(transport.Config{Metrics: reg})
//	http.Handle("/metrics", reg.Handler())
//
// # Metrics
//
//	gateway_scheduler_tasks_total{kind}
//	gateway_scheduler_task_failures_total
//	gateway_scheduler_queue_depth
//	gateway_scheduler_active_workers
//	gateway_harvest_samples_total{sn}
//	gateway_harvest_failures_total{sn,reason}
//	gateway_harvest_batches_total{sn}
//	gateway_harvest_batch_points_total{sn}
//	gateway_transport_delivered_total{scheme}
//	gateway_transport_delivered_samples_total{scheme}
//	gateway_transport_failures_total{scheme,final}
//	gateway_devices_open
package metrics
