// Package transport delivers harvest batches to the configured endpoints.
//
// A harvest flush produces one transport task per endpoint. The endpoint's
// URL scheme selects the sink that performs the delivery:
//
//	http://, https://  JSON POST (resty)
//	mqtt://            publish on gateway/<site>/harvest/<dtype>/<sn>
//	influx://          one InfluxDB point per sample
//
// A failed delivery is rescheduled as the same task with exponential backoff
// (cenkalti/backoff) instead of sleeping on a worker. Errors marked permanent
// by a sink (a 4xx reply, an unconfigured sink) drop the packet at once.
//
// # Usage
//
//	router := transport.NewRouter(transport.Config{
//	    Timeout:         10 * time.Second,
//	    MaxRetries:      3,
//	    InitialInterval: 500 * time.Millisecond,
//	    Logger:          log,
//	})
//	router.Register("http", transport.NewHTTPSink(nil))
//	router.Register("https", transport.NewHTTPSink(nil))
//
//	harvestCfg := harvest.Config{Transports: router.NewTask, ...}
package transport
