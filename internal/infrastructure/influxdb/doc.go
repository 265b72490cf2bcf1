// Package influxdb delivers harvest batches to an InfluxDB v2 server.
//
// It wraps the official influxdb-client-go v2 library. The gateway routes
// harvest endpoints with the influx:// scheme here; every sample in a batch
// becomes one point carrying the device headers (dtype, sn, model) as tags.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "srcful",
//	    Bucket:  "harvest",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.WriteBatch(ctx, "harvest", headers, batch)
//
// # Error Handling
//
// Writes are blocking and return ErrWriteFailed (wrapped) so that the
// transport task can retry with backoff. Connection and health check errors
// are returned directly.
package influxdb
