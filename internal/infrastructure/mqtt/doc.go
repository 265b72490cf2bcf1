// Package mqtt provides the gateway's MQTT client.
//
// The gateway uses MQTT in two directions:
//
//	harvest transport ──▶ gateway/<site>/harvest/<dtype>/<sn>
//	backend           ──▶ gateway/<site>/settings/set ──▶ settings (BACKEND)
//
// plus a retained online/offline status on gateway/<site>/status that is
// also registered as the Last Will, so subscribers notice a crashed gateway.
//
// The client reconnects with exponential backoff and restores its
// subscriptions after every reconnect. TLS should be enabled for any broker
// outside the local network.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().Harvest("inverter", "INV-1")
//	err = client.Publish(topic, payload, 1, false)
package mqtt
