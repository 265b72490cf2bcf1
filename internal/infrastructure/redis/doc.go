// Package redis connects the gateway to an optional Redis server used as a
// live mirror of the gateway state.
//
// All keys and channels are namespaced with the configured prefix and the
// site id, so several gateways can share one server:
//
//	client, err := redis.Connect(ctx, cfg.Redis, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	key := client.Key("state") // "gateway:<site>:state"
package redis
