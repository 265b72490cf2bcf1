package state

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
)

// Redis hash fields written by RedisMirror.
const (
	fieldSnapshot  = "snapshot"
	fieldVersion   = "version"
	fieldTimestamp = "timestamp"
	fieldDevices   = "devices"
)

// RedisMirror publishes every snapshot to Redis: the hash at key holds the
// latest one and channel carries each save as a JSON event.
type RedisMirror struct {
	rdb     *goredis.Client
	key     string
	channel string
}

// NewRedisMirror returns a mirror writing to key and channel.
func NewRedisMirror(rdb *goredis.Client, key, channel string) *RedisMirror {
	return &RedisMirror{rdb: rdb, key: key, channel: channel}
}

var _ Sink = (*RedisMirror)(nil)

// SaveState writes the hash and publishes the event in one transaction.
func (m *RedisMirror) SaveState(ctx context.Context, st blackboard.State) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	_, err = m.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, m.key,
			fieldSnapshot, doc,
			fieldVersion, st.Version,
			fieldTimestamp, st.Timestamp,
			fieldDevices, len(st.Devices.Configured),
		)
		pipe.Publish(ctx, m.channel, doc)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mirroring state to redis: %w", err)
	}
	return nil
}
