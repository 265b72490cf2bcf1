package device

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"strconv"
	"strings"
)

// Well-known config keys shared by all connection types.
const (
	KeyConnection = "connection"
	KeySerial     = "sn"
	KeyHost       = "ip"
	KeyPort       = "port"
)

// Config is the pure-data description of a device connection, as stored in
// settings and the connection store. The "connection" key selects the
// implementation; all other keys are protocol specific.
type Config map[string]any

// Connection returns the upper-cased connection discriminator.
func (c Config) Connection() string {
	return strings.ToUpper(c.str(KeyConnection))
}

// SerialNumber returns the configured serial number, if any.
func (c Config) SerialNumber() string {
	return c.str(KeySerial)
}

// Host returns the configured network address, if any.
func (c Config) Host() string {
	if h := c.str(KeyHost); h != "" {
		return h
	}
	return c.str("host")
}

// Port returns the configured port, or 0.
func (c Config) Port() int {
	switch v := c[KeyPort].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		p, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return p
	default:
		return 0
	}
}

// SameHost reports whether both configs point at the same network endpoint.
// Configs without a host never match.
func (c Config) SameHost(other Config) bool {
	if c.Host() == "" || other.Host() == "" {
		return false
	}
	return c.Host() == other.Host() && c.Port() == other.Port()
}

// Equal reports whether two configs are equivalent once normalised through
// JSON, so that an int port read from YAML equals a float64 port read from
// JSON.
func (c Config) Equal(other Config) bool {
	return reflect.DeepEqual(c.normalised(), other.normalised())
}

// Clone returns a shallow copy.
func (c Config) Clone() Config {
	return maps.Clone(c)
}

// Validate checks the keys every connection type needs.
func (c Config) Validate() error {
	if c.Connection() == "" {
		return fmt.Errorf("%w: %q is required", ErrInvalidConfig, KeyConnection)
	}
	return nil
}

// String returns a compact description for logs and messages.
func (c Config) String() string {
	var b strings.Builder
	b.WriteString(c.Connection())
	if sn := c.SerialNumber(); sn != "" {
		b.WriteString(" sn=")
		b.WriteString(sn)
	}
	if h := c.Host(); h != "" {
		b.WriteString(" host=")
		b.WriteString(h)
		if p := c.Port(); p != 0 {
			b.WriteString(":")
			b.WriteString(strconv.Itoa(p))
		}
	}
	return b.String()
}

func (c Config) str(key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (c Config) normalised() map[string]any {
	data, err := json.Marshal(c)
	if err != nil {
		return c
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return c
	}
	return out
}
