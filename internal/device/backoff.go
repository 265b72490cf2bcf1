package device

// Poll backoff bounds in milliseconds.
const (
	MinBackoffMs int64 = 1000
	MaxBackoffMs int64 = 256000

	backoffDecay = 0.9
)

// BackoffMs is the default adaptive poll delay: the previous delay decays by
// 10% per read but never below twice the last read duration (and never below
// MinBackoffMs), and never above MaxBackoffMs.
//
// The decay is applied to the previous delay, not to the read latency, so a
// device that was slow recovers its poll rate gradually.
func BackoffMs(lastReadMs, prevBackoffMs int64) int64 {
	floor := max(2*lastReadMs, MinBackoffMs)
	next := int64(float64(prevBackoffMs) * backoffDecay)
	next = max(next, floor)
	return min(next, MaxBackoffMs)
}
