package cart

import (
	"math/rand"
	"sync"
	"time"
)

// LatencySource yields the processing time of one add-item write. It models
// variable backend cost and is the only source of randomness in the
// pipeline, so tests can replace it.
type LatencySource interface {
	Sample() time.Duration
}

// FixedLatency always returns the same duration.
type FixedLatency time.Duration

// Sample implements LatencySource.
func (f FixedLatency) Sample() time.Duration { return time.Duration(f) }

// Default processing latency bounds: 2s inclusive to 4s exclusive.
const (
	DefaultMinLatency = 2 * time.Second
	DefaultMaxLatency = 4 * time.Second
)

// UniformLatency samples uniformly from [min, max) at millisecond
// granularity. It is safe for concurrent use.
type UniformLatency struct {
	min, max time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniformLatency builds a UniformLatency. src may be nil, in which case a
// time-seeded source is used. If max <= min every sample is min.
func NewUniformLatency(min, max time.Duration, src rand.Source) *UniformLatency {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &UniformLatency{min: min, max: max, rng: rand.New(src)}
}

// Sample implements LatencySource.
func (u *UniformLatency) Sample() time.Duration {
	span := int64((u.max - u.min) / time.Millisecond)
	if span <= 0 {
		return u.min
	}
	u.mu.Lock()
	n := u.rng.Int63n(span)
	u.mu.Unlock()
	return u.min + time.Duration(n)*time.Millisecond
}

// Bounds returns the [min, max) range samples are drawn from.
func (u *UniformLatency) Bounds() (time.Duration, time.Duration) {
	return u.min, u.max
}
