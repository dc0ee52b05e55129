package scheduler

import (
	"hash/fnv"
	"math/rand"
	"time"
)

// JitterSource provides deterministic per-stream start jitter. Seeding from
// the stream label keeps each stream's offset stable across restarts, so a
// fleet of exporters never synchronizes its probes against the same camera.
type JitterSource struct {
	configSeed int64
}

// NewJitterSource creates a jitter source with the given seed.
func NewJitterSource(configSeed int64) *JitterSource {
	return &JitterSource{configSeed: configSeed}
}

// NewJitterSourceFromTime creates a jitter source seeded from the current time.
func NewJitterSourceFromTime() *JitterSource {
	return NewJitterSource(time.Now().UnixNano())
}

// StreamJitter returns a start delay for a stream within [0, maxJitter).
// The same stream label always produces the same delay for a given seed.
func (j *JitterSource) StreamJitter(stream string, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	h := fnv.New64a()
	h.Write([]byte(stream))
	seed := int64(h.Sum64()) ^ j.configSeed
	rng := rand.New(rand.NewSource(seed))
	return time.Duration(rng.Int63n(int64(maxJitter)))
}
