package payload

import (
	"errors"
	"math/rand"
	"strconv"
	"time"
)

// ErrEmptyPool is returned when an IDPool would hold no IDs.
var ErrEmptyPool = errors.New("trade ID pool is empty")

// IDPool is a read-only set of trade IDs that read workloads pick from.
// It is built once during setup and shared by every worker.
type IDPool struct {
	ids []string
}

// NewIDPool copies ids into a pool.
func NewIDPool(ids []string) (*IDPool, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyPool
	}
	return &IDPool{ids: append([]string(nil), ids...)}, nil
}

// Pick returns a uniformly chosen ID.
func (p *IDPool) Pick(rng *rand.Rand) string {
	return p.ids[rng.Intn(len(p.ids))]
}

// Len returns the number of IDs in the pool.
func (p *IDPool) Len() int {
	return len(p.ids)
}

// GenerateIDs builds n synthetic trade IDs of the form TRD-<millis>-<base36>,
// with timestamps spread over the maxAge window before now.
func GenerateIDs(rng *rand.Rand, n int, now time.Time, maxAge time.Duration) []string {
	ids := make([]string, n)
	for i := range ids {
		ts := now
		if maxAge > 0 {
			ts = now.Add(-time.Duration(rng.Int63n(int64(maxAge))))
		}
		ids[i] = "TRD-" + strconv.FormatInt(ts.UnixMilli(), 10) + "-" + base36(rng, 9)
	}
	return ids
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func base36(rng *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36Alphabet[rng.Intn(len(base36Alphabet))]
	}
	return string(b)
}
