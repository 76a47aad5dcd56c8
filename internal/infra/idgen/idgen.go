// Package idgen mints process-wide unique, time-ordered 64-bit identifiers:
// a seconds-since-epoch component in the high 32 bits and a per-day sequence
// from the shared store's atomic increment in the low 32 bits.
package idgen

import (
	"context"

	"dealhub/internal/pkg/clock"
	"dealhub/internal/pkg/errs"

	"github.com/redis/go-redis/v9"
)

const (
	// 2023-01-01T00:00:00Z
	epochSeconds = 1672531200

	sequenceBits = 32

	keyPrefix = "seq:"

	dateLayout = "2006:01:02"
)

type Incrementer interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
}

type Worker struct {
	client Incrementer
	clock  clock.Clock
}

func NewWorker(client Incrementer, clk clock.Clock) *Worker {
	return &Worker{client: client, clock: clk}
}

// NextID returns the next identifier for the purpose. The sequence key
// rotates daily, so 32 bits of sequence suffice per purpose per day. IDs are
// non-decreasing under a synchronized clock; backward clock skew can break
// strict monotonicity and is not corrected here.
func (w *Worker) NextID(ctx context.Context, purpose string) (uint64, error) {
	now := w.clock.Now().UTC()
	timestamp := uint64(now.Unix() - epochSeconds)

	key := keyPrefix + purpose + ":" + now.Format(dateLayout)
	seq, err := w.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, errs.Wrap(err, "failed to increment id sequence "+key)
	}

	return timestamp<<sequenceBits | uint64(seq), nil
}
