// Package signin records daily sign-ins as one bit per day in a monthly
// bitmap and derives the current streak from the trailing run of set bits.
package signin

import (
	"context"
	"fmt"

	"dealhub/internal/pkg/clock"
	"dealhub/internal/pkg/errs"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sign:"

// Client is the slice of the shared-store client the tracker needs.
type Client interface {
	SetBit(ctx context.Context, key string, offset int64, value int) *redis.IntCmd
	BitField(ctx context.Context, key string, values ...interface{}) *redis.IntSliceCmd
}

type Tracker struct {
	client Client
	clock  clock.Clock
}

func NewTracker(client Client, clk clock.Clock) *Tracker {
	return &Tracker{client: client, clock: clk}
}

func monthKey(userID uint64, year int, month int) string {
	return fmt.Sprintf("%s%d:%04d%02d", keyPrefix, userID, year, month)
}

// Sign marks today as signed in for the user.
func (t *Tracker) Sign(ctx context.Context, userID uint64) error {
	now := t.clock.Now().UTC()
	key := monthKey(userID, now.Year(), int(now.Month()))
	if err := t.client.SetBit(ctx, key, int64(now.Day()-1), 1).Err(); err != nil {
		return errs.Wrap(err, "failed to record sign-in "+key)
	}
	return nil
}

// StreakCount returns the number of consecutive signed-in days ending today.
func (t *Tracker) StreakCount(ctx context.Context, userID uint64) (int, error) {
	now := t.clock.Now().UTC()
	key := monthKey(userID, now.Year(), int(now.Month()))
	day := now.Day()

	res, err := t.client.BitField(ctx, key, "GET", fmt.Sprintf("u%d", day), 0).Result()
	if err != nil {
		return 0, errs.Wrap(err, "failed to read sign-in bitmap "+key)
	}
	if len(res) == 0 {
		return 0, nil
	}

	// Count the trailing run of set bits: today backwards.
	bits := res[0]
	count := 0
	for bits != 0 {
		if bits&1 == 0 {
			break
		}
		count++
		bits >>= 1
	}
	return count, nil
}
