// Package lock implements a best-effort distributed mutex on the shared
// store: SET NX EX to acquire, a compare-and-delete script to release. The
// lease is the only liveness mechanism against a crashed holder; there is no
// fairness and no internal retry.
package lock

import (
	"context"
	"errors"
	"time"

	"dealhub/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lock:"

// Release deletes the key only if it still holds the caller's token, in one
// indivisible step. A plain read-then-delete could release a lock that a new
// owner acquired after our lease expired.
var unlockScript = redis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`)

// Client is the slice of the shared-store client the lock needs.
type Client interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

type Lock struct {
	client Client
	key    string
	token  string
}

// New creates a handle for the named resource. The owner token is unique per
// handle so a late release after lease expiry can never delete another
// owner's lock.
func New(client Client, resource string) *Lock {
	return &Lock{
		client: client,
		key:    keyPrefix + resource,
		token:  uuid.NewString(),
	}
}

// TryLock attempts a single atomic acquire with the given lease. It never
// retries; retry policy belongs to the caller.
func (l *Lock) TryLock(ctx context.Context, lease time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, lease).Result()
	if err != nil {
		return false, errs.Wrap(err, "failed to acquire lock "+l.key)
	}
	return ok, nil
}

// Unlock releases the lock if this handle still owns it. Releasing an
// expired or stolen lock is a silent no-op.
func (l *Lock) Unlock(ctx context.Context) error {
	err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return errs.Wrap(err, "failed to release lock "+l.key)
	}
	return nil
}

// WithLock runs fn while holding the named lock and releases it on every exit
// path. It fails fast with ErrLockUnavailable when the lock is held.
func WithLock(ctx context.Context, client Client, resource string, lease time.Duration, fn func(ctx context.Context) error) error {
	l := New(client, resource)
	ok, err := l.TryLock(ctx, lease)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrLockUnavailable
	}
	defer func() {
		// Release even when ctx was cancelled inside fn.
		_ = l.Unlock(context.WithoutCancel(ctx))
	}()
	return fn(ctx)
}
