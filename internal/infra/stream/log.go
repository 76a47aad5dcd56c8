// Package stream binds the order admission state in the shared store: the
// append-only order log with its consumer group, and the atomic admission
// script that owns the stock counter and per-voucher buyer set.
package stream

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"dealhub/internal/domain/voucher"
	"dealhub/internal/pkg/config"
	"dealhub/internal/pkg/errs"

	"github.com/redis/go-redis/v9"
)

// Client is the slice of the shared-store client the order log needs.
type Client interface {
	redis.Scripter
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Entry is one claimed log record. ID is the store-assigned record id used
// for acknowledgement; Intent is the decoded payload.
type Entry struct {
	ID     string
	Intent voucher.OrderIntent
}

type Log struct {
	client Client
	cfg    config.StreamConfig
}

func NewLog(client Client, cfg config.StreamConfig) *Log {
	return &Log{client: client, cfg: cfg}
}

// EnsureGroup creates the consumer group (and the stream itself) if missing.
// An already-existing group is fine; any other failure is a configuration
// error that should abort startup.
func (l *Log) EnsureGroup(ctx context.Context) error {
	err := l.client.XGroupCreateMkStream(ctx, l.cfg.Key, l.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return errs.Wrap(err, "failed to create consumer group "+l.cfg.Group)
	}
	return nil
}

// ReadNext claims the next unconsumed entry for this consumer, blocking up
// to the configured timeout. A nil entry means the wait timed out.
func (l *Log) ReadNext(ctx context.Context) (*Entry, error) {
	return l.read(ctx, ">", l.cfg.Block)
}

// ReadPending re-reads the oldest entry already claimed by this consumer but
// not yet acknowledged. A nil entry means the pending list is drained.
func (l *Log) ReadPending(ctx context.Context) (*Entry, error) {
	return l.read(ctx, "0", -1)
}

func (l *Log) Ack(ctx context.Context, id string) error {
	if err := l.client.XAck(ctx, l.cfg.Key, l.cfg.Group, id).Err(); err != nil {
		return errs.Wrap(err, "failed to ack order log entry "+id)
	}
	return nil
}

func (l *Log) read(ctx context.Context, offset string, block time.Duration) (*Entry, error) {
	streams, err := l.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    l.cfg.Group,
		Consumer: l.cfg.Consumer,
		Streams:  []string{l.cfg.Key, offset},
		Count:    1,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "failed to read order log"), errs.ErrTransientStore)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	intent, err := decodeIntent(msg.Values)
	if err != nil {
		// Return the id so the caller can ack the broken record away.
		return &Entry{ID: msg.ID}, errs.Mark(err, errs.ErrCorruptEntry)
	}
	return &Entry{ID: msg.ID, Intent: intent}, nil
}

func decodeIntent(values map[string]interface{}) (voucher.OrderIntent, error) {
	var intent voucher.OrderIntent

	orderID, err := fieldUint(values, "id")
	if err != nil {
		return intent, err
	}
	voucherID, err := fieldUint(values, "voucherId")
	if err != nil {
		return intent, err
	}
	userID, err := fieldUint(values, "userId")
	if err != nil {
		return intent, err
	}

	intent.OrderID = orderID
	intent.VoucherID = voucherID
	intent.UserID = userID
	return intent, nil
}

func fieldUint(values map[string]interface{}, field string) (uint64, error) {
	raw, ok := values[field]
	if !ok {
		return 0, errs.New("missing field " + field)
	}
	s, ok := raw.(string)
	if !ok {
		return 0, errs.New("non-string field " + field)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errs.Wrap(err, "invalid field "+field)
	}
	return n, nil
}
