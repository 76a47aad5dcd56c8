// Package worker runs the single order-log consumer: it drains admitted
// order intents into the authoritative store with at-least-once delivery,
// recovering claimed-but-unacknowledged entries after any failure.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dealhub/internal/domain/voucher"
	"dealhub/internal/infra/stream"
	"dealhub/internal/pkg/errs"
)

const replayBackoff = 20 * time.Millisecond

type OrderLog interface {
	ReadNext(ctx context.Context) (*stream.Entry, error)
	ReadPending(ctx context.Context) (*stream.Entry, error)
	Ack(ctx context.Context, id string) error
}

type OrderPersister interface {
	Persist(ctx context.Context, intent voucher.OrderIntent) error
}

// Consumer is the single active member of the order log's consumer group.
// Exactly one runs per deployment; per-user commit ordering relies on it.
type Consumer struct {
	log    OrderLog
	orders OrderPersister
	logger *slog.Logger
}

func NewConsumer(log OrderLog, orders OrderPersister, logger *slog.Logger) *Consumer {
	return &Consumer{log: log, orders: orders, logger: logger}
}

// Run consumes until ctx is cancelled. Entries are acknowledged only after
// successful persistence; on any failure the loop switches to replaying this
// consumer's pending entries before resuming normal consumption.
func (c *Consumer) Run(ctx context.Context) {
	for ctx.Err() == nil {
		entry, err := c.log.ReadNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if c.skipCorrupt(ctx, entry, err) {
				continue
			}
			c.logger.Error("order log read failed", "error", err)
			c.replayPending(ctx)
			continue
		}
		if entry == nil {
			// Blocking read timed out; loop for liveness.
			continue
		}

		if err := c.handle(ctx, entry); err != nil {
			c.logger.Error("order handling failed", "entryId", entry.ID, "error", err)
			c.replayPending(ctx)
		}
	}
}

// replayPending re-applies every entry this consumer claimed but never
// acknowledged, from the oldest, until the pending list is empty. Failures
// are retried indefinitely; admitted orders are never dropped.
func (c *Consumer) replayPending(ctx context.Context) {
	for ctx.Err() == nil {
		entry, err := c.log.ReadPending(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if c.skipCorrupt(ctx, entry, err) {
				continue
			}
			c.logger.Error("pending replay read failed", "error", err)
			c.sleep(ctx, replayBackoff)
			continue
		}
		if entry == nil {
			return
		}

		if err := c.handle(ctx, entry); err != nil {
			c.logger.Error("pending replay handling failed", "entryId", entry.ID, "error", err)
			c.sleep(ctx, replayBackoff)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, entry *stream.Entry) error {
	if err := c.orders.Persist(ctx, entry.Intent); err != nil {
		return err
	}
	return c.log.Ack(ctx, entry.ID)
}

// skipCorrupt acknowledges a malformed entry away so one bad record cannot
// halt the pipeline.
func (c *Consumer) skipCorrupt(ctx context.Context, entry *stream.Entry, err error) bool {
	if !errors.Is(err, errs.ErrCorruptEntry) {
		return false
	}
	if entry == nil {
		return false
	}
	c.logger.Error("corrupt order log entry skipped", "entryId", entry.ID, "error", err)
	if ackErr := c.log.Ack(ctx, entry.ID); ackErr != nil {
		c.logger.Error("failed to ack corrupt entry", "entryId", entry.ID, "error", ackErr)
	}
	return true
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
