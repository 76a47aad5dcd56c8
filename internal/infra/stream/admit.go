package stream

import (
	"context"
	"strconv"

	"dealhub/internal/pkg/errs"

	"github.com/redis/go-redis/v9"
)

const (
	stockKeyPrefix  = "seckill:stock:"
	buyersKeyPrefix = "seckill:orders:"
)

// The single global admission decision: stock check, duplicate check, stock
// decrement, buyer registration and intent enqueue happen in one indivisible
// script, race-free under arbitrary concurrent submitters. Every key the
// script touches is declared in KEYS so command routing stays valid.
var admitScript = redis.NewScript(`
local stockKey = KEYS[1]
local buyersKey = KEYS[2]
local streamKey = KEYS[3]
local voucherId = ARGV[1]
local userId = ARGV[2]
local orderId = ARGV[3]

local stock = tonumber(redis.call('get', stockKey))
if stock == nil or stock <= 0 then
    return 1
end
if redis.call('sismember', buyersKey, userId) == 1 then
    return 2
end

redis.call('incrby', stockKey, -1)
redis.call('sadd', buyersKey, userId)
redis.call('xadd', streamKey, '*', 'id', orderId, 'voucherId', voucherId, 'userId', userId)
return 0
`)

const (
	admitOK         = 0
	admitOutOfStock = 1
	admitDuplicate  = 2
)

// Admit runs the admission script for one submission. On success the order
// intent is already appended to the log; rejections map to the terminal
// sentinels and mutate nothing.
func (l *Log) Admit(ctx context.Context, voucherID, userID, orderID uint64) error {
	vid := strconv.FormatUint(voucherID, 10)
	keys := []string{stockKeyPrefix + vid, buyersKeyPrefix + vid, l.cfg.Key}
	res, err := admitScript.Run(ctx, l.client, keys,
		vid,
		strconv.FormatUint(userID, 10),
		strconv.FormatUint(orderID, 10),
	).Int()
	if err != nil {
		return errs.Mark(errs.Wrap(err, "failed to run admission script"), errs.ErrTransientStore)
	}

	switch res {
	case admitOK:
		return nil
	case admitOutOfStock:
		return errs.ErrOutOfStock
	case admitDuplicate:
		return errs.ErrDuplicateOrder
	default:
		return errs.New("unexpected admission script result " + strconv.Itoa(res))
	}
}

// SeedStock publishes the voucher's stock mirror ahead of the sale. The
// buyer set is retained for the voucher's lifetime; pruning it would reopen
// the one-order-per-user invariant.
func (l *Log) SeedStock(ctx context.Context, voucherID uint64, stock int32) error {
	key := stockKeyPrefix + strconv.FormatUint(voucherID, 10)
	if err := l.client.Set(ctx, key, int64(stock), 0).Err(); err != nil {
		return errs.Wrap(err, "failed to seed stock "+key)
	}
	return nil
}
