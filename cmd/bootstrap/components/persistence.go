package components

import (
	"log/slog"

	"dealhub/internal/infra/cache"
	"dealhub/internal/infra/idgen"
	"dealhub/internal/infra/lock"
	"dealhub/internal/infra/repository"
	"dealhub/internal/infra/signin"
	"dealhub/internal/infra/stream"
	"dealhub/internal/infra/uow"
	"dealhub/internal/pkg/clock"
	"dealhub/internal/pkg/config"
	"dealhub/internal/usecase/commands"
	"dealhub/internal/usecase/queries"
	"dealhub/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var PersistenceModule = fx.Module("persistence",
	storeOption,
	repositoryModule,
	sharedStoreModule,
)

var storeOption = fx.Provide(
	NewDBTX,
	clock.NewRealClock,
)

var repositoryModule = fx.Module("persistence/repository",
	fx.Provide(
		// UnitOfWork
		uow.NewPostgresUoW,
		// Shop
		repository.NewShopRepository,
		func(r *repository.ShopRepository) queries.ShopReadStore { return r },
		func(r *repository.ShopRepository) commands.ShopRepository { return r },
		// Voucher
		repository.NewVoucherRepository,
		func(r *repository.VoucherRepository) commands.VoucherRepository { return r },
		// Order
		repository.NewOrderRepository,
		func(r *repository.OrderRepository) commands.OrderRepository { return r },
	),
)

var sharedStoreModule = fx.Module("persistence/sharedstore",
	fx.Provide(
		// Lock
		func(client *redis.Client) lock.Client { return client },
		// ID generator
		NewIDWorker,
		func(w *idgen.Worker) commands.IDGenerator { return w },
		// Cache
		func(client *redis.Client) cache.Store { return client },
		NewCacheClient,
		func(c *cache.Client) commands.CacheEvictor { return c },
		// Order log
		func(client *redis.Client) stream.Client { return client },
		NewOrderLog,
		func(l *stream.Log) commands.Admitter { return l },
		func(l *stream.Log) worker.OrderLog { return l },
		// Sign-in tracker
		func(client *redis.Client) signin.Client { return client },
		signin.NewTracker,
		func(t *signin.Tracker) commands.SignInTracker { return t },
	),
)

func NewDBTX(pool *pgxpool.Pool) repository.DBTX {
	return pool
}

func NewIDWorker(client *redis.Client, clk clock.Clock) *idgen.Worker {
	return idgen.NewWorker(client, clk)
}

func NewCacheClient(
	store cache.Store,
	locks lock.Client,
	clk clock.Clock,
	logger *slog.Logger,
	cacheCfg config.CacheConfig,
	lockCfg config.LockConfig,
) *cache.Client {
	return cache.NewClient(store, locks, clk, logger, cacheCfg, lockCfg)
}

func NewOrderLog(client stream.Client, cfg config.StreamConfig) *stream.Log {
	return stream.NewLog(client, cfg)
}
