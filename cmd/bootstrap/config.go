package bootstrap

import (
	"dealhub/internal/pkg/config"

	"go.uber.org/fx"
)

var ConfigModule = fx.Module("config",
	fx.Provide(
		config.LoadConfig,
		func(cfg config.Config) config.DBConfig { return cfg.DB },
		func(cfg config.Config) config.RedisConfig { return cfg.Redis },
		func(cfg config.Config) config.CacheConfig { return cfg.Cache },
		func(cfg config.Config) config.LockConfig { return cfg.Lock },
		func(cfg config.Config) config.StreamConfig { return cfg.Stream },
	),
)
