package bootstrap

import (
	"dealhub/cmd/bootstrap/components"

	"go.uber.org/fx"
)

var Module = fx.Options(
	ConfigModule,
	LoggerModule,
	DBModule,
	RedisModule,
	components.PersistenceModule,
	components.UseCaseModule,
	components.WorkerModule,
)
