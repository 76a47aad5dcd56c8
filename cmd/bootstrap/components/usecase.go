package components

import (
	"dealhub/internal/usecase/commands"
	"dealhub/internal/usecase/queries"
	"dealhub/internal/worker"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseCommandsModule,
	usecaseQueriesModule,
)

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		commands.NewOrderCommands,
		commands.NewVoucherCommands,
		commands.NewShopCommands,
		commands.NewSignInCommands,
		func(c commands.OrderCommands) worker.OrderPersister { return c },
	),
)

var usecaseQueriesModule = fx.Module("usecase/queries",
	fx.Provide(
		queries.NewShopQueries,
	),
)
