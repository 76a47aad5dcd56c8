package main

import (
	"context"
	"log/slog"
	"os"

	"dealhub/cmd/bootstrap"

	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		bootstrap.Module,
	)

	if err := app.Start(context.Background()); err != nil {
		slog.Error("failed to start application", "error", err)
		os.Exit(1)
	}

	<-app.Done()

	if err := app.Stop(context.Background()); err != nil {
		slog.Error("failed to stop application", "error", err)
	}

	slog.Info("application stopped")
}
