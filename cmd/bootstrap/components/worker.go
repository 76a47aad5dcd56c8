package components

import (
	"context"

	"dealhub/internal/infra/stream"
	"dealhub/internal/worker"

	"go.uber.org/fx"
)

var WorkerModule = fx.Module("worker",
	fx.Provide(
		worker.NewConsumer,
	),
	fx.Invoke(startConsumer),
)

// startConsumer runs exactly one order consumer for the process lifetime.
// A missing consumer group is a configuration failure and aborts startup.
func startConsumer(lc fx.Lifecycle, consumer *worker.Consumer, log *stream.Log) {
	var cancel context.CancelFunc
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := log.EnsureGroup(ctx); err != nil {
				return err
			}
			runCtx, c := context.WithCancel(context.Background())
			cancel = c
			go func() {
				defer close(done)
				consumer.Run(runCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
