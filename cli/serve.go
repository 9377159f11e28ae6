package cli

import (
	"context"
	"fmt"
	"time"

	"newsletter-backend/database"
	"newsletter-backend/delivery"
	"newsletter-backend/idempotency"
	"newsletter-backend/newsletter"
	"newsletter-backend/routes"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand(opts *RootOptions) *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, withWorker)
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the delivery worker in this process")

	return cmd
}

func runServe(ctx context.Context, opts *RootOptions, withWorker bool) error {
	rt, err := newEnvironment(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := database.Migrate(rt.db); err != nil {
		return err
	}

	app := routes.NewApp(rt.settings.Application, routes.Dependencies{
		DB:          rt.db,
		Logger:      rt.logger,
		Idempotency: idempotency.NewStore(rt.db),
		Publisher:   newsletter.NewPublisher(newsletter.ConfirmedSubscribers{}, rt.logger),
		JWTSecret:   []byte(rt.settings.Application.JWTSecret),
		JWTTTL:      rt.settings.Application.JWTTTL,
	})

	var worker *delivery.Worker
	if withWorker {
		if worker, err = rt.newWorker(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	addr := rt.settings.Application.Address()
	g.Go(func() error {
		rt.logger.Info("API server listening", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		rt.logger.Info("shutting down API server")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if worker != nil {
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	return g.Wait()
}
