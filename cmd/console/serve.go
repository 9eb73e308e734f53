package main

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-console-auth"
	"github.com/goliatone/go-console-auth/config"
	"github.com/goliatone/go-console-auth/console"
	"github.com/goliatone/go-console-auth/idle"
	"github.com/goliatone/go-router"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the console",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, root.inMemory)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, inMemory bool) error {
	a, err := newApp(ctx, cfg, inMemory)
	if err != nil {
		return err
	}
	defer a.Close()

	guard := idle.ForController(a.controller,
		idle.WithTimeout(cfg.GetIdleTimeout()),
		idle.WithLogger(a.logger.Named("idle")),
	)
	unbind := guard.Bind(a.controller.Store())
	defer unbind()
	defer guard.Disarm()

	opts := []console.Option{
		console.WithIdleGuard(guard),
		console.WithLogger(a.logger.Named("http")),
	}
	if a.local != nil {
		opts = append(opts,
			console.WithPasswordResetter(a.local),
			console.WithEmailVerifier(a.local),
		)
	}
	srv, err := console.New(cfg, a.controller, opts...)
	if err != nil {
		return err
	}

	if err := a.controller.Start(ctx); err != nil {
		return err
	}
	if sess, err := a.controller.Restore(ctx); err != nil {
		a.logger.Warn("session restore failed: %s", auth.TextCode(err))
	} else if sess != nil {
		a.logger.Info("restored session for %s", sess.UID())
	}

	errc := make(chan error, 2)
	go func() {
		a.logger.Info("listening on %s", cfg.Addr)
		errc <- srv.Listen(cfg.Addr)
	}()

	var metricsSrv router.Server[*fiber.App]
	if cfg.MetricsAddr != "" {
		metricsSrv = console.NewMetricsServer(a.metrics.Handler())
		go func() {
			a.logger.Info("metrics listening on %s%s", cfg.MetricsAddr, console.MetricsPath)
			errc <- metricsSrv.Serve(cfg.MetricsAddr)
		}()
	}

	var serveErr error
	select {
	case serveErr = <-errc:
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	errs := []error{serveErr, srv.Shutdown(shutdownCtx)}
	if metricsSrv != nil {
		errs = append(errs, metricsSrv.Shutdown(shutdownCtx))
	}
	return errors.Join(errs...)
}
