package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	auth "github.com/goliatone/go-console-auth"
	"github.com/goliatone/go-console-auth/blob"
	"github.com/goliatone/go-console-auth/config"
	"github.com/goliatone/go-console-auth/logging"
	"github.com/goliatone/go-console-auth/memory"
	"github.com/goliatone/go-console-auth/metrics"
	"github.com/goliatone/go-console-auth/provider/local"
	"github.com/goliatone/go-console-auth/repository"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg        *config.Config
	logger     *logging.Logger
	metrics    *metrics.Metrics
	db         *bun.DB
	provider   auth.IdentityProvider
	local      *local.Provider
	profiles   auth.ProfileStore
	controller *auth.Controller
}

func newApp(ctx context.Context, cfg *config.Config, inMemory bool) (*app, error) {
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewMetrics(nil),
	}

	if inMemory {
		a.provider = memory.NewProvider()
		a.profiles = memory.NewProfileStore(nil)
	} else if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}

	blobs, err := blob.NewFSStore(cfg.GetBlobDir(), cfg.GetBlobURLPrefix())
	if err != nil {
		a.Close()
		return nil, err
	}
	tokens, err := blob.NewTokenFile(cfg.Storage.RefreshTokenFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.controller, err = auth.NewController(a.provider, a.profiles,
		auth.WithBlobStore(blobs),
		auth.WithRefreshTokenStore(tokens),
		auth.WithControllerLogger(logger.Named("controller")),
		auth.WithControllerActivitySink(auth.MultiActivitySink{
			a.metrics,
			logger.Named("audit").AuditSink(),
		}),
		auth.WithPhoneRegion(cfg.Auth.PhoneRegion),
		auth.WithPasswordResetDisclosure(cfg.GetDisclosurePolicy()),
		auth.WithControllerDebug(cfg.Debug),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStorage(ctx context.Context) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, a.cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = bun.NewDB(sqldb, sqlitedialect.New())

	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := local.CreateCredentialsTable(ctx, a.db); err != nil {
		return fmt.Errorf("create credentials table: %w", err)
	}
	if err := repository.CreateProfilesTable(ctx, a.db); err != nil {
		return fmt.Errorf("create profiles table: %w", err)
	}

	a.local, err = local.NewProvider(
		local.NewCredentialsRepository(a.db),
		a.cfg.LocalProviderConfig(),
		local.WithLogger(a.logger.Named("provider")),
		local.WithNotifier(local.LogNotifier{Logger: a.logger.Named("mail")}),
	)
	if err != nil {
		return err
	}
	a.provider = a.local
	a.profiles = repository.NewProfileRepository(a.db)
	return nil
}

// Close releases the controller and the database.
func (a *app) Close() error {
	var errs []error
	if a.controller != nil {
		errs = append(errs, a.controller.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
