package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	authcard "github.com/goliatone/go-authcard"
	"github.com/goliatone/go-authcard/activitymap"
	"github.com/goliatone/go-authcard/config"
	"github.com/goliatone/go-authcard/metrics"
	"github.com/goliatone/go-authcard/middleware/csrf"
	"github.com/goliatone/go-authcard/provider/gotrue"
	"github.com/goliatone/go-authcard/provider/local"
	"github.com/goliatone/go-authcard/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newRootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "authcard",
		Short:         "Serve the sign in and registration card",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	config.AddFlags(cmd.Flags())

	cmd.AddCommand(newMigrateCommand(&configFile))
	return cmd
}

func newMigrateCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the local backend tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configFile, cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.Backend.Provider != config.ProviderLocal {
				return fmt.Errorf("migrate: provider %q keeps its tables in the hosted backend", cfg.Backend.Provider)
			}

			client, err := local.Open(cfg.Backend.Local.DSN)
			if err != nil {
				return err
			}
			defer client.DB().Close()
			return local.Migrate(cmd.Context(), client)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := authcard.NewZapLogger(cfg.LoggerOptions())
	if err != nil {
		return err
	}
	defer logger.Sync()

	backend, closeBackend, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	snapshots, err := newSnapshotStore(ctx, cfg)
	if err != nil {
		return err
	}

	var pages *authcard.Pages
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector, err = metrics.New(registry, func() int {
			if pages == nil {
				return 0
			}
			return pages.Len()
		})
		if err != nil {
			return err
		}
	}

	activity := authcard.MultiActivitySink{activitymap.NewSink(logger.Named("activity"))}
	if collector != nil {
		activity = append(activity, collector)
	}

	pages = authcard.NewPages(authcard.PageDeps{
		Backend:     backend,
		Timings:     cfg.CardTimings(),
		Destination: cfg.Redirect.URL,
		Navigator: authcard.NavigatorFunc(func(pageID, destination string) {
			logger.Info("redirecting", "page", pageID, "destination", destination)
		}),
		Logger:   logger.Named("page"),
		Activity: activity,
	},
		authcard.WithSnapshotStore(snapshots),
		authcard.WithPageTTL(cfg.Pages.TTL),
	)
	go pages.Run(ctx, cfg.Pages.SweepInterval)

	controller := authcard.NewCardController(pages,
		authcard.WithControllerLogger(logger.Named("http")),
		authcard.WithBrand(cfg.CardBrand()),
		authcard.WithSecureCookies(cfg.Server.SecureCookies),
		authcard.WithDebug(cfg.Server.Debug),
	)

	var options []authcard.AppOption
	if collector != nil {
		options = append(options, func(app *fiber.App) {
			app.Use(collector.Middleware())
			app.Get(cfg.Metrics.Path, metrics.Handler(registry)).Name("metrics.get")
		})
	}
	if cfg.Server.CSRFKey != "" {
		options = append(options, func(app *fiber.App) {
			app.Use(csrf.New(csrf.Config{
				SessionKey: controller.PageID,
				SecureKey:  []byte(cfg.Server.CSRFKey),
			}))
		})
	} else {
		logger.Warn("csrf protection disabled, set server.csrf_key to enable it")
	}

	app := authcard.NewApp(controller, options...)

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address, "provider", cfg.Backend.Provider, "store", cfg.Store.Driver)
		errc <- app.Listen(cfg.Server.Address)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newBackend(ctx context.Context, cfg *config.Config) (authcard.Backend, func(), error) {
	switch cfg.Backend.Provider {
	case config.ProviderLocal:
		client, err := local.Open(cfg.Backend.Local.DSN)
		if err != nil {
			return nil, nil, err
		}
		db := client.DB()
		if err := local.Migrate(ctx, client); err != nil {
			db.Close()
			return nil, nil, err
		}
		backend, err := local.New(db, []byte(cfg.Backend.Local.SigningKey),
			local.WithHashIDs(cfg.Backend.Local.HashIDs),
			local.WithTokenTTL(cfg.Backend.Local.TokenTTL),
		)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return backend, func() { db.Close() }, nil

	case config.ProviderGoTrue:
		gcfg := gotrue.DefaultConfig(cfg.Backend.URL, cfg.Backend.AnonKey)
		gcfg.ServiceKey = cfg.Backend.ServiceKey
		gcfg.JWKSURL = cfg.Backend.JWKSURL
		if cfg.Backend.ProfileTable != "" {
			gcfg.ProfileTable = cfg.Backend.ProfileTable
		}
		client, err := gotrue.New(gcfg)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}

	return nil, nil, errors.New("unknown backend provider " + cfg.Backend.Provider)
}

func newSnapshotStore(ctx context.Context, cfg *config.Config) (authcard.SnapshotStore, error) {
	if cfg.Store.Driver != config.StoreRedis {
		return store.NewMemory(cfg.Pages.TTL), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.Redis.Addr,
		Password: cfg.Store.Redis.Password,
		DB:       cfg.Store.Redis.DB,
	})
	snapshots := store.NewRedis(client, cfg.Store.Redis.Prefix, cfg.Pages.TTL)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := snapshots.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis snapshot store: %w", err)
	}
	return snapshots, nil
}
