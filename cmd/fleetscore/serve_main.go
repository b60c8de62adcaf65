package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/beargallbladder/fleetapitest-sub000/internal/application"
	"github.com/beargallbladder/fleetapitest-sub000/internal/backend"
	"github.com/beargallbladder/fleetapitest-sub000/internal/cache"
	"github.com/beargallbladder/fleetapitest-sub000/internal/config"
	"github.com/beargallbladder/fleetapitest-sub000/internal/geo"
	httpapi "github.com/beargallbladder/fleetapitest-sub000/internal/interfaces/http"
	"github.com/beargallbladder/fleetapitest-sub000/internal/logging"
	"github.com/beargallbladder/fleetapitest-sub000/internal/metrics"
	"github.com/beargallbladder/fleetapitest-sub000/internal/persistence"
)

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetAppConfigPath()
	}
	addrOverride, _ := cmd.Flags().GetString("addr")

	cfg, err := config.LoadAppConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addrOverride != "" {
		cfg.Server.Addr = addrOverride
	}

	if err := logging.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	m := metrics.New(nil)

	svcOpts := application.Options{
		Metrics:   m,
		FleetSize: cfg.Scoring.FleetSize,
	}

	if cfg.Scoring.GeoTables != "" {
		loader := geo.NewTablesLoader()
		if err := loader.LoadFromFile(cfg.Scoring.GeoTables); err != nil {
			return fmt.Errorf("load severity tables: %w", err)
		}
		tables, err := loader.Tables()
		if err != nil {
			return err
		}
		svcOpts.GeoTables = &tables
	}

	manager, err := persistence.NewManager(cfg.Ledger)
	if err != nil {
		return fmt.Errorf("init score ledger: %w", err)
	}
	defer manager.Close()

	serverOpts := httpapi.Options{
		Metrics:  m,
		Cache:    cache.NewAuto(),
		CacheTTL: cfg.Cache.GetTTL(),
		Version:  version,
	}
	if manager.IsEnabled() {
		svcOpts.Ledger = manager.Ledger()
		svcOpts.Recent = manager.Recent()
		serverOpts.Health = manager.Health()
	}

	serverOpts.Service = application.NewService(svcOpts)

	server, err := httpapi.NewServer(cfg.Server, serverOpts)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownGrace())
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func runBackend(cmd *cobra.Command, args []string) error {
	dispatcher := backend.NewDispatcher()

	fmt.Printf("Engine:      %s\n", dispatcher.Name())
	fmt.Printf("Accelerated: %v\n", dispatcher.Accelerated())
	if !dispatcher.Accelerated() {
		if os.Getenv(backend.PortableOnlyEnv) != "" {
			fmt.Printf("Reason:      %s is set\n", backend.PortableOnlyEnv)
		} else {
			fmt.Println("Reason:      native engine failed reference verification")
		}
	}
	return nil
}
