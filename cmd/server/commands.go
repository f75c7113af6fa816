package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/hospital-ledger/api"
	"github.com/warp/hospital-ledger/config"
	"github.com/warp/hospital-ledger/factory"
	"github.com/warp/hospital-ledger/finance"
	"github.com/warp/hospital-ledger/generic"
	"github.com/warp/hospital-ledger/integration"
	"github.com/warp/hospital-ledger/store/sqlite"
)

type rootOptions struct {
	configPath string
	dbPath     string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "hospital-ledger",
		Short: "Hospital financial ledger and HR/inventory integration engine",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides store.path)")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newSeedCommand(opts),
		newPendingCommand(opts),
		newSyncCommand(opts),
	)
	return rootCmd
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

type app struct {
	cfg    *config.Config
	log    *zap.Logger
	store  *sqlite.Store
	uow    *generic.UnitOfWork
	fin    *finance.Service
	mgr    *integration.Manager
	syncer *integration.Syncer
}

func openApp(opts *rootOptions) (*app, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}
	if opts.dbPath != "" {
		cfg.Store.Path = opts.dbPath
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	weekend, err := cfg.Weekend()
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	uow := generic.NewUnitOfWork(store)

	return &app{
		cfg:    cfg,
		log:    log,
		store:  store,
		uow:    uow,
		fin:    finance.NewService(uow, rules, log),
		mgr:    integration.NewManager(uow, rules.Currency, weekend, log),
		syncer: integration.NewSyncer(uow, rules, log),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing database", zap.Error(err))
	}
	_ = a.log.Sync()
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if c.Level != "" {
		lvl, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// COMMANDS
// =============================================================================

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return runServe(a)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port (overrides server.port)")
	return cmd
}

func runServe(a *app) error {
	handler := api.NewHandler(a.uow, a.fin, a.mgr, a.syncer, a.log)
	router := api.NewRouter(handler)

	scheduler := api.NewSyncScheduler(a.syncer, a.log)
	scheduler.Enabled = a.cfg.Sync.Enabled
	scheduler.Interval = a.cfg.Sync.Interval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting",
			zap.Int("port", a.cfg.Server.Port),
			zap.String("db", a.cfg.Store.Path))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	a.log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.log.Info("server stopped")
	return nil
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Apply the default chart of accounts and demo staff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			rep, err := factory.Seed(cmd.Context(), a.uow)
			if err != nil {
				return fmt.Errorf("seeding: %w", err)
			}
			return printJSON(cmd, rep)
		},
	}
}

func newPendingCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Print the pending integration queues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			q, err := a.mgr.GetPendingIntegrations(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, q)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty every pending integration queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.mgr.ClearPendingIntegrations(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d pending actions\n", n)
			return nil
		},
	})
	return cmd
}

func newSyncCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Post queued payroll and purchases to the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			rep, err := a.syncer.PostPending(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, rep)
		},
	}
}
