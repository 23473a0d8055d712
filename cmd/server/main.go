package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/api"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/capability"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/config"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/router"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/session"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/synthesis"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sales-agent",
	Short: "Natural-language sales analytics service",
	Long: `sales-agent answers natural-language questions about sales data.

Queries are classified into descriptive, diagnostic, predictive, or
prescriptive analytics, dispatched to the matching capabilities, and
returned as structured metrics, tables, and recommendations. Running
without a subcommand starts the HTTP server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ds, err := loadDataset(cfg, log)
	if err != nil {
		// The service still starts; /api/data/reload can recover later.
		log.Warn("starting without data", zap.Error(err))
	}
	store := dataset.NewStore(ds)

	sessions, err := newSessionStore(ctx, cfg.Session)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	if closer, ok := sessions.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	registry := capability.Catalog(capability.NewEngines(cfg.Analytics))
	rt := router.New(store, registry, sessions, cfg.Router, log)

	var synth *synthesis.Client
	if cfg.Synthesis.Enabled {
		synth = synthesis.NewClient(cfg.Synthesis)
		log.Info("synthesis enabled", zap.String("model", cfg.Synthesis.Model))
	}

	handler := api.NewHandler(store, registry, rt, synth, cfg, log, version)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Sales Analytics Agent is running"))
	})
	handler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", addr),
			zap.Int("capabilities", registry.Count()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

func loadDataset(cfg *config.Config, log *zap.Logger) (*dataset.Dataset, error) {
	switch cfg.Data.Source {
	case "postgres":
		src, err := dataset.ConnectPostgres(cfg.Data.Postgres)
		if err != nil {
			return nil, err
		}
		defer src.Close()

		ds, err := src.Load(cfg.Data.Postgres.Table)
		if err != nil {
			return nil, err
		}
		log.Info("dataset loaded from postgres",
			zap.String("table", cfg.Data.Postgres.Table),
			zap.Int("rows", ds.Len()))
		return ds, nil
	default:
		ds, err := dataset.LoadCSV(cfg.Data.CSVPath)
		if err != nil {
			return nil, err
		}
		log.Info("dataset loaded from csv",
			zap.String("path", cfg.Data.CSVPath),
			zap.Int("rows", ds.Len()),
			zap.Int("skipped_rows", ds.Meta().SkippedRows))
		return ds, nil
	}
}

func newSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, error) {
	if cfg.RedisURL == "" {
		return session.NewMemoryStore(), nil
	}
	return session.NewRedisStore(ctx, cfg.RedisURL, cfg.TTL)
}
