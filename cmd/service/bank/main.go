package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/elpasominers/bank/internal/auth"
	"github.com/elpasominers/bank/internal/cache"
	"github.com/elpasominers/bank/internal/core/ledger"
	"github.com/elpasominers/bank/internal/core/ledger/store/ledgerdb"
	"github.com/elpasominers/bank/internal/data/dbschema"
	db "github.com/elpasominers/bank/internal/data/dbsql/pgx"
	"github.com/elpasominers/bank/internal/handlers"
	"github.com/elpasominers/bank/internal/logger"
	"github.com/elpasominers/bank/internal/trace"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres stdlib driver, used for migrations.
)

var build = "develop"

func main() {
	log := logger.New("Bank")

	if err := run(log); err != nil {
		log.Error("startup", "ERROR", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx := context.Background()

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Env string `conf:"default:DEV"`
		Web struct {
			Port            int           `conf:"default:8080"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
		}
		DB struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,mask"`
			Host       string `conf:"default:0.0.0.0:5432"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		Redis struct {
			// Empty disables the statement cache.
			Addr string
		}
		Auth struct {
			Secret   string        `conf:"default:dev-only-secret,mask"`
			TokenTTL time.Duration `conf:"default:24h"`
		}
		Trace struct {
			Endpoint       string  `conf:"default:0.0.0.0:4317"`
			SampleFraction float64 `conf:"default:1"`
			Discard        bool    `conf:"default:true"`
		}
	}{
		Version: conf.Version{
			Build: build,
		},
	}

	const prefix = "BANK"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Info("starting service", "version", build)
	defer log.Info("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Info("startup", "config", out)

	// =========================================================================
	// Database Support

	log.Info("startup", "status", "initializing database support", "host", cfg.DB.Host)

	dbCfg := db.Config{
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Name:       cfg.DB.Name,
		DisableTLS: cfg.DB.DisableTLS,
	}
	database, err := db.Open(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Info("shutdown", "status", "stopping database support", "host", cfg.DB.Host)
		database.Close()
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.StatusCheck(ctxWithTimeout, database); err != nil {
		return fmt.Errorf("database not health: %w", err)
	}

	// TODO: remove migration from here
	stdDB, err := sql.Open("pgx", db.ConnString(dbCfg))
	if err != nil {
		return fmt.Errorf("failed to open DB for migration: %w", err)
	}

	if err := dbschema.Migrate(stdDB); err != nil {
		stdDB.Close()
		return fmt.Errorf("migrating error: %w", err)
	}
	stdDB.Close()

	// =========================================================================
	// Tracing Support

	provider, err := trace.NewProvider(ctx, trace.Config{
		Env:            cfg.Env,
		Endpoint:       cfg.Trace.Endpoint,
		Service:        "bank",
		SampleFraction: cfg.Trace.SampleFraction,
		DiscardTraces:  cfg.Trace.Discard,
	})
	if err != nil {
		return fmt.Errorf("starting tracer provider: %w", err)
	}
	defer provider.Shutdown(ctx)
	tracer := provider.Tracer("bank")

	// =========================================================================
	// Ledger Hydration

	log.Info("startup", "status", "hydrating ledger from database")

	store := ledgerdb.NewStore(log, database)
	reg, err := store.LoadRegistry(ctx, ledger.DefaultScorer())
	if err != nil {
		return fmt.Errorf("hydrating registry: %w", err)
	}
	log.Info("startup", "status", "ledger hydrated", "customers", len(reg.Customers()))

	// =========================================================================
	// Statement Cache

	var cacher handlers.Cacher
	if cfg.Redis.Addr != "" {
		c := cache.New(cfg.Redis.Addr)
		if err := c.Ping(ctx); err != nil {
			log.Error("startup", "status", "redis unreachable, statement cache disabled", "ERROR", err)
		} else {
			log.Info("startup", "status", "statement cache enabled", "addr", cfg.Redis.Addr)
			cacher = c
			defer c.Close()
		}
	}

	// =========================================================================
	// Start API Service

	log.Info("startup", "status", "initializing BANK API support")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	srv := handlers.NewServer(log, reg, auth.New(cfg.Auth.Secret, cfg.Auth.TokenTTL), store, cacher)
	mux := handlers.APIMux(srv, tracer)

	api := http.Server{
		Addr:     fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:  mux,
		ErrorLog: slog.NewLogLogger(log.Handler(), slog.LevelInfo),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Info("shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}
