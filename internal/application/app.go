// Package application wires the importer's components from configuration.
// Both the HTTP server and the command-line importer start from New.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/surveyimport/internal/config"
	"github.com/JonMunkholm/surveyimport/internal/core"
	"github.com/JonMunkholm/surveyimport/internal/history"
	"github.com/JonMunkholm/surveyimport/internal/metrics"
	"github.com/JonMunkholm/surveyimport/internal/zenloop"
)

// App holds the wired components.
type App struct {
	Config  *config.Config
	Metrics *metrics.Metrics
	Client  *zenloop.Client
	History core.HistoryStore
	Service *core.Service

	pool *pgxpool.Pool
}

// New builds the application. With a database URL configured, history is
// stored in Postgres; otherwise it is kept in memory.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	m := metrics.New()

	client := zenloop.New(zenloop.Config{
		BaseURL:           cfg.Zenloop.BaseURL,
		User:              cfg.Zenloop.User,
		Password:          cfg.Zenloop.Password,
		Timeout:           cfg.Zenloop.Timeout,
		RequestsPerSecond: cfg.Zenloop.RequestsPerSecond,
		Burst:             cfg.Zenloop.Burst,
		Observer:          m,
	})

	app := &App{Config: cfg, Metrics: m, Client: client}

	if cfg.Database.Enabled() {
		pool, err := connect(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		store, err := history.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		app.pool = pool
		app.History = store
	} else {
		slog.Info("no database configured, keeping import history in memory",
			"capacity", cfg.History.MemoryCapacity)
		app.History = history.NewMemoryStore(cfg.History.MemoryCapacity)
	}

	app.Service = core.NewService(client, core.ServiceConfig{
		RowDelay:       cfg.Import.RowDelay,
		MaxConcurrent:  cfg.Import.MaxConcurrent,
		MaxWait:        cfg.Import.MaxWaitTime,
		RetainFinished: cfg.Import.RetainFinished,
		Observer:       m,
		History:        app.History,
	})

	return app, nil
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func connect(ctx context.Context, dc *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dc.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(dc.MaxConns)
	poolConfig.MinConns = int32(dc.MinConns)
	poolConfig.MaxConnLifetime = dc.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dc.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(dc.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
