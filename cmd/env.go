package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findmycure/findmycure-italia/internal/fetcher"
	"github.com/findmycure/findmycure-italia/internal/loader"
	"github.com/findmycure/findmycure-italia/internal/search"
	"github.com/findmycure/findmycure-italia/internal/store"
	"github.com/findmycure/findmycure-italia/pkg/geocode"
)

// env bundles the wired application components for the subcommands.
type env struct {
	Store    store.Store
	Geocoder geocode.Client
	Loader   *loader.Loader
	Search   *search.Service
}

// initEnv opens the configured store and wires the loader, geocoder, and
// search service on top of it.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	gc := geocode.NewClient(
		geocode.WithBaseURL(strings.TrimRight(cfg.Geocode.BaseURL, "/")+"/search"),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
		geocode.WithConcurrency(cfg.Geocode.Concurrency),
		geocode.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Geocode.TimeoutSecs) * time.Second,
		}),
	)

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: cfg.Geocode.UserAgent,
	})

	return &env{
		Store:    st,
		Geocoder: gc,
		Loader:   loader.New(st, gc, f, cfg.Loader.DataDir),
		Search: search.New(st, gc, search.Limits{
			DefaultRadiusKm: cfg.Search.DefaultRadiusKm,
			MinRadiusKm:     cfg.Search.MinRadiusKm,
			MaxRadiusKm:     cfg.Search.MaxRadiusKm,
			MaxResults:      cfg.Search.MaxResults,
		}),
	}, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Close releases the store.
func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close", zap.Error(err))
	}
}
