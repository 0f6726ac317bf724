// Command server runs the noteful JSON API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/noteful/internal/api"
	"github.com/kuitang/noteful/internal/auth"
	"github.com/kuitang/noteful/internal/config"
	"github.com/kuitang/noteful/internal/db"
	"github.com/kuitang/noteful/internal/notes"
	"github.com/kuitang/noteful/internal/obs"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	var flags config.Flags
	config.RegisterFlags(fs, &flags)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(flags, false)
	if err != nil {
		return err
	}
	obs.Init(cfg.LogLevel)
	cfg.PrintStartupSummary()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := db.Open(ctx, cfg.DatabaseOptions())
	if err != nil {
		return err
	}
	defer d.Close()

	handler, err := newHandler(cfg, d)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		obs.Pkg("server").Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		obs.Pkg("server").Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newHandler wires the services and wraps the mux in the middleware chain:
// request correlation, access log, metrics, routes.
func newHandler(cfg *config.Config, d *db.DB) (http.Handler, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry)
	if err != nil {
		return nil, err
	}
	return buildHandler(d, tokens, auth.NewBcryptHasher(cfg.BcryptCost)), nil
}

func buildHandler(d *db.DB, tokens *auth.TokenService, hasher auth.PasswordHasher) http.Handler {
	metrics := obs.NewMetrics(d.SQL())
	h := api.NewHandler(api.Services{
		Notes:   notes.NewService(notes.NewSQLRepository(d), notes.NewReferenceValidator(d)),
		Folders: notes.NewFolders(d),
		Tags:    notes.NewTags(d),
		Users:   auth.NewUserService(d, hasher),
		Tokens:  tokens,
		DB:      d,
		Metrics: metrics.Handler(),
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return obs.RequestContextMiddleware(obs.AccessLogMiddleware("http", metrics.Middleware(mux)))
}
