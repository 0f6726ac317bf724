// Command seed resets the database and loads fixtures from a directory or an
// S3 prefix.
//
//	seed --source ./fixtures --db ./data/noteful.db
//	seed --source s3://bucket/fixtures/dev
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kuitang/noteful/internal/auth"
	"github.com/kuitang/noteful/internal/config"
	"github.com/kuitang/noteful/internal/db"
	"github.com/kuitang/noteful/internal/obs"
	"github.com/kuitang/noteful/internal/s3client"
	"github.com/kuitang/noteful/internal/seed"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	var flags config.Flags
	config.RegisterFlags(fs, &flags)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(flags, true)
	if err != nil {
		return err
	}
	obs.Init(cfg.LogLevel)

	src, err := seed.OpenSource(ctx, cfg.SeedSource, func(ctx context.Context, _, _ string) (*s3client.Client, error) {
		return s3client.New(ctx, cfg.S3Config())
	})
	if err != nil {
		return err
	}
	fixtures, err := seed.Load(ctx, src)
	if err != nil {
		return err
	}

	d, err := db.Open(ctx, cfg.DatabaseOptions())
	if err != nil {
		return err
	}
	defer d.Close()

	stats, err := seed.Run(ctx, d, fixtures, auth.NewBcryptHasher(cfg.BcryptCost), time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "seeded %s from %s: %d users, %d folders, %d tags, %d notes\n",
		cfg.DatabasePath, src, stats.Users, stats.Folders, stats.Tags, stats.Notes)
	return nil
}
