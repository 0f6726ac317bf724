// Package config loads noteful settings from an optional .env file, environment
// variables and CLI flags, validates them and provides defaults.
//
// Precedence, lowest to highest: built-in defaults, .env, process environment, flags.
package config

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kuitang/noteful/internal/db"
	"github.com/kuitang/noteful/internal/obs"
	"github.com/kuitang/noteful/internal/s3client"
)

const (
	defaultRegion     = "auto"
	defaultJWTExpiry  = 7 * 24 * time.Hour
	defaultBcryptCost = 10
	minJWTSecretLen   = 32
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr string
	LogLevel   slog.Level

	// Database
	DatabasePath string
	DatabaseKey  string // optional, 64 hex characters (SQLCipher raw key)

	// Tokens and passwords
	JWTSecret  string
	JWTIssuer  string
	JWTExpiry  time.Duration
	BcryptCost int

	// Seeding
	Seeding    bool
	SeedSource string // directory path or s3://bucket/prefix

	// S3 (AWS_ env vars)
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY

	logLevelRaw string
}

// Flags are the CLI overrides shared by the server and seed commands.
type Flags struct {
	Addr         string
	DatabasePath string
	SeedSource   string
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// RegisterFlags binds the common flags to fs.
func RegisterFlags(fs *flag.FlagSet, f *Flags) {
	fs.StringVar(&f.Addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR)")
	fs.StringVar(&f.DatabasePath, "db", "", "SQLite database path (overrides DATABASE_PATH)")
	fs.StringVar(&f.SeedSource, "source", "", "Seed fixtures: directory or s3://bucket/prefix (overrides SEED_SOURCE)")
}

// LoadDotEnv loads variables from the given .env files without overriding
// variables already present in the environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables and flag values.
// seeding selects the seed command's requirements instead of the server's.
func LoadConfig(flags Flags, seeding bool) (*Config, error) {
	cfg := &Config{Seeding: seeding}

	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":8080")
	if flags.Addr != "" {
		cfg.ListenAddr = flags.Addr
	}
	cfg.logLevelRaw = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.LogLevel, _ = obs.ParseLevel(cfg.logLevelRaw)

	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", "./data/noteful.db")
	if flags.DatabasePath != "" {
		cfg.DatabasePath = flags.DatabasePath
	}
	cfg.DatabaseKey = strings.TrimSpace(os.Getenv("DATABASE_KEY"))

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.JWTIssuer = getEnvOrDefault("JWT_ISSUER", "noteful")
	cfg.JWTExpiry = parseDurationOrDefault("JWT_EXPIRY", defaultJWTExpiry)
	cfg.BcryptCost = parseIntOrDefault("BCRYPT_COST", defaultBcryptCost)

	cfg.SeedSource = getEnvOrDefault("SEED_SOURCE", "")
	if flags.SeedSource != "" {
		cfg.SeedSource = flags.SeedSource
	}

	cfg.AWSEndpointS3 = getEnvOrDefault("AWS_ENDPOINT_URL_S3", "")
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultRegion)
	cfg.AWSAccessKeyID = getEnvOrDefault("AWS_ACCESS_KEY_ID", "")
	cfg.AWSSecretAccessKey = getEnvOrDefault("AWS_SECRET_ACCESS_KEY", "")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.DatabasePath == "" {
		errs = append(errs, "DATABASE_PATH must not be empty")
	}
	if c.DatabaseKey != "" {
		if _, err := hex.DecodeString(c.DatabaseKey); err != nil || len(c.DatabaseKey) != 64 {
			errs = append(errs, "DATABASE_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
		}
	}
	if c.logLevelRaw != "" {
		if _, ok := obs.ParseLevel(c.logLevelRaw); !ok {
			errs = append(errs, "LOG_LEVEL must be one of debug, info, warn, error")
		}
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, "BCRYPT_COST must be between 4 and 31")
	}

	if c.Seeding {
		if c.SeedSource == "" {
			errs = append(errs, "SEED_SOURCE is required (directory or s3://bucket/prefix)")
		} else if strings.HasPrefix(c.SeedSource, "s3://") {
			if bucket, _ := c.SeedBucket(); bucket == "" {
				errs = append(errs, "SEED_SOURCE must name a bucket: s3://bucket/prefix")
			}
		}
	} else {
		if c.JWTSecret == "" {
			errs = append(errs, "JWT_SECRET is required (generate with: openssl rand -hex 32)")
		} else if len(c.JWTSecret) < minJWTSecretLen {
			errs = append(errs, fmt.Sprintf("JWT_SECRET must be at least %d characters", minJWTSecretLen))
		}
		if c.JWTExpiry <= 0 {
			errs = append(errs, "JWT_EXPIRY must be positive")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// DatabaseOptions returns the db.Open options. Call after Validate.
func (c *Config) DatabaseOptions() db.Options {
	key, _ := hex.DecodeString(c.DatabaseKey)
	return db.Options{Path: c.DatabasePath, Key: key}
}

// S3Config returns the client configuration for an s3:// seed source.
func (c *Config) S3Config() s3client.Config {
	bucket, prefix := c.SeedBucket()
	return s3client.Config{
		Endpoint:        c.AWSEndpointS3,
		Region:          c.AWSRegion,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
		BucketName:      bucket,
		Prefix:          prefix,
		UsePathStyle:    c.AWSEndpointS3 != "",
	}
}

// SeedBucket splits an s3:// seed source into bucket and key prefix.
func (c *Config) SeedBucket() (bucket, prefix string) {
	rest, ok := strings.CutPrefix(c.SeedSource, "s3://")
	if !ok {
		return "", ""
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	return bucket, strings.Trim(prefix, "/")
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "noteful server starting...")
	fmt.Fprintf(os.Stderr, "  Listen:   %s\n", c.ListenAddr)
	fmt.Fprintf(os.Stderr, "  Database: %s\n", c.DatabasePath)
	if c.DatabaseKey != "" {
		fmt.Fprintln(os.Stderr, "  Cipher:   SQLCipher key from DATABASE_KEY")
	} else {
		fmt.Fprintln(os.Stderr, "  Cipher:   none (plaintext database)")
	}
	fmt.Fprintf(os.Stderr, "  Tokens:   HS256, issuer %q, expiry %s\n", c.JWTIssuer, c.JWTExpiry)
	fmt.Fprintln(os.Stderr, "")
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
