// Package seed loads fixture users, folders, tags and notes into an empty database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kuitang/noteful/internal/s3client"
)

// fixtureExtensions are tried in order for each fixture name.
var fixtureExtensions = []string{".json", ".yaml", ".yml"}

// ErrNoFixture is returned by a Source when no file exists for a fixture name.
var ErrNoFixture = errors.New("seed: fixture not found")

// Source reads raw fixture documents by name ("users", "folders", ...).
type Source interface {
	ReadFixture(ctx context.Context, name string) ([]byte, error)
	// Files lists the file names the source holds, relative to its root.
	Files(ctx context.Context) ([]string, error)
	String() string
}

// DirSource reads fixtures from a local directory.
type DirSource struct {
	Dir string
}

func (s DirSource) ReadFixture(_ context.Context, name string) ([]byte, error) {
	for _, ext := range fixtureExtensions {
		data, err := os.ReadFile(filepath.Join(s.Dir, name+ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("seed: read %s: %w", name+ext, err)
		}
		return data, nil
	}
	return nil, ErrNoFixture
}

func (s DirSource) Files(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("seed: list %s: %w", s.Dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (s DirSource) String() string { return s.Dir }

// S3Source reads fixtures from a bucket prefix.
type S3Source struct {
	Client *s3client.Client
}

func (s S3Source) ReadFixture(ctx context.Context, name string) ([]byte, error) {
	for _, ext := range fixtureExtensions {
		data, err := s.Client.GetObject(ctx, name+ext)
		if errors.Is(err, s3client.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("seed: read %s: %w", name+ext, err)
		}
		return data, nil
	}
	return nil, ErrNoFixture
}

func (s S3Source) Files(ctx context.Context) ([]string, error) {
	return s.Client.ListKeys(ctx)
}

func (s S3Source) String() string {
	return "s3://" + strings.TrimSuffix(s.Client.BucketName()+"/"+s.Client.Prefix(), "/")
}

// OpenSource returns an S3Source for "s3://bucket/prefix" locations and a
// DirSource otherwise. newClient is only called for S3 locations.
func OpenSource(ctx context.Context, location string, newClient func(ctx context.Context, bucket, prefix string) (*s3client.Client, error)) (Source, error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		info, err := os.Stat(location)
		if err != nil {
			return nil, fmt.Errorf("seed: source %q: %w", location, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("seed: source %q is not a directory", location)
		}
		return DirSource{Dir: location}, nil
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return nil, fmt.Errorf("seed: source %q has no bucket", location)
	}
	client, err := newClient(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	return S3Source{Client: client}, nil
}
