package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kuitang/noteful/internal/db"
	"github.com/kuitang/noteful/internal/obs"
	"gopkg.in/yaml.v3"
)

// User is a fixture account. Password is plaintext and hashed on load.
type User struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	FullName string `yaml:"fullname"`
}

// Entry is a fixture folder or tag.
type Entry struct {
	ID     string `yaml:"id"`
	UserID string `yaml:"userId"`
	Name   string `yaml:"name"`
}

// Note is a fixture note. ID may be omitted.
type Note struct {
	ID        string    `yaml:"id"`
	UserID    string    `yaml:"userId"`
	Title     string    `yaml:"title"`
	Content   string    `yaml:"content"`
	FolderID  string    `yaml:"folderId"`
	Tags      []string  `yaml:"tags"`
	CreatedAt time.Time `yaml:"createdAt"`
	UpdatedAt time.Time `yaml:"updatedAt"`
}

// Fixtures is the full data set loaded by Run.
type Fixtures struct {
	Users   []User
	Folders []Entry
	Tags    []Entry
	Notes   []Note
}

// Hasher hashes fixture passwords.
type Hasher interface {
	HashPassword(password string) (string, error)
}

// Stats counts the rows inserted by Run.
type Stats struct {
	Users, Folders, Tags, Notes int
}

// Load reads every fixture from src. Missing fixtures load as empty lists.
// JSON documents parse as YAML, so either format works.
func Load(ctx context.Context, src Source) (*Fixtures, error) {
	f := &Fixtures{}
	files, err := src.Files(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range unknownFiles(files) {
		obs.Pkg("seed").Warn("ignoring unknown fixture file", "source", src.String(), "file", name)
	}

	targets := []struct {
		name string
		into any
	}{
		{"users", &f.Users},
		{"folders", &f.Folders},
		{"tags", &f.Tags},
		{"notes", &f.Notes},
	}
	for _, target := range targets {
		data, err := src.ReadFixture(ctx, target.name)
		if errors.Is(err, ErrNoFixture) {
			obs.Pkg("seed").Warn("fixture missing", "source", src.String(), "fixture", target.name)
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, target.into); err != nil {
			return nil, fmt.Errorf("seed: parse %s: %w", target.name, err)
		}
	}
	return f, nil
}

// Run empties the database and inserts f in a single transaction.
// Any invalid fixture aborts the whole load.
func Run(ctx context.Context, d *db.DB, f *Fixtures, hasher Hasher, now time.Time) (Stats, error) {
	if err := f.validate(); err != nil {
		return Stats{}, err
	}

	digests := make([]string, len(f.Users))
	for i, u := range f.Users {
		digest, err := hasher.HashPassword(u.Password)
		if err != nil {
			return Stats{}, fmt.Errorf("seed: hash password for %q: %w", u.Username, err)
		}
		digests[i] = digest
	}

	var stats Stats
	nowNano := now.UTC().UnixNano()
	err := d.WithTx(ctx, func(q *db.Queries) error {
		if err := q.Reset(ctx); err != nil {
			return err
		}
		for i, u := range f.Users {
			row := db.User{ID: u.ID, Username: u.Username, PasswordHash: digests[i], FullName: u.FullName, CreatedAt: nowNano}
			if err := q.CreateUser(ctx, row); err != nil {
				return fmt.Errorf("seed: insert user %q: %w", u.Username, err)
			}
			stats.Users++
		}
		for _, set := range []struct {
			catalog db.Catalog
			entries []Entry
			count   *int
		}{
			{db.Folders, f.Folders, &stats.Folders},
			{db.Tags, f.Tags, &stats.Tags},
		} {
			for _, e := range set.entries {
				row := db.Entry{ID: e.ID, UserID: e.UserID, Name: e.Name, CreatedAt: nowNano, UpdatedAt: nowNano}
				if err := q.CreateEntry(ctx, set.catalog, row); err != nil {
					return fmt.Errorf("seed: insert %s %q: %w", set.catalog, e.Name, err)
				}
				*set.count++
			}
		}
		for _, n := range f.Notes {
			if err := q.InsertNote(ctx, n.row(nowNano)); err != nil {
				return fmt.Errorf("seed: insert note %q: %w", n.Title, err)
			}
			stats.Notes++
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	obs.Pkg("seed").Info("seed complete", "users", stats.Users, "folders", stats.Folders, "tags", stats.Tags, "notes", stats.Notes)
	return stats, nil
}

// fixtureNames are the documents Load reads, in insertion order.
var fixtureNames = []string{"users", "folders", "tags", "notes"}

// unknownFiles returns the files that Load will not read.
func unknownFiles(files []string) []string {
	known := map[string]bool{}
	for _, name := range fixtureNames {
		for _, ext := range fixtureExtensions {
			known[name+ext] = true
		}
	}
	var unknown []string
	for _, f := range files {
		if !known[f] {
			unknown = append(unknown, f)
		}
	}
	return unknown
}

func (n Note) row(now int64) db.Note {
	created, updated := now, now
	if !n.CreatedAt.IsZero() {
		created = n.CreatedAt.UnixNano()
	}
	if !n.UpdatedAt.IsZero() {
		updated = n.UpdatedAt.UnixNano()
	} else if !n.CreatedAt.IsZero() {
		updated = created
	}
	return db.Note{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Content:   n.Content,
		FolderID:  sql.NullString{String: n.FolderID, Valid: n.FolderID != ""},
		TagIDs:    n.Tags,
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

// validate canonicalizes ids in place and checks that every reference points
// at a fixture owned by the same user.
func (f *Fixtures) validate() error {
	users := map[string]bool{}
	for i := range f.Users {
		u := &f.Users[i]
		id, err := canonical(u.ID, "user", u.Username)
		if err != nil {
			return err
		}
		u.ID = id
		if u.Username == "" || u.Password == "" {
			return fmt.Errorf("seed: user %s needs a username and password", id)
		}
		users[id] = true
	}

	owners := map[db.Catalog]map[string]string{db.Folders: {}, db.Tags: {}}
	for _, set := range []struct {
		catalog db.Catalog
		entries []Entry
	}{
		{db.Folders, f.Folders},
		{db.Tags, f.Tags},
	} {
		for i := range set.entries {
			e := &set.entries[i]
			id, err := canonical(e.ID, string(set.catalog), e.Name)
			if err != nil {
				return err
			}
			e.ID = id
			if e.UserID, err = owner(e.UserID, users); err != nil {
				return fmt.Errorf("seed: %s %q: %w", set.catalog, e.Name, err)
			}
			owners[set.catalog][id] = e.UserID
		}
	}

	for i := range f.Notes {
		n := &f.Notes[i]
		if n.ID == "" {
			n.ID = uuid.New().String()
		}
		id, err := canonical(n.ID, "note", n.Title)
		if err != nil {
			return err
		}
		n.ID = id
		if n.UserID, err = owner(n.UserID, users); err != nil {
			return fmt.Errorf("seed: note %q: %w", n.Title, err)
		}
		if n.Title == "" {
			return fmt.Errorf("seed: note %s has no title", id)
		}
		if n.FolderID != "" {
			if n.FolderID, err = reference(n.FolderID, owners[db.Folders], n.UserID); err != nil {
				return fmt.Errorf("seed: note %q folder: %w", n.Title, err)
			}
		}
		seen := map[string]bool{}
		tags := n.Tags[:0]
		for _, tagID := range n.Tags {
			tagID, err := reference(tagID, owners[db.Tags], n.UserID)
			if err != nil {
				return fmt.Errorf("seed: note %q tag: %w", n.Title, err)
			}
			if !seen[tagID] {
				seen[tagID] = true
				tags = append(tags, tagID)
			}
		}
		n.Tags = tags
	}
	return nil
}

func canonical(id, kind, label string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("seed: %s %q has invalid id %q", kind, label, id)
	}
	return parsed.String(), nil
}

func owner(userID string, users map[string]bool) (string, error) {
	parsed, err := uuid.Parse(userID)
	if err != nil || !users[parsed.String()] {
		return "", fmt.Errorf("unknown userId %q", userID)
	}
	return parsed.String(), nil
}

func reference(id string, owners map[string]string, userID string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("invalid id %q", id)
	}
	if owners[parsed.String()] != userID {
		return "", fmt.Errorf("%q is not owned by %s", id, userID)
	}
	return parsed.String(), nil
}
