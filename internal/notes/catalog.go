package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kuitang/noteful/internal/db"
	"github.com/kuitang/noteful/internal/errs"
)

// Catalog manages one kind of Entry (folders or tags) for an owner.
type Catalog struct {
	db    *db.DB
	kind  db.Catalog
	noun  string
	clock Clock
}

// NewFolders returns the folder catalog.
func NewFolders(d *db.DB) *Catalog {
	return &Catalog{db: d, kind: db.Folders, noun: "folder", clock: realClock{}}
}

// NewTags returns the tag catalog.
func NewTags(d *db.DB) *Catalog {
	return &Catalog{db: d, kind: db.Tags, noun: "tag", clock: realClock{}}
}

// SetClock replaces the clock used by the catalog. Intended for testing.
func (c *Catalog) SetClock(clock Clock) {
	c.clock = clock
}

// List returns the owner's entries ordered by name.
func (c *Catalog) List(ctx context.Context, owner Owner) ([]Entry, error) {
	if !owner.valid() {
		return nil, ErrNoOwner
	}
	rows, err := c.db.ListEntries(ctx, c.kind, owner.ID())
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(rows))
	for i, row := range rows {
		out[i] = entryFromRow(row)
	}
	return out, nil
}

// Get returns one entry or ErrEntryNotFound.
func (c *Catalog) Get(ctx context.Context, owner Owner, id string) (*Entry, error) {
	if !owner.valid() {
		return nil, ErrNoOwner
	}
	entryID, err := parseNoteID(id)
	if err != nil {
		return nil, err
	}
	row, err := c.db.GetEntry(ctx, c.kind, owner.ID(), entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.noun, err)
	}
	e := entryFromRow(row)
	return &e, nil
}

// Create adds an entry. Names are unique per owner.
func (c *Catalog) Create(ctx context.Context, owner Owner, name string) (*Entry, error) {
	if !owner.valid() {
		return nil, ErrNoOwner
	}
	name, err := c.validName(name)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now().UTC().UnixNano()
	row := db.Entry{ID: uuid.New().String(), UserID: owner.ID(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := c.db.CreateEntry(ctx, c.kind, row); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, c.duplicate()
		}
		return nil, fmt.Errorf("failed to create %s: %w", c.noun, err)
	}
	e := entryFromRow(row)
	return &e, nil
}

// Rename changes an entry's name.
func (c *Catalog) Rename(ctx context.Context, owner Owner, id, name string) (*Entry, error) {
	if !owner.valid() {
		return nil, ErrNoOwner
	}
	entryID, err := parseNoteID(id)
	if err != nil {
		return nil, err
	}
	name, err = c.validName(name)
	if err != nil {
		return nil, err
	}
	found, err := c.db.RenameEntry(ctx, c.kind, owner.ID(), entryID, name, c.clock.Now().UTC().UnixNano())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, c.duplicate()
		}
		return nil, fmt.Errorf("failed to rename %s: %w", c.noun, err)
	}
	if !found {
		return nil, ErrEntryNotFound
	}
	return c.Get(ctx, owner, entryID)
}

// Delete removes an entry. Notes in a deleted folder lose their folder and
// notes carrying a deleted tag lose that tag. Deleting a missing entry succeeds.
func (c *Catalog) Delete(ctx context.Context, owner Owner, id string) error {
	if !owner.valid() {
		return ErrNoOwner
	}
	entryID, ok := canonicalID(id)
	if !ok {
		return nil
	}
	if err := c.db.DeleteEntry(ctx, c.kind, owner.ID(), entryID); err != nil {
		return fmt.Errorf("failed to delete %s: %w", c.noun, err)
	}
	return nil
}

func (c *Catalog) validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.Field(errs.MissingField, "name", "Missing `name` in request body")
	}
	return name, nil
}

func (c *Catalog) duplicate() error {
	return errs.Field(errs.DuplicateName, "name", fmt.Sprintf("The %s name already exists", c.noun))
}
