package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kuitang/noteful/internal/db"
)

// Repository persists notes. Every method is scoped to the owner; a note
// belonging to someone else behaves exactly like a missing one.
type Repository interface {
	List(ctx context.Context, owner Owner, f RepoFilter) ([]Note, error)
	Get(ctx context.Context, owner Owner, id string) (*Note, error)
	Create(ctx context.Context, owner Owner, n Note) error
	Replace(ctx context.Context, owner Owner, n Note) error
	Delete(ctx context.Context, owner Owner, id string) error
}

// RepoFilter is a validated ListFilter: Pattern is a compilable RE2 expression
// and the ids are canonical.
type RepoFilter struct {
	Pattern  string
	FolderID string
	TagID    string
}

// SQLRepository implements Repository on the SQLite store.
type SQLRepository struct {
	db *db.DB
}

// NewSQLRepository creates a repository over d.
func NewSQLRepository(d *db.DB) *SQLRepository {
	return &SQLRepository{db: d}
}

// List returns the owner's matching notes, most recently updated first, with tags expanded.
func (r *SQLRepository) List(ctx context.Context, owner Owner, f RepoFilter) ([]Note, error) {
	if !owner.valid() {
		return nil, ErrNoOwner
	}
	rows, err := r.db.ListNotes(ctx, db.NoteFilter{
		UserID:   owner.ID(),
		Pattern:  f.Pattern,
		FolderID: f.FolderID,
		TagID:    f.TagID,
	})
	if err != nil {
		return nil, err
	}
	return r.expand(ctx, rows)
}

// Get returns ErrNoteNotFound when the note does not belong to owner.
func (r *SQLRepository) Get(ctx context.Context, owner Owner, id string) (*Note, error) {
	if !owner.valid() {
		return nil, ErrNoOwner
	}
	row, err := r.db.GetNote(ctx, owner.ID(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read note: %w", err)
	}
	notes, err := r.expand(ctx, []db.Note{row})
	if err != nil {
		return nil, err
	}
	return &notes[0], nil
}

// Create inserts the note and its tag links atomically.
func (r *SQLRepository) Create(ctx context.Context, owner Owner, n Note) error {
	if !owner.valid() {
		return ErrNoOwner
	}
	row := toRow(owner, n)
	row.CreatedAt = n.CreatedAt.UnixNano()
	return r.db.WithTx(ctx, func(q *db.Queries) error {
		return q.InsertNote(ctx, row)
	})
}

// Replace overwrites title, content, folder and tags. It returns
// ErrNoteNotFound when the note does not belong to owner.
func (r *SQLRepository) Replace(ctx context.Context, owner Owner, n Note) error {
	if !owner.valid() {
		return ErrNoOwner
	}
	row := toRow(owner, n)
	return r.db.WithTx(ctx, func(q *db.Queries) error {
		found, err := q.ReplaceNote(ctx, row)
		if err != nil {
			return err
		}
		if !found {
			return ErrNoteNotFound
		}
		return nil
	})
}

// Delete removes the note if owner has it; otherwise it does nothing.
func (r *SQLRepository) Delete(ctx context.Context, owner Owner, id string) error {
	if !owner.valid() {
		return ErrNoOwner
	}
	return r.db.DeleteNote(ctx, owner.ID(), id)
}

func (r *SQLRepository) expand(ctx context.Context, rows []db.Note) ([]Note, error) {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	links, err := r.db.NoteTags(ctx, ids)
	if err != nil {
		return nil, err
	}
	tagsByNote := make(map[string][]Tag, len(rows))
	for _, link := range links {
		tagsByNote[link.NoteID] = append(tagsByNote[link.NoteID], entryFromRow(link.Tag))
	}

	out := make([]Note, len(rows))
	for i, row := range rows {
		tags := tagsByNote[row.ID]
		if tags == nil {
			tags = []Tag{}
		}
		out[i] = Note{
			ID:        row.ID,
			UserID:    row.UserID,
			Title:     row.Title,
			Content:   row.Content,
			FolderID:  row.FolderID.String,
			Tags:      tags,
			CreatedAt: time.Unix(0, row.CreatedAt).UTC(),
			UpdatedAt: time.Unix(0, row.UpdatedAt).UTC(),
		}
	}
	return out, nil
}

func toRow(owner Owner, n Note) db.Note {
	tagIDs := make([]string, len(n.Tags))
	for i, t := range n.Tags {
		tagIDs[i] = t.ID
	}
	return db.Note{
		ID:        n.ID,
		UserID:    owner.ID(),
		Title:     n.Title,
		Content:   n.Content,
		FolderID:  sql.NullString{String: n.FolderID, Valid: n.FolderID != ""},
		TagIDs:    tagIDs,
		UpdatedAt: n.UpdatedAt.UnixNano(),
	}
}

func entryFromRow(e db.Entry) Entry {
	return Entry{
		ID:        e.ID,
		UserID:    e.UserID,
		Name:      e.Name,
		CreatedAt: time.Unix(0, e.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, e.UpdatedAt).UTC(),
	}
}
