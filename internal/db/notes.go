package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Note is a row of the notes table plus its ordered tag ids.
type Note struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	FolderID  sql.NullString
	TagIDs    []string
	CreatedAt int64
	UpdatedAt int64
}

// NoteFilter narrows ListNotes. UserID is mandatory; empty optional fields are ignored.
type NoteFilter struct {
	UserID   string
	Pattern  string // RE2 pattern matched against title OR content
	FolderID string
	TagID    string
}

// NoteTag is one tag attached to a note, in note order.
type NoteTag struct {
	NoteID string
	Tag    Entry
}

const noteColumns = "id, user_id, title, content, folder_id, created_at, updated_at"

func scanNote(row interface{ Scan(...any) error }) (Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.FolderID, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

// ListNotes returns the owner's notes matching every set filter, most recently
// updated first. TagIDs are not populated; use NoteTags.
func (q *Queries) ListNotes(ctx context.Context, f NoteFilter) ([]Note, error) {
	if f.UserID == "" {
		return nil, fmt.Errorf("list notes: owner is required")
	}
	where := []string{"user_id = ?"}
	args := []any{f.UserID}
	if f.Pattern != "" {
		where = append(where, "(title REGEXP ? OR content REGEXP ?)")
		args = append(args, f.Pattern, f.Pattern)
	}
	if f.FolderID != "" {
		where = append(where, "folder_id = ?")
		args = append(args, f.FolderID)
	}
	if f.TagID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM note_tags nt WHERE nt.note_id = notes.id AND nt.tag_id = ?)")
		args = append(args, f.TagID)
	}

	query := `SELECT ` + noteColumns + ` FROM notes WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY updated_at DESC, id ASC`
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// GetNote returns sql.ErrNoRows when the note is not owned by userID.
func (q *Queries) GetNote(ctx context.Context, userID, id string) (Note, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	return scanNote(row)
}

// noteTagsBatch caps the ids bound into one NoteTags query, well under
// SQLite's host parameter limit.
const noteTagsBatch = 500

// NoteTags returns the tags of the given notes. Each note's tags are in
// position order; notes are queried in batches of noteTagsBatch ids.
func (q *Queries) NoteTags(ctx context.Context, noteIDs []string) ([]NoteTag, error) {
	var out []NoteTag
	for start := 0; start < len(noteIDs); start += noteTagsBatch {
		end := min(start+noteTagsBatch, len(noteIDs))
		batch, err := q.noteTags(ctx, noteIDs[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (q *Queries) noteTags(ctx context.Context, noteIDs []string) ([]NoteTag, error) {
	args := make([]any, len(noteIDs))
	for i, id := range noteIDs {
		args[i] = id
	}
	rows, err := q.q.QueryContext(ctx,
		`SELECT nt.note_id, t.id, t.user_id, t.name, t.created_at, t.updated_at
		FROM note_tags nt JOIN tags t ON t.id = nt.tag_id
		WHERE nt.note_id IN (`+placeholders(len(noteIDs))+`)
		ORDER BY nt.note_id, nt.position`, args...)
	if err != nil {
		return nil, fmt.Errorf("list note tags: %w", err)
	}
	defer rows.Close()

	var out []NoteTag
	for rows.Next() {
		var nt NoteTag
		if err := rows.Scan(&nt.NoteID, &nt.Tag.ID, &nt.Tag.UserID, &nt.Tag.Name, &nt.Tag.CreatedAt, &nt.Tag.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note tag: %w", err)
		}
		out = append(out, nt)
	}
	return out, rows.Err()
}

// InsertNote inserts the note and its tag links. Run it inside WithTx.
func (q *Queries) InsertNote(ctx context.Context, n Note) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Content, n.FolderID, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return q.setNoteTags(ctx, n.ID, n.TagIDs)
}

// ReplaceNote overwrites title, content, folder and tags of a note owned by
// n.UserID and reports whether it existed. Run it inside WithTx.
func (q *Queries) ReplaceNote(ctx context.Context, n Note) (bool, error) {
	res, err := q.q.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, folder_id = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		n.Title, n.Content, n.FolderID, n.UpdatedAt, n.ID, n.UserID)
	if err != nil {
		return false, fmt.Errorf("update note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update note: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	if _, err := q.q.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, n.ID); err != nil {
		return false, fmt.Errorf("clear note tags: %w", err)
	}
	return true, q.setNoteTags(ctx, n.ID, n.TagIDs)
}

// DeleteNote removes the note if owned by userID. Absence is not an error.
func (q *Queries) DeleteNote(ctx context.Context, userID, id string) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

func (q *Queries) setNoteTags(ctx context.Context, noteID string, tagIDs []string) error {
	for i, tagID := range tagIDs {
		if _, err := q.q.ExecContext(ctx,
			`INSERT INTO note_tags (note_id, tag_id, position) VALUES (?, ?, ?)`,
			noteID, tagID, i); err != nil {
			return fmt.Errorf("link tag %s: %w", tagID, err)
		}
	}
	return nil
}
