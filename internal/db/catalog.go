package db

import (
	"context"
	"fmt"
)

// Catalog names one of the per-user label tables notes can reference.
type Catalog string

const (
	Folders Catalog = "folders"
	Tags    Catalog = "tags"
)

// Valid reports whether c names a known table. Table names are interpolated
// into SQL, so only these constants are accepted.
func (c Catalog) Valid() bool {
	return c == Folders || c == Tags
}

// Entry is a row of the folders or tags table.
type Entry struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt int64
	UpdatedAt int64
}

const entryColumns = "id, user_id, name, created_at, updated_at"

func (c Catalog) table() (string, error) {
	if !c.Valid() {
		return "", fmt.Errorf("unknown catalog %q", string(c))
	}
	return string(c), nil
}

// EntryExists reports whether the catalog has a row with id owned by userID.
func (q *Queries) EntryExists(ctx context.Context, c Catalog, userID, id string) (bool, error) {
	table, err := c.table()
	if err != nil {
		return false, err
	}
	var n int
	err = q.q.QueryRowContext(ctx,
		`SELECT count(*) FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check %s reference: %w", table, err)
	}
	return n > 0, nil
}

// ListEntries returns the owner's rows ordered by name.
func (q *Queries) ListEntries(ctx context.Context, c Catalog, userID string) ([]Entry, error) {
	table, err := c.table()
	if err != nil {
		return nil, err
	}
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM `+table+` WHERE user_id = ? ORDER BY name, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Name, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetEntry returns sql.ErrNoRows when id is not owned by userID.
func (q *Queries) GetEntry(ctx context.Context, c Catalog, userID, id string) (Entry, error) {
	table, err := c.table()
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	err = q.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&e.ID, &e.UserID, &e.Name, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// CreateEntry inserts a row. A duplicate name for the owner yields a unique violation.
func (q *Queries) CreateEntry(ctx context.Context, c Catalog, e Entry) error {
	table, err := c.table()
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx,
		`INSERT INTO `+table+` (`+entryColumns+`) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Name, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// RenameEntry updates the name and reports whether a row owned by userID matched.
func (q *Queries) RenameEntry(ctx context.Context, c Catalog, userID, id, name string, updatedAt int64) (bool, error) {
	table, err := c.table()
	if err != nil {
		return false, err
	}
	res, err := q.q.ExecContext(ctx,
		`UPDATE `+table+` SET name = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		name, updatedAt, id, userID)
	if err != nil {
		return false, fmt.Errorf("rename in %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rename in %s: %w", table, err)
	}
	return n > 0, nil
}

// DeleteEntry removes the row if owned by userID. Absence is not an error.
func (q *Queries) DeleteEntry(ctx context.Context, c Catalog, userID, id string) error {
	table, err := c.table()
	if err != nil {
		return err
	}
	if _, err := q.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}
