package notes

import (
	"context"
	"errors"
	"fmt"

	"github.com/kuitang/noteful/internal/db"
	"golang.org/x/sync/errgroup"
)

// RefKind says which catalog a reference points into.
type RefKind int

const (
	RefFolder RefKind = iota
	RefTag
)

func (k RefKind) String() string {
	if k == RefTag {
		return "tag"
	}
	return "folder"
}

func (k RefKind) catalog() db.Catalog {
	if k == RefTag {
		return db.Tags
	}
	return db.Folders
}

// InvalidReferenceError reports a folder or tag id that does not exist for the owner.
type InvalidReferenceError struct {
	Kind RefKind
	ID   string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid %s reference", e.Kind)
}

// EntryLookup answers ownership questions about folders and tags. *db.DB implements it.
type EntryLookup interface {
	EntryExists(ctx context.Context, c db.Catalog, userID, id string) (bool, error)
}

// maxConcurrentChecks bounds the lookups one request runs at once.
const maxConcurrentChecks = 8

// ReferenceValidator confirms that referenced folders and tags exist and
// belong to the owner. It never writes.
type ReferenceValidator struct {
	lookup EntryLookup
}

// NewReferenceValidator creates a validator over lookup.
func NewReferenceValidator(lookup EntryLookup) *ReferenceValidator {
	return &ReferenceValidator{lookup: lookup}
}

// ValidateReference succeeds when id is empty or names an entity of kind
// owned by owner, and returns *InvalidReferenceError otherwise.
// Storage failures are returned as-is.
func (v *ReferenceValidator) ValidateReference(ctx context.Context, owner Owner, id string, kind RefKind) error {
	if id == "" {
		return nil
	}
	if !owner.valid() {
		return ErrNoOwner
	}
	ok, err := v.lookup.EntryExists(ctx, kind.catalog(), owner.ID(), id)
	if err != nil {
		return err
	}
	if !ok {
		return &InvalidReferenceError{Kind: kind, ID: id}
	}
	return nil
}

// ValidateAll checks the folder and every tag concurrently and waits for all
// of them. A storage failure wins, then the folder, then the first bad tag in order.
func (v *ReferenceValidator) ValidateAll(ctx context.Context, owner Owner, folderID string, tagIDs []string) error {
	results := make([]error, 1+len(tagIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)
	check := func(slot int, id string, kind RefKind) {
		g.Go(func() error {
			err := v.ValidateReference(gctx, owner, id, kind)
			var invalid *InvalidReferenceError
			if errors.As(err, &invalid) {
				results[slot] = err
				return nil
			}
			return err
		})
	}
	check(0, folderID, RefFolder)
	for i, id := range tagIDs {
		check(i+1, id, RefTag)
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("validate references: %w", err)
	}

	for _, err := range results {
		if err != nil {
			return err
		}
	}
	return nil
}
