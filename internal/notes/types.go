package notes

import (
	"errors"
	"strings"
	"time"

	"github.com/kuitang/noteful/internal/errs"
)

// Entry is a named, per-user label a note can reference: a folder or a tag.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Folder groups notes. A note is in at most one folder.
type Folder = Entry

// Tag labels notes. A note carries any number of tags, in order.
type Tag = Entry

// Note represents a user's note with its tags expanded.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	FolderID  string    `json:"folderId,omitempty"`
	Tags      []Tag     `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NoteInput is the body of a create or full-replacement update.
type NoteInput struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	FolderID string   `json:"folderId"`
	Tags     []string `json:"tags"`
}

// ListFilter narrows List. Empty fields are ignored; set fields combine with AND.
type ListFilter struct {
	SearchTerm string
	FolderID   string
	TagID      string
}

// Owner is the user whose data a request may touch. The zero value is
// rejected by every repository method; build one with NewOwner.
type Owner struct {
	id string
}

// ErrNoOwner is returned when an operation is attempted without an owner.
var ErrNoOwner = errors.New("notes: owner is required")

// NewOwner returns an Owner for a non-empty user id.
func NewOwner(userID string) (Owner, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Owner{}, errs.Wrap(errs.Unauthenticated, "Unauthorized", ErrNoOwner)
	}
	return Owner{id: userID}, nil
}

// ID returns the owner's user id.
func (o Owner) ID() string {
	return o.id
}

func (o Owner) valid() bool {
	return o.id != ""
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

var (
	// ErrNoteNotFound means no note with that id belongs to the caller.
	ErrNoteNotFound = errs.New(errs.NotFound, "Not Found")
	// ErrEntryNotFound means no folder or tag with that id belongs to the caller.
	ErrEntryNotFound = errs.New(errs.NotFound, "Not Found")
)
