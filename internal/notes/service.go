package notes

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/kuitang/noteful/internal/errs"
	"github.com/kuitang/noteful/internal/logutil"
	"github.com/kuitang/noteful/internal/obs"
)

// Service validates note requests, checks their references and persists them.
// A request that fails validation never reaches the repository.
type Service struct {
	repo  Repository
	refs  *ReferenceValidator
	clock Clock
}

// NewService creates a notes service.
func NewService(repo Repository, refs *ReferenceValidator) *Service {
	return &Service{repo: repo, refs: refs, clock: realClock{}}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *Service) SetClock(c Clock) {
	s.clock = c
}

// List returns the owner's notes matching f. Malformed folder or tag ids
// cannot match anything and yield an empty list.
func (s *Service) List(ctx context.Context, owner Owner, f ListFilter) ([]Note, error) {
	var rf RepoFilter
	if f.SearchTerm != "" {
		if _, err := regexp.Compile(f.SearchTerm); err != nil {
			return nil, errs.Field(errs.InvalidArgument, "searchTerm", "The `searchTerm` is not a valid pattern")
		}
		rf.Pattern = f.SearchTerm
		obs.From(ctx).Debug("note search", "pkg", "notes", "term", logutil.TruncateForLog(f.SearchTerm, 64))
	}
	if f.FolderID != "" {
		id, ok := canonicalID(f.FolderID)
		if !ok {
			return []Note{}, nil
		}
		rf.FolderID = id
	}
	if f.TagID != "" {
		id, ok := canonicalID(f.TagID)
		if !ok {
			return []Note{}, nil
		}
		rf.TagID = id
	}
	return s.repo.List(ctx, owner, rf)
}

// Get returns one note. Malformed ids fail with MalformedID, unknown ones with NotFound.
func (s *Service) Get(ctx context.Context, owner Owner, id string) (*Note, error) {
	noteID, err := parseNoteID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, owner, noteID)
}

// Create validates in, checks its references and stores a new note.
func (s *Service) Create(ctx context.Context, owner Owner, in NoteInput) (*Note, error) {
	valid, err := validateInput(in)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, owner, valid); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	note := Note{
		ID:        uuid.New().String(),
		Title:     valid.Title,
		Content:   valid.Content,
		FolderID:  valid.FolderID,
		Tags:      tagRefs(valid.Tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, owner, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	obs.From(ctx).Info("note created", "pkg", "notes", "note_id", note.ID, "tags", len(note.Tags))
	return s.repo.Get(ctx, owner, note.ID)
}

// Update replaces title, content, folder and tags of an existing note.
// Absent content, folder or tags are cleared.
func (s *Service) Update(ctx context.Context, owner Owner, id string, in NoteInput) (*Note, error) {
	noteID, err := parseNoteID(id)
	if err != nil {
		return nil, err
	}
	valid, err := validateInput(in)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, owner, valid); err != nil {
		return nil, err
	}

	note := Note{
		ID:        noteID,
		Title:     valid.Title,
		Content:   valid.Content,
		FolderID:  valid.FolderID,
		Tags:      tagRefs(valid.Tags),
		UpdatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.Replace(ctx, owner, note); err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return s.repo.Get(ctx, owner, noteID)
}

// Delete removes the note if the owner has it. Deleting a missing or
// malformed id succeeds.
func (s *Service) Delete(ctx context.Context, owner Owner, id string) error {
	noteID, ok := canonicalID(id)
	if !ok {
		return nil
	}
	if err := s.repo.Delete(ctx, owner, noteID); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

func (s *Service) checkReferences(ctx context.Context, owner Owner, in NoteInput) error {
	err := s.refs.ValidateAll(ctx, owner, in.FolderID, in.Tags)
	var invalid *InvalidReferenceError
	if errors.As(err, &invalid) {
		if invalid.Kind == RefFolder {
			return errs.Field(errs.InvalidFolder, "folderId", "The folder is not valid")
		}
		return errs.Field(errs.InvalidTag, "tags", "The tag is not valid")
	}
	return err
}

// validateInput runs the structural checks in order (title, folder id, tag
// ids) and returns the normalized input: canonical ids, no empty folder, no
// duplicate tags.
func validateInput(in NoteInput) (NoteInput, error) {
	if in.Title == "" {
		return NoteInput{}, errs.Field(errs.MissingField, "title", "Missing `title` in request body")
	}

	out := NoteInput{Title: in.Title, Content: in.Content, Tags: []string{}}
	if in.FolderID != "" {
		id, ok := canonicalID(in.FolderID)
		if !ok {
			return NoteInput{}, errs.Field(errs.MalformedID, "folderId", "The `folderId` is not valid")
		}
		out.FolderID = id
	}

	var malformed []string
	seen := make(map[string]bool, len(in.Tags))
	for _, raw := range in.Tags {
		id, ok := canonicalID(raw)
		if !ok {
			malformed = append(malformed, raw)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out.Tags = append(out.Tags, id)
	}
	if len(malformed) > 0 {
		return NoteInput{}, errs.Field(errs.MalformedID, "tags",
			"The `tags.id` is not valid: "+strings.Join(quoteAll(malformed), ", "))
	}
	return out, nil
}

func parseNoteID(id string) (string, error) {
	noteID, ok := canonicalID(id)
	if !ok {
		return "", errs.Field(errs.MalformedID, "id", "The `id` is not valid")
	}
	return noteID, nil
}

// canonicalID returns the lowercase hyphenated form of a UUID.
func canonicalID(raw string) (string, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func tagRefs(ids []string) []Tag {
	tags := make([]Tag, len(ids))
	for i, id := range ids {
		tags[i] = Tag{ID: id}
	}
	return tags
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}
