package notes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kuitang/noteful/internal/db"
	"pgregory.net/rapid"
)

// fakeLookup knows a fixed set of (catalog, owner, id) triples.
type fakeLookup struct {
	mu       sync.Mutex
	known    map[string]bool
	failOn   string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func key(c db.Catalog, userID, id string) string {
	return string(c) + "/" + userID + "/" + id
}

func (l *fakeLookup) EntryExists(_ context.Context, c db.Catalog, userID, id string) (bool, error) {
	n := l.inFlight.Add(1)
	defer l.inFlight.Add(-1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if id == l.failOn {
		return false, errors.New("disk on fire")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.known[key(c, userID, id)], nil
}

func TestValidateReference(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner, _ := NewOwner("u1")
	lookup := &fakeLookup{known: map[string]bool{key(db.Folders, "u1", "f1"): true}}
	v := NewReferenceValidator(lookup)

	if err := v.ValidateReference(ctx, owner, "", RefFolder); err != nil {
		t.Fatalf("empty id should pass: %v", err)
	}
	if err := v.ValidateReference(ctx, owner, "f1", RefFolder); err != nil {
		t.Fatalf("owned folder should pass: %v", err)
	}

	err := v.ValidateReference(ctx, owner, "f1", RefTag)
	var invalid *InvalidReferenceError
	if !errors.As(err, &invalid) || invalid.Kind != RefTag {
		t.Fatalf("folder id used as tag should fail as tag reference, got %v", err)
	}
	if err.Error() != "invalid tag reference" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	other, _ := NewOwner("u2")
	err = v.ValidateReference(ctx, other, "f1", RefFolder)
	if !errors.As(err, &invalid) || invalid.Kind != RefFolder {
		t.Fatalf("other owner's folder should fail, got %v", err)
	}
}

func TestValidateAll_StorageErrorWins(t *testing.T) {
	t.Parallel()
	owner, _ := NewOwner("u1")
	lookup := &fakeLookup{known: map[string]bool{}, failOn: "t2"}
	v := NewReferenceValidator(lookup)

	err := v.ValidateAll(context.Background(), owner, "missing-folder", []string{"t1", "t2"})
	var invalid *InvalidReferenceError
	if err == nil || errors.As(err, &invalid) {
		t.Fatalf("storage failure should be returned, got %v", err)
	}
}

func testValidateAllPrecedence(t *rapid.T) {
	owner, _ := NewOwner("u1")
	n := rapid.IntRange(0, 20).Draw(t, "tags")
	known := map[string]bool{}
	tagIDs := make([]string, n)
	firstBad := -1
	for i := range tagIDs {
		tagIDs[i] = string(rune('a'+i%26)) + string(rune('0'+i/26))
		if rapid.Bool().Draw(t, "tagOK") {
			known[key(db.Tags, "u1", tagIDs[i])] = true
		} else if firstBad < 0 {
			firstBad = i
		}
	}
	folderOK := rapid.Bool().Draw(t, "folderOK")
	if folderOK {
		known[key(db.Folders, "u1", "f")] = true
	}

	lookup := &fakeLookup{known: known}
	err := NewReferenceValidator(lookup).ValidateAll(context.Background(), owner, "f", tagIDs)

	var invalid *InvalidReferenceError
	switch {
	case !folderOK:
		if !errors.As(err, &invalid) || invalid.Kind != RefFolder {
			t.Fatalf("expected folder failure, got %v", err)
		}
	case firstBad >= 0:
		if !errors.As(err, &invalid) || invalid.Kind != RefTag || invalid.ID != tagIDs[firstBad] {
			t.Fatalf("expected first bad tag %q, got %v", tagIDs[firstBad], err)
		}
	default:
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	}
	if peak := lookup.peak.Load(); peak > maxConcurrentChecks {
		t.Fatalf("ran %d checks at once, limit is %d", peak, maxConcurrentChecks)
	}
}

func TestValidateAllPrecedence(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidateAllPrecedence)
}

func FuzzValidateAllPrecedence(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testValidateAllPrecedence))
}
