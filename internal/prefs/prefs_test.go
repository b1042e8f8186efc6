package prefs_test

import (
	"path/filepath"
	"testing"

	"github.com/Sandy7272/capture-3d/internal/prefs"
)

func openTestStore(t *testing.T) *prefs.Store {
	t.Helper()
	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_UnknownDeckDefaultsToShow(t *testing.T) {
	store := openTestStore(t)

	skip, err := store.Skip("prep")
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if skip {
		t.Error("unknown deck should default to skip=false")
	}
}

func TestStore_SetSkipRoundTrip(t *testing.T) {
	store := openTestStore(t)

	if err := store.SetSkip("prep", true); err != nil {
		t.Fatalf("SetSkip: %v", err)
	}

	skip, err := store.Skip("prep")
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if !skip {
		t.Error("expected skip=true after SetSkip")
	}

	// Other decks are unaffected
	other, err := store.Skip("angle-top")
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if other {
		t.Error("unrelated deck flipped to skip=true")
	}
}

func TestStore_SetSkipOverwrites(t *testing.T) {
	store := openTestStore(t)

	if err := store.SetSkip("prep", true); err != nil {
		t.Fatalf("SetSkip: %v", err)
	}
	if err := store.SetSkip("prep", false); err != nil {
		t.Fatalf("SetSkip: %v", err)
	}

	skip, err := store.Skip("prep")
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if skip {
		t.Error("expected skip=false after overwrite")
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.sqlite")

	store, err := prefs.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.SetSkip("prep", true); err != nil {
		t.Fatalf("SetSkip: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := prefs.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	skip, err := reopened.Skip("prep")
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if !skip {
		t.Error("skip flag lost across reopen")
	}
}
