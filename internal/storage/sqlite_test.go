package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/tapeview/internal/models"
)

func newTestHistory(t *testing.T) *SQLiteHistory {
	t.Helper()
	store, err := NewSQLiteHistory(filepath.Join(t.TempDir(), "db", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteHistory_RecordAndGet(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()

	a := &models.Artifact{
		Name:    "GALAXY.txt",
		Path:    "/tmp/GALAXY.txt",
		Source:  "https://example.com/GALAXY.mzf",
		Mode:    models.ModeSP,
		Charset: true,
		Size:    42,
	}
	if err := store.Record(ctx, a); err != nil {
		t.Fatal(err)
	}
	if a.ID == "" || a.CreatedAt.IsZero() {
		t.Fatalf("id and created_at should be assigned: %+v", a)
	}

	got, err := store.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != a.Name || got.Mode != models.ModeSP || !got.Charset || got.Size != 42 || got.Source != a.Source {
		t.Errorf("got %+v", got)
	}

	_, err = store.Get(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteHistory_ListNewestFirst(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"first.txt", "second.txt", "third.txt"} {
		a := &models.Artifact{Name: name, Path: name, Mode: models.ModeDump, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.Record(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.List(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "third.txt" || list[1].Name != "second.txt" {
		t.Errorf("unexpected page: %+v", list)
	}
	rest, err := store.List(ctx, 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].Name != "first.txt" {
		t.Errorf("unexpected second page: %+v", rest)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestSQLiteHistory_RecordReplacesSameID(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()

	first := &models.Artifact{ID: "fixed", Name: "A.txt", Path: "/out/A.txt", Mode: models.ModeSP, Size: 1}
	if err := store.Record(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := &models.Artifact{ID: "fixed", Name: "A.txt", Path: "/out/A.txt", Mode: models.ModeDump, Size: 2}
	if err := store.Record(ctx, second); err != nil {
		t.Fatal(err)
	}
	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	got, _ := store.Get(ctx, "fixed")
	if got.Mode != models.ModeDump || got.Size != 2 {
		t.Errorf("got %+v", got)
	}
}
