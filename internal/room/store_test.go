package room

import (
	"context"
	"errors"
	"testing"

	"github.com/lockstep/escaperoom/internal/database"
	"github.com/lockstep/escaperoom/internal/migrations"
)

func openStoreDB(t *testing.T) *SQLiteDocStore {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return NewSQLiteDocStore(db)
}

func TestSQLiteDocStoreEmpty(t *testing.T) {
	store := openStoreDB(t)
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("Load on empty store = %v, want ErrNoDocument", err)
	}
}

func TestSQLiteDocStoreLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := openStoreDB(t)

	if err := store.Save(ctx, []byte(`{"v":1}`)); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.Save(ctx, []byte(`{"v":2}`)); err != nil {
		t.Fatalf("second save: %v", err)
	}

	doc, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(doc) != `{"v":2}` {
		t.Errorf("doc = %s, want the last written version", doc)
	}
}
