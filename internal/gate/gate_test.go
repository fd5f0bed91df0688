package gate

import (
	"path/filepath"
	"testing"

	"github.com/matheus3301/zapcrm/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDefaultUnpaused(t *testing.T) {
	db := testDB(t)
	if err := db.EnsureTenant("loja1", ""); err != nil {
		t.Fatal(err)
	}

	g, err := New(db)
	if err != nil {
		t.Fatal(err)
	}
	if g.IsPaused("loja1") {
		t.Error("fresh tenant should be unpaused")
	}
	if g.IsPaused("unknown") {
		t.Error("unknown tenant should default to unpaused")
	}
}

func TestSetPausedAffectsWholeTenant(t *testing.T) {
	db := testDB(t)
	if err := db.EnsureTenant("loja1", ""); err != nil {
		t.Fatal(err)
	}
	if err := db.EnsureTenant("loja2", ""); err != nil {
		t.Fatal(err)
	}

	g, err := New(db)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.SetPaused("loja1", true); err != nil {
		t.Fatal(err)
	}

	if !g.IsPaused("loja1") {
		t.Error("loja1 should be paused")
	}
	if g.IsPaused("loja2") {
		t.Error("loja2 must be unaffected by loja1's toggle")
	}
}

func TestPauseSurvivesReload(t *testing.T) {
	db := testDB(t)
	if err := db.EnsureTenant("loja1", ""); err != nil {
		t.Fatal(err)
	}

	g, err := New(db)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.SetPaused("loja1", true); err != nil {
		t.Fatal(err)
	}

	// A fresh gate over the same store sees the persisted flag.
	g2, err := New(db)
	if err != nil {
		t.Fatal(err)
	}
	if !g2.IsPaused("loja1") {
		t.Error("paused flag lost across reload")
	}
}
