package store

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"stellarcore/pkg/types"
)

// openTestSqliteStore mirrors the teacher's ownworld_test.go driver
// swap: modernc.org/sqlite registers itself under the "sqlite" name, so
// tests stay pure-Go and hermetic while production uses mattn's cgo
// "sqlite3" driver via OpenSqliteStore.
func openTestSqliteStore(t *testing.T) *SqliteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	// modernc's :memory: databases are per-connection; pin the pool to
	// one so the schema and the data land in the same database.
	db.SetMaxOpenConns(1)
	s, err := newSqliteStore(db)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSqliteStoreSaveLoadRoundTrip(t *testing.T) {
	s := openTestSqliteStore(t)

	s.Players().Put("1", types.Player{ID: 1, Username: "alice"})
	s.NpcShips().Put("1", types.NpcShip{ID: 1, Type: types.NpcEnemy})
	s.AreasOfInterest().Put("area-1", types.AreaOfInterest{ID: "area-1", Name: "Core"})
	settings := types.DefaultSettings()
	settings.MaxPlayers = 500
	s.SetSettings(settings)

	if err := s.SaveWorld(); err != nil {
		t.Fatalf("save: %v", err)
	}

	fresh := openTestSqliteStore(t)
	fresh.db = s.db // reuse the same in-memory connection for the load

	if err := fresh.LoadWorld(); err != nil {
		t.Fatalf("load: %v", err)
	}

	p, ok := fresh.Players().Get("1")
	if !ok || p.Username != "alice" {
		t.Fatalf("player not restored: %+v ok=%v", p, ok)
	}
	if fresh.Settings().MaxPlayers != 500 {
		t.Fatalf("settings not restored: %+v", fresh.Settings())
	}
	if n, ok := fresh.AreasOfInterest().Get("area-1"); !ok || n.Name != "Core" {
		t.Fatalf("area not restored: %+v ok=%v", n, ok)
	}
}

func TestSqliteStoreResetWorld(t *testing.T) {
	s := openTestSqliteStore(t)
	s.Players().Put("1", types.Player{ID: 1, Username: "bob"})
	if err := s.SaveWorld(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.ResetWorld(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s.Players().Count() != 0 {
		t.Fatalf("expected empty players table after reset, got %d", s.Players().Count())
	}
	if err := s.LoadWorld(); err != nil {
		t.Fatalf("load after reset: %v", err)
	}
	if s.Players().Count() != 0 {
		t.Fatalf("expected empty players table after reset+load, got %d", s.Players().Count())
	}
}
