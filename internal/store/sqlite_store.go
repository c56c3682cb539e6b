package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"stellarcore/pkg/types"
)

// SqliteStore persists every kind as a JSON blob keyed by (kind, id) in
// a single sqlite table, WAL-journaled exactly like the teacher's
// db.go:initDB. It keeps the full record set mirrored in memory (via
// the embedded *tables, same as JSONStore) so reads never hit the
// database; sqlite is write-behind durability, not the query path.
//
// Driver selection follows the teacher's own split: production opens
// "sqlite3" (mattn/go-sqlite3, cgo), while sqlite_store_test.go swaps
// in modernc.org/sqlite's pure-Go "sqlite" driver for hermetic tests,
// the same substitution ownworld_test.go makes.
type SqliteStore struct {
	*tables
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	kind TEXT NOT NULL,
	id   TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (kind, id)
);
`

// OpenSqliteStore opens (creating if absent) a WAL-mode sqlite database
// at path using the mattn/go-sqlite3 driver.
func OpenSqliteStore(path string) (*SqliteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	return newSqliteStore(db)
}

func newSqliteStore(db *sql.DB) (*SqliteStore, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SqliteStore{tables: newTables(), db: db}, nil
}

const (
	kindUsers           = "users"
	kindCelestialBodies = "celestialBodies"
	kindNpcShips        = "npcShips"
	kindNpcFleets       = "npcFleets"
	kindPlayers         = "players"
	kindAreasOfInterest = "areasOfInterest"
	kindServerLogs      = "serverLogs"
	kindServerStats     = "serverStats"
	kindSettings        = "settings"
	kindShipTemplates   = "shipTemplates"
)

func (s *SqliteStore) putKind(tx *sql.Tx, kind string, items map[string]json.RawMessage) error {
	if _, err := tx.Exec(`DELETE FROM records WHERE kind = ?`, kind); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO records (kind, id, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for id, data := range items {
		if _, err := stmt.Exec(kind, id, string(data)); err != nil {
			return err
		}
	}
	return nil
}

func rawItems[T any](items map[string]T) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(items))
	for id, v := range items {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[id] = data
	}
	return out, nil
}

func listToRaw[T any](items []T, idOf func(T) string) (map[string]json.RawMessage, error) {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[idOf(it)] = it
	}
	return rawItems(m)
}

func (s *SqliteStore) SaveWorld() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	save := func(kind string, items map[string]json.RawMessage) error {
		return s.putKind(tx, kind, items)
	}

	if raw, err := listToRaw(s.users.List(), func(u types.User) string { return idInt(u.ID) }); err != nil {
		return err
	} else if err := save(kindUsers, raw); err != nil {
		return err
	}
	if raw, err := listToRaw(s.celestialBodies.List(), func(b types.CelestialBody) string { return idUint(b.ID) }); err != nil {
		return err
	} else if err := save(kindCelestialBodies, raw); err != nil {
		return err
	}
	if raw, err := listToRaw(s.npcShips.List(), func(n types.NpcShip) string { return idInt(n.ID) }); err != nil {
		return err
	} else if err := save(kindNpcShips, raw); err != nil {
		return err
	}
	if raw, err := listToRaw(s.npcFleets.List(), func(f types.NpcFleet) string { return f.FleetID }); err != nil {
		return err
	} else if err := save(kindNpcFleets, raw); err != nil {
		return err
	}
	if raw, err := listToRaw(s.players.List(), func(p types.Player) string { return idInt(p.ID) }); err != nil {
		return err
	} else if err := save(kindPlayers, raw); err != nil {
		return err
	}
	if raw, err := listToRaw(s.areasOfInterest.List(), func(a types.AreaOfInterest) string { return a.ID }); err != nil {
		return err
	} else if err := save(kindAreasOfInterest, raw); err != nil {
		return err
	}
	if raw, err := listToRaw(s.serverLogs.List(), func(l types.LogEntry) string { return idInt(l.ID) }); err != nil {
		return err
	} else if err := save(kindServerLogs, raw); err != nil {
		return err
	}
	if raw, err := listToRaw(s.serverStats.List(), func(st types.StatSample) string { return idInt(st.ID) }); err != nil {
		return err
	} else if err := save(kindServerStats, raw); err != nil {
		return err
	}
	if raw, err := listToRaw(s.shipTemplates.List(), func(t types.ShipTemplate) string { return t.Name }); err != nil {
		return err
	} else if err := save(kindShipTemplates, raw); err != nil {
		return err
	}

	settingsData, err := json.Marshal(s.settings)
	if err != nil {
		return err
	}
	if err := save(kindSettings, map[string]json.RawMessage{"default": settingsData}); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SqliteStore) loadKind(kind string) (map[string]json.RawMessage, error) {
	rows, err := s.db.Query(`SELECT id, data FROM records WHERE kind = ?`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		out[id] = json.RawMessage(data)
	}
	return out, rows.Err()
}

func unmarshalAll[T any](raw map[string]json.RawMessage) (map[string]T, error) {
	out := make(map[string]T, len(raw))
	for id, data := range raw {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

func (s *SqliteStore) LoadWorld() error {
	load := func(kind string) (map[string]json.RawMessage, error) { return s.loadKind(kind) }

	raw, err := load(kindUsers)
	if err != nil {
		return err
	}
	users, err := unmarshalAll[types.User](raw)
	if err != nil {
		return err
	}
	s.users.replaceAll(users)

	raw, err = load(kindCelestialBodies)
	if err != nil {
		return err
	}
	bodies, err := unmarshalAll[types.CelestialBody](raw)
	if err != nil {
		return err
	}
	s.celestialBodies.replaceAll(bodies)

	raw, err = load(kindNpcShips)
	if err != nil {
		return err
	}
	ships, err := unmarshalAll[types.NpcShip](raw)
	if err != nil {
		return err
	}
	s.npcShips.replaceAll(ships)

	raw, err = load(kindNpcFleets)
	if err != nil {
		return err
	}
	fleets, err := unmarshalAll[types.NpcFleet](raw)
	if err != nil {
		return err
	}
	s.npcFleets.replaceAll(fleets)

	raw, err = load(kindPlayers)
	if err != nil {
		return err
	}
	players, err := unmarshalAll[types.Player](raw)
	if err != nil {
		return err
	}
	s.players.replaceAll(players)

	raw, err = load(kindAreasOfInterest)
	if err != nil {
		return err
	}
	areas, err := unmarshalAll[types.AreaOfInterest](raw)
	if err != nil {
		return err
	}
	s.areasOfInterest.replaceAll(areas)

	raw, err = load(kindServerLogs)
	if err != nil {
		return err
	}
	logs, err := unmarshalAll[types.LogEntry](raw)
	if err != nil {
		return err
	}
	s.serverLogs.replaceAll(logs)

	raw, err = load(kindServerStats)
	if err != nil {
		return err
	}
	stats, err := unmarshalAll[types.StatSample](raw)
	if err != nil {
		return err
	}
	s.serverStats.replaceAll(stats)

	raw, err = load(kindShipTemplates)
	if err != nil {
		return err
	}
	templates, err := unmarshalAll[types.ShipTemplate](raw)
	if err != nil {
		return err
	}
	s.shipTemplates.replaceAll(templates)

	raw, err = load(kindSettings)
	if err != nil {
		return err
	}
	if data, ok := raw["default"]; ok {
		var settings types.Settings
		if err := json.Unmarshal(data, &settings); err != nil {
			return err
		}
		s.settings = settings
	}

	return nil
}

func (s *SqliteStore) ResetWorld() error {
	s.resetAll()
	_, err := s.db.Exec(`DELETE FROM records`)
	return err
}

func (s *SqliteStore) ResetSequences() error {
	s.resetSequences()
	return nil
}

func (s *SqliteStore) Close() error { return s.db.Close() }

func idInt(v int64) string  { return fmt.Sprintf("%d", v) }
func idUint(v uint32) string { return fmt.Sprintf("%d", v) }
