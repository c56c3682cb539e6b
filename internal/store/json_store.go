package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"stellarcore/pkg/core"
	"stellarcore/pkg/types"
)

// JSONStore is the file-backed backend (spec.md §6's default
// persistence mode): one flat JSON array per entity kind, using the
// exact file names spec.md §6 names. SaveWorld additionally writes a
// compressed, checksummed snapshot blob under snapshots/, mirroring
// the teacher's daily_snapshots table (db.go:createSchema, state_blob
// + final_hash) without requiring sqlite.
type JSONStore struct {
	*tables
	dir     string
	infoLog *log.Logger
}

func NewJSONStore(dir string, infoLog *log.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "snapshots"), 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	return &JSONStore{tables: newTables(), dir: dir, infoLog: infoLog}, nil
}

const (
	fileUsers           = "users.json"
	fileCelestialBodies = "celestialBodies.json"
	fileNpcShips        = "npcShips.json"
	fileNpcFleets       = "npcFleets.json"
	filePlayers         = "players.json"
	fileAreasOfInterest = "areasOfInterest.json"
	fileServerLogs      = "serverLogs.json"
	fileServerStats     = "serverStats.json"
	fileSettings        = "settings.json"
	fileShipTemplates   = "shipTemplates.json"
)

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *JSONStore) SaveWorld() error {
	if err := writeJSON(filepath.Join(s.dir, fileUsers), s.users.List()); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(s.dir, fileCelestialBodies), s.celestialBodies.List()); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(s.dir, fileNpcShips), s.npcShips.List()); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(s.dir, fileNpcFleets), s.npcFleets.List()); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(s.dir, filePlayers), s.players.List()); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(s.dir, fileAreasOfInterest), s.areasOfInterest.List()); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(s.dir, fileServerLogs), s.serverLogs.List()); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(s.dir, fileServerStats), s.serverStats.List()); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(s.dir, fileSettings), s.settings); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(s.dir, fileShipTemplates), s.shipTemplates.List()); err != nil {
		return err
	}
	return s.writeSnapshot()
}

// snapshotBundle is the one-blob form of the world state (logs and
// stats excluded, matching save/load round-trip semantics).
type snapshotBundle struct {
	Users           []types.User           `json:"users"`
	CelestialBodies []types.CelestialBody  `json:"celestialBodies"`
	NpcShips        []types.NpcShip        `json:"npcShips"`
	NpcFleets       []types.NpcFleet       `json:"npcFleets"`
	Players         []types.Player         `json:"players"`
	Areas           []types.AreaOfInterest `json:"areasOfInterest"`
	Settings        types.Settings         `json:"settings"`
	ShipTemplates   []types.ShipTemplate   `json:"shipTemplates"`
}

// writeSnapshot bundles every table into one lz4-compressed blob with a
// blake3 hash sidecar. The flat per-kind files remain the primary load
// path; LoadWorld falls back to the newest verified snapshot when they
// are missing.
func (s *JSONStore) writeSnapshot() error {
	bundle := snapshotBundle{
		s.users.List(), s.celestialBodies.List(), s.npcShips.List(), s.npcFleets.List(),
		s.players.List(), s.areasOfInterest.List(), s.settings, s.shipTemplates.List(),
	}
	raw, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	compressed := core.Compress(raw)
	hash := core.Hash(raw)
	base := fmt.Sprintf("snapshot-%d", time.Now().UnixMilli())
	if err := os.WriteFile(filepath.Join(s.dir, "snapshots", base+".lz4"), compressed, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, "snapshots", base+".hash"), []byte(hash), 0o644); err != nil {
		return err
	}
	if s.infoLog != nil {
		s.infoLog.Printf("store: wrote snapshot %s.lz4 (hash=%s)", base, hash)
	}
	return nil
}

// hasFlatFiles reports whether any of the per-kind JSON files exist.
func (s *JSONStore) hasFlatFiles() bool {
	for _, f := range []string{fileUsers, fileCelestialBodies, fileNpcShips, fileNpcFleets, filePlayers,
		fileAreasOfInterest, fileServerLogs, fileServerStats, fileSettings, fileShipTemplates} {
		if _, err := os.Stat(filepath.Join(s.dir, f)); err == nil {
			return true
		}
	}
	return false
}

// restoreLatestSnapshot decompresses the newest snapshot blob, checks
// it against its hash sidecar, and replaces every table with its
// contents. Returns false when no snapshot exists.
func (s *JSONStore) restoreLatestSnapshot() (bool, error) {
	snapDir := filepath.Join(s.dir, "snapshots")
	entries, err := os.ReadDir(snapDir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lz4") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return false, nil
	}
	sort.Strings(names)
	newest := names[len(names)-1]

	compressed, err := os.ReadFile(filepath.Join(snapDir, newest))
	if err != nil {
		return false, err
	}
	raw, err := core.Decompress(compressed)
	if err != nil {
		return false, fmt.Errorf("store: decompress snapshot %s: %w", newest, err)
	}

	hashPath := filepath.Join(snapDir, strings.TrimSuffix(newest, ".lz4")+".hash")
	if want, err := os.ReadFile(hashPath); err == nil {
		if got := core.Hash(raw); got != strings.TrimSpace(string(want)) {
			return false, fmt.Errorf("store: snapshot %s hash mismatch (got %s)", newest, got)
		}
	}

	var bundle snapshotBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return false, fmt.Errorf("store: unmarshal snapshot %s: %w", newest, err)
	}

	s.users.replaceAll(keyByInt(bundle.Users, func(u types.User) int64 { return u.ID }))
	s.celestialBodies.replaceAll(keyByUint(bundle.CelestialBodies, func(b types.CelestialBody) uint32 { return b.ID }))
	s.npcShips.replaceAll(keyByInt(bundle.NpcShips, func(n types.NpcShip) int64 { return n.ID }))
	s.npcFleets.replaceAll(keyByString(bundle.NpcFleets, func(f types.NpcFleet) string { return f.FleetID }))
	s.players.replaceAll(keyByInt(bundle.Players, func(p types.Player) int64 { return p.ID }))
	s.areasOfInterest.replaceAll(keyByString(bundle.Areas, func(a types.AreaOfInterest) string { return a.ID }))
	s.shipTemplates.replaceAll(keyByString(bundle.ShipTemplates, func(t types.ShipTemplate) string { return t.Name }))
	s.settings = bundle.Settings

	if s.infoLog != nil {
		s.infoLog.Printf("store: restored world from snapshot %s", newest)
	}
	return true, nil
}

func (s *JSONStore) LoadWorld() error {
	if !s.hasFlatFiles() {
		if restored, err := s.restoreLatestSnapshot(); err != nil {
			return err
		} else if restored {
			return nil
		}
	}

	var users []types.User
	if _, err := readJSON(filepath.Join(s.dir, fileUsers), &users); err != nil {
		return err
	}
	s.users.replaceAll(keyByInt(users, func(u types.User) int64 { return u.ID }))

	var bodies []types.CelestialBody
	if _, err := readJSON(filepath.Join(s.dir, fileCelestialBodies), &bodies); err != nil {
		return err
	}
	s.celestialBodies.replaceAll(keyByUint(bodies, func(b types.CelestialBody) uint32 { return b.ID }))

	var ships []types.NpcShip
	if _, err := readJSON(filepath.Join(s.dir, fileNpcShips), &ships); err != nil {
		return err
	}
	s.npcShips.replaceAll(keyByInt(ships, func(n types.NpcShip) int64 { return n.ID }))

	var fleets []types.NpcFleet
	if _, err := readJSON(filepath.Join(s.dir, fileNpcFleets), &fleets); err != nil {
		return err
	}
	s.npcFleets.replaceAll(keyByString(fleets, func(f types.NpcFleet) string { return f.FleetID }))

	var players []types.Player
	if _, err := readJSON(filepath.Join(s.dir, filePlayers), &players); err != nil {
		return err
	}
	s.players.replaceAll(keyByInt(players, func(p types.Player) int64 { return p.ID }))

	var areas []types.AreaOfInterest
	if _, err := readJSON(filepath.Join(s.dir, fileAreasOfInterest), &areas); err != nil {
		return err
	}
	s.areasOfInterest.replaceAll(keyByString(areas, func(a types.AreaOfInterest) string { return a.ID }))

	var logs []types.LogEntry
	if _, err := readJSON(filepath.Join(s.dir, fileServerLogs), &logs); err != nil {
		return err
	}
	s.serverLogs.replaceAll(keyByInt(logs, func(l types.LogEntry) int64 { return l.ID }))

	var stats []types.StatSample
	if _, err := readJSON(filepath.Join(s.dir, fileServerStats), &stats); err != nil {
		return err
	}
	s.serverStats.replaceAll(keyByInt(stats, func(st types.StatSample) int64 { return st.ID }))

	var settings types.Settings
	if ok, err := readJSON(filepath.Join(s.dir, fileSettings), &settings); err != nil {
		return err
	} else if ok {
		s.settings = settings
	}

	var templates []types.ShipTemplate
	if _, err := readJSON(filepath.Join(s.dir, fileShipTemplates), &templates); err != nil {
		return err
	}
	s.shipTemplates.replaceAll(keyByString(templates, func(t types.ShipTemplate) string { return t.Name }))

	return nil
}

func (s *JSONStore) ResetWorld() error {
	s.resetAll()
	for _, f := range []string{fileUsers, fileCelestialBodies, fileNpcShips, fileNpcFleets, filePlayers,
		fileAreasOfInterest, fileServerLogs, fileServerStats, fileSettings, fileShipTemplates} {
		os.Remove(filepath.Join(s.dir, f))
	}
	return nil
}

func (s *JSONStore) ResetSequences() error {
	s.resetSequences()
	return nil
}

func keyByInt[T any](items []T, idOf func(T) int64) map[string]T {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[strconv.FormatInt(idOf(it), 10)] = it
	}
	return m
}

func keyByUint[T any](items []T, idOf func(T) uint32) map[string]T {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[strconv.FormatUint(uint64(idOf(it)), 10)] = it
	}
	return m
}

func keyByString[T any](items []T, idOf func(T) string) map[string]T {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[idOf(it)] = it
	}
	return m
}
