// Package store implements the record store adapter (spec.md §6, C3):
// a single interface in front of three interchangeable backends
// (in-memory, file-backed JSON, sqlite), so the rest of the server
// never branches on which persistence mode it's running under.
//
// Grounded on the teacher's db.go (schema-on-boot, WAL sqlite, blake3
// snapshot hashing) and ownworld_test.go's hermetic in-memory sqlite
// swap; the JSON backend's file layout follows spec.md §6's explicit
// file list.
package store

import "stellarcore/pkg/types"

// Store is the record store adapter every backend implements.
type Store interface {
	Users() *Table[types.User]
	Players() *Table[types.Player]
	CelestialBodies() *Table[types.CelestialBody]
	NpcShips() *Table[types.NpcShip]
	NpcFleets() *Table[types.NpcFleet]
	ShipTemplates() *Table[types.ShipTemplate]
	AreasOfInterest() *Table[types.AreaOfInterest]
	ServerLogs() *Table[types.LogEntry]
	ServerStats() *Table[types.StatSample]
	Settings() *types.Settings
	SetSettings(types.Settings)

	// SaveWorld persists every table to durable storage. A no-op for
	// the in-memory backend.
	SaveWorld() error
	// LoadWorld replaces in-memory state with whatever durable storage
	// holds, initializing id sequences to max(id)+1 per kind. The
	// file-backed store falls back to its newest snapshot blob when the
	// primary files are missing.
	LoadWorld() error
	// ResetWorld clears every table and the primary durable storage.
	// Snapshot blobs are backup artifacts and survive a reset.
	ResetWorld() error
	// ResetSequences zeroes every kind's id counter without touching
	// stored records.
	ResetSequences() error
}

// tables is the shared in-memory core every backend embeds.
type tables struct {
	users           *Table[types.User]
	players         *Table[types.Player]
	celestialBodies *Table[types.CelestialBody]
	npcShips        *Table[types.NpcShip]
	npcFleets       *Table[types.NpcFleet]
	shipTemplates   *Table[types.ShipTemplate]
	areasOfInterest *Table[types.AreaOfInterest]
	serverLogs      *Table[types.LogEntry]
	serverStats     *Table[types.StatSample]
	settings        types.Settings
}

func newTables() *tables {
	return &tables{
		users:           newTable[types.User](),
		players:         newTable[types.Player](),
		celestialBodies: newTable[types.CelestialBody](),
		npcShips:        newTable[types.NpcShip](),
		npcFleets:       newTable[types.NpcFleet](),
		shipTemplates:   newTable[types.ShipTemplate](),
		areasOfInterest: newTable[types.AreaOfInterest](),
		serverLogs:      newTable[types.LogEntry](),
		serverStats:     newTable[types.StatSample](),
		settings:        types.DefaultSettings(),
	}
}

func (s *tables) Users() *Table[types.User]                     { return s.users }
func (s *tables) Players() *Table[types.Player]                 { return s.players }
func (s *tables) CelestialBodies() *Table[types.CelestialBody]  { return s.celestialBodies }
func (s *tables) NpcShips() *Table[types.NpcShip]               { return s.npcShips }
func (s *tables) NpcFleets() *Table[types.NpcFleet]             { return s.npcFleets }
func (s *tables) ShipTemplates() *Table[types.ShipTemplate]     { return s.shipTemplates }
func (s *tables) AreasOfInterest() *Table[types.AreaOfInterest] { return s.areasOfInterest }
func (s *tables) ServerLogs() *Table[types.LogEntry]            { return s.serverLogs }
func (s *tables) ServerStats() *Table[types.StatSample]         { return s.serverStats }
func (s *tables) Settings() *types.Settings                     { return &s.settings }
func (s *tables) SetSettings(v types.Settings)                  { s.settings = v }

func (s *tables) resetAll() {
	s.users.replaceAll(map[string]types.User{})
	s.players.replaceAll(map[string]types.Player{})
	s.celestialBodies.replaceAll(map[string]types.CelestialBody{})
	s.npcShips.replaceAll(map[string]types.NpcShip{})
	s.npcFleets.replaceAll(map[string]types.NpcFleet{})
	s.shipTemplates.replaceAll(map[string]types.ShipTemplate{})
	s.areasOfInterest.replaceAll(map[string]types.AreaOfInterest{})
	s.serverLogs.replaceAll(map[string]types.LogEntry{})
	s.serverStats.replaceAll(map[string]types.StatSample{})
	s.settings = types.DefaultSettings()
}

func (s *tables) resetSequences() {
	s.users.resetSequence()
	s.players.resetSequence()
	s.celestialBodies.resetSequence()
	s.npcShips.resetSequence()
	s.npcFleets.resetSequence()
	s.shipTemplates.resetSequence()
	s.areasOfInterest.resetSequence()
	s.serverLogs.resetSequence()
	s.serverStats.resetSequence()
}
