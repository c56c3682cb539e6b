// Package game is the authoritative game-state manager (spec.md §4.7,
// C7): the fixed-rate tick loop, the player/simulated-player/NPC state
// tables, and the AOI-filtered state broadcast. It is the only
// component allowed to mutate gameplay state (spec.md §5's single-
// writer rule) — transport, store, and the control plane all talk to
// it instead of touching celestial/spatial/npc state directly.
//
// Grounded on the teacher's start_world.go:tickWorld for the shape of
// a fixed-cadence tick function (snapshot-on-interval, batched
// persistence) — generalized from a single SQL UPDATE batch to the
// record store adapter, and from economy math to kinematics/AI.
package game

import (
	"log"
	"math"
	"strconv"
	"sync"

	"stellarcore/internal/celestial"
	"stellarcore/internal/mission"
	"stellarcore/internal/npc"
	"stellarcore/internal/spatial"
	"stellarcore/internal/store"
	"stellarcore/internal/wire"
	"stellarcore/pkg/types"
)

// Broadcaster is the subset of the transport layer the game-state
// manager needs. internal/server supplies the concrete adapter so this
// package never imports internal/transport directly.
type Broadcaster interface {
	SendTo(clientID string, body wire.Body, reliable bool) error
	Disconnect(clientID string, reason string)
}

// Config holds the tunables spec.md §6 lists for the game-state manager.
type Config struct {
	TickRate             int
	MaxDeltaMs           int64
	SanityCheckFrequency int // run the sanity sweep every N ticks
	AOICrossRadius       float32
	MaxPosition          float32 // sanity check bound
	MaxVelocity          float32 // sanity check bound
	SimMaxVelocity       float32 // unconditional simulated-player speed cap
	WorldBoundary        float32 // outer radius simulated players bounce off
}

// DefaultConfig matches spec.md §6's defaults.
func DefaultConfig() Config {
	return Config{
		TickRate:             20,
		MaxDeltaMs:           250,
		SanityCheckFrequency: 10,
		AOICrossRadius:       2000,
		MaxPosition:          50_000_000,
		MaxVelocity:          100_000,
		SimMaxVelocity:       1000,
		WorldBoundary:        2_000_000,
	}
}

// simEntry pairs a simulated player with the AI bookkeeping Step needs.
type simEntry struct {
	player *types.SimulatedPlayer
	state  *npc.SimShipState
}

// Manager owns every live piece of gameplay state.
type Manager struct {
	mu sync.RWMutex

	cfg Config

	store     store.Store
	celestial *celestial.Simulator
	spatial   *spatial.Index
	fleets    *npc.FleetManager
	missions  *mission.Manager
	bc        Broadcaster

	players    map[string]*types.Player // keyed by client id
	simPlayers map[int64]*simEntry
	npcShips   map[int64]*types.NpcShip

	tickCount int64

	infoLog, errLog *log.Logger
}

func NewManager(cfg Config, st store.Store, cel *celestial.Simulator, sp *spatial.Index, fleets *npc.FleetManager, missions *mission.Manager, bc Broadcaster, infoLog, errLog *log.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		store:      st,
		celestial:  cel,
		spatial:    sp,
		fleets:     fleets,
		missions:   missions,
		bc:         bc,
		players:    make(map[string]*types.Player),
		simPlayers: make(map[int64]*simEntry),
		npcShips:   make(map[int64]*types.NpcShip),
		infoLog:    infoLog,
		errLog:     errLog,
	}
}

// AddPlayer creates and registers a connected player (spec.md §4.1
// CLIENT_CONNECT handling, driven by internal/server).
func (m *Manager) AddPlayer(clientID, username string) *types.Player {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.store.Players().NextID()
	p := &types.Player{
		ID:          id,
		ClientID:    clientID,
		Username:    username,
		IsConnected: true,
		Rotation:    types.IdentityQuaternion,
	}
	m.players[clientID] = p
	m.spatial.RegisterEntity(spatial.EntityRef{Kind: spatial.EntityPlayer, ID: clientID}, p.Position)
	return p
}

// RemovePlayer drops a disconnected player.
func (m *Manager) RemovePlayer(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[clientID]; !ok {
		return
	}
	delete(m.players, clientID)
	m.spatial.RemoveEntity(spatial.EntityRef{Kind: spatial.EntityPlayer, ID: clientID})
}

// Player returns a copy of one connected player's record.
func (m *Manager) Player(clientID string) (types.Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[clientID]
	if !ok {
		return types.Player{}, false
	}
	return *p, true
}

// PlayerCount reports how many players are connected.
func (m *Manager) PlayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

// ApplyInput folds a CLIENT_STATE_UPDATE into a player's record
// (spec.md §4.1/§4.7: client-authoritative kinematics, server-
// authoritative everything else).
func (m *Manager) ApplyInput(clientID string, upd wire.ClientStateUpdate, nowMs int64) {
	m.mu.Lock()
	p, ok := m.players[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	p.Position = upd.Position
	p.Velocity = upd.Velocity
	p.Rotation = upd.Rotation
	p.LastUpdate = nowMs
	m.mu.Unlock()

	m.spatial.UpdatePosition(spatial.EntityRef{Kind: spatial.EntityPlayer, ID: clientID}, upd.Position)
}

// AddNpcShip registers a new NPC ship, assigning its id if unset.
func (m *Manager) AddNpcShip(ship types.NpcShip) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ship.ID == 0 {
		ship.ID = m.store.NpcShips().NextID()
	}
	cp := ship
	m.npcShips[cp.ID] = &cp
	m.spatial.RegisterEntity(spatial.EntityRef{Kind: spatial.EntityNpc, ID: idString(cp.ID)}, cp.Position)
	return cp.ID
}

// RemoveNpcShip deregisters an NPC ship.
func (m *Manager) RemoveNpcShip(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.npcShips, id)
	m.spatial.RemoveEntity(spatial.EntityRef{Kind: spatial.EntityNpc, ID: idString(id)})
}

// AddSimulatedPlayer registers a new simulated player with a fresh AI
// state.
func (m *Manager) AddSimulatedPlayer(p types.SimulatedPlayer) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.store.Players().NextID()
	}
	cp := p
	m.simPlayers[cp.ID] = &simEntry{player: &cp, state: npc.NewSimShipState()}
	m.spatial.RegisterEntity(spatial.EntityRef{Kind: spatial.EntitySimulated, ID: idString(cp.ID)}, cp.Position)
	return cp.ID
}

func idString(id int64) string { return strconv.FormatInt(id, 10) }

// clampDelta enforces spec.md §4.7's Δt ceiling so a stalled tick loop
// (GC pause, slow persistence) never feeds a huge timestep into the
// physics.
func (m *Manager) clampDelta(dt float64) float64 {
	ceiling := float64(m.cfg.MaxDeltaMs) / 1000
	if dt > ceiling {
		return ceiling
	}
	if dt < 0 || math.IsNaN(dt) {
		return 0
	}
	return dt
}
