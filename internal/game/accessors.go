package game

import (
	"math"
	"sort"

	"stellarcore/internal/mission"
	"stellarcore/internal/spatial"
	"stellarcore/pkg/types"
)

// Players returns every connected player, ordered by client id.
func (m *Manager) Players() []types.Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Player, 0, len(m.players))
	for _, p := range m.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// NpcShips returns every tracked NPC ship, ordered by id.
func (m *Manager) NpcShips() []types.NpcShip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.NpcShip, 0, len(m.npcShips))
	for _, s := range m.npcShips {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SimulatedPlayers returns every simulated player, ordered by id.
func (m *Manager) SimulatedPlayers() []types.SimulatedPlayer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.SimulatedPlayer, 0, len(m.simPlayers))
	for _, e := range m.simPlayers {
		out = append(out, *e.player)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveSimulatedPlayer deregisters one simulated player.
func (m *Manager) RemoveSimulatedPlayer(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.simPlayers, id)
	m.spatial.RemoveEntity(spatial.EntityRef{Kind: spatial.EntitySimulated, ID: idString(id)})
}

// ClearSimulatedPlayers removes every simulated player (DELETE
// /api/simulated-players, spec.md §6).
func (m *Manager) ClearSimulatedPlayers() int {
	m.mu.Lock()
	ids := make([]int64, 0, len(m.simPlayers))
	for id := range m.simPlayers {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.RemoveSimulatedPlayer(id)
	}
	return len(ids)
}

// Fleets returns every tracked NPC fleet.
func (m *Manager) Fleets() []types.NpcFleet {
	if m.fleets == nil {
		return nil
	}
	return m.fleets.Fleets()
}

// CreateFleet spawns count ships of fleetType in a jittered circle
// around nearestBodyID, arranged per spec.md §4.6's "Fleet operations"
// (jittered circle radius ~300, height spread ±50, ~30% max_speed
// initial velocity).
func (m *Manager) CreateFleet(fleetType types.NpcType, count int, locationLabel string, nearestBodyID uint32) types.NpcFleet {
	fleetID := m.fleets.CreateFleet(fleetType, locationLabel, nearestBodyID)

	anchor := types.Vector3{}
	if b, ok := m.celestial.Body(nearestBodyID); ok {
		anchor = b.CachedPosition
	}
	tmpl := types.DefaultTemplate(fleetType)

	for i := 0; i < count; i++ {
		theta := 2 * float32(i) / float32(maxInt(count, 1)) * 3.14159265
		offset := types.Vector3{
			X: 300 * cosApprox(theta),
			Y: jitterHeight(i),
			Z: 300 * sinApprox(theta),
		}
		pos := anchor.Add(offset)
		vel := types.Vector3{X: 0.3 * tmpl.MaxSpeed * cosApprox(theta+1), Z: 0.3 * tmpl.MaxSpeed * sinApprox(theta+1)}

		ship := types.NpcShip{
			FleetID:       fleetID,
			Type:          fleetType,
			Status:        types.StatusEnRoute,
			Position:      pos,
			Velocity:      vel,
			Rotation:      types.IdentityQuaternion,
			AIState:       types.AIPatrolling,
			NavState:      types.NavNone,
			NearestBodyID: &nearestBodyID,
			Health:        1.0,
		}
		id := m.AddNpcShip(ship)
		m.fleets.AddShip(fleetID, id)
	}

	f, _ := m.fleets.Fleet(fleetID)
	return f
}

// SetWaypoints applies waypoints to every ship in fleetID, switching
// them into WAYPOINT_FOLLOWING (spec.md §4.6's "Fleet operations").
func (m *Manager) SetWaypoints(fleetID string, waypoints []types.Waypoint) error {
	return m.fleets.SetWaypoints(fleetID, waypoints, func(shipID int64, wps []types.Waypoint) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if s, ok := m.npcShips[shipID]; ok {
			s.Waypoints = append([]types.Waypoint(nil), wps...)
			s.WaypointsTotal = len(wps)
			s.PathCompletionPct = 0
			s.AIState = types.AIWaypointFollowing
			s.NavState = types.NavWaypoint
		}
	})
}

// SetFleetFormation assigns formation slots to fleetID's ships, leader
// first, switching followers into FORMATION_KEEPING.
func (m *Manager) SetFleetFormation(fleetID string) error {
	return m.fleets.SetFormation(fleetID, func(shipID int64, slot int) {
		m.mu.Lock()
		defer m.mu.Unlock()
		s, ok := m.npcShips[shipID]
		if !ok {
			return
		}
		if slot == 0 {
			s.FormationSlot = nil
			return
		}
		sl := slot
		s.FormationSlot = &sl
		s.AIState = types.AIFormationKeeping
		s.NavState = types.NavFormation
	})
}

// Areas returns every AOI definition (GET /api/aoi).
func (m *Manager) Areas() []types.AreaOfInterest { return m.spatial.Areas() }

// CreateArea registers a new AOI (POST /api/aoi equivalent; exposed so
// the control plane and bootstrap both share one path).
func (m *Manager) CreateArea(a types.AreaOfInterest) { m.spatial.CreateArea(a) }

// Missions exposes the mission manager the orchestrator schedules
// Generate/Update/Bootstrap against; internal/game owns it because it's
// the component both C6 (fleets) and C4 (bodies) are reachable from
// without an import cycle.
func (m *Manager) Missions() *mission.Manager { return m.missions }

// ensure Manager satisfies the interfaces mission.Manager needs without
// an explicit import cycle back into internal/mission from this file's
// siblings.
var (
	_ mission.FleetHandle = (*Manager)(nil)
	_ mission.BodySource  = (*Manager)(nil)
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// cosApprox/sinApprox are thin float32 wrappers so CreateFleet reads as
// geometry, not casting noise.
func cosApprox(x float32) float32 { return float32(math.Cos(float64(x))) }
func sinApprox(x float32) float32 { return float32(math.Sin(float64(x))) }

func jitterHeight(i int) float32 {
	// Deterministic alternating spread rather than a fresh RNG draw —
	// fleet spawn jitter doesn't need cryptographic or even
	// statistically uniform randomness, just visual separation.
	return float32((i%5)-2) * 20
}
