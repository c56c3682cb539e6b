package game

import (
	"stellarcore/pkg/types"
)

// UnassignedFleets implements mission.FleetHandle: every tracked fleet
// with no mission currently assigned.
func (m *Manager) UnassignedFleets() []types.NpcFleet {
	if m.fleets == nil {
		return nil
	}
	var out []types.NpcFleet
	for _, f := range m.fleets.Fleets() {
		if f.AssignedMission == nil {
			out = append(out, f)
		}
	}
	return out
}

// LeaderPosition implements mission.FleetHandle: the position of the
// fleet's first member, the same ship AssignMission retargets.
func (m *Manager) LeaderPosition(fleetID string) (types.Vector3, bool) {
	p := m.fleetAnchor(fleetID)
	if p == nil {
		return types.Vector3{}, false
	}
	return *p, true
}

// AssignMission implements mission.FleetHandle (spec.md §4.8: "set ship
// ai_state and status appropriately and retarget the leader to
// end_body_id").
func (m *Manager) AssignMission(fleetID, missionID string, endBody types.Vector3) error {
	if err := m.fleets.AssignMission(fleetID, missionID); err != nil {
		return err
	}

	members := m.fleets.Members(fleetID)

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range members {
		ship, ok := m.npcShips[id]
		if !ok {
			continue
		}
		ship.Status = types.StatusEnRoute
		if i == 0 {
			ship.NavState = types.NavMission
			ship.AIState = types.AIWaypointFollowing
			ship.Waypoints = []types.Waypoint{{Position: endBody, Radius: 50}}
			ship.WaypointsTotal = 1
			ship.PathCompletionPct = 0
		}
	}
	return nil
}

// ReleaseFleet implements mission.FleetHandle: every ship reverts to
// PATROLLING/passive and the fleet's mission link is cleared (spec.md
// §4.8, "on completion or failure").
func (m *Manager) ReleaseFleet(fleetID string) {
	m.fleets.ReleaseMission(fleetID)

	members := m.fleets.Members(fleetID)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range members {
		ship, ok := m.npcShips[id]
		if !ok {
			continue
		}
		ship.Status = types.StatusPassive
		ship.AIState = types.AIPatrolling
		ship.NavState = types.NavNone
		ship.Waypoints = nil
		ship.WaypointsTotal = 0
		ship.PathCompletionPct = 0
	}
}

// AllBodies implements mission.BodySource.
func (m *Manager) AllBodies() []types.CelestialBody { return m.celestial.AllBodies() }

// Body implements mission.BodySource.
func (m *Manager) Body(id uint32) (types.CelestialBody, bool) { return m.celestial.Body(id) }

// NpcShipsInFleet reports the ship count currently tracked for fleetID,
// used by the control plane's fleet listing.
func (m *Manager) NpcShipsInFleet(fleetID string) int {
	return len(m.fleets.Members(fleetID))
}
