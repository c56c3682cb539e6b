package npc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"stellarcore/pkg/types"
)

// FleetManager tracks NPC fleets and their member ships (spec.md §4.6,
// GLOSSARY "fleet"). It owns no per-ship physics — Step handles that —
// only membership, formation assignment, and shared waypoint lists.
type FleetManager struct {
	mu      sync.RWMutex
	fleets  map[string]*types.NpcFleet
	members map[string][]int64 // fleetID -> ship ids, insertion order
}

func NewFleetManager() *FleetManager {
	return &FleetManager{
		fleets:  make(map[string]*types.NpcFleet),
		members: make(map[string][]int64),
	}
}

// CreateFleet registers a new fleet and returns its id.
func (fm *FleetManager) CreateFleet(fleetType types.NpcType, locationLabel string, nearestBodyID uint32) string {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	id := uuid.NewString()
	fm.fleets[id] = &types.NpcFleet{
		FleetID:       id,
		Type:          fleetType,
		Status:        types.StatusPassive,
		LocationLabel: locationLabel,
		NearestBodyID: nearestBodyID,
	}
	fm.members[id] = nil
	return id
}

// RegisterFleet reinserts a fleet record exactly as persisted (id,
// status, mission assignment included), used when the orchestrator
// reloads the NPC fleet table from the record store at boot. Members
// must be (re)attached afterward via AddShip as the NPC ship table
// loads, since NpcFleet itself carries no member list.
func (fm *FleetManager) RegisterFleet(f types.NpcFleet) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	cp := f
	cp.ShipCount = 0
	fm.fleets[f.FleetID] = &cp
	if _, ok := fm.members[f.FleetID]; !ok {
		fm.members[f.FleetID] = nil
	}
}

// AddShip assigns shipID to fleetID, appending it to the formation
// order.
func (fm *FleetManager) AddShip(fleetID string, shipID int64) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	f, ok := fm.fleets[fleetID]
	if !ok {
		return fmt.Errorf("npc: unknown fleet %q", fleetID)
	}
	fm.members[fleetID] = append(fm.members[fleetID], shipID)
	f.ShipCount = len(fm.members[fleetID])
	return nil
}

// RemoveShip drops shipID from its fleet, if present.
func (fm *FleetManager) RemoveShip(fleetID string, shipID int64) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	members := fm.members[fleetID]
	for i, id := range members {
		if id == shipID {
			fm.members[fleetID] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if f, ok := fm.fleets[fleetID]; ok {
		f.ShipCount = len(fm.members[fleetID])
	}
}

// Fleet returns a copy of one fleet record.
func (fm *FleetManager) Fleet(fleetID string) (types.NpcFleet, bool) {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	f, ok := fm.fleets[fleetID]
	if !ok {
		return types.NpcFleet{}, false
	}
	return *f, true
}

// Fleets returns every tracked fleet, ordered by id.
func (fm *FleetManager) Fleets() []types.NpcFleet {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	out := make([]types.NpcFleet, 0, len(fm.fleets))
	for _, f := range fm.fleets {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FleetID < out[j].FleetID })
	return out
}

// Members returns shipID in formation order for fleetID.
func (fm *FleetManager) Members(fleetID string) []int64 {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	out := make([]int64, len(fm.members[fleetID]))
	copy(out, fm.members[fleetID])
	return out
}

// SetWaypoints applies the same waypoint list to every ship in
// fleetID by calling apply for each member in formation order.
func (fm *FleetManager) SetWaypoints(fleetID string, waypoints []types.Waypoint, apply func(shipID int64, waypoints []types.Waypoint)) error {
	fm.mu.RLock()
	members := append([]int64(nil), fm.members[fleetID]...)
	_, ok := fm.fleets[fleetID]
	fm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("npc: unknown fleet %q", fleetID)
	}
	for _, id := range members {
		apply(id, waypoints)
	}
	return nil
}

// SetFormation assigns each member a FormationSlot index in formation
// order (0 = lead ship), calling apply to write it back onto the ship
// record the caller owns.
func (fm *FleetManager) SetFormation(fleetID string, apply func(shipID int64, slot int)) error {
	fm.mu.RLock()
	members := append([]int64(nil), fm.members[fleetID]...)
	_, ok := fm.fleets[fleetID]
	fm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("npc: unknown fleet %q", fleetID)
	}
	for i, id := range members {
		apply(id, i)
	}
	return nil
}

// AssignMission marks fleetID as working a mission.
func (fm *FleetManager) AssignMission(fleetID string, missionID string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	f, ok := fm.fleets[fleetID]
	if !ok {
		return fmt.Errorf("npc: unknown fleet %q", fleetID)
	}
	m := missionID
	f.AssignedMission = &m
	f.Status = types.StatusEnRoute
	return nil
}

// ReleaseMission clears fleetID's mission assignment and reverts it to
// passive, used when a mission completes or fails (spec.md §4.8).
func (fm *FleetManager) ReleaseMission(fleetID string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if f, ok := fm.fleets[fleetID]; ok {
		f.AssignedMission = nil
		f.Status = types.StatusPassive
	}
}

// RemoveFleet deletes a fleet and its membership list.
func (fm *FleetManager) RemoveFleet(fleetID string) bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if _, ok := fm.fleets[fleetID]; !ok {
		return false
	}
	delete(fm.fleets, fleetID)
	delete(fm.members, fleetID)
	return true
}
