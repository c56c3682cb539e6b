// Package mission implements the mission manager (spec.md §4.8, C8):
// procedural mission generation, fleet assignment, and per-tick
// progress tracking. It never touches ship or fleet records directly —
// it drives them through the small FleetHandle interface the
// game-state manager (C7) implements, the same "consumer-side
// interface instead of an import cycle" shape internal/game.Broadcaster
// already uses for the transport layer.
//
// Grounded on internal/celestial.Simulator and internal/npc.FleetManager
// for its shape (mutex-guarded map of records, value-type snapshots,
// no background goroutine of its own — the caller schedules Generate
// and Update). Mission IDs use google/uuid, the same dependency the
// teacher and internal/transport already use for identity strings.
package mission

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"

	"stellarcore/pkg/types"
)

// FleetHandle is the subset of the NPC engine (C6) the mission manager
// needs to steer fleets toward an objective. internal/game implements
// it against its live fleet/ship tables.
type FleetHandle interface {
	// UnassignedFleets returns every fleet with no active mission.
	UnassignedFleets() []types.NpcFleet
	// LeaderPosition returns the lead ship's current position.
	LeaderPosition(fleetID string) (types.Vector3, bool)
	// AssignMission points fleetID at a mission: sets the fleet's
	// status/assigned-mission fields and retargets the lead ship's
	// waypoint list at endBody (spec.md §4.8).
	AssignMission(fleetID, missionID string, endBody types.Vector3) error
	// ReleaseFleet resets every ship in fleetID back to
	// PATROLLING/passive and clears its mission assignment (spec.md
	// §4.8, "on completion or failure").
	ReleaseFleet(fleetID string)
}

// BodySource is the subset of the celestial simulator (C4) the mission
// manager needs to pick start/end bodies and measure arrival distance.
type BodySource interface {
	AllBodies() []types.CelestialBody
	Body(id uint32) (types.CelestialBody, bool)
}

// typeWeight is one entry in the weighted mission-type draw.
type typeWeight struct {
	Type   types.MissionType
	Weight float64
}

// Config holds the tunables spec.md §4.8 names.
type Config struct {
	InitialMissionCount int
	TypeWeights         []typeWeight
	RewardPerDifficulty map[types.MissionType]int
	ExpirySeconds       map[types.MissionType]int64
	ArrivalRadiusFactor float32 // "within 3x body_radius"
}

// DefaultConfig matches spec.md §4.8's generation table.
func DefaultConfig() Config {
	return Config{
		InitialMissionCount: 10,
		TypeWeights: []typeWeight{
			{types.MissionCombat, 0.2},
			{types.MissionTrade, 0.2},
			{types.MissionDelivery, 0.15},
			{types.MissionMining, 0.15},
			{types.MissionEscort, 0.1},
			{types.MissionPatrol, 0.1},
			{types.MissionRescue, 0.05},
			{types.MissionExploration, 0.05},
		},
		RewardPerDifficulty: map[types.MissionType]int{
			types.MissionCombat:      200,
			types.MissionTrade:       100,
			types.MissionDelivery:    80,
			types.MissionMining:      120,
			types.MissionEscort:      150,
			types.MissionPatrol:      90,
			types.MissionRescue:      175,
			types.MissionExploration: 110,
		},
		ExpirySeconds: map[types.MissionType]int64{
			types.MissionCombat:      600,
			types.MissionTrade:       900,
			types.MissionDelivery:    1200,
			types.MissionMining:      1800,
			types.MissionEscort:      900,
			types.MissionPatrol:      1200,
			types.MissionRescue:      600,
			types.MissionExploration: 2400,
		},
		ArrivalRadiusFactor: 3,
	}
}

// eligibleFleetTypes is the mission-type -> fleet-type table in
// spec.md §4.8.
var eligibleFleetTypes = map[types.MissionType][]types.NpcType{
	types.MissionCombat:      {types.NpcEnemy},
	types.MissionTrade:       {types.NpcTransport},
	types.MissionDelivery:    {types.NpcTransport},
	types.MissionMining:      {types.NpcMining},
	types.MissionEscort:      {types.NpcEnemy, types.NpcTransport},
	types.MissionPatrol:      {types.NpcEnemy, types.NpcTransport},
	types.MissionRescue:      {types.NpcTransport, types.NpcCivilian},
	types.MissionExploration: {types.NpcCivilian},
}

var adjectives = []string{
	"Silent", "Crimson", "Hollow", "Distant", "Forgotten", "Burning",
	"Frozen", "Drifting", "Lost", "Broken", "Endless", "Quiet",
}

var nouns = []string{
	"Horizon", "Vanguard", "Reckoning", "Passage", "Signal", "Tide",
	"Convoy", "Outpost", "Frontier", "Echo", "Harvest", "Wake",
}

// Manager owns the mission set. Safe for concurrent use; spec.md §5's
// single-writer tick normally means only the orchestrator's mission
// scheduler mutates it.
type Manager struct {
	mu sync.RWMutex

	cfg Config

	active    map[string]*types.Mission
	completed []types.Mission
	failed    []types.Mission
}

// NewManager builds an empty mission manager.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, active: make(map[string]*types.Mission)}
}

// Bootstrap generates cfg.InitialMissionCount missions at startup
// (spec.md §4.8).
func (m *Manager) Bootstrap(nowMs int64, bodies BodySource, rng *rand.Rand) {
	for i := 0; i < m.cfg.InitialMissionCount; i++ {
		m.Generate(nowMs, bodies, rng)
	}
}

// Generate procedurally creates one mission and adds it to the active
// set (spec.md §4.8 "Generation"). Returns nil if fewer than two
// celestial bodies exist to pick a start/end pair from.
func (m *Manager) Generate(nowMs int64, bodies BodySource, rng *rand.Rand) *types.Mission {
	all := bodies.AllBodies()
	if len(all) < 2 {
		return nil
	}

	missionType := drawType(m.cfg.TypeWeights, rng)
	start, end := drawDistinctBodies(all, rng)
	difficulty := 1 + rng.Intn(5)

	reward := m.cfg.RewardPerDifficulty[missionType] * difficulty
	target := progressTarget(missionType, difficulty)
	expirySec := m.cfg.ExpirySeconds[missionType]
	if expirySec <= 0 {
		expirySec = 900
	}

	mission := &types.Mission{
		MissionID:      uuid.NewString(),
		Name:           randomName(rng),
		Description:    missionDescription(missionType, start.Name, end.Name),
		Type:           missionType,
		Status:         types.MissionActive,
		Reward:         reward,
		Difficulty:     difficulty,
		StartBodyID:    start.ID,
		EndBodyID:      end.ID,
		ProgressValue:  0,
		ProgressTarget: target,
		StartTime:      nowMs,
		ExpiryTime:     nowMs + expirySec*1000,
	}

	m.mu.Lock()
	m.active[mission.MissionID] = mission
	m.mu.Unlock()
	return mission
}

// progressTarget implements spec.md §4.8's per-type target formula.
func progressTarget(t types.MissionType, difficulty int) float64 {
	switch t {
	case types.MissionCombat:
		return float64(5 * difficulty)
	case types.MissionMining:
		return float64(10 * difficulty)
	case types.MissionTrade:
		return float64(2 * difficulty)
	case types.MissionDelivery:
		return 1
	default:
		return float64(2 * difficulty)
	}
}

func missionDescription(t types.MissionType, startName, endName string) string {
	return string(t) + " run from " + startName + " to " + endName
}

func drawType(weights []typeWeight, rng *rand.Rand) types.MissionType {
	total := 0.0
	for _, w := range weights {
		total += w.Weight
	}
	roll := rng.Float64() * total
	cumulative := 0.0
	for _, w := range weights {
		cumulative += w.Weight
		if roll < cumulative {
			return w.Type
		}
	}
	return weights[len(weights)-1].Type
}

func drawDistinctBodies(bodies []types.CelestialBody, rng *rand.Rand) (types.CelestialBody, types.CelestialBody) {
	i := rng.Intn(len(bodies))
	j := rng.Intn(len(bodies) - 1)
	if j >= i {
		j++
	}
	return bodies[i], bodies[j]
}

func randomName(rng *rand.Rand) string {
	return adjectives[rng.Intn(len(adjectives))] + " " + nouns[rng.Intn(len(nouns))]
}

// Update advances every active mission by one scheduler tick (spec.md
// §4.8's 5-second cadence): expiry, completion, fleet assignment, and
// progress-toward-destination.
func (m *Manager) Update(nowMs int64, fleets FleetHandle, bodies BodySource) {
	m.mu.Lock()
	live := make([]*types.Mission, 0, len(m.active))
	for _, mi := range m.active {
		live = append(live, mi)
	}
	m.mu.Unlock()

	for _, mi := range live {
		m.updateOne(mi, nowMs, fleets, bodies)
	}
}

func (m *Manager) updateOne(mi *types.Mission, nowMs int64, fleets FleetHandle, bodies BodySource) {
	if nowMs > mi.ExpiryTime {
		m.finish(mi, types.MissionFailed, nowMs, fleets, "expired")
		return
	}
	if mi.ProgressValue >= mi.ProgressTarget {
		m.finish(mi, types.MissionCompleted, nowMs, fleets, "")
		return
	}

	if mi.AssignedFleet == nil {
		m.tryAssign(mi, fleets, bodies)
		return
	}

	m.advanceProgress(mi, fleets, bodies)
	if mi.ProgressValue >= mi.ProgressTarget {
		m.finish(mi, types.MissionCompleted, nowMs, fleets, "")
	}
}

// tryAssign picks any unassigned fleet whose type is eligible for
// mi.Type (spec.md §4.8's eligibility table).
func (m *Manager) tryAssign(mi *types.Mission, fleets FleetHandle, bodies BodySource) {
	eligible := eligibleFleetTypes[mi.Type]
	if len(eligible) == 0 {
		return
	}
	end, ok := bodies.Body(mi.EndBodyID)
	if !ok {
		return
	}
	for _, f := range fleets.UnassignedFleets() {
		if !containsType(eligible, f.Type) {
			continue
		}
		if err := fleets.AssignMission(f.FleetID, mi.MissionID, end.CachedPosition); err != nil {
			continue
		}
		fleetID := f.FleetID
		m.mu.Lock()
		mi.AssignedFleet = &fleetID
		m.mu.Unlock()
		return
	}
}

func containsType(types_ []types.NpcType, t types.NpcType) bool {
	for _, x := range types_ {
		if x == t {
			return true
		}
	}
	return false
}

// advanceProgress implements spec.md §4.8's "measure leader position vs
// end_body" step.
func (m *Manager) advanceProgress(mi *types.Mission, fleets FleetHandle, bodies BodySource) {
	if mi.Type == types.MissionExploration {
		m.mu.Lock()
		mi.ProgressValue += 0.03
		m.mu.Unlock()
		return
	}

	leaderPos, ok := fleets.LeaderPosition(*mi.AssignedFleet)
	if !ok {
		return
	}
	end, ok := bodies.Body(mi.EndBodyID)
	if !ok {
		return
	}
	arrivalRadius := end.Radius * m.cfg.ArrivalRadiusFactor
	if leaderPos.Distance(end.CachedPosition) > arrivalRadius {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch mi.Type {
	case types.MissionTrade, types.MissionDelivery:
		mi.ProgressValue = mi.ProgressTarget
	case types.MissionPatrol:
		mi.ProgressValue += 0.05
	case types.MissionMining:
		mi.ProgressValue += 0.2
	case types.MissionCombat:
		mi.ProgressValue += 0.1
	default:
		mi.ProgressValue += 0.1
	}
}

func (m *Manager) finish(mi *types.Mission, status types.MissionStatus, nowMs int64, fleets FleetHandle, reason string) {
	if mi.AssignedFleet != nil {
		fleets.ReleaseFleet(*mi.AssignedFleet)
	}

	m.mu.Lock()
	mi.Status = status
	mi.FailureReason = reason
	if status == types.MissionCompleted {
		t := nowMs
		mi.CompleteTime = &t
	}
	cp := *mi
	delete(m.active, mi.MissionID)
	if status == types.MissionCompleted {
		m.completed = append(m.completed, cp)
	} else {
		m.failed = append(m.failed, cp)
	}
	m.mu.Unlock()
}

// Active returns every currently active mission, ordered by id.
func (m *Manager) Active() []types.Mission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Mission, 0, len(m.active))
	for _, mi := range m.active {
		out = append(out, *mi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MissionID < out[j].MissionID })
	return out
}

// Completed returns every completed mission, most recent last.
func (m *Manager) Completed() []types.Mission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Mission, len(m.completed))
	copy(out, m.completed)
	return out
}

// Failed returns every failed mission, most recent last.
func (m *Manager) Failed() []types.Mission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Mission, len(m.failed))
	copy(out, m.failed)
	return out
}

// Mission looks up one mission by id across all three pools.
func (m *Manager) Mission(id string) (types.Mission, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if mi, ok := m.active[id]; ok {
		return *mi, true
	}
	for _, mi := range m.completed {
		if mi.MissionID == id {
			return mi, true
		}
	}
	for _, mi := range m.failed {
		if mi.MissionID == id {
			return mi, true
		}
	}
	return types.Mission{}, false
}

// Count reports the number of active missions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}
