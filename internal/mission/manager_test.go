package mission

import (
	"math/rand"
	"testing"

	"stellarcore/pkg/types"
)

type fakeBodies struct {
	bodies []types.CelestialBody
}

func (f fakeBodies) AllBodies() []types.CelestialBody { return f.bodies }
func (f fakeBodies) Body(id uint32) (types.CelestialBody, bool) {
	for _, b := range f.bodies {
		if b.ID == id {
			return b, true
		}
	}
	return types.CelestialBody{}, false
}

// fakeFleets is a minimal FleetHandle that hands out one enemy fleet
// and records assignment/release calls.
type fakeFleets struct {
	fleet     types.NpcFleet
	assigned  bool
	released  bool
	leaderPos types.Vector3
}

func (f *fakeFleets) UnassignedFleets() []types.NpcFleet {
	if f.assigned {
		return nil
	}
	return []types.NpcFleet{f.fleet}
}

func (f *fakeFleets) LeaderPosition(fleetID string) (types.Vector3, bool) {
	if fleetID != f.fleet.FleetID {
		return types.Vector3{}, false
	}
	return f.leaderPos, true
}

func (f *fakeFleets) AssignMission(fleetID, missionID string, endBody types.Vector3) error {
	f.assigned = true
	return nil
}

func (f *fakeFleets) ReleaseFleet(fleetID string) {
	f.released = true
	f.assigned = false
}

func testBodies() fakeBodies {
	return fakeBodies{bodies: []types.CelestialBody{
		{ID: 1, Name: "Sol", Radius: 10, CachedPosition: types.Vector3{}},
		{ID: 2, Name: "Terra", Radius: 10, CachedPosition: types.Vector3{X: 1000}},
	}}
}

func TestGenerateProducesActiveMission(t *testing.T) {
	m := NewManager(DefaultConfig())
	rng := rand.New(rand.NewSource(1))
	mi := m.Generate(0, testBodies(), rng)
	if mi == nil {
		t.Fatal("expected a mission")
	}
	if mi.Status != types.MissionActive {
		t.Fatalf("expected active status, got %s", mi.Status)
	}
	if mi.StartBodyID == mi.EndBodyID {
		t.Fatalf("expected distinct start/end bodies, got %d == %d", mi.StartBodyID, mi.EndBodyID)
	}
	if len(m.Active()) != 1 {
		t.Fatalf("expected 1 active mission, got %d", len(m.Active()))
	}
}

func TestMissionExpiresWhenPastDeadline(t *testing.T) {
	m := NewManager(DefaultConfig())
	rng := rand.New(rand.NewSource(2))
	mi := m.Generate(0, testBodies(), rng)

	fleets := &fakeFleets{fleet: types.NpcFleet{FleetID: "f1", Type: types.NpcEnemy}}
	m.Update(mi.ExpiryTime+1, fleets, testBodies())

	if len(m.Active()) != 0 {
		t.Fatalf("expected mission to leave the active pool")
	}
	failed := m.Failed()
	if len(failed) != 1 || failed[0].FailureReason != "expired" {
		t.Fatalf("expected one expired mission, got %+v", failed)
	}
}

func TestCombatMissionLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	m := NewManager(cfg)

	// Force a COMBAT mission directly so the test isn't at the mercy of
	// the weighted draw.
	now := int64(0)
	mi := &types.Mission{
		MissionID: "m1", Type: types.MissionCombat, Status: types.MissionActive,
		Difficulty: 1, ProgressTarget: 5, StartBodyID: 1, EndBodyID: 2,
		StartTime: now, ExpiryTime: now + 600_000,
	}
	m.mu.Lock()
	m.active[mi.MissionID] = mi
	m.mu.Unlock()

	fleets := &fakeFleets{
		fleet:     types.NpcFleet{FleetID: "enemy-1", Type: types.NpcEnemy},
		leaderPos: types.Vector3{X: 1005}, // within 3x radius (30) of Terra
	}
	bodies := testBodies()

	m.Update(now, fleets, bodies) // assigns the fleet
	if !fleets.assigned {
		t.Fatal("expected fleet to be assigned")
	}

	// COMBAT progress grows 0.1 per on-station update. Fifty 0.1 steps
	// sum to just under 5 in float64, so the 51st update reaches the
	// target of 5.
	for i := 0; i < 51; i++ {
		m.Update(now, fleets, bodies)
	}

	if len(m.Completed()) != 1 {
		t.Fatalf("expected mission to complete, active=%d completed=%d", len(m.Active()), len(m.Completed()))
	}
	if !fleets.released {
		t.Fatal("expected fleet to be released on completion")
	}
}
