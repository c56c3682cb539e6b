package game

import (
	"math"
	"math/rand"
	"testing"

	"stellarcore/internal/celestial"
	"stellarcore/internal/mission"
	"stellarcore/internal/npc"
	"stellarcore/internal/spatial"
	"stellarcore/internal/store"
	"stellarcore/internal/wire"
	"stellarcore/pkg/types"
)

// captureBroadcaster records every SendTo call so tests can inspect
// exactly which entities a given client's SERVER_STATE_UPDATE carried.
type captureBroadcaster struct {
	sent map[string][]wire.Body
}

func newCaptureBroadcaster() *captureBroadcaster {
	return &captureBroadcaster{sent: make(map[string][]wire.Body)}
}

func (b *captureBroadcaster) SendTo(clientID string, body wire.Body, reliable bool) error {
	b.sent[clientID] = append(b.sent[clientID], body)
	return nil
}

func (b *captureBroadcaster) Disconnect(clientID string, reason string) {}

func (b *captureBroadcaster) lastStateUpdate(clientID string) (wire.ServerStateUpdate, bool) {
	msgs := b.sent[clientID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if su, ok := msgs[i].(wire.ServerStateUpdate); ok {
			return su, true
		}
	}
	return wire.ServerStateUpdate{}, false
}

func newTestManager(bc Broadcaster) *Manager {
	st := store.NewMemoryStore()
	cel := celestial.NewSimulator(1)
	sp := spatial.NewIndex(spatial.DefaultCellEdge, spatial.PolicyLazy)
	fleets := npc.NewFleetManager()
	missions := mission.NewManager(mission.DefaultConfig())
	return NewManager(DefaultConfig(), st, cel, sp, fleets, missions, bc, nil, nil)
}

func containsEntity(entities []wire.EntityPayload, id string) bool {
	for _, e := range entities {
		if e.EntityID == id {
			return true
		}
	}
	return false
}

// TestAOITransitionOnMovement implements spec.md §8 scenario 3: two
// AOIs (A at origin radius 1000, B at (5000,0,0) radius 1000); player1
// at origin, player2 at (5200,0,0) — outside both A's radius and A's
// cross-area reach. Neither client's SERVER_STATE_UPDATE should name
// the other until player1 moves to (4800,0,0), at which point both
// players sit inside B, 400m apart, and player2 must appear in
// player1's next update.
func TestAOITransitionOnMovement(t *testing.T) {
	bc := newCaptureBroadcaster()
	m := newTestManager(bc)
	m.cfg.AOICrossRadius = 500 // spec.md scenario 3's "distance-based rule" threshold

	m.spatial.CreateArea(types.AreaOfInterest{ID: "A", Name: "Alpha", Center: types.Vector3{}, Radius: 1000, CapacityLimit: 400})
	m.spatial.CreateArea(types.AreaOfInterest{ID: "B", Name: "Beta", Center: types.Vector3{X: 5000}, Radius: 1000, CapacityLimit: 400})

	p1 := m.AddPlayer("client-1", "A")
	p1.Position = types.Vector3{}
	m.spatial.UpdatePosition(spatial.EntityRef{Kind: spatial.EntityPlayer, ID: "client-1"}, p1.Position)

	p2 := m.AddPlayer("client-2", "B")
	p2.Position = types.Vector3{X: 5200}
	m.spatial.UpdatePosition(spatial.EntityRef{Kind: spatial.EntityPlayer, ID: "client-2"}, p2.Position)

	rng := rand.New(rand.NewSource(1))

	m.broadcastState(0)
	su, ok := bc.lastStateUpdate("client-1")
	if !ok {
		t.Fatal("expected a state update for client-1")
	}
	if containsEntity(su.Entities, "client-2") {
		t.Fatal("client-2 should not be relevant to client-1 before player1 moves closer")
	}

	m.ApplyInput("client-1", wire.ClientStateUpdate{
		Position: types.Vector3{X: 4800}, Velocity: types.Vector3{}, Rotation: types.IdentityQuaternion,
	}, 1)
	_ = rng

	m.broadcastState(1)
	su, ok = bc.lastStateUpdate("client-1")
	if !ok {
		t.Fatal("expected a state update for client-1 after moving")
	}
	if !containsEntity(su.Entities, "client-2") {
		t.Fatal("client-2 should become relevant to client-1 once both are in area B")
	}
	if containsEntity(su.Entities, "client-1") {
		t.Fatal("SERVER_STATE_UPDATE must exclude the observer itself (spec.md §4.7 step 5)")
	}
}

// TestTickAdvancesCelestialAndClampsDelta exercises Tick's Δt ceiling
// (spec.md §4.7 step 1 / §5's spiral-of-death guard): the celestial
// clock advances by the clamped 0.25 s, not the raw Δt, and a full tick
// with a live player and an NPC fleet wired together keeps NPC speeds
// within their template's max_speed.
func TestTickAdvancesCelestialAndClampsDelta(t *testing.T) {
	bc := newCaptureBroadcaster()
	m := newTestManager(bc)

	sun := types.CelestialBody{Name: "Sol", Type: types.BodyStar, Mass: 1, Radius: 1000}
	sunID := m.celestial.AddBody(sun)
	m.celestial.AddBody(types.CelestialBody{
		Name: "Terra", Type: types.BodyPlanet, ParentID: &sunID, Mass: 1, Radius: 10,
		Orbit: types.Orbit{SemiMajor: 1000, Period: 100},
	})

	m.AddPlayer("client-1", "tester")
	m.CreateFleet(types.NpcCivilian, 2, "near Terra", 0)

	rng := rand.New(rand.NewSource(7))

	// A huge Δt (simulating a stalled tick loop) must clamp, not blow
	// up positions or panic the integration step.
	m.Tick(1e6, 1000, rng)

	if got := m.celestial.SimulationTime(); math.Abs(got-0.25) > 1e-9 {
		t.Fatalf("expected celestial time to advance by the clamped 0.25s, got %f", got)
	}

	for _, s := range m.NpcShips() {
		if s.Velocity.Length() > types.DefaultTemplate(s.Type).MaxSpeed+1e-3 {
			t.Fatalf("npc %d velocity %v exceeds max speed after clamped tick", s.ID, s.Velocity)
		}
	}
}
