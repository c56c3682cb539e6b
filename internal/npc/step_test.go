package npc

import (
	"math/rand"
	"testing"

	"stellarcore/pkg/types"
)

func newTestShip(state types.AIState) *types.NpcShip {
	return &types.NpcShip{
		Type:     types.NpcTransport,
		AIState:  state,
		NavState: types.NavNone,
	}
}

func TestWaypointFollowingArrivesAndPops(t *testing.T) {
	ship := newTestShip(types.AIWaypointFollowing)
	ship.Waypoints = []types.Waypoint{
		{Position: types.Vector3{X: 10}, Radius: 5},
		{Position: types.Vector3{X: 20}, Radius: 5},
	}
	ship.WaypointsTotal = 2
	tmpl := types.ShipTemplate{Type: types.NpcTransport, MaxSpeed: 100, MaxAcceleration: 1000, WaypointArrivalDistance: 5}
	actor := ActorFromNpcShip(ship)

	for i := 0; i < 50; i++ {
		Step(actor, tmpl, StepContext{Dt: 1})
	}

	if len(ship.Waypoints) != 0 {
		t.Fatalf("expected both waypoints consumed, got %d remaining: %+v", len(ship.Waypoints), ship.Waypoints)
	}
	if ship.PathCompletionPct != 100 {
		t.Fatalf("expected path completion 100, got %f", ship.PathCompletionPct)
	}
}

// TestWaypointRunCompletesWithinBound drives a ship at max_speed 50
// toward a single waypoint 1000m away with a 100m arrival radius at the
// production tick rate: it must arrive within 25 simulated seconds and
// revert to PATROLLING with a cleared nav state and full completion.
func TestWaypointRunCompletesWithinBound(t *testing.T) {
	ship := newTestShip(types.AIWaypointFollowing)
	ship.NavState = types.NavWaypoint
	ship.Waypoints = []types.Waypoint{{Position: types.Vector3{X: 1000}, Radius: 100}}
	ship.WaypointsTotal = 1
	tmpl := types.ShipTemplate{Type: types.NpcTransport, MaxSpeed: 50, MaxAcceleration: 20, WaypointArrivalDistance: 100}
	actor := ActorFromNpcShip(ship)

	const dt = 0.05
	arrivedAt := -1.0
	for i := 0; i < 500; i++ { // 25 simulated seconds
		Step(actor, tmpl, StepContext{Dt: dt})
		if len(ship.Waypoints) == 0 {
			arrivedAt = float64(i+1) * dt
			break
		}
	}

	if arrivedAt < 0 {
		t.Fatalf("ship never consumed the waypoint within 25s; position %+v", ship.Position)
	}
	if ship.AIState != types.AIPatrolling {
		t.Fatalf("expected PATROLLING after the list emptied, got %s", ship.AIState)
	}
	if ship.NavState != types.NavNone {
		t.Fatalf("expected nav state cleared, got %s", ship.NavState)
	}
	if ship.PathCompletionPct != 100 {
		t.Fatalf("expected path completion 100, got %f", ship.PathCompletionPct)
	}
}

func TestFleeingMovesAwayFromThreat(t *testing.T) {
	ship := newTestShip(types.AIFleeing)
	tmpl := types.ShipTemplate{Type: types.NpcEnemy, MaxSpeed: 50, MaxAcceleration: 20}
	actor := ActorFromNpcShip(ship)
	threat := types.Vector3{X: -100}

	startDist := ship.Position.Distance(threat)
	for i := 0; i < 10; i++ {
		Step(actor, tmpl, StepContext{Dt: 1, ThreatPos: &threat})
	}
	endDist := ship.Position.Distance(threat)
	if endDist <= startDist {
		t.Fatalf("expected distance from threat to increase, start=%f end=%f", startDist, endDist)
	}
}

func TestObstacleAvoidancePreemptsBehavior(t *testing.T) {
	ship := newTestShip(types.AIWaypointFollowing)
	ship.NavState = types.NavWaypoint
	ship.Waypoints = []types.Waypoint{{Position: types.Vector3{X: 1000}, Radius: 5}}
	ship.WaypointsTotal = 1
	tmpl := types.ShipTemplate{
		Type: types.NpcTransport, MaxSpeed: 50, MaxAcceleration: 20,
		ObstacleAvoidanceDistance: 100,
	}
	actor := ActorFromNpcShip(ship)
	obstacle := Obstacle{Position: types.Vector3{X: 50}, Radius: 20}

	Step(actor, tmpl, StepContext{Dt: 1, Obstacles: []Obstacle{obstacle}})

	if ship.AvoidanceState != types.AvoidActive {
		t.Fatalf("expected avoidance state active, got %s", ship.AvoidanceState)
	}
	if ship.AIState != types.AIObstacleAvoidance {
		t.Fatalf("expected OBSTACLE_AVOIDANCE, got %s", ship.AIState)
	}
}

func TestAvoidanceRecoversIntoNavState(t *testing.T) {
	ship := newTestShip(types.AIObstacleAvoidance)
	ship.NavState = types.NavWaypoint
	ship.Waypoints = []types.Waypoint{{Position: types.Vector3{X: 5000}, Radius: 5}}
	ship.WaypointsTotal = 1
	ship.AvoidanceState = types.AvoidActive
	tmpl := types.ShipTemplate{Type: types.NpcTransport, MaxSpeed: 50, MaxAcceleration: 20, ObstacleAvoidanceDistance: 100}
	actor := ActorFromNpcShip(ship)

	Step(actor, tmpl, StepContext{Dt: 1}) // no obstacles now
	if ship.AvoidanceState != types.AvoidRecovering {
		t.Fatalf("expected recovering, got %s", ship.AvoidanceState)
	}
	Step(actor, tmpl, StepContext{Dt: 1})
	if ship.AvoidanceState != types.AvoidNone {
		t.Fatalf("expected none after recovery tick, got %s", ship.AvoidanceState)
	}
	if ship.AIState != types.AIWaypointFollowing {
		t.Fatalf("expected WAYPOINT_FOLLOWING restored per nav state, got %s", ship.AIState)
	}
}

func TestIntegrationRespectsMaxSpeed(t *testing.T) {
	ship := newTestShip(types.AIFleeing)
	tmpl := types.ShipTemplate{Type: types.NpcEnemy, MaxSpeed: 10, MaxAcceleration: 1000}
	actor := ActorFromNpcShip(ship)
	threat := types.Vector3{X: -1}

	for i := 0; i < 20; i++ {
		Step(actor, tmpl, StepContext{Dt: 1, ThreatPos: &threat})
	}
	if ship.Velocity.Length() > tmpl.MaxSpeed+0.01 {
		t.Fatalf("expected speed clamped to %f, got %f", tmpl.MaxSpeed, ship.Velocity.Length())
	}
}

func TestMiningHoldsBandAroundBody(t *testing.T) {
	ship := &types.NpcShip{Type: types.NpcMining, AIState: types.AIMining, NavState: types.NavNone}
	tmpl := types.ShipTemplate{Type: types.NpcMining, MaxSpeed: 50, MaxAcceleration: 20}
	actor := ActorFromNpcShip(ship)
	body := Obstacle{Position: types.Vector3{X: 500}, Radius: 100}

	for i := 0; i < 600; i++ {
		Step(actor, tmpl, StepContext{Dt: 0.1, NearestBody: &body})
	}

	dist := ship.Position.Distance(body.Position)
	band := 2 * body.Radius
	if dist > band*2 || dist < band/4 {
		t.Fatalf("expected ship near the 2x-radius band (%f), got distance %f", band, dist)
	}
}

func TestGravityPullsTowardNearestBody(t *testing.T) {
	ship := &types.NpcShip{Type: types.NpcCivilian, AIState: types.AIIdle, NavState: types.NavNone}
	tmpl := types.DefaultTemplate(types.NpcCivilian)
	actor := ActorFromNpcShip(ship)
	body := Obstacle{Position: types.Vector3{X: 50}, Radius: 20}

	start := ship.Position.Distance(body.Position)
	for i := 0; i < 200; i++ {
		Step(actor, tmpl, StepContext{Dt: 0.05, NearestBody: &body})
	}
	if end := ship.Position.Distance(body.Position); end >= start {
		t.Fatalf("expected gravity to draw the ship inward, start=%f end=%f", start, end)
	}
}

func TestFormationFollowerClosesOnSlot(t *testing.T) {
	slot := 1
	ship := &types.NpcShip{
		Type: types.NpcEnemy, AIState: types.AIFormationKeeping, NavState: types.NavFormation,
		FormationSlot: &slot,
	}
	tmpl := types.ShipTemplate{Type: types.NpcEnemy, MaxSpeed: 80, MaxAcceleration: 30, FormationKeepingTolerance: 25}
	actor := ActorFromNpcShip(ship)
	leader := LeaderState{Position: types.Vector3{X: 1000}, Rotation: types.IdentityQuaternion}

	start := ship.Position.Distance(leader.Position)
	for i := 0; i < 400; i++ {
		Step(actor, tmpl, StepContext{Dt: 0.1, Leader: &leader, SlotCount: 2})
	}
	end := ship.Position.Distance(leader.Position)
	if end >= start/2 {
		t.Fatalf("expected follower to close on the leader's slot, start=%f end=%f", start, end)
	}
}

func TestFormationWithoutLeaderRevertsToPatrolling(t *testing.T) {
	slot := 1
	ship := &types.NpcShip{
		Type: types.NpcEnemy, AIState: types.AIFormationKeeping, NavState: types.NavFormation,
		FormationSlot: &slot,
	}
	tmpl := types.DefaultTemplate(types.NpcEnemy)
	actor := ActorFromNpcShip(ship)

	Step(actor, tmpl, StepContext{Dt: 0.05})
	if ship.AIState != types.AIPatrolling {
		t.Fatalf("expected PATROLLING with no leader, got %s", ship.AIState)
	}
}

func TestProbabilisticTransitionRespectsRNGSeed(t *testing.T) {
	ship := newTestShip(types.AIIdle)
	ship.Type = types.NpcCivilian
	tmpl := types.ShipTemplate{Type: types.NpcCivilian, MaxSpeed: 10, MaxAcceleration: 5}
	actor := ActorFromNpcShip(ship)
	rng := rand.New(rand.NewSource(1))

	transitioned := false
	for i := 0; i < 20000; i++ {
		Step(actor, tmpl, StepContext{Dt: 0.05, RNG: rng})
		if ship.AIState != types.AIIdle {
			transitioned = true
			break
		}
	}
	if !transitioned {
		t.Fatal("expected an idle civilian to eventually roll a transition")
	}
}

func TestTransitionRecomputesStatus(t *testing.T) {
	ship := &types.NpcShip{Type: types.NpcEnemy, AIState: types.AIPatrolling, NavState: types.NavNone, Status: types.StatusEnRoute}
	tmpl := types.DefaultTemplate(types.NpcEnemy)
	actor := ActorFromNpcShip(ship)
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 50000; i++ {
		Step(actor, tmpl, StepContext{Dt: 0.05, RNG: rng})
		if ship.AIState == types.AIAttacking {
			if ship.Status != types.StatusHostile {
				t.Fatalf("expected hostile status after transitioning to ATTACKING, got %s", ship.Status)
			}
			return
		}
	}
	t.Fatal("enemy never rolled PATROLLING -> ATTACKING over 50000 ticks")
}

func TestSharedStepWorksForSimulatedPlayer(t *testing.T) {
	player := &types.SimulatedPlayer{AIState: types.SimExploring}
	state := NewSimShipState()
	state.AIState = types.AIWaypointFollowing
	state.NavState = types.NavWaypoint
	state.Waypoints = []types.Waypoint{{Position: types.Vector3{X: 30}, Radius: 5}}
	state.WaypointsTotal = 1

	tmpl := types.ShipTemplate{Type: types.NpcCivilian, MaxSpeed: 50, MaxAcceleration: 50, WaypointArrivalDistance: 5}
	actor := ActorFromSimulatedPlayer(player, state)

	for i := 0; i < 20; i++ {
		Step(actor, tmpl, StepContext{Dt: 1})
	}

	if player.Position.X <= 0 {
		t.Fatalf("expected simulated player to move toward waypoint, got position %+v", player.Position)
	}
}
