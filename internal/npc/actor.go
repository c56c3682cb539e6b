// Package npc implements the NPC behavior engine (spec.md §4.6, C6):
// per-tick state dispatch, template-driven steering, pre-emptive
// obstacle avoidance, and probabilistic state transitions. Step is
// also the engine simulated players run through (SPEC_FULL.md,
// "Simulated-player/NPC AI code sharing") via the Actor adapter below,
// so the two populations can never drift into two different physics.
//
// The teacher repo has no AI analogue; this package is new code in the
// project's established style.
package npc

import "stellarcore/pkg/types"

// Actor is the minimal view Step needs into a steerable entity. An
// *types.NpcShip supplies one directly (ActorFromNpcShip); a
// *types.SimulatedPlayer supplies one via a parallel SimShipState since
// that type carries no AI bookkeeping fields of its own.
type Actor struct {
	Position *types.Vector3
	Velocity *types.Vector3
	Rotation *types.Quaternion

	AIState        *types.AIState
	NavState       *types.NavState
	AvoidanceState *types.AvoidanceState

	// Status is nil for simulated players, which don't carry one.
	Status *types.NpcStatus

	Waypoints         *[]types.Waypoint
	WaypointsTotal    *int
	PathCompletionPct *float32
	FormationSlot     *int
	Health            float64
}

// ActorFromNpcShip adapts a live NPC ship record.
func ActorFromNpcShip(s *types.NpcShip) *Actor {
	return &Actor{
		Position:          &s.Position,
		Velocity:          &s.Velocity,
		Rotation:          &s.Rotation,
		AIState:           &s.AIState,
		NavState:          &s.NavState,
		AvoidanceState:    &s.AvoidanceState,
		Status:            &s.Status,
		Waypoints:         &s.Waypoints,
		WaypointsTotal:    &s.WaypointsTotal,
		PathCompletionPct: &s.PathCompletionPct,
		FormationSlot:     s.FormationSlot,
		Health:            s.Health,
	}
}

// SimShipState carries the AI bookkeeping a simulated player needs to
// run through Step but that types.SimulatedPlayer itself doesn't
// persist (spec.md §3 keeps that record lean; internal/game owns one
// SimShipState per simulated player alongside it).
type SimShipState struct {
	AIState           types.AIState
	NavState          types.NavState
	AvoidanceState    types.AvoidanceState
	Waypoints         []types.Waypoint
	WaypointsTotal    int
	PathCompletionPct float32
	FormationSlot     *int
	Health            float64
}

// NewSimShipState returns a fresh idle state.
func NewSimShipState() *SimShipState {
	return &SimShipState{AIState: types.AIIdle, NavState: types.NavNone, Health: 1.0}
}

// ActorFromSimulatedPlayer adapts a simulated player plus its parallel
// AI state.
func ActorFromSimulatedPlayer(p *types.SimulatedPlayer, st *SimShipState) *Actor {
	return &Actor{
		Position:          &p.Position,
		Velocity:          &p.Velocity,
		Rotation:          &p.Rotation,
		AIState:           &st.AIState,
		NavState:          &st.NavState,
		AvoidanceState:    &st.AvoidanceState,
		Waypoints:         &st.Waypoints,
		WaypointsTotal:    &st.WaypointsTotal,
		PathCompletionPct: &st.PathCompletionPct,
		FormationSlot:     st.FormationSlot,
		Health:            st.Health,
	}
}
