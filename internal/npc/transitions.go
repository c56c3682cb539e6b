package npc

import (
	"math/rand"

	"stellarcore/pkg/types"
)

// transitionChance is the per-tick probability that a ship rolls on its
// type's transition table at all (spec.md §4.6 step 7, ~0.5%).
const transitionChance = 0.005

// transition is one weighted candidate in a sampled transition.
type transition struct {
	Next   types.AIState
	Weight float64
}

// transitionsFor returns the candidate next states for a ship of type t
// currently in state s, per spec.md §4.6's per-type table. An empty
// result means the state is sticky for that type.
func transitionsFor(t types.NpcType, s types.AIState) []transition {
	switch t {
	case types.NpcEnemy:
		switch s {
		case types.AIPatrolling:
			return []transition{{types.AIAttacking, 0.3}}
		case types.AIAttacking:
			return []transition{{types.AIPatrolling, 0.2}, {types.AIFleeing, 0.1}}
		case types.AIFleeing:
			return []transition{{types.AIPatrolling, 0.5}}
		default:
			return []transition{{types.AIPatrolling, 0.3}}
		}
	case types.NpcTransport:
		if s == types.AIPatrolling {
			return []transition{{types.AIDocking, 0.2}}
		}
		return []transition{{types.AIPatrolling, 0.7}, {types.AIDocking, 0.2}}
	case types.NpcCivilian:
		return []transition{
			{types.AIPatrolling, 0.4},
			{types.AIIdle, 0.3},
			{types.AIDocking, 0.3},
		}
	case types.NpcMining:
		if s == types.AIMining {
			return []transition{{types.AIPatrolling, 0.2}}
		}
		return []transition{{types.AIMining, 0.7}}
	default:
		return nil
	}
}

// maybeTransition rolls the per-tick transition chance and, on a hit,
// samples the type's table, then recomputes status from the new AI
// state. Ships under active navigation (a mission waypoint list, a
// formation slot) or mid-avoidance are exempt: those states are driven
// by concrete triggers, not dice.
func maybeTransition(actor *Actor, t types.NpcType, rng *rand.Rand) {
	if rng == nil {
		return
	}
	if *actor.NavState != types.NavNone {
		return
	}
	switch *actor.AIState {
	case types.AIObstacleAvoidance:
		return
	}
	if rng.Float64() >= transitionChance {
		return
	}

	options := transitionsFor(t, *actor.AIState)
	if len(options) == 0 {
		return
	}
	roll := rng.Float64()
	cumulative := 0.0
	for _, opt := range options {
		cumulative += opt.Weight
		if roll < cumulative {
			*actor.AIState = opt.Next
			applyStatus(actor)
			return
		}
	}
}

// applyStatus recomputes status from the AI state (spec.md §4.6 step 7:
// ATTACKING is hostile, PATROLLING/DOCKING are en-route, MINING is
// working, everything else passive).
func applyStatus(actor *Actor) {
	if actor.Status == nil {
		return
	}
	switch *actor.AIState {
	case types.AIAttacking:
		*actor.Status = types.StatusHostile
	case types.AIPatrolling, types.AIDocking:
		*actor.Status = types.StatusEnRoute
	case types.AIMining:
		*actor.Status = types.StatusWorking
	default:
		*actor.Status = types.StatusPassive
	}
}
