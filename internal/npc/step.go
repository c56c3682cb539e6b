package npc

import (
	"math"
	"math/rand"

	"stellarcore/pkg/types"
)

// Obstacle is a sphere Step's avoidance pass steers around.
type Obstacle struct {
	Position types.Vector3
	Radius   float32
}

// LeaderState is a snapshot of a fleet leader's kinematics, used by
// FORMATION_KEEPING to compute slot targets in the leader's frame.
type LeaderState struct {
	Position types.Vector3
	Velocity types.Vector3
	Rotation types.Quaternion
}

// StepContext carries everything about the world that one NPC ship
// can't compute about itself: the nearest threat for
// ATTACKING/FLEEING, the fleet leader FORMATION_KEEPING steers
// relative to, the nearest celestial body for gravity and MINING,
// nearby obstacles, and the elapsed time.
type StepContext struct {
	Dt          float64
	ThreatPos   *types.Vector3
	Leader      *LeaderState
	SlotCount   int
	NearestBody *Obstacle
	Obstacles   []Obstacle
	RNG         *rand.Rand
}

// preemptiveClearance is the margin past an obstacle's radius at which
// the projected path counts as a collision course (spec.md §4.6 step 4).
const preemptiveClearance = 50

// Step advances one actor by one tick: behavior dispatch, pre-emptive
// avoidance, gravity, integration, facing, and a probabilistic state
// roll (spec.md §4.6).
func Step(actor *Actor, tmpl types.ShipTemplate, ctx StepContext) {
	accel := behaviorAccel(actor, tmpl, ctx)
	accel = applyAvoidance(actor, tmpl, ctx, accel)
	integrate(actor, tmpl, accel, gravityAccel(actor, tmpl, ctx), ctx.Dt)
	faceVelocity(actor)
	maybeTransition(actor, tmpl.Type, ctx.RNG)
}

// gravityAccel pulls toward the nearest body with an inverse-square
// falloff. Illustrative, not physically faithful (spec.md §4.6 step 2).
func gravityAccel(actor *Actor, tmpl types.ShipTemplate, ctx StepContext) types.Vector3 {
	if ctx.NearestBody == nil {
		return types.Vector3{}
	}
	toBody := ctx.NearestBody.Position.Sub(*actor.Position)
	dist := toBody.Length()
	if dist < 1 {
		return types.Vector3{}
	}
	g := tmpl.GravityStrength * 20.0 / (dist * dist)
	return toBody.Normalize().Scale(g)
}

func seek(from, to types.Vector3, maxAccel float32) types.Vector3 {
	dir := to.Sub(from)
	if dir.Length() < 1e-6 {
		return types.Vector3{}
	}
	return dir.Normalize().Scale(maxAccel)
}

func brake(velocity types.Vector3) types.Vector3 {
	return velocity.Scale(-2.0)
}

// idleBrake is the gentler IDLE deceleration: 0.2 x max_accel opposite
// to the current velocity, only while actually moving.
func idleBrake(velocity types.Vector3, maxAccel float32) types.Vector3 {
	if velocity.Length() < 0.5 {
		return types.Vector3{}
	}
	return velocity.Normalize().Scale(-0.2 * maxAccel)
}

func behaviorAccel(actor *Actor, tmpl types.ShipTemplate, ctx StepContext) types.Vector3 {
	switch *actor.AIState {
	case types.AIIdle:
		return idleBrake(*actor.Velocity, tmpl.MaxAcceleration)

	case types.AIPatrolling:
		return patrolAccel(tmpl, ctx.RNG)

	case types.AIWaypointFollowing:
		return waypointAccel(actor, tmpl, ctx.Dt)

	case types.AIMining:
		return miningAccel(actor, tmpl, ctx)

	case types.AIDocking, types.AITrading:
		return brake(*actor.Velocity)

	case types.AIAttacking:
		if ctx.ThreatPos == nil {
			return brake(*actor.Velocity)
		}
		if actor.Position.Distance(*ctx.ThreatPos) > tmpl.AttackRange {
			return seek(*actor.Position, *ctx.ThreatPos, tmpl.MaxAcceleration)
		}
		return brake(*actor.Velocity)

	case types.AIFleeing:
		if ctx.ThreatPos == nil {
			return brake(*actor.Velocity)
		}
		// Away-from-threat direction: seek from the threat toward us.
		return seek(*ctx.ThreatPos, *actor.Position, tmpl.MaxAcceleration)

	case types.AIEscorting, types.AIFormationKeeping:
		return formationAccel(actor, tmpl, ctx)

	case types.AIObstacleAvoidance:
		if len(ctx.Obstacles) == 0 {
			return brake(*actor.Velocity)
		}
		return avoidanceAccel(*actor.Position, ctx.Obstacles, tmpl.MaxAcceleration)

	default:
		return types.Vector3{}
	}
}

// patrolAccel is the PATROLLING wander: with ~1% probability per tick,
// pick a fresh random unit direction and push at half acceleration;
// otherwise coast on the current velocity.
func patrolAccel(tmpl types.ShipTemplate, rng *rand.Rand) types.Vector3 {
	if rng == nil || rng.Float64() >= 0.01 {
		return types.Vector3{}
	}
	dir := types.Vector3{
		X: float32(rng.Float64()*2 - 1),
		Y: float32(rng.Float64()*2 - 1),
		Z: float32(rng.Float64()*2 - 1),
	}.Normalize()
	return dir.Scale(0.5 * tmpl.MaxAcceleration)
}

// miningAccel holds a band of radius ~2x the body's radius around the
// nearest body: push inward when outside it, outward when too deep,
// and drift tangentially once inside (spec.md §4.6).
func miningAccel(actor *Actor, tmpl types.ShipTemplate, ctx StepContext) types.Vector3 {
	if ctx.NearestBody == nil {
		return brake(*actor.Velocity)
	}
	toBody := ctx.NearestBody.Position.Sub(*actor.Position)
	dist := toBody.Length()
	if dist < 1e-3 {
		return types.Vector3{}
	}
	band := 2 * ctx.NearestBody.Radius
	inward := toBody.Normalize()
	switch {
	case dist > band*1.1:
		return inward.Scale(tmpl.MaxAcceleration)
	case dist < band*0.9:
		return inward.Scale(-tmpl.MaxAcceleration)
	default:
		// Inside the band: gentle orbital drift perpendicular to the
		// radial direction.
		tangent := inward.Cross(types.Vector3{Y: 1})
		if tangent.Length() < 1e-3 {
			tangent = inward.Cross(types.Vector3{X: 1})
		}
		return tangent.Normalize().Scale(0.3 * tmpl.MaxAcceleration)
	}
}

// waypointAccel steers toward the next waypoint with an approach-speed
// taper, consuming it once within arrival radius (or once the current
// speed will cross it this tick). When the list empties the actor
// reverts to PATROLLING with its nav state cleared and
// path_completion_pct at 100.
func waypointAccel(actor *Actor, tmpl types.ShipTemplate, dt float64) types.Vector3 {
	wps := *actor.Waypoints
	if len(wps) == 0 {
		revertFromWaypoints(actor)
		return brake(*actor.Velocity)
	}

	next := wps[0]
	arrival := next.Radius
	if arrival <= 0 {
		arrival = tmpl.WaypointArrivalDistance
	}
	// A coarse tick can step clean across a small arrival sphere, so
	// the radius grows to at least one tick's travel.
	travel := actor.Velocity.Length() * float32(dt)
	if travel > arrival {
		arrival = travel
	}

	if actor.Position.Distance(next.Position) <= arrival {
		*actor.Waypoints = wps[1:]
		updatePathCompletion(actor)
		if len(*actor.Waypoints) == 0 {
			revertFromWaypoints(actor)
			return brake(*actor.Velocity)
		}
		next = (*actor.Waypoints)[0]
		arrival = next.Radius
		if arrival <= 0 {
			arrival = tmpl.WaypointArrivalDistance
		}
	}

	dist := actor.Position.Distance(next.Position)
	targetSpeed := tmpl.MaxSpeed
	if taperDist := 3 * arrival; dist < taperDist && taperDist > 0 {
		targetSpeed = tmpl.MaxSpeed * (dist / taperDist)
	}
	if floor := 0.2 * tmpl.MaxSpeed; targetSpeed < floor {
		targetSpeed = floor
	}
	if next.MaxSpeed != nil && targetSpeed > *next.MaxSpeed {
		targetSpeed = *next.MaxSpeed
	}

	desired := next.Position.Sub(*actor.Position).Normalize().Scale(targetSpeed)
	return desired.Sub(*actor.Velocity).Scale(2)
}

func updatePathCompletion(actor *Actor) {
	total := *actor.WaypointsTotal
	if total <= 0 {
		return
	}
	done := total - len(*actor.Waypoints)
	if done < 0 {
		done = 0
	}
	*actor.PathCompletionPct = 100 * float32(done) / float32(total)
}

func revertFromWaypoints(actor *Actor) {
	*actor.PathCompletionPct = 100
	*actor.AIState = types.AIPatrolling
	*actor.NavState = types.NavNone
}

// formationAccel holds the actor's formation slot: the slot target is
// the leader's position offset by (cos th * r, sin th * r, +-h) in the
// leader's frame, with th spread evenly across slots. Control is a
// PD-style 2 x velocity error plus the leader's velocity feed-forward,
// with a deadband of the template's formation tolerance. With no
// leader the actor reverts to PATROLLING (spec.md §4.6).
func formationAccel(actor *Actor, tmpl types.ShipTemplate, ctx StepContext) types.Vector3 {
	if ctx.Leader == nil {
		*actor.AIState = types.AIPatrolling
		*actor.NavState = types.NavNone
		return brake(*actor.Velocity)
	}
	target := ctx.Leader.Position
	if actor.FormationSlot != nil {
		slot := *actor.FormationSlot
		count := ctx.SlotCount
		if count < 1 {
			count = slot
		}
		if count < 1 {
			count = 1
		}
		r := 4 * tmpl.FormationKeepingTolerance
		if r < 100 {
			r = 100
		}
		theta := 2 * math.Pi * float64(slot) / float64(count)
		h := r / 4
		if slot%2 == 0 {
			h = -h
		}
		offset := types.Vector3{
			X: r * float32(math.Cos(theta)),
			Y: r * float32(math.Sin(theta)),
			Z: h,
		}
		target = ctx.Leader.Position.Add(ctx.Leader.Rotation.Rotate(offset))
	}

	toSlot := target.Sub(*actor.Position)
	targetVel := ctx.Leader.Velocity
	if toSlot.Length() > tmpl.FormationKeepingTolerance {
		targetVel = targetVel.Add(toSlot.Scale(0.5))
	}
	return targetVel.Sub(*actor.Velocity).Scale(2)
}

func avoidanceAccel(pos types.Vector3, obstacles []Obstacle, maxAccel float32) types.Vector3 {
	var away types.Vector3
	for _, o := range obstacles {
		d := pos.Sub(o.Position)
		dist := d.Length()
		if dist < 1e-6 {
			continue
		}
		weight := o.Radius / dist
		away = away.Add(d.Normalize().Scale(weight))
	}
	if away.Length() < 1e-6 {
		return types.Vector3{}
	}
	return away.Normalize().Scale(maxAccel)
}

// applyAvoidance runs the pre-emptive avoidance pass (spec.md §4.6 step
// 4): when the current course's closest approach to any nearby obstacle
// comes inside obstacle_radius + 50, the actor switches into
// OBSTACLE_AVOIDANCE, then recovers through none -> active ->
// recovering -> none, returning to waypoint/formation/patrolling per
// its nav_state.
func applyAvoidance(actor *Actor, tmpl types.ShipTemplate, ctx StepContext, accel types.Vector3) types.Vector3 {
	threatening := onCollisionCourse(*actor.Position, *actor.Velocity, ctx.Obstacles, tmpl.ObstacleAvoidanceDistance)

	switch *actor.AvoidanceState {
	case types.AvoidNone, "":
		if threatening {
			*actor.AvoidanceState = types.AvoidActive
			if *actor.AIState != types.AIObstacleAvoidance {
				*actor.AIState = types.AIObstacleAvoidance
			}
			return avoidanceAccel(*actor.Position, ctx.Obstacles, tmpl.MaxAcceleration)
		}
		return accel
	case types.AvoidActive:
		if threatening {
			return avoidanceAccel(*actor.Position, ctx.Obstacles, tmpl.MaxAcceleration)
		}
		*actor.AvoidanceState = types.AvoidRecovering
		return accel
	case types.AvoidRecovering:
		if threatening {
			*actor.AvoidanceState = types.AvoidActive
			return avoidanceAccel(*actor.Position, ctx.Obstacles, tmpl.MaxAcceleration)
		}
		*actor.AvoidanceState = types.AvoidNone
		if *actor.AIState == types.AIObstacleAvoidance {
			*actor.AIState = resumeStateFor(*actor.NavState)
		}
		return accel
	default:
		return accel
	}
}

// resumeStateFor maps a nav state back onto the AI state it drives,
// used after an avoidance detour ends.
func resumeStateFor(nav types.NavState) types.AIState {
	switch nav {
	case types.NavWaypoint, types.NavMission, types.NavPathfinding:
		return types.AIWaypointFollowing
	case types.NavFormation:
		return types.AIFormationKeeping
	default:
		return types.AIPatrolling
	}
}

// onCollisionCourse reports whether any obstacle within scanDist either
// already sits inside its clearance envelope or lies closer than
// radius + clearance to the ray the current velocity projects.
func onCollisionCourse(pos, vel types.Vector3, obstacles []Obstacle, scanDist float32) bool {
	dir := vel.Normalize()
	moving := vel.Length() > 1e-3
	for _, o := range obstacles {
		rel := o.Position.Sub(pos)
		dist := rel.Length()
		if dist > scanDist+o.Radius {
			continue
		}
		if dist < o.Radius+preemptiveClearance {
			return true
		}
		if !moving {
			continue
		}
		ahead := rel.Dot(dir)
		if ahead <= 0 {
			continue
		}
		closest := rel.Sub(dir.Scale(ahead)).Length()
		if closest < o.Radius+preemptiveClearance {
			return true
		}
	}
	return false
}

// integrate applies the behavior acceleration (clamped to
// MaxAcceleration) plus gravity for dt seconds, then clamps the
// resulting speed to MaxSpeed (spec.md §4.6 step 5).
func integrate(actor *Actor, tmpl types.ShipTemplate, accel, gravity types.Vector3, dt float64) {
	if accel.Length() > tmpl.MaxAcceleration {
		accel = accel.Normalize().Scale(tmpl.MaxAcceleration)
	}
	accel = accel.Add(gravity)
	v := actor.Velocity.Add(accel.Scale(float32(dt)))
	if v.Length() > tmpl.MaxSpeed {
		v = v.Normalize().Scale(tmpl.MaxSpeed)
	}
	*actor.Velocity = v
	*actor.Position = actor.Position.Add(v.Scale(float32(dt)))
}

// faceVelocity orients Rotation toward the direction of travel once
// moving faster than 1 m/s, leaving it untouched when slower.
func faceVelocity(actor *Actor) {
	v := *actor.Velocity
	if v.Length() <= 1 {
		return
	}
	*actor.Rotation = lookRotation(v.Normalize())
}

var forward = types.Vector3{Z: 1}

func lookRotation(dir types.Vector3) types.Quaternion {
	dot := forward.Dot(dir)
	if dot > 0.9999 {
		return types.IdentityQuaternion
	}
	if dot < -0.9999 {
		return types.FromAxisAngle(types.Vector3{Y: 1}, float32(math.Pi))
	}
	axis := forward.Cross(dir).Normalize()
	angle := float32(math.Acos(float64(dot)))
	return types.FromAxisAngle(axis, angle)
}
