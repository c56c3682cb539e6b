package game

import (
	"math/rand"
	"sort"
	"strconv"

	"stellarcore/internal/npc"
	"stellarcore/internal/spatial"
	"stellarcore/internal/wire"
	"stellarcore/pkg/types"
)

// Tick advances the whole simulation by dt seconds: celestial orbits,
// NPC and simulated-player AI, spatial re-indexing, persistence, and
// the per-player AOI-filtered state broadcast (spec.md §4.7).
func (m *Manager) Tick(dt float64, nowMs int64, rng *rand.Rand) {
	dt = m.clampDelta(dt)

	m.celestial.Update(dt)
	m.stepNpcShips(dt, rng)
	m.stepSimulatedPlayers(dt, rng)

	m.mu.Lock()
	m.tickCount++
	runSanity := m.cfg.SanityCheckFrequency > 0 && m.tickCount%int64(m.cfg.SanityCheckFrequency) == 0
	m.mu.Unlock()

	if runSanity {
		m.SanityCheck()
	}

	m.persistDirty()
	m.broadcastState(nowMs)
}

// nearestHostilePlayer returns the position of the nearest connected
// player to pos within detectionRange, if any.
func (m *Manager) nearestHostilePlayer(pos types.Vector3, detectionRange float32) *types.Vector3 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *types.Vector3
	bestDist := detectionRange
	for _, p := range m.players {
		d := pos.Distance(p.Position)
		if d <= bestDist {
			cp := p.Position
			best = &cp
			bestDist = d
		}
	}
	return best
}

// nearestBody finds the celestial body closest to pos, as the gravity
// and MINING passes see it.
func (m *Manager) nearestBody(pos types.Vector3) (uint32, *npc.Obstacle) {
	var bestID uint32
	var best *npc.Obstacle
	bestDist := float32(0)
	for _, b := range m.celestial.AllBodies() {
		d := pos.Distance(b.CachedPosition)
		if best == nil || d < bestDist {
			bestID = b.ID
			best = &npc.Obstacle{Position: b.CachedPosition, Radius: b.Radius}
			bestDist = d
		}
	}
	return bestID, best
}

// bodyObstacle resolves one specific body as an avoidance/mining
// obstacle, used when a simulated player has a chosen target body.
func (m *Manager) bodyObstacle(id uint32) *npc.Obstacle {
	b, ok := m.celestial.Body(id)
	if !ok {
		return nil
	}
	return &npc.Obstacle{Position: b.CachedPosition, Radius: b.Radius}
}

// nearbyObstacles returns nearby celestial bodies as avoidance
// obstacles.
func (m *Manager) nearbyObstacles(pos types.Vector3, radius float32) []npc.Obstacle {
	var out []npc.Obstacle
	for _, b := range m.celestial.AllBodies() {
		if pos.Distance(b.CachedPosition) <= radius+b.Radius {
			out = append(out, npc.Obstacle{Position: b.CachedPosition, Radius: b.Radius})
		}
	}
	return out
}

func (m *Manager) fleetAnchor(fleetID string) *types.Vector3 {
	if m.fleets == nil || fleetID == "" {
		return nil
	}
	members := m.fleets.Members(fleetID)
	if len(members) == 0 {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	lead, ok := m.npcShips[members[0]]
	if !ok {
		return nil
	}
	p := lead.Position
	return &p
}

// fleetLeader snapshots the lead ship (the member without a formation
// slot) for followers' formation keeping, plus the follower count the
// slot angles divide over.
func (m *Manager) fleetLeader(fleetID string) (*npc.LeaderState, int) {
	if m.fleets == nil || fleetID == "" {
		return nil, 0
	}
	members := m.fleets.Members(fleetID)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var leader *npc.LeaderState
	followers := 0
	for _, id := range members {
		s, ok := m.npcShips[id]
		if !ok {
			continue
		}
		if s.FormationSlot == nil {
			if leader == nil {
				leader = &npc.LeaderState{Position: s.Position, Velocity: s.Velocity, Rotation: s.Rotation}
			}
			continue
		}
		followers++
	}
	return leader, followers
}

// shipStep pairs a ship with the world context gathered for its tick.
type shipStep struct {
	ship    *types.NpcShip
	tmpl    types.ShipTemplate
	ctx     npc.StepContext
	nearest *uint32
}

func (m *Manager) stepNpcShips(dt float64, rng *rand.Rand) {
	// Gather every ship's world context first, without the write lock:
	// the helpers below take the read lock themselves, and no other
	// goroutine mutates existing ship records.
	m.mu.RLock()
	ships := make([]*types.NpcShip, 0, len(m.npcShips))
	for _, s := range m.npcShips {
		ships = append(ships, s)
	}
	m.mu.RUnlock()

	steps := make([]shipStep, 0, len(ships))
	for _, ship := range ships {
		tmpl := types.DefaultTemplate(ship.Type)
		threat := m.nearestHostilePlayer(ship.Position, tmpl.DetectionRange)
		obstacles := m.nearbyObstacles(ship.Position, tmpl.ObstacleAvoidanceDistance)
		bodyID, body := m.nearestBody(ship.Position)
		var nearest *uint32
		if body != nil {
			id := bodyID
			nearest = &id
		}

		var leader *npc.LeaderState
		slotCount := 0
		if ship.FormationSlot != nil {
			leader, slotCount = m.fleetLeader(ship.FleetID)
		}

		steps = append(steps, shipStep{ship: ship, tmpl: tmpl, nearest: nearest, ctx: npc.StepContext{
			Dt:          dt,
			ThreatPos:   threat,
			Leader:      leader,
			SlotCount:   slotCount,
			NearestBody: body,
			Obstacles:   obstacles,
			RNG:         rng,
		}})
	}

	// Mutate under the write lock so broadcast goroutines and control
	// plane handlers never observe a half-stepped record.
	positions := make([]types.Vector3, len(steps))
	m.mu.Lock()
	for i, st := range steps {
		if st.nearest != nil {
			st.ship.NearestBodyID = st.nearest
		}
		npc.Step(npc.ActorFromNpcShip(st.ship), st.tmpl, st.ctx)
		positions[i] = st.ship.Position
	}
	m.mu.Unlock()

	for i, st := range steps {
		m.spatial.UpdatePosition(spatial.EntityRef{Kind: spatial.EntityNpc, ID: strconv.FormatInt(st.ship.ID, 10)}, positions[i])
	}
}

// simStateChance is the per-tick probability a simulated player
// resamples its coarse AI state (spec.md §4.7 step 4).
const simStateChance = 0.005

var simStates = []types.SimAIState{
	types.SimExploring, types.SimOrbiting, types.SimTraveling, types.SimMining, types.SimCombat,
}

func (m *Manager) stepSimulatedPlayers(dt float64, rng *rand.Rand) {
	m.mu.Lock()
	entries := make([]*simEntry, 0, len(m.simPlayers))
	for _, e := range m.simPlayers {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	type simStep struct {
		entry  *simEntry
		bodyID uint32
		ctx    npc.StepContext
	}
	tmpl := types.DefaultTemplate(types.NpcCivilian)

	steps := make([]simStep, 0, len(entries))
	for _, e := range entries {
		threat := m.nearestHostilePlayer(e.player.Position, tmpl.DetectionRange)
		obstacles := m.nearbyObstacles(e.player.Position, tmpl.ObstacleAvoidanceDistance)
		bodyID, body := m.simTargetBody(e)
		steps = append(steps, simStep{entry: e, bodyID: bodyID, ctx: npc.StepContext{
			Dt:          dt,
			ThreatPos:   threat,
			NearestBody: body,
			Obstacles:   obstacles,
			RNG:         rng,
		}})
	}

	positions := make([]types.Vector3, len(steps))
	m.mu.Lock()
	for i, st := range steps {
		e := st.entry
		if rng != nil && rng.Float64() < simStateChance {
			m.resampleSimState(e, rng)
		}
		if st.ctx.NearestBody != nil {
			e.player.NearestBodyID = st.bodyID
		}
		npc.Step(npc.ActorFromSimulatedPlayer(e.player, e.state), tmpl, st.ctx)
		m.boundSimPlayer(e.player)
		positions[i] = e.player.Position
	}
	m.mu.Unlock()

	for i, st := range steps {
		m.spatial.UpdatePosition(spatial.EntityRef{Kind: spatial.EntitySimulated, ID: strconv.FormatInt(st.entry.player.ID, 10)}, positions[i])
	}
}

// resampleSimState rolls a fresh coarse state and maps it onto the NPC
// engine's states so one Step function drives both populations
// (spec.md §9, "Simulated-player AI vs NPC AI overlap").
func (m *Manager) resampleSimState(e *simEntry, rng *rand.Rand) {
	next := simStates[rng.Intn(len(simStates))]
	e.player.AIState = next
	e.player.TargetBodyID = nil

	switch next {
	case types.SimExploring:
		e.state.AIState = types.AIPatrolling
		e.state.NavState = types.NavNone
		e.state.Waypoints = nil
	case types.SimOrbiting, types.SimMining:
		e.state.AIState = types.AIMining
		e.state.NavState = types.NavNone
		e.state.Waypoints = nil
		if id, ok := m.randomBodyID(rng); ok {
			e.player.TargetBodyID = &id
		}
	case types.SimTraveling:
		e.state.AIState = types.AIWaypointFollowing
		e.state.NavState = types.NavWaypoint
		if id, ok := m.randomBodyID(rng); ok {
			e.player.TargetBodyID = &id
			if b, found := m.celestial.Body(id); found {
				e.state.Waypoints = []types.Waypoint{{Position: b.CachedPosition, Radius: 3 * b.Radius}}
				e.state.WaypointsTotal = 1
				e.state.PathCompletionPct = 0
			}
		}
	case types.SimCombat:
		e.state.AIState = types.AIAttacking
		e.state.NavState = types.NavNone
		e.state.Waypoints = nil
	}
}

func (m *Manager) randomBodyID(rng *rand.Rand) (uint32, bool) {
	bodies := m.celestial.AllBodies()
	if len(bodies) == 0 {
		return 0, false
	}
	return bodies[rng.Intn(len(bodies))].ID, true
}

// simTargetBody resolves the body a simulated player is anchored to:
// its chosen target if it has one, the nearest body otherwise.
func (m *Manager) simTargetBody(e *simEntry) (uint32, *npc.Obstacle) {
	if e.player.TargetBodyID != nil {
		if body := m.bodyObstacle(*e.player.TargetBodyID); body != nil {
			return *e.player.TargetBodyID, body
		}
	}
	return m.nearestBody(e.player.Position)
}

// boundSimPlayer applies spec.md §4.7 step 4's unconditional velocity
// cap and the outer world boundary, reflecting the velocity back inward
// on contact.
func (m *Manager) boundSimPlayer(p *types.SimulatedPlayer) {
	if l := p.Velocity.Length(); l > m.cfg.SimMaxVelocity {
		p.Velocity = p.Velocity.Normalize().Scale(m.cfg.SimMaxVelocity)
	}
	if l := p.Position.Length(); l > m.cfg.WorldBoundary {
		n := p.Position.Normalize()
		p.Position = n.Scale(m.cfg.WorldBoundary)
		outward := p.Velocity.Dot(n)
		if outward > 0 {
			p.Velocity = p.Velocity.Sub(n.Scale(2 * outward))
		}
	}
}

// persistDirty writes every player and NPC ship record back to the
// record store; simulated players are not written.
// Persistence is fire-and-forget (spec.md §5): Table.Put returns no
// error, so nothing here is checked or logged.
func (m *Manager) persistDirty() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.players {
		m.store.Players().Put(strconv.FormatInt(p.ID, 10), *p)
	}
	for _, s := range m.npcShips {
		m.store.NpcShips().Put(strconv.FormatInt(s.ID, 10), *s)
	}
}

// broadcastState sends each connected player a SERVER_STATE_UPDATE
// containing every entity its AOI index considers relevant.
func (m *Manager) broadcastState(nowMs int64) {
	m.mu.RLock()
	clients := make([]*types.Player, 0, len(m.players))
	for _, p := range m.players {
		clients = append(clients, p)
	}
	m.mu.RUnlock()

	for _, p := range clients {
		ref := spatial.EntityRef{Kind: spatial.EntityPlayer, ID: p.ClientID}
		relevant := m.spatial.RelevantEntities(ref, m.cfg.AOICrossRadius)

		entities := make([]wire.EntityPayload, 0, len(relevant))
		for _, r := range relevant {
			if ep, ok := m.entityPayload(r); ok {
				entities = append(entities, ep)
			}
		}

		msg := wire.ServerStateUpdate{
			Entities:   entities,
			AoiID:      m.spatial.EntityArea(ref),
			ServerTime: uint64(nowMs),
		}
		if err := m.bc.SendTo(p.ClientID, msg, false); err != nil && m.errLog != nil {
			m.errLog.Printf("game: broadcast to %s: %v", p.ClientID, err)
		}
	}
}

func (m *Manager) entityPayload(ref spatial.EntityRef) (wire.EntityPayload, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch ref.Kind {
	case spatial.EntityPlayer:
		for _, p := range m.players {
			if p.ClientID == ref.ID {
				return wire.EntityPayload{EntityID: p.ClientID, EntityType: "player", Position: p.Position, Velocity: p.Velocity, Rotation: p.Rotation}, true
			}
		}
	case spatial.EntityNpc:
		id, err := strconv.ParseInt(ref.ID, 10, 64)
		if err != nil {
			return wire.EntityPayload{}, false
		}
		if s, ok := m.npcShips[id]; ok {
			return wire.EntityPayload{EntityID: ref.ID, EntityType: "npc", Position: s.Position, Velocity: s.Velocity, Rotation: s.Rotation}, true
		}
	case spatial.EntitySimulated:
		id, err := strconv.ParseInt(ref.ID, 10, 64)
		if err != nil {
			return wire.EntityPayload{}, false
		}
		if e, ok := m.simPlayers[id]; ok {
			return wire.EntityPayload{EntityID: ref.ID, EntityType: "simulated", Position: e.player.Position, Velocity: e.player.Velocity, Rotation: e.player.Rotation}, true
		}
	}
	return wire.EntityPayload{}, false
}

// BuildCelestialUpdate produces a SERVER_CELESTIAL_UPDATE snapshot
// stamped with the simulator's current simulation_time, sent by a
// slower scheduled broadcast in internal/server.
func (m *Manager) BuildCelestialUpdate() wire.ServerCelestialUpdate {
	simulationTime := m.celestial.SimulationTime()
	bodies := m.celestial.AllBodies()
	out := make([]wire.CelestialPayload, 0, len(bodies))
	for _, b := range bodies {
		out = append(out, wire.CelestialPayload{
			ID:            b.ID,
			Radius:        b.Radius,
			Mass:          float32(b.Mass),
			OrbitProgress: float32(b.OrbitProgress),
			Name:          b.Name,
			Type:          string(b.Type),
			Color:         b.Color,
			Position:      b.CachedPosition,
			Velocity:      b.CachedVelocity,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return wire.ServerCelestialUpdate{Bodies: out, SimulationTime: simulationTime}
}

// BuildNpcUpdate produces a SERVER_NPC_UPDATE limited to NPCs relevant
// to clientID's AOI.
func (m *Manager) BuildNpcUpdate(clientID string) wire.ServerNpcUpdate {
	ref := spatial.EntityRef{Kind: spatial.EntityPlayer, ID: clientID}
	relevant := m.spatial.RelevantEntities(ref, m.cfg.AOICrossRadius)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []wire.NpcPayload
	for _, r := range relevant {
		if r.Kind != spatial.EntityNpc {
			continue
		}
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			continue
		}
		s, ok := m.npcShips[id]
		if !ok {
			continue
		}
		var target *string
		if s.TargetID != nil {
			t := strconv.FormatInt(*s.TargetID, 10)
			target = &t
		}
		out = append(out, wire.NpcPayload{
			Entity: wire.EntityPayload{
				EntityID: r.ID, EntityType: "npc",
				Position: s.Position, Velocity: s.Velocity, Rotation: s.Rotation,
			},
			NpcType:  string(s.Type),
			Status:   string(s.Status),
			TargetID: target,
		})
	}
	return wire.ServerNpcUpdate{Npcs: out}
}

// BuildAoiUpdate produces a SERVER_AOI_UPDATE for clientID.
func (m *Manager) BuildAoiUpdate(clientID string) wire.ServerAoiUpdate {
	ref := spatial.EntityRef{Kind: spatial.EntityPlayer, ID: clientID}
	areas := m.spatial.Areas()
	out := make([]wire.AreaPayload, 0, len(areas))
	for _, a := range areas {
		out = append(out, wire.AreaPayload{
			ID: a.ID, Name: a.Name, Center: a.Center, Radius: a.Radius,
			CapacityLimit: uint32(a.CapacityLimit),
			PlayerCount:   uint32(a.Stats.PlayerCount),
			NpcCount:      uint32(a.Stats.NpcCount),
		})
	}
	return wire.ServerAoiUpdate{Areas: out, CurrentAoiID: m.spatial.EntityArea(ref)}
}
