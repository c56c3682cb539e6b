// Package celestial runs the Keplerian orbit simulation backing every
// star, planet, moon, asteroid, and station in the universe (spec.md
// §4.4, C4).
//
// Grounded on the teacher's pkg/game/mechanics.go for the section-
// header comment style and its deterministic-seed-via-hash idiom
// (unused here directly, but the only physics code the teacher carries
// — everything else in this file is new, since mechanics.go's economy
// math has no orbital-mechanics analogue to adapt).
package celestial

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"stellarcore/pkg/types"
)

const (
	MinSimulationSpeed = 0.1
	MaxSimulationSpeed = 1000.0

	keplerMaxIterations = 8
	keplerTolerance     = 1e-6
)

// Simulator owns the celestial body table and advances every orbit each
// tick.
type Simulator struct {
	mu      sync.RWMutex
	bodies  map[uint32]*types.CelestialBody
	frozen  map[uint32]bool
	speed   float64
	simTime float64 // accumulated simulation seconds (speed x wall dt)
	nextID  uint32
}

// NewSimulator builds an empty simulator at the given simulation_speed
// (spec.md §6 default: 10).
func NewSimulator(speed float64) *Simulator {
	return &Simulator{
		bodies: make(map[uint32]*types.CelestialBody),
		frozen: make(map[uint32]bool),
		speed:  clampSpeed(speed),
	}
}

func clampSpeed(v float64) float64 {
	if v < MinSimulationSpeed {
		return MinSimulationSpeed
	}
	if v > MaxSimulationSpeed {
		return MaxSimulationSpeed
	}
	return v
}

// --- Body table management ---

// AddBody inserts b, assigning an id if b.ID is zero. Returns the
// assigned id. A body arriving with zero OrbitProgress is seeded from
// its orbit phase, so the reported progress is mean_anomaly/2pi from
// the first tick; a persisted body reloaded mid-orbit keeps its stored
// progress (which already folds the phase in).
func (s *Simulator) AddBody(b types.CelestialBody) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		s.nextID++
		b.ID = s.nextID
	} else if b.ID > s.nextID {
		s.nextID = b.ID
	}
	if b.OrbitProgress == 0 {
		b.OrbitProgress = progressFromPhase(b.Orbit.Phase)
	}
	cp := b
	s.bodies[cp.ID] = &cp
	return cp.ID
}

func progressFromPhase(phase float64) float64 {
	p := math.Mod(phase/(2*math.Pi), 1.0)
	if p < 0 {
		p += 1.0
	}
	return p
}

// RemoveBody drops a body. Children pointing at it keep a dangling
// ParentID; spec.md §4.4 treats orphaned children as if root (no
// orbital motion) rather than erroring.
func (s *Simulator) RemoveBody(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bodies[id]; !ok {
		return false
	}
	delete(s.bodies, id)
	delete(s.frozen, id)
	return true
}

// Freeze toggles whether id's orbit advances on Update.
func (s *Simulator) Freeze(id uint32, frozen bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bodies[id]; !ok {
		return false
	}
	if frozen {
		s.frozen[id] = true
	} else {
		delete(s.frozen, id)
	}
	return true
}

// BodyCount reports the number of tracked bodies.
func (s *Simulator) BodyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bodies)
}

// SetSimulationSpeed validates and applies a new multiplier (spec.md §6,
// range [0.1, 1000]).
func (s *Simulator) SetSimulationSpeed(v float64) error {
	if v < MinSimulationSpeed || v > MaxSimulationSpeed {
		return fmt.Errorf("celestial: simulation_speed %.3f out of range [%.1f, %.1f]", v, MinSimulationSpeed, MaxSimulationSpeed)
	}
	s.mu.Lock()
	s.speed = v
	s.mu.Unlock()
	return nil
}

func (s *Simulator) SimulationSpeed() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speed
}

// SimulationTime reports the in-world clock: the sum of
// simulation_speed x wall-clock dt over every Update call (spec.md
// §4.4, GLOSSARY "simulation time"). It is the time value broadcast in
// SERVER_CELESTIAL_UPDATE so clients can reproduce body positions.
func (s *Simulator) SimulationTime() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.simTime
}

// Body returns a copy of one tracked body.
func (s *Simulator) Body(id uint32) (types.CelestialBody, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bodies[id]
	if !ok {
		return types.CelestialBody{}, false
	}
	return *b, true
}

// AllBodies returns a stable-ordered snapshot of every tracked body.
func (s *Simulator) AllBodies() []types.CelestialBody {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.CelestialBody, 0, len(s.bodies))
	for _, b := range s.bodies {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CurrentPositions returns each body's cached position, keyed by id.
func (s *Simulator) CurrentPositions() map[uint32]types.Vector3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint32]types.Vector3, len(s.bodies))
	for id, b := range s.bodies {
		out[id] = b.CachedPosition
	}
	return out
}

// --- Orbit advancement ---

// Update advances every unfrozen body's orbit by dt seconds, scaled by
// simulation_speed. Root bodies (no parent, e.g. the system's star)
// stay fixed at the origin. Bodies are processed parent-before-child so
// a child's position composes on top of its already-updated parent.
func (s *Simulator) Update(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scaledDt := dt * s.speed
	s.simTime += scaledDt
	order := s.topologicalOrder()

	for _, id := range order {
		b := s.bodies[id]
		if b.ParentID == nil {
			b.CachedPosition = types.Vector3{}
			b.CachedVelocity = types.Vector3{}
			continue
		}
		parent, ok := s.bodies[*b.ParentID]
		if !ok {
			// Dangling parent reference: treat as root for this tick.
			b.CachedPosition = types.Vector3{}
			b.CachedVelocity = types.Vector3{}
			continue
		}
		if !s.frozen[id] {
			advanceOrbit(b, scaledDt)
		}
		localPos, localVel := orbitalStateAt(b.Orbit, b.OrbitProgress)
		b.CachedPosition = parent.CachedPosition.Add(localPos)
		b.CachedVelocity = parent.CachedVelocity.Add(localVel)
	}
}

// topologicalOrder returns body ids ordered so every parent precedes
// its children, breaking cycles (which shouldn't occur, but a
// malformed ParentID chain must never spin the tick loop) by treating
// any unresolved body as depth 0 after one full pass.
func (s *Simulator) topologicalOrder() []uint32 {
	depth := make(map[uint32]int, len(s.bodies))
	var resolve func(id uint32, seen map[uint32]bool) int
	resolve = func(id uint32, seen map[uint32]bool) int {
		if d, ok := depth[id]; ok {
			return d
		}
		b, ok := s.bodies[id]
		if !ok || b.ParentID == nil || seen[id] {
			depth[id] = 0
			return 0
		}
		seen[id] = true
		d := resolve(*b.ParentID, seen) + 1
		depth[id] = d
		return d
	}
	ids := make([]uint32, 0, len(s.bodies))
	for id := range s.bodies {
		ids = append(ids, id)
		resolve(id, map[uint32]bool{})
	}
	sort.Slice(ids, func(i, j int) bool {
		if depth[ids[i]] != depth[ids[j]] {
			return depth[ids[i]] < depth[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// advanceOrbit walks b's mean anomaly forward by dt seconds and updates
// OrbitProgress in place. Period <= 0 (e.g. a moon with no real orbit
// yet) leaves the body motionless rather than dividing by zero.
func advanceOrbit(b *types.CelestialBody, dt float64) {
	if b.Orbit.Period <= 0 {
		return
	}
	frac := dt / b.Orbit.Period
	b.OrbitProgress = math.Mod(b.OrbitProgress+frac, 1.0)
	if b.OrbitProgress < 0 {
		b.OrbitProgress += 1.0
	}
}

// orbitalStateAt solves Kepler's equation for o at its current
// OrbitProgress and returns the position/velocity relative to the
// parent body, in the orbital plane rotated by inclination about the X
// axis. OrbitProgress already folds the orbit phase in (AddBody seeds
// it), so mean anomaly is just progress x 2pi.
func orbitalStateAt(o types.Orbit, orbitProgress float64) (types.Vector3, types.Vector3) {
	e := o.Eccentricity
	meanAnomaly := 2 * math.Pi * orbitProgress

	ecc := solveKepler(meanAnomaly, e)

	cosE, sinE := math.Cos(ecc), math.Sin(ecc)
	a := o.SemiMajor

	x := a * (cosE - e)
	y := a * math.Sqrt(1-e*e) * sinE

	n := 0.0
	if o.Period > 0 {
		n = 2 * math.Pi / o.Period
	}
	eDot := 0.0
	if 1-e*cosE != 0 {
		eDot = n / (1 - e*cosE)
	}
	vx := -a * sinE * eDot
	vy := a * math.Sqrt(1-e*e) * cosE * eDot

	pos := types.Vector3{X: float32(x), Y: 0, Z: float32(y)}
	vel := types.Vector3{X: float32(vx), Y: 0, Z: float32(vy)}

	return rotateAboutX(pos, o.Inclination), rotateAboutX(vel, o.Inclination)
}

func rotateAboutX(v types.Vector3, angle float64) types.Vector3 {
	cosA, sinA := float32(math.Cos(angle)), float32(math.Sin(angle))
	return types.Vector3{
		X: v.X,
		Y: v.Y*cosA - v.Z*sinA,
		Z: v.Y*sinA + v.Z*cosA,
	}
}

// solveKepler finds eccentric anomaly E satisfying E - e*sin(E) = M via
// Newton-Raphson, capped at keplerMaxIterations steps or
// keplerTolerance convergence, whichever comes first (spec.md §4.4).
func solveKepler(meanAnomaly, e float64) float64 {
	ecc := meanAnomaly
	if e > 0.8 {
		ecc = math.Pi
	}
	for i := 0; i < keplerMaxIterations; i++ {
		f := ecc - e*math.Sin(ecc) - meanAnomaly
		fPrime := 1 - e*math.Cos(ecc)
		delta := f / fPrime
		ecc -= delta
		if math.Abs(delta) < keplerTolerance {
			break
		}
	}
	return ecc
}
