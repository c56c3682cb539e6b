// Package spatial implements the area-of-interest index (spec.md §4.5,
// C5): a cubical grid for fast proximity queries, layered under named
// spherical areas that group entities for state-broadcast filtering.
//
// The teacher repo has no spatial-partitioning analogue to ground this
// on (OwnWorld addresses solar systems by an integer triple, not a
// queryable index) — this package is new code written in the project's
// established style (small mutex-guarded struct, value-type query
// results, no cross-package callbacks).
package spatial

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"stellarcore/pkg/types"
)

// DefaultCellEdge is the cubical grid's cell size in meters (spec.md
// §6 default).
const DefaultCellEdge float32 = 1000

// RadiusChangePolicy controls what happens to existing area membership
// when an area's radius changes at runtime (SPEC_FULL.md, "AOI radius
// runtime-change policy").
type RadiusChangePolicy string

const (
	// PolicyLazy leaves existing membership alone; entities re-resolve
	// their area the next time they move.
	PolicyLazy RadiusChangePolicy = "lazy"
	// PolicyReindex immediately recomputes every tracked entity's area
	// membership against the new radius.
	PolicyReindex RadiusChangePolicy = "reindex"
)

// EntityKind distinguishes the three things the index tracks.
type EntityKind string

const (
	EntityPlayer    EntityKind = "player"
	EntitySimulated EntityKind = "simulated"
	EntityNpc       EntityKind = "npc"
)

// EntityRef identifies one tracked entity.
type EntityRef struct {
	Kind EntityKind
	ID   string
}

type cellCoord struct{ x, y, z int32 }

func cellOf(p types.Vector3, edge float32) cellCoord {
	return cellCoord{
		x: int32(math.Floor(float64(p.X / edge))),
		y: int32(math.Floor(float64(p.Y / edge))),
		z: int32(math.Floor(float64(p.Z / edge))),
	}
}

// Index is the AOI index. Safe for concurrent use, though spec.md §5's
// single-writer model means only the game-state manager's tick thread
// normally mutates it.
type Index struct {
	mu       sync.RWMutex
	cellEdge float32
	policy   RadiusChangePolicy

	grid map[cellCoord]map[EntityRef]struct{}
	pos  map[EntityRef]types.Vector3
	area map[EntityRef]string // current AOI id, "" if none

	areas map[string]*types.AreaOfInterest
}

// NewIndex builds an empty index with the given cell edge and radius-
// change policy (spec.md §6 / SPEC_FULL.md Open Question resolution).
func NewIndex(cellEdge float32, policy RadiusChangePolicy) *Index {
	if cellEdge <= 0 {
		cellEdge = DefaultCellEdge
	}
	if policy == "" {
		policy = PolicyLazy
	}
	return &Index{
		cellEdge: cellEdge,
		policy:   policy,
		grid:     make(map[cellCoord]map[EntityRef]struct{}),
		pos:      make(map[EntityRef]types.Vector3),
		area:     make(map[EntityRef]string),
		areas:    make(map[string]*types.AreaOfInterest),
	}
}

// CreateArea registers a named spherical area. A duplicate id
// overwrites the previous definition.
func (idx *Index) CreateArea(a types.AreaOfInterest) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	cp := a
	idx.areas[a.ID] = &cp
}

// RemoveArea drops an area definition. Entities currently assigned to
// it fall back to "no area" (area_at will reassign them on their next
// move).
func (idx *Index) RemoveArea(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.areas[id]; !ok {
		return false
	}
	delete(idx.areas, id)
	for ref, areaID := range idx.area {
		if areaID == id {
			idx.area[ref] = ""
		}
	}
	return true
}

// Area returns a copy of one area definition.
func (idx *Index) Area(id string) (types.AreaOfInterest, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	a, ok := idx.areas[id]
	if !ok {
		return types.AreaOfInterest{}, false
	}
	return *a, true
}

// Areas returns every tracked area, ordered by id.
func (idx *Index) Areas() []types.AreaOfInterest {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]types.AreaOfInterest, 0, len(idx.areas))
	for _, a := range idx.areas {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetAreaRadius updates an area's radius, applying the configured
// RadiusChangePolicy.
func (idx *Index) SetAreaRadius(id string, radius float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	a, ok := idx.areas[id]
	if !ok {
		return fmt.Errorf("spatial: unknown area %q", id)
	}
	a.Radius = radius
	if idx.policy == PolicyReindex {
		idx.reindexLocked()
	}
	return nil
}

// AreaAt performs point-location: the smallest-radius area whose
// sphere contains p, or "" if none does.
func (idx *Index) AreaAt(p types.Vector3) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.areaAtLocked(p)
}

func (idx *Index) areaAtLocked(p types.Vector3) string {
	best := ""
	bestRadius := float32(math.MaxFloat32)
	for id, a := range idx.areas {
		if p.Distance(a.Center) <= a.Radius && a.Radius < bestRadius {
			best = id
			bestRadius = a.Radius
		}
	}
	return best
}

func (idx *Index) reindexLocked() {
	for ref, p := range idx.pos {
		idx.area[ref] = idx.areaAtLocked(p)
	}
	idx.recomputeStatsLocked()
}

func (idx *Index) recomputeStatsLocked() {
	counts := make(map[string]*types.AreaStats, len(idx.areas))
	for id := range idx.areas {
		counts[id] = &types.AreaStats{}
	}
	for ref, areaID := range idx.area {
		stats, ok := counts[areaID]
		if !ok {
			continue
		}
		switch ref.Kind {
		case EntityPlayer:
			stats.PlayerCount++
		case EntityNpc:
			stats.NpcCount++
		}
	}
	for id, stats := range counts {
		idx.areas[id].Stats = *stats
	}
}

// RegisterEntity adds a new tracked entity at p, assigning it to
// whichever area contains it (if any).
func (idx *Index) RegisterEntity(ref EntityRef, p types.Vector3) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.insertLocked(ref, p)
	idx.area[ref] = idx.areaAtLocked(p)
	idx.recomputeStatsLocked()
}

// UpdatePosition moves a tracked entity, re-resolving its cell and (per
// the spatial grid's own point-location pass, independent of the
// radius-change policy) its area membership.
func (idx *Index) UpdatePosition(ref EntityRef, p types.Vector3) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeFromGridLocked(ref)
	idx.insertLocked(ref, p)
	idx.area[ref] = idx.areaAtLocked(p)
	idx.recomputeStatsLocked()
}

// RemoveEntity drops a tracked entity entirely.
func (idx *Index) RemoveEntity(ref EntityRef) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeFromGridLocked(ref)
	delete(idx.pos, ref)
	delete(idx.area, ref)
	idx.recomputeStatsLocked()
}

func (idx *Index) insertLocked(ref EntityRef, p types.Vector3) {
	cell := cellOf(p, idx.cellEdge)
	bucket, ok := idx.grid[cell]
	if !ok {
		bucket = make(map[EntityRef]struct{})
		idx.grid[cell] = bucket
	}
	bucket[ref] = struct{}{}
	idx.pos[ref] = p
}

func (idx *Index) removeFromGridLocked(ref EntityRef) {
	if p, ok := idx.pos[ref]; ok {
		cell := cellOf(p, idx.cellEdge)
		if bucket, ok := idx.grid[cell]; ok {
			delete(bucket, ref)
			if len(bucket) == 0 {
				delete(idx.grid, cell)
			}
		}
	}
}

// EntityArea returns ref's current area id ("" if none).
func (idx *Index) EntityArea(ref EntityRef) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.area[ref]
}

// RelevantEntities returns every entity ref relevant to ref's client:
// everything sharing ref's area, plus anything within crossAreaRadius
// of ref's position that sits outside that area (spec.md §4.5,
// SPEC_FULL.md "relevant_entities combines same-area membership with
// radius-based cross-area visibility").
func (idx *Index) RelevantEntities(ref EntityRef, crossAreaRadius float32) []EntityRef {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	p, ok := idx.pos[ref]
	if !ok {
		return nil
	}
	myArea := idx.area[ref]

	seen := make(map[EntityRef]struct{})
	var out []EntityRef
	add := func(other EntityRef) {
		if other == ref {
			return
		}
		if _, dup := seen[other]; dup {
			return
		}
		seen[other] = struct{}{}
		out = append(out, other)
	}

	if myArea != "" {
		for other, areaID := range idx.area {
			if areaID == myArea {
				add(other)
			}
		}
	}

	for _, other := range idx.queryRadiusLocked(p, crossAreaRadius) {
		if idx.area[other] == myArea {
			continue // already covered by same-area membership
		}
		add(other)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// queryRadiusLocked returns every tracked entity within radius of
// center, scanning only the grid cells that intersect the bounding box.
func (idx *Index) queryRadiusLocked(center types.Vector3, radius float32) []EntityRef {
	if radius <= 0 {
		return nil
	}
	minCell := cellOf(types.Vector3{X: center.X - radius, Y: center.Y - radius, Z: center.Z - radius}, idx.cellEdge)
	maxCell := cellOf(types.Vector3{X: center.X + radius, Y: center.Y + radius, Z: center.Z + radius}, idx.cellEdge)

	var out []EntityRef
	for x := minCell.x; x <= maxCell.x; x++ {
		for y := minCell.y; y <= maxCell.y; y++ {
			for z := minCell.z; z <= maxCell.z; z++ {
				bucket, ok := idx.grid[cellCoord{x, y, z}]
				if !ok {
					continue
				}
				for ref := range bucket {
					if idx.pos[ref].Distance(center) <= radius {
						out = append(out, ref)
					}
				}
			}
		}
	}
	return out
}

// EntityCount reports how many entities the index currently tracks.
func (idx *Index) EntityCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.pos)
}
