package spatial

import (
	"testing"

	"stellarcore/pkg/types"
)

func TestAreaAtPicksSmallestContainingArea(t *testing.T) {
	idx := NewIndex(DefaultCellEdge, PolicyLazy)
	idx.CreateArea(types.AreaOfInterest{ID: "outer", Center: types.Vector3{}, Radius: 5000})
	idx.CreateArea(types.AreaOfInterest{ID: "inner", Center: types.Vector3{}, Radius: 500})

	if got := idx.AreaAt(types.Vector3{X: 100}); got != "inner" {
		t.Fatalf("expected inner, got %q", got)
	}
	if got := idx.AreaAt(types.Vector3{X: 2000}); got != "outer" {
		t.Fatalf("expected outer, got %q", got)
	}
	if got := idx.AreaAt(types.Vector3{X: 10000}); got != "" {
		t.Fatalf("expected no area, got %q", got)
	}
}

func TestRegisterAndUpdatePositionTracksArea(t *testing.T) {
	idx := NewIndex(DefaultCellEdge, PolicyLazy)
	idx.CreateArea(types.AreaOfInterest{ID: "core", Center: types.Vector3{}, Radius: 1000})

	ref := EntityRef{Kind: EntityPlayer, ID: "p1"}
	idx.RegisterEntity(ref, types.Vector3{X: 100})
	if idx.EntityArea(ref) != "core" {
		t.Fatalf("expected core membership, got %q", idx.EntityArea(ref))
	}

	idx.UpdatePosition(ref, types.Vector3{X: 50000})
	if idx.EntityArea(ref) != "" {
		t.Fatalf("expected no area after leaving core, got %q", idx.EntityArea(ref))
	}
}

func TestRelevantEntitiesSameAreaAndCrossAreaRadius(t *testing.T) {
	idx := NewIndex(DefaultCellEdge, PolicyLazy)
	idx.CreateArea(types.AreaOfInterest{ID: "core", Center: types.Vector3{}, Radius: 1000})

	me := EntityRef{Kind: EntityPlayer, ID: "me"}
	sameArea := EntityRef{Kind: EntityPlayer, ID: "same-area"}
	nearButOutside := EntityRef{Kind: EntityNpc, ID: "near-outside"}
	farAway := EntityRef{Kind: EntityNpc, ID: "far-away"}

	idx.RegisterEntity(me, types.Vector3{X: 0})
	idx.RegisterEntity(sameArea, types.Vector3{X: 200})
	idx.RegisterEntity(nearButOutside, types.Vector3{X: 1100}) // just outside core
	idx.RegisterEntity(farAway, types.Vector3{X: 100000})

	relevant := idx.RelevantEntities(me, 200) // cross-area radius too small to reach 1100
	found := map[EntityRef]bool{}
	for _, r := range relevant {
		found[r] = true
	}
	if !found[sameArea] {
		t.Fatal("expected same-area entity to be relevant")
	}
	if found[nearButOutside] {
		t.Fatal("did not expect out-of-radius cross-area entity to be relevant")
	}
	if found[farAway] {
		t.Fatal("did not expect far-away entity to be relevant")
	}

	relevant = idx.RelevantEntities(me, 1200) // now wide enough to catch the cross-area neighbor
	found = map[EntityRef]bool{}
	for _, r := range relevant {
		found[r] = true
	}
	if !found[nearButOutside] {
		t.Fatal("expected wider cross-area radius to pick up the nearby out-of-area entity")
	}
}

func TestRemoveEntity(t *testing.T) {
	idx := NewIndex(DefaultCellEdge, PolicyLazy)
	ref := EntityRef{Kind: EntityPlayer, ID: "p1"}
	idx.RegisterEntity(ref, types.Vector3{})
	if idx.EntityCount() != 1 {
		t.Fatalf("expected 1 entity, got %d", idx.EntityCount())
	}
	idx.RemoveEntity(ref)
	if idx.EntityCount() != 0 {
		t.Fatalf("expected 0 entities, got %d", idx.EntityCount())
	}
}

func TestSetAreaRadiusReindexPolicy(t *testing.T) {
	idx := NewIndex(DefaultCellEdge, PolicyReindex)
	idx.CreateArea(types.AreaOfInterest{ID: "core", Center: types.Vector3{}, Radius: 100})

	ref := EntityRef{Kind: EntityPlayer, ID: "p1"}
	idx.RegisterEntity(ref, types.Vector3{X: 500})
	if idx.EntityArea(ref) != "" {
		t.Fatalf("expected no area before radius grows, got %q", idx.EntityArea(ref))
	}

	if err := idx.SetAreaRadius("core", 1000); err != nil {
		t.Fatalf("set radius: %v", err)
	}
	if idx.EntityArea(ref) != "core" {
		t.Fatalf("expected reindex policy to immediately pick up new membership, got %q", idx.EntityArea(ref))
	}
}

func TestSetAreaRadiusLazyPolicyDoesNotReindex(t *testing.T) {
	idx := NewIndex(DefaultCellEdge, PolicyLazy)
	idx.CreateArea(types.AreaOfInterest{ID: "core", Center: types.Vector3{}, Radius: 100})

	ref := EntityRef{Kind: EntityPlayer, ID: "p1"}
	idx.RegisterEntity(ref, types.Vector3{X: 500})

	if err := idx.SetAreaRadius("core", 1000); err != nil {
		t.Fatalf("set radius: %v", err)
	}
	if idx.EntityArea(ref) != "" {
		t.Fatalf("expected lazy policy to leave stale membership until next move, got %q", idx.EntityArea(ref))
	}

	idx.UpdatePosition(ref, types.Vector3{X: 500})
	if idx.EntityArea(ref) != "core" {
		t.Fatalf("expected membership to resolve correctly on next move, got %q", idx.EntityArea(ref))
	}
}
