package celestial

import (
	"math"
	"testing"

	"stellarcore/pkg/types"
)

func TestAddBodyAssignsSequentialIDs(t *testing.T) {
	s := NewSimulator(1)
	id1 := s.AddBody(types.CelestialBody{Name: "Sol", Type: types.BodyStar})
	id2 := s.AddBody(types.CelestialBody{Name: "Terra", Type: types.BodyPlanet, ParentID: &id1})
	if id1 == 0 || id2 == 0 || id1 == id2 {
		t.Fatalf("expected distinct nonzero ids, got %d %d", id1, id2)
	}
	if s.BodyCount() != 2 {
		t.Fatalf("expected 2 bodies, got %d", s.BodyCount())
	}
}

func TestSetSimulationSpeedValidatesRange(t *testing.T) {
	s := NewSimulator(10)
	if err := s.SetSimulationSpeed(0.05); err == nil {
		t.Fatal("expected error for speed below minimum")
	}
	if err := s.SetSimulationSpeed(5000); err == nil {
		t.Fatal("expected error for speed above maximum")
	}
	if err := s.SetSimulationSpeed(50); err != nil {
		t.Fatalf("expected valid speed to be accepted: %v", err)
	}
	if s.SimulationSpeed() != 50 {
		t.Fatalf("expected speed 50, got %f", s.SimulationSpeed())
	}
}

func TestSimulationTimeAccumulatesScaled(t *testing.T) {
	s := NewSimulator(10)
	s.Update(2)
	s.Update(3)
	if got := s.SimulationTime(); math.Abs(got-50) > 1e-9 {
		t.Fatalf("expected simulation time 50 (speed 10 x 5s wall), got %f", got)
	}
	if err := s.SetSimulationSpeed(0.1); err != nil {
		t.Fatalf("set speed: %v", err)
	}
	s.Update(10)
	if got := s.SimulationTime(); math.Abs(got-51) > 1e-9 {
		t.Fatalf("expected simulation time 51 after slow segment, got %f", got)
	}
}

func TestOrbitProgressIncludesPhase(t *testing.T) {
	s := NewSimulator(1)
	sun := s.AddBody(types.CelestialBody{Name: "Sol", Type: types.BodyStar})
	planet := s.AddBody(types.CelestialBody{
		Name: "Terra", Type: types.BodyPlanet, ParentID: &sun,
		Orbit: types.Orbit{SemiMajor: 1000, Period: 100, Phase: math.Pi},
	})
	b, _ := s.Body(planet)
	if math.Abs(b.OrbitProgress-0.5) > 1e-9 {
		t.Fatalf("expected phase pi to seed progress 0.5, got %f", b.OrbitProgress)
	}
	s.Update(25)
	b, _ = s.Body(planet)
	if math.Abs(b.OrbitProgress-0.75) > 1e-6 {
		t.Fatalf("expected progress 0.75 a quarter orbit after phase pi, got %f", b.OrbitProgress)
	}
}

func TestRootBodyStaysAtOrigin(t *testing.T) {
	s := NewSimulator(1)
	sun := s.AddBody(types.CelestialBody{Name: "Sol", Type: types.BodyStar})
	s.Update(100)
	pos := s.CurrentPositions()[sun]
	if pos != (types.Vector3{}) {
		t.Fatalf("expected root body fixed at origin, got %+v", pos)
	}
}

func TestOrbitAdvancesAndWrapsProgress(t *testing.T) {
	s := NewSimulator(1)
	sun := s.AddBody(types.CelestialBody{Name: "Sol", Type: types.BodyStar})
	planet := s.AddBody(types.CelestialBody{
		Name: "Terra", Type: types.BodyPlanet, ParentID: &sun,
		Orbit: types.Orbit{SemiMajor: 1000, Eccentricity: 0.1, Period: 100},
	})

	s.Update(25) // quarter orbit
	b, _ := s.Body(planet)
	if b.OrbitProgress < 0.24 || b.OrbitProgress > 0.26 {
		t.Fatalf("expected progress near 0.25, got %f", b.OrbitProgress)
	}

	s.Update(90) // wraps past a full period
	b, _ = s.Body(planet)
	if b.OrbitProgress < 0 || b.OrbitProgress >= 1.0 {
		t.Fatalf("expected progress wrapped into [0,1), got %f", b.OrbitProgress)
	}
}

func TestFrozenBodyDoesNotAdvance(t *testing.T) {
	s := NewSimulator(1)
	sun := s.AddBody(types.CelestialBody{Name: "Sol", Type: types.BodyStar})
	planet := s.AddBody(types.CelestialBody{
		Name: "Terra", Type: types.BodyPlanet, ParentID: &sun,
		Orbit: types.Orbit{SemiMajor: 1000, Eccentricity: 0, Period: 100},
	})
	s.Freeze(planet, true)
	s.Update(50)
	b, _ := s.Body(planet)
	if b.OrbitProgress != 0 {
		t.Fatalf("expected frozen body progress to stay at 0, got %f", b.OrbitProgress)
	}
}

func TestCircularOrbitRadiusIsConstant(t *testing.T) {
	s := NewSimulator(1)
	sun := s.AddBody(types.CelestialBody{Name: "Sol", Type: types.BodyStar})
	planet := s.AddBody(types.CelestialBody{
		Name: "Terra", Type: types.BodyPlanet, ParentID: &sun,
		Orbit: types.Orbit{SemiMajor: 1000, Eccentricity: 0, Period: 360},
	})

	for step := 0; step < 12; step++ {
		s.Update(30)
		pos := s.CurrentPositions()[planet]
		r := math.Sqrt(float64(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z))
		if math.Abs(r-1000) > 1.0 {
			t.Fatalf("expected circular orbit radius ~1000, got %f at step %d", r, step)
		}
	}
}

func TestRemoveBody(t *testing.T) {
	s := NewSimulator(1)
	id := s.AddBody(types.CelestialBody{Name: "X"})
	if !s.RemoveBody(id) {
		t.Fatal("expected removal to succeed")
	}
	if s.RemoveBody(id) {
		t.Fatal("expected second removal to report not found")
	}
	if s.BodyCount() != 0 {
		t.Fatalf("expected 0 bodies, got %d", s.BodyCount())
	}
}
