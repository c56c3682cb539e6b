package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"stellarcore/pkg/types"
)

// apiResponse is the uniform envelope spec.md §6 requires of every
// control-plane endpoint.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func ok(w http.ResponseWriter, data interface{}) { writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data}) }

func fail(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, apiResponse{Success: false, Error: err.Error()})
}

var validate = validator.New()

// controlPlaneHandler builds the full mux per spec.md §6, wrapped in
// the teacher-grounded rate-limit/CORS middleware.
func (o *Orchestrator) controlPlaneHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", o.handleStatus)

	mux.HandleFunc("GET /api/celestial", o.handleCelestialList)
	mux.HandleFunc("GET /api/celestial/{id}", o.handleCelestialGet)
	mux.HandleFunc("POST /api/celestial", o.handleCelestialCreate)
	mux.HandleFunc("PUT /api/celestial/simulation", o.handleCelestialSetSimulation)
	mux.HandleFunc("PUT /api/celestial/{id}", o.handleCelestialUpdate)
	mux.HandleFunc("DELETE /api/celestial/{id}", o.handleCelestialDelete)

	mux.HandleFunc("GET /api/npc/fleets", o.handleFleetsList)
	mux.HandleFunc("POST /api/npc/fleets", o.handleFleetsCreate)

	mux.HandleFunc("GET /api/players", o.handlePlayers)
	mux.HandleFunc("GET /api/aoi", o.handleAreas)
	mux.HandleFunc("GET /api/logs", o.handleLogs)
	mux.HandleFunc("GET /api/stats", o.handleStats)

	mux.HandleFunc("GET /api/settings", o.handleSettingsGet)
	mux.HandleFunc("PUT /api/settings", o.handleSettingsPut)

	mux.HandleFunc("POST /api/emergency-stop", o.handleEmergencyStop)

	mux.HandleFunc("POST /api/simulated-players", o.handleSimPlayersCreate)
	mux.HandleFunc("DELETE /api/simulated-players", o.handleSimPlayersClear)

	mux.Handle("GET /metrics", o.metrics.Handler())

	limiter := newIPLimiter()
	return withCORS(limiter.rateLimit(mux))
}

// --- status ---

type statusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	PlayerCount   int    `json:"playerCount"`
	MaxPlayers    int    `json:"maxPlayers"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

func (o *Orchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
	settings := *o.store.Settings()
	ok(w, statusResponse{
		Status:        "running",
		Version:       o.cfg.Version,
		PlayerCount:   o.game.PlayerCount(),
		MaxPlayers:    settings.MaxPlayers,
		UptimeSeconds: int64(time.Since(o.startTime).Seconds()),
	})
}

// --- celestial bodies ---

func (o *Orchestrator) handleCelestialList(w http.ResponseWriter, r *http.Request) {
	ok(w, o.celestial.AllBodies())
}

func (o *Orchestrator) handleCelestialGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseBodyID(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	b, found := o.celestial.Body(id)
	if !found {
		fail(w, http.StatusNotFound, fmt.Errorf("unknown body %d", id))
		return
	}
	ok(w, b)
}

type createCelestialRequest struct {
	Name   string              `json:"name" validate:"required"`
	Type   types.CelestialType `json:"type" validate:"required"`
	Mass   float64             `json:"mass" validate:"gt=0"`
	Radius float32             `json:"radius" validate:"gt=0"`
	Color  string              `json:"color"`
	Orbit  types.Orbit         `json:"orbit"`
}

func (o *Orchestrator) handleCelestialCreate(w http.ResponseWriter, r *http.Request) {
	var req createCelestialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	body := types.CelestialBody{Name: req.Name, Type: req.Type, Mass: req.Mass, Radius: req.Radius, Color: req.Color, Orbit: req.Orbit}
	id := o.celestial.AddBody(body)
	body, _ = o.celestial.Body(id)
	o.store.CelestialBodies().Put(fmt.Sprintf("%d", id), body)
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: body})
}

func (o *Orchestrator) handleCelestialUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseBodyID(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	existing, found := o.celestial.Body(id)
	if !found {
		fail(w, http.StatusNotFound, fmt.Errorf("unknown body %d", id))
		return
	}
	var req createCelestialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	existing.Name, existing.Type, existing.Mass, existing.Radius, existing.Color, existing.Orbit =
		req.Name, req.Type, req.Mass, req.Radius, req.Color, req.Orbit
	o.celestial.RemoveBody(id)
	existing.ID = id
	o.celestial.AddBody(existing)
	o.store.CelestialBodies().Put(fmt.Sprintf("%d", id), existing)
	ok(w, existing)
}

func (o *Orchestrator) handleCelestialDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseBodyID(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if !o.celestial.RemoveBody(id) {
		fail(w, http.StatusNotFound, fmt.Errorf("unknown body %d", id))
		return
	}
	o.store.CelestialBodies().Delete(fmt.Sprintf("%d", id))
	ok(w, nil)
}

type setSimulationRequest struct {
	SimulationSpeed *float64 `json:"simulationSpeed"`
	Speed           *float64 `json:"speed"`
}

func (o *Orchestrator) handleCelestialSetSimulation(w http.ResponseWriter, r *http.Request) {
	var req setSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	speed := req.SimulationSpeed
	if speed == nil {
		speed = req.Speed
	}
	if speed == nil {
		fail(w, http.StatusBadRequest, fmt.Errorf("speed or simulationSpeed required"))
		return
	}
	if err := o.celestial.SetSimulationSpeed(*speed); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	settings := *o.store.Settings()
	settings.SimulationSpeed = o.celestial.SimulationSpeed()
	o.store.SetSettings(settings)
	ok(w, map[string]float64{"simulationSpeed": o.celestial.SimulationSpeed()})
}

func parseBodyID(r *http.Request) (uint32, error) {
	raw := r.PathValue("id")
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid celestial body id %q", raw)
	}
	return uint32(n), nil
}

// --- NPC fleets ---

func (o *Orchestrator) handleFleetsList(w http.ResponseWriter, r *http.Request) {
	ok(w, o.game.Fleets())
}

type createFleetRequest struct {
	Type                   types.NpcType `json:"type" validate:"required"`
	Count                  int           `json:"count" validate:"gt=0,lte=50"`
	Location               string        `json:"location"`
	NearestCelestialBodyID uint32        `json:"nearestCelestialBodyId"`
}

func (o *Orchestrator) handleFleetsCreate(w http.ResponseWriter, r *http.Request) {
	var req createFleetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	f := o.game.CreateFleet(req.Type, req.Count, req.Location, req.NearestCelestialBodyID)
	o.store.NpcFleets().Put(f.FleetID, f)
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: f})
}

// --- players / aoi / logs / stats ---

func (o *Orchestrator) handlePlayers(w http.ResponseWriter, r *http.Request) { ok(w, o.game.Players()) }

func (o *Orchestrator) handleAreas(w http.ResponseWriter, r *http.Request) { ok(w, o.game.Areas()) }

func (o *Orchestrator) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	level := r.URL.Query().Get("level")
	all := o.store.ServerLogs().List()
	var filtered []types.LogEntry
	for _, l := range all {
		if level != "" && l.Level != level {
			continue
		}
		filtered = append(filtered, l)
	}
	ok(w, lastN(filtered, limit))
}

func (o *Orchestrator) handleStats(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	ok(w, lastN(o.store.ServerStats().List(), limit))
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func lastN[T any](items []T, n int) []T {
	if n >= len(items) {
		return items
	}
	return items[len(items)-n:]
}

// --- settings ---

func (o *Orchestrator) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	ok(w, *o.store.Settings())
}

func (o *Orchestrator) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	settings := *o.store.Settings()
	applySettingsPatch(&settings, patch)
	o.store.SetSettings(settings)
	ok(w, settings)
}

// applySettingsPatch does a partial update (spec.md §6: "PUT
// /api/settings (partial update)"), keyed by camelCase setting names
// (maxPlayers, reliableResendInterval, disconnectTimeout, ...). GET
// /api/settings reports the same settings under their Go field names
// (MaxPlayers, ReliableResendIntervalMs, DisconnectTimeoutMs, ...).
func applySettingsPatch(s *types.Settings, patch map[string]interface{}) {
	if v, ok := patch["maxPlayers"].(float64); ok {
		s.MaxPlayers = int(v)
	}
	if v, ok := patch["tickRate"].(float64); ok {
		s.TickRate = int(v)
	}
	if v, ok := patch["simulationSpeed"].(float64); ok {
		s.SimulationSpeed = v
	}
	if v, ok := patch["aoiRadius"].(float64); ok {
		s.AOIRadius = float32(v)
	}
	if v, ok := patch["aoiMaxEntities"].(float64); ok {
		s.AOIMaxEntities = int(v)
	}
	if v, ok := patch["sanityCheckFrequency"].(float64); ok {
		s.SanityCheckFrequency = int(v)
	}
	if v, ok := patch["reliableResendInterval"].(float64); ok {
		s.ReliableResendIntervalMs = int(v)
	}
	if v, ok := patch["maxReliableResends"].(float64); ok {
		s.MaxReliableResends = int(v)
	}
	if v, ok := patch["disconnectTimeout"].(float64); ok {
		s.DisconnectTimeoutMs = int(v)
	}
	if v, ok := patch["logLevel"].(string); ok {
		s.LogLevel = v
	}
}

// --- emergency stop ---

func (o *Orchestrator) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	o.logs.Info.Printf("server: emergency stop requested via control plane")
	if err := o.Shutdown(); err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}
	ok(w, map[string]string{"status": "stopped"})
}

// --- simulated players ---

type createSimPlayersRequest struct {
	Count  int    `json:"count" validate:"gt=0,lte=1000"`
	AreaID string `json:"areaId"`
}

func (o *Orchestrator) handleSimPlayersCreate(w http.ResponseWriter, r *http.Request) {
	var req createSimPlayersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}

	center := types.Vector3{}
	if req.AreaID != "" {
		if a, found := areaByID(o.game.Areas(), req.AreaID); found {
			center = a.Center
		}
	}

	created := make([]types.SimulatedPlayer, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		p := types.SimulatedPlayer{
			Username: fmt.Sprintf("sim-%d", i),
			Position: center,
			Rotation: types.IdentityQuaternion,
			AIState:  types.SimExploring,
		}
		id := o.game.AddSimulatedPlayer(p)
		p.ID = id
		created = append(created, p)
	}
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: created})
}

func (o *Orchestrator) handleSimPlayersClear(w http.ResponseWriter, r *http.Request) {
	n := o.game.ClearSimulatedPlayers()
	ok(w, map[string]int{"removed": n})
}

func areaByID(areas []types.AreaOfInterest, id string) (types.AreaOfInterest, bool) {
	for _, a := range areas {
		if a.ID == id {
			return a, true
		}
	}
	return types.AreaOfInterest{}, false
}
