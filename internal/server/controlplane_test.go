package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"stellarcore/pkg/types"
)

// newControlPlaneOrchestrator wires an Orchestrator without starting
// Run's schedulers or HTTP listener — the control plane only needs the
// wired components, not the live tick loop.
func newControlPlaneOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.UDPPort = 0
	cfg.HTTPPort = 0
	cfg.LogDir = t.TempDir()
	cfg.StoreBackend = "memory"

	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { o.transport.Close() })
	return o
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response body %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func TestControlPlaneStatus(t *testing.T) {
	o := newControlPlaneOrchestrator(t)
	h := o.controlPlaneHandler()

	rec, resp := doJSON(t, h, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
}

func TestControlPlaneCelestialCreateGetDelete(t *testing.T) {
	o := newControlPlaneOrchestrator(t)
	h := o.controlPlaneHandler()

	createReq := createCelestialRequest{
		Name: "Kepler Station", Type: types.BodyStation, Mass: 1, Radius: 10,
	}
	rec, resp := doJSON(t, h, http.MethodPost, "/api/celestial", createReq)
	if rec.Code != http.StatusCreated || !resp.Success {
		t.Fatalf("expected 201/success, got %d %+v", rec.Code, resp)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected object data, got %T", resp.Data)
	}
	idf, ok := data["ID"].(float64)
	if !ok {
		t.Fatalf("expected numeric ID field in %+v", data)
	}
	id := int(idf)

	rec, resp = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/celestial/%d", id), nil)
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected 200/success on get, got %d %+v", rec.Code, resp)
	}

	rec, resp = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/celestial/%d", id), nil)
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected 200/success on delete, got %d %+v", rec.Code, resp)
	}

	rec, _ = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/celestial/%d", id), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestControlPlaneCelestialCreateRejectsInvalidBody(t *testing.T) {
	o := newControlPlaneOrchestrator(t)
	h := o.controlPlaneHandler()

	rec, resp := doJSON(t, h, http.MethodPost, "/api/celestial", createCelestialRequest{Mass: 0, Radius: 0})
	if rec.Code != http.StatusBadRequest || resp.Success {
		t.Fatalf("expected 400/failure for an invalid body, got %d %+v", rec.Code, resp)
	}
}

func TestControlPlaneSettingsPartialUpdate(t *testing.T) {
	o := newControlPlaneOrchestrator(t)
	h := o.controlPlaneHandler()

	before := *o.store.Settings()

	rec, resp := doJSON(t, h, http.MethodPut, "/api/settings", map[string]interface{}{"maxPlayers": 42})
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected 200/success, got %d %+v", rec.Code, resp)
	}

	after := *o.store.Settings()
	if after.MaxPlayers != 42 {
		t.Fatalf("expected maxPlayers updated to 42, got %d", after.MaxPlayers)
	}
	if after.TickRate != before.TickRate {
		t.Fatalf("partial update must not disturb other fields: tickRate %d -> %d", before.TickRate, after.TickRate)
	}
}

func TestControlPlaneFleetCreateAndList(t *testing.T) {
	o := newControlPlaneOrchestrator(t)
	h := o.controlPlaneHandler()

	rec, resp := doJSON(t, h, http.MethodPost, "/api/npc/fleets", createFleetRequest{
		Type: types.NpcCivilian, Count: 3, Location: "near Sol", NearestCelestialBodyID: 1,
	})
	if rec.Code != http.StatusCreated || !resp.Success {
		t.Fatalf("expected 201/success, got %d %+v", rec.Code, resp)
	}

	rec, resp = doJSON(t, h, http.MethodGet, "/api/npc/fleets", nil)
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected 200/success on list, got %d %+v", rec.Code, resp)
	}
	fleets, ok := resp.Data.([]interface{})
	if !ok || len(fleets) != 1 {
		t.Fatalf("expected one fleet in listing, got %+v", resp.Data)
	}
	f, ok := fleets[0].(map[string]interface{})
	if !ok {
		t.Fatalf("expected fleet object, got %T", fleets[0])
	}
	if count, _ := f["ShipCount"].(float64); count != 3 {
		t.Fatalf("expected ShipCount=3, got %+v", f)
	}
}

func TestControlPlaneFleetCreateRejectsBadCount(t *testing.T) {
	o := newControlPlaneOrchestrator(t)
	h := o.controlPlaneHandler()

	rec, resp := doJSON(t, h, http.MethodPost, "/api/npc/fleets", map[string]interface{}{"type": "civilian", "count": 0})
	if rec.Code != http.StatusBadRequest || resp.Success {
		t.Fatalf("expected 400/failure for count=0, got %d %+v", rec.Code, resp)
	}
}

func TestControlPlaneLogsFilterAndLimit(t *testing.T) {
	o := newControlPlaneOrchestrator(t)
	h := o.controlPlaneHandler()

	logs := o.store.ServerLogs()
	for i := 0; i < 5; i++ {
		id := logs.NextID()
		level := "info"
		if i%2 == 0 {
			level = "error"
		}
		logs.Put(fmt.Sprintf("%d", id), types.LogEntry{ID: id, Level: level, Message: fmt.Sprintf("entry %d", i)})
	}

	rec, resp := doJSON(t, h, http.MethodGet, "/api/logs?level=error&limit=2", nil)
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected 200/success, got %d %+v", rec.Code, resp)
	}
	entries, ok := resp.Data.([]interface{})
	if !ok {
		t.Fatalf("expected array data, got %T", resp.Data)
	}
	if len(entries) != 2 {
		t.Fatalf("expected limit=2 to cap the error entries, got %d", len(entries))
	}
	for _, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok || entry["Level"] != "error" {
			t.Fatalf("expected only error-level entries, got %+v", e)
		}
	}
}

func TestControlPlaneEmergencyStop(t *testing.T) {
	o := newControlPlaneOrchestrator(t)
	h := o.controlPlaneHandler()

	rec, resp := doJSON(t, h, http.MethodPost, "/api/emergency-stop", nil)
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected 200/success, got %d %+v", rec.Code, resp)
	}

	// The control plane stays answerable after the stop so the operator
	// can confirm it took effect; a second stop must be a no-op, not a
	// crash.
	rec, resp = doJSON(t, h, http.MethodPost, "/api/emergency-stop", nil)
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected repeated stop to stay 200/success, got %d %+v", rec.Code, resp)
	}
	rec, resp = doJSON(t, h, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected status to answer after stop, got %d %+v", rec.Code, resp)
	}
}

func TestControlPlaneSimulatedPlayersCreateAndClear(t *testing.T) {
	o := newControlPlaneOrchestrator(t)
	h := o.controlPlaneHandler()

	rec, resp := doJSON(t, h, http.MethodPost, "/api/simulated-players", map[string]interface{}{"count": 3})
	if rec.Code != http.StatusCreated || !resp.Success {
		t.Fatalf("expected 201/success, got %d %+v", rec.Code, resp)
	}

	rec, resp = doJSON(t, h, http.MethodDelete, "/api/simulated-players", nil)
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected 200/success, got %d %+v", rec.Code, resp)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected object data, got %T", resp.Data)
	}
	if removed, _ := data["removed"].(float64); removed != 3 {
		t.Fatalf("expected removed=3, got %+v", data)
	}
}
