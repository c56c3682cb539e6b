package server

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"stellarcore/internal/celestial"
	"stellarcore/internal/game"
	"stellarcore/internal/mission"
	"stellarcore/internal/npc"
	"stellarcore/internal/spatial"
	"stellarcore/internal/store"
	"stellarcore/internal/transport"
	"stellarcore/internal/wire"
	"stellarcore/pkg/types"
)

// Orchestrator owns configuration, wires C1–C8 together, and runs the
// schedulers spec.md §4.9 calls for: main tick, celestial update,
// celestial broadcast, NPC broadcast, mission generation/update, sanity
// cleanup, and stats sampling. Grounded on the teacher's main.go boot
// sequence (setupLogging → initConfig → initDB → background goroutines
// → mux → ListenAndServe).
type Orchestrator struct {
	cfg Config

	store     store.Store
	transport *transport.Transport
	celestial *celestial.Simulator
	spatial   *spatial.Index
	fleets    *npc.FleetManager
	missions  *mission.Manager
	game      *game.Manager

	logs    *Loggers
	metrics *Metrics
	auth    Authenticator

	httpServer *http.Server
	startTime  time.Time
	rng        *rand.Rand

	// lastTickMicros is written by the simulation loop and read by the
	// stats scheduler.
	lastTickMicros atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New wires every component per cfg. A bind failure on either socket
// (spec.md §7) happens inside New (UDP) or Run (HTTP) and is returned
// as a plain error; New also returns an error when the log directory or
// the record store cannot be opened. The caller (cmd/server) exits on
// any of them.
func New(cfg Config) (*Orchestrator, error) {
	logs, err := setupLogging(cfg.LogDir)
	if err != nil {
		return nil, err
	}

	st, err := openStore(cfg, logs.Info)
	if err != nil {
		return nil, err
	}
	if err := st.LoadWorld(); err != nil {
		logs.Error.Printf("server: load_world: %v", err)
	}

	settings := *st.Settings()
	if settings == (types.Settings{}) {
		settings = types.DefaultSettings()
		st.SetSettings(settings)
	}

	cel := celestial.NewSimulator(settings.SimulationSpeed)
	for _, b := range st.CelestialBodies().List() {
		cel.AddBody(b)
	}
	if cel.BodyCount() == 0 {
		seedCelestialBodies(cel, st)
	}

	policy := spatial.PolicyLazy
	if cfg.AOIRadiusChangePolicy == string(spatial.PolicyReindex) {
		policy = spatial.PolicyReindex
	}
	sp := spatial.NewIndex(cfg.AOICellEdge, policy)
	for _, a := range st.AreasOfInterest().List() {
		sp.CreateArea(a)
	}

	fleets := npc.NewFleetManager()
	for _, f := range st.NpcFleets().List() {
		fleets.RegisterFleet(f)
	}

	missions := mission.NewManager(mission.DefaultConfig())

	tr, err := transport.New(transport.Config{
		Port:                 cfg.UDPPort,
		ResendInterval:       time.Duration(settings.ReliableResendIntervalMs) * time.Millisecond,
		MaxReliableResends:   settings.MaxReliableResends,
		DisconnectTimeout:    time.Duration(settings.DisconnectTimeoutMs) * time.Millisecond,
		RetransmitScanPeriod: 1 * time.Second,
		TimeoutScanPeriod:    10 * time.Second,
	}, logs.Info, logs.Error)
	if err != nil {
		return nil, err
	}

	gcfg := game.DefaultConfig()
	gcfg.TickRate = settings.TickRate
	gcfg.SanityCheckFrequency = settings.SanityCheckFrequency
	gcfg.AOICrossRadius = settings.AOIRadius

	bc := &transportBroadcaster{t: tr}
	mgr := game.NewManager(gcfg, st, cel, sp, fleets, missions, bc, logs.Info, logs.Error)
	for _, s := range st.NpcShips().List() {
		id := mgr.AddNpcShip(s)
		if s.FleetID != "" {
			fleets.AddShip(s.FleetID, id)
		}
	}

	o := &Orchestrator{
		cfg:       cfg,
		store:     st,
		transport: tr,
		celestial: cel,
		spatial:   sp,
		fleets:    fleets,
		missions:  missions,
		game:      mgr,
		logs:      logs,
		metrics:   NewMetrics(),
		auth:      TrustOnConnect{},
		startTime: time.Now(),
		rng:       rand.New(rand.NewSource(1)),
		stopCh:    make(chan struct{}),
	}
	o.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      o.controlPlaneHandler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return o, nil
}

func openStore(cfg Config, infoLog *log.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case "json":
		return store.NewJSONStore(cfg.StoreDir, infoLog)
	case "sqlite":
		return store.OpenSqliteStore(cfg.SqlitePath)
	default:
		return store.NewMemoryStore(), nil
	}
}

// seedCelestialBodies bootstraps a minimal system (one star, two
// planets) so the AOI/mission/NPC machinery has bodies to anchor to on
// a brand new world. Real deployments are expected to POST
// /api/celestial for anything beyond this.
func seedCelestialBodies(cel *celestial.Simulator, st store.Store) {
	sun := types.CelestialBody{Name: "Sol", Type: types.BodyStar, Mass: 1.989e30, Radius: 696340, Color: "#ffd27f"}
	sunID := cel.AddBody(sun)

	inner := types.CelestialBody{
		Name: "Terra", Type: types.BodyPlanet, ParentID: &sunID, Mass: 5.97e24, Radius: 6371, Color: "#4b8bd1",
		Orbit: types.Orbit{SemiMajor: 149_600_000_000, Eccentricity: 0.017, Period: 31_557_600},
	}
	cel.AddBody(inner)

	outer := types.CelestialBody{
		Name: "Pallas", Type: types.BodyPlanet, ParentID: &sunID, Mass: 6.4e23, Radius: 3389, Color: "#d1784b",
		Orbit: types.Orbit{SemiMajor: 227_900_000_000, Eccentricity: 0.093, Period: 59_355_000},
	}
	cel.AddBody(outer)

	for _, b := range cel.AllBodies() {
		st.CelestialBodies().Put(fmt.Sprintf("%d", b.ID), b)
	}
}

// transportBroadcaster adapts *transport.Transport to game.Broadcaster.
type transportBroadcaster struct{ t *transport.Transport }

func (b *transportBroadcaster) SendTo(clientID string, body wire.Body, reliable bool) error {
	return b.t.SendTo(clientID, body, reliable)
}

func (b *transportBroadcaster) Disconnect(clientID string, reason string) {
	b.t.DisconnectClient(clientID, transport.DisconnectReason(reason))
}

// Run starts the transport, the HTTP control plane, and every
// scheduler, blocking until ctx is cancelled (graceful shutdown,
// spec.md §5).
func (o *Orchestrator) Run(ctx context.Context) error {
	o.transport.Run()
	go o.simulationLoop(ctx)
	go o.scheduleCelestialUpdate(ctx)
	go o.scheduleCelestialBroadcast(ctx)
	go o.scheduleNpcBroadcast(ctx)
	go o.scheduleStats(ctx)

	o.logs.Info.Printf("server: listening udp :%d http :%d", o.cfg.UDPPort, o.cfg.HTTPPort)

	errCh := make(chan error, 1)
	go func() { errCh <- o.httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return o.Shutdown()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Shutdown implements spec.md §7's "Emergency stop" / §5's graceful
// shutdown: disconnect every client with server_shutdown, flush
// persistence, halt the schedulers, and leave the HTTP control plane up
// until the process is killed externally (SPEC_FULL.md).
func (o *Orchestrator) Shutdown() error {
	o.stopOnce.Do(func() {
		o.transport.DisconnectAll(transport.ReasonServerShutdown)
		if err := o.store.SaveWorld(); err != nil {
			o.logs.Error.Printf("server: save_world on shutdown: %v", err)
		}
		close(o.stopCh)
		o.transport.Close()
	})
	return nil
}

// simulationLoop is the single logical simulation thread (spec.md §5):
// it drains transport events, advances the tick on a fixed-rate ticker,
// and runs the mission generate/update cadences inline, so
// connect/disconnect/state-update handling, physics, and mission-driven
// ship mutation never run concurrently with each other.
func (o *Orchestrator) simulationLoop(ctx context.Context) {
	settings := *o.store.Settings()
	period := time.Second / time.Duration(settings.TickRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	o.missions.Bootstrap(time.Now().UnixMilli(), o.game, o.rng)

	lastTick := time.Now()
	lastMissionGen := time.Now()
	lastMissionUpd := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case ev := <-o.transport.Events():
			o.handleEvent(ev)
		case now := <-ticker.C:
			dt := now.Sub(lastTick).Seconds()
			lastTick = now
			start := time.Now()
			o.game.Tick(dt, now.UnixMilli(), o.rng)
			if now.Sub(lastMissionUpd) >= 5*time.Second {
				lastMissionUpd = now
				o.missions.Update(now.UnixMilli(), o.game, o.game)
			}
			if now.Sub(lastMissionGen) >= 60*time.Second {
				lastMissionGen = now
				o.missions.Generate(now.UnixMilli(), o.game, o.rng)
			}
			elapsed := time.Since(start)
			o.lastTickMicros.Store(elapsed.Microseconds())
			o.metrics.ObserveTick(elapsed.Seconds())
			if o.logs.Tick != nil {
				o.logs.Tick.Printf("tick dt=%.4f dur=%.4f", dt, elapsed.Seconds())
			}
		}
	}
}

func (o *Orchestrator) handleEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnect:
		o.handleConnect(ev)
	case transport.EventDisconnect:
		o.handleDisconnect(ev)
	case transport.EventMessage:
		if upd, ok := ev.Body.(wire.ClientStateUpdate); ok {
			o.game.ApplyInput(ev.ClientID, upd, time.Now().UnixMilli())
		}
	case transport.EventError:
		if o.logs.Error != nil && ev.Err != nil {
			o.logs.Error.Printf("server: transport error: %v", ev.Err)
		}
	}
}

// handleConnect implements spec.md §4.9: reject-if-full,
// reject-if-incompatible-version, create/find user, insert Player at
// origin with identity rotation, send SERVER_ACCEPT reliably, push
// initial celestial and AOI updates.
func (o *Orchestrator) handleConnect(ev transport.Event) {
	settings := *o.store.Settings()

	if o.game.PlayerCount() >= settings.MaxPlayers {
		o.transport.DisconnectClient(ev.ClientID, rejectReasonFor(false))
		return
	}
	if !versionCompatible(o.cfg.Version, ev.Version) {
		o.transport.DisconnectClient(ev.ClientID, rejectReasonFor(true))
		return
	}
	if err := o.auth.Authenticate(ev.Username, ev.Version); err != nil {
		o.logs.Info.Printf("server: rejecting connect from %s: %v", ev.ClientID, err)
		o.transport.DisconnectClient(ev.ClientID, transport.ReasonServerFull)
		return
	}

	if _, ok := o.store.Users().Get(ev.ClientID); !ok {
		uid := o.store.Users().NextID()
		o.store.Users().Put(ev.ClientID, types.User{
			ID: uid, Username: ev.Username, ClientID: ev.ClientID, CreatedAt: time.Now().UnixMilli(),
		})
	}

	p := o.game.AddPlayer(ev.ClientID, ev.Username)

	if err := o.transport.SendTo(ev.ClientID, wire.ServerAccept{
		AssignedClientID: ev.ClientID,
		ServerTime:       uint64(time.Now().UnixMilli()),
		InitialPosition:  p.Position,
		InitialVelocity:  p.Velocity,
		InitialRotation:  p.Rotation,
	}, true); err != nil {
		o.logs.Error.Printf("server: send SERVER_ACCEPT to %s: %v", ev.ClientID, err)
		return
	}

	o.transport.SendTo(ev.ClientID, o.game.BuildCelestialUpdate(), false)
	o.transport.SendTo(ev.ClientID, o.game.BuildAoiUpdate(ev.ClientID), false)
	o.logs.Info.Printf("server: player %s (%s) connected", ev.ClientID, ev.Username)
}

// handleDisconnect implements spec.md §4.9: mark is_connected=false,
// persist, remove_player.
func (o *Orchestrator) handleDisconnect(ev transport.Event) {
	if p, ok := o.game.Player(ev.ClientID); ok {
		p.IsConnected = false
		o.store.Players().Put(fmt.Sprintf("%d", p.ID), p)
	}
	o.game.RemovePlayer(ev.ClientID)
	o.logs.Info.Printf("server: client %s disconnected (%s)", ev.ClientID, ev.Reason)
}

func (o *Orchestrator) scheduleCelestialUpdate(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			// Celestial position advance happens every tick inside
			// game.Tick; this scheduler only exists to persist the
			// body table at a coarser cadence than every 50ms tick.
			for _, b := range o.celestial.AllBodies() {
				o.store.CelestialBodies().Put(fmt.Sprintf("%d", b.ID), b)
			}
		}
	}
}

func (o *Orchestrator) scheduleCelestialBroadcast(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			msg := o.game.BuildCelestialUpdate()
			for _, p := range o.game.Players() {
				o.transport.SendTo(p.ClientID, msg, false)
			}
		}
	}
}

func (o *Orchestrator) scheduleNpcBroadcast(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			for _, p := range o.game.Players() {
				o.transport.SendTo(p.ClientID, o.game.BuildNpcUpdate(p.ClientID), false)
			}
		}
	}
}

func (o *Orchestrator) scheduleStats(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			areas := o.game.Areas()
			o.metrics.ObserveAreas(areas)
			o.metrics.ObserveCounts(o.game.PlayerCount(), len(o.game.NpcShips()), missionCountsByStatus(o.missions))

			sample := types.StatSample{
				ID:             o.store.ServerStats().NextID(),
				Timestamp:      time.Now().UnixMilli(),
				PlayerCount:    o.game.PlayerCount(),
				NpcCount:       len(o.game.NpcShips()),
				MissionCount:   o.missions.Count(),
				TickDurationMs: float64(o.lastTickMicros.Load()) / 1000,
			}
			o.store.ServerStats().Put(fmt.Sprintf("%d", sample.ID), sample)
		}
	}
}

func missionCountsByStatus(m *mission.Manager) map[string]int {
	return map[string]int{
		string(types.MissionActive):    len(m.Active()),
		string(types.MissionCompleted): len(m.Completed()),
		string(types.MissionFailed):    len(m.Failed()),
	}
}
