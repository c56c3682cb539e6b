package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stellarcore/pkg/types"
)

// Metrics wraps a dedicated prometheus.Registry, grounded on the pack's
// luxfi-consensus/metrics/metrics.go shape (a thin struct over a
// Registerer) rather than the global promauto registry, so the
// orchestrator can stand up more than one in tests without collisions.
type Metrics struct {
	registry *prometheus.Registry

	tickDuration prometheus.Histogram
	aoiLoad      *prometheus.GaugeVec
	aoiLatency   *prometheus.GaugeVec
	playerCount  prometheus.Gauge
	npcCount     prometheus.Gauge
	missionCount *prometheus.GaugeVec
}

// NewMetrics registers every collector StellarCore exposes at
// /metrics (spec.md's DOMAIN STACK ledger: tick-duration histogram, AOI
// load/latency gauges, player/NPC/mission counts).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stellarcore",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock time spent in one simulation tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		aoiLoad: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "stellarcore",
			Name:      "aoi_load",
			Help:      "Fraction of the area's capacity limit occupied, per area.",
		}, []string{"area_id"}),
		aoiLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "stellarcore",
			Name:      "aoi_latency_seconds",
			Help:      "Rolling average broadcast latency, per area.",
		}, []string{"area_id"}),
		playerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stellarcore",
			Name:      "players_connected",
			Help:      "Currently connected players.",
		}),
		npcCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stellarcore",
			Name:      "npc_ships",
			Help:      "Tracked NPC ships.",
		}),
		missionCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "stellarcore",
			Name:      "missions",
			Help:      "Mission count by status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.tickDuration, m.aoiLoad, m.aoiLatency, m.playerCount, m.npcCount, m.missionCount)
	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTick records one tick's duration in seconds.
func (m *Metrics) ObserveTick(seconds float64) { m.tickDuration.Observe(seconds) }

// ObserveAreas refreshes the per-area AOI gauges from a stats snapshot.
func (m *Metrics) ObserveAreas(areas []types.AreaOfInterest) {
	for _, a := range areas {
		load := 0.0
		if a.CapacityLimit > 0 {
			load = float64(a.Stats.PlayerCount+a.Stats.NpcCount) / float64(a.CapacityLimit)
		}
		m.aoiLoad.WithLabelValues(a.ID).Set(load)
		m.aoiLatency.WithLabelValues(a.ID).Set(a.Stats.Latency)
	}
}

// ObserveCounts refreshes player/NPC/mission gauges.
func (m *Metrics) ObserveCounts(players, npcs int, missionsByStatus map[string]int) {
	m.playerCount.Set(float64(players))
	m.npcCount.Set(float64(npcs))
	for status, n := range missionsByStatus {
		m.missionCount.WithLabelValues(status).Set(float64(n))
	}
}
