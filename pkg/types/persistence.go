package types

// User is the account record behind a Player (spec.md §6's users.json).
// Authentication is a non-goal (spec.md §1); User exists purely so the
// record store has a durable identity to hang a username and client id
// off of under the trust-on-connect model.
type User struct {
	ID        int64
	Username  string
	ClientID  string
	CreatedAt int64 // epoch ms
}

// LogEntry backs GET /api/logs.
type LogEntry struct {
	ID        int64
	Level     string
	Message   string
	Timestamp int64 // epoch ms
}

// StatSample backs GET /api/stats.
type StatSample struct {
	ID             int64
	Timestamp      int64 // epoch ms
	PlayerCount    int
	NpcCount       int
	MissionCount   int
	TickDurationMs float64
}

// Settings is the single runtime-tunable record behind GET/PUT
// /api/settings (spec.md §6 defaults).
type Settings struct {
	MaxPlayers            int
	TickRate              int
	SimulationSpeed       float64
	AOIRadius             float32
	AOIMaxEntities        int
	SanityCheckFrequency  int
	ReliableResendIntervalMs int
	MaxReliableResends    int
	DisconnectTimeoutMs   int
	LogLevel              string
}

// DefaultSettings matches spec.md §6.
func DefaultSettings() Settings {
	return Settings{
		MaxPlayers:               2000,
		TickRate:                 20,
		SimulationSpeed:          10,
		AOIRadius:                5000,
		AOIMaxEntities:           400,
		SanityCheckFrequency:     10,
		ReliableResendIntervalMs: 1000,
		MaxReliableResends:       5,
		DisconnectTimeoutMs:      30000,
		LogLevel:                 "info",
	}
}
