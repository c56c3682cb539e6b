package types

// AIState is an NPC's (or simulated player's) behavior state. A closed
// enum rather than a string keeps the per-tick dispatch in internal/npc
// an exhaustive switch.
type AIState string

const (
	AIIdle                AIState = "IDLE"
	AIPatrolling          AIState = "PATROLLING"
	AIAttacking           AIState = "ATTACKING"
	AIFleeing             AIState = "FLEEING"
	AIMining              AIState = "MINING"
	AIDocking             AIState = "DOCKING"
	AITrading             AIState = "TRADING"
	AIEscorting           AIState = "ESCORTING"
	AIWaypointFollowing   AIState = "WAYPOINT_FOLLOWING"
	AIFormationKeeping    AIState = "FORMATION_KEEPING"
	AIObstacleAvoidance   AIState = "OBSTACLE_AVOIDANCE"
)

// SimAIState is the coarser state machine §4.7 assigns to simulated
// players. internal/game maps these onto the NPC engine's AIState so
// both run through the same Step function (SPEC_FULL.md, "Simulated-
// player/NPC AI code sharing").
type SimAIState string

const (
	SimExploring SimAIState = "exploring"
	SimOrbiting  SimAIState = "orbiting"
	SimTraveling SimAIState = "traveling"
	SimMining    SimAIState = "mining"
	SimCombat    SimAIState = "combat"
)

type NavState string

const (
	NavNone        NavState = "none"
	NavPathfinding NavState = "pathfinding"
	NavWaypoint    NavState = "waypoint"
	NavFormation   NavState = "formation"
	NavMission     NavState = "mission"
)

type AvoidanceState string

const (
	AvoidNone       AvoidanceState = "none"
	AvoidActive     AvoidanceState = "active"
	AvoidRecovering AvoidanceState = "recovering"
)

type NpcType string

const (
	NpcEnemy     NpcType = "enemy"
	NpcTransport NpcType = "transport"
	NpcCivilian  NpcType = "civilian"
	NpcMining    NpcType = "mining"
)

type NpcStatus string

const (
	StatusHostile  NpcStatus = "hostile"
	StatusEnRoute  NpcStatus = "en-route"
	StatusPassive  NpcStatus = "passive"
	StatusWorking  NpcStatus = "working"
)

// NetEndpoint is a player's last-known UDP return address.
type NetEndpoint struct {
	Address string
	Port    int
}

// Player is the canonical record for a connected human (spec.md §3).
type Player struct {
	ID            int64
	ClientID      string
	Username      string
	Position      Vector3
	Velocity      Vector3
	Rotation      Quaternion
	IsConnected   bool
	LastUpdate    int64 // epoch ms
	Endpoint      NetEndpoint
	NearestBodyID uint32
}

// SimulatedPlayer has the same kinematic shape as Player plus an AI
// state; it never carries a live network endpoint.
type SimulatedPlayer struct {
	ID            int64
	Username      string
	Position      Vector3
	Velocity      Vector3
	Rotation      Quaternion
	LastUpdate    int64
	NearestBodyID uint32
	AIState       SimAIState
	TargetBodyID  *uint32
}

// Waypoint is a target point with an arrival radius and optional speed
// cap and dwell time.
type Waypoint struct {
	Position Vector3
	Radius   float32
	MaxSpeed *float32
	WaitTime *float32
	Optional bool
}

// NpcShip is a per-ship record (spec.md §3).
type NpcShip struct {
	ID       int64
	FleetID  string
	TemplateID *string
	Type     NpcType
	Status   NpcStatus

	Position Vector3
	Velocity Vector3
	Rotation Quaternion

	AIState        AIState
	NavState       NavState
	AvoidanceState AvoidanceState

	TargetID      *int64
	NearestBodyID *uint32

	Waypoints      []Waypoint
	WaypointsTotal int // length of the list as assigned, for completion tracking
	FormationSlot  *int

	PathCompletionPct float32

	Health float64 // fraction-of-max, used by flee_threshold comparisons
}

// NpcFleet is a named group of NPCs sharing an objective and optional
// formation (spec.md §3, GLOSSARY).
type NpcFleet struct {
	FleetID         string
	Type            NpcType
	Status          NpcStatus
	ShipCount       int
	LocationLabel   string
	NearestBodyID   uint32
	AssignedMission *string
}

// ShipTemplate is the named behavioral parameter bundle consumed by the
// NPC engine (spec.md §4.6 table).
type ShipTemplate struct {
	Name string
	Type NpcType

	MaxSpeed                  float32
	MaxAcceleration           float32
	TurnRate                  float32
	DetectionRange            float32
	AttackRange               float32
	FleeThreshold             float64
	WaypointArrivalDistance   float32
	ObstacleAvoidanceDistance float32
	FormationKeepingTolerance float32
	PathfindingUpdateInterval int64 // ms
	GravityStrength           float32
}

// DefaultTemplate returns the built-in parameter bundle for a type when
// an NPC has no bound template.
func DefaultTemplate(t NpcType) ShipTemplate {
	base := ShipTemplate{
		Type:                      t,
		MaxSpeed:                  50,
		MaxAcceleration:           20,
		TurnRate:                  2,
		DetectionRange:            500,
		AttackRange:               150,
		FleeThreshold:             0.25,
		WaypointArrivalDistance:   50,
		ObstacleAvoidanceDistance: 200,
		FormationKeepingTolerance: 25,
		PathfindingUpdateInterval: 2000,
		GravityStrength:           20.0,
	}
	switch t {
	case NpcEnemy:
		base.MaxSpeed, base.MaxAcceleration, base.AttackRange = 80, 30, 250
	case NpcTransport:
		base.MaxSpeed, base.MaxAcceleration = 40, 10
	case NpcCivilian:
		base.MaxSpeed, base.MaxAcceleration = 30, 8
	case NpcMining:
		base.MaxSpeed, base.MaxAcceleration = 20, 6
	}
	return base
}

type CelestialType string

const (
	BodyStar     CelestialType = "star"
	BodyPlanet   CelestialType = "planet"
	BodyMoon     CelestialType = "moon"
	BodyAsteroid CelestialType = "asteroid"
	BodyStation  CelestialType = "station"
)

// Orbit holds the Keplerian parameters for a non-root body.
type Orbit struct {
	SemiMajor   float64 // meters
	Eccentricity float64
	Inclination float64 // radians
	Period      float64 // seconds
	Phase       float64 // radians
}

// CelestialBody is a star/planet/moon/asteroid/station (spec.md §3).
type CelestialBody struct {
	ID       uint32
	Name     string
	Type     CelestialType
	ParentID *uint32
	Mass     float64
	Radius   float32
	Orbit    Orbit
	Color    string

	CachedPosition Vector3
	CachedVelocity Vector3
	OrbitProgress  float64 // [0,1)
}

// AreaStats tracks an AOI's live occupancy.
type AreaStats struct {
	PlayerCount int
	NpcCount    int
	Load        float64
	Latency     float64
}

// AreaOfInterest is a named spherical region (spec.md §3, §4.5).
type AreaOfInterest struct {
	ID            string
	Name          string
	Center        Vector3
	Radius        float32
	CapacityLimit int
	Stats         AreaStats
}

type MissionType string

const (
	MissionCombat      MissionType = "COMBAT"
	MissionTrade       MissionType = "TRADE"
	MissionDelivery    MissionType = "DELIVERY"
	MissionMining      MissionType = "MINING"
	MissionEscort      MissionType = "ESCORT"
	MissionPatrol      MissionType = "PATROL"
	MissionRescue      MissionType = "RESCUE"
	MissionExploration MissionType = "EXPLORATION"
)

type MissionStatus string

const (
	MissionActive    MissionStatus = "active"
	MissionCompleted MissionStatus = "completed"
	MissionFailed    MissionStatus = "failed"
)

// Mission is a procedurally generated objective tracked by the mission
// manager (spec.md §3, §4.8).
type Mission struct {
	MissionID      string
	Name           string
	Description    string
	Type           MissionType
	Status         MissionStatus
	Reward         int
	Difficulty     int // 1..5
	StartBodyID    uint32
	EndBodyID      uint32
	AssignedFleet  *string
	ProgressValue  float64
	ProgressTarget float64
	StartTime      int64 // epoch ms
	ExpiryTime     int64 // epoch ms
	CompleteTime   *int64
	FailureReason  string
}
