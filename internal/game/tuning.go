package game

import "time"

// Simulation step. Everything time-based on the server is driven off this
// tick; handlers never sleep.
const (
	TickRate     = 30
	TickInterval = time.Second / TickRate
)

// Session liveness.
const (
	HeartbeatInterval = 5 * time.Second
	LivenessTimeout   = 15 * time.Second
	HandshakeTimeout  = 10 * time.Second
)

// Movement replication.
const (
	// MoveSendRate caps how often a client reports its own movement.
	MoveSendRate = 30

	// A sample is worth sending once position moved past PositionEpsilon
	// or yaw turned past YawEpsilon degrees.
	PositionEpsilon = 0.05
	YawEpsilon      = 1.0

	// Reconciliation thresholds against the server's authoritative echo:
	// errors above SnapThreshold adopt the server state outright, errors
	// above IgnoreThreshold blend halfway, anything smaller is left alone.
	SnapThreshold   = 3.0
	IgnoreThreshold = 0.1
	BlendFactor     = 0.5

	// Remote entities ease toward their target state exponentially,
	// frame-rate independent.
	InterpolationRate = 12.0
	RotationSlerpRate = 15.0

	// The server echoes each client its own authoritative sample at 1 Hz.
	SelfEchoEveryTicks = TickRate
)

// Player capsule (meters). Position is at the feet.
const (
	PlayerHeight = 1.8
	PlayerRadius = 0.4
	EyeHeight    = 1.62
	CrouchScale  = 0.7

	// Hit zones as fractions of current capsule height.
	headZone = 0.8
	limbZone = 0.45
)

// Movement speeds (m/s).
const (
	WalkSpeed    = 4.5
	SprintFactor = 1.4
	CrouchFactor = 0.55
)

// Health and death.
const (
	MaxHealth    = 100.0
	RespawnDelay = 5 * time.Second
)

// Combat validation.
const (
	// A claimed ranged origin may drift this far from the authoritative
	// position (latency slack) before the attack is treated as spoofed.
	OriginTolerance = 5.0

	// Attack directions must be unit length within this tolerance.
	DirectionTolerance = 0.01

	// Hard per-session cap on shots in any rolling second, regardless of
	// weapon fire rate.
	MacroShotCap = 12

	// Melee reach gets a small slack over catalog range; the victim must
	// be within this cone (dot of aim and to-target directions).
	MeleeReachSlack = 1.1
	MeleeFacingMin  = 0.5
)

// Spawn ring around the world origin.
const (
	SpawnRadius = 10.0
	SpawnPoints = 8
)
