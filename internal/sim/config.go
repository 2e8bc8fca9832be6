package sim

// Entity dimensions in world units. Boxes are centered on the entity
// position.
const (
	PlayerWidth  = 64.0
	PlayerHeight = 64.0
	LaserWidth   = 32.0
	LaserHeight  = 8.0
	EnemyWidth   = 64.0
	EnemyHeight  = 64.0
)

// SpeedTolerance is the slack applied when validating a client-asserted
// speed against the configured maximum.
const SpeedTolerance = 1.05

// Config holds every tunable the simulation depends on. One value per room;
// the same value drives server tick, client prediction, and replay so the
// three can never disagree.
type Config struct {
	TickRate        int     // physics ticks per second
	BroadcastEvery  int     // server ticks per state broadcast
	ClientSendEvery int     // client ticks per input transmit
	SpawnInterval   float64 // seconds between enemy spawns
	LaserLifetime   float64 // seconds a laser stays alive
	LaserSpeed      float64 // world units per second
	Accel           float64 // forward acceleration, units/s²
	Decel           float64 // brake / residual decay, units/s²
	MaxSpeed        float64 // speed cap, units/s
	TurnSpeed       float64 // radians per second
	WindowW         float64 // world bounds for clamping
	WindowH         float64
	WinScore        int // score that ends the session
	RoomSize        int // players needed to start a session
	MaxMinions      int // escorts attached on alternating spawns
}

// DefaultConfig returns the standard arena settings.
func DefaultConfig() Config {
	return Config{
		TickRate:        60,
		BroadcastEvery:  2, // 30Hz state broadcasts
		ClientSendEvery: 3, // 20Hz input transmits
		SpawnInterval:   1.0,
		LaserLifetime:   1.25,
		LaserSpeed:      900.0,
		Accel:           420.0,
		Decel:           300.0,
		MaxSpeed:        320.0,
		TurnSpeed:       4.2,
		WindowW:         1280.0,
		WindowH:         720.0,
		WinScore:        10,
		RoomSize:        2,
		MaxMinions:      2,
	}
}

// TickDt returns the fixed delta-time of one server tick in seconds.
func (c Config) TickDt() float64 {
	return 1.0 / float64(c.TickRate)
}
