package protocol

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"laserarena/internal/sim"
)

// Kind discriminates wire messages. Values are part of the wire format and
// must not be renumbered.
type Kind int

// Client -> Server message kinds
const (
	KindPlayerUpdate Kind = 1 // predicted state + the input that produced it
	KindPlayerFired  Kind = 2
	KindJoin         Kind = 3
	KindLeave        Kind = 4
)

// Server -> Client message kinds
const (
	KindWelcome        Kind = 10
	KindRoomState      Kind = 11
	KindUpdateRemote   Kind = 12
	KindRemoteFired    Kind = 13
	KindEnemySpawn     Kind = 14
	KindEnemyClone     Kind = 15
	KindEnemyDefeated  Kind = 16
	KindPlayerDefeated Kind = 17
	KindGameOver       Kind = 18
	KindDisconnect     Kind = 19
)

// Known reports whether k is a valid wire kind.
func (k Kind) Known() bool {
	switch k {
	case KindPlayerUpdate, KindPlayerFired, KindJoin, KindLeave,
		KindWelcome, KindRoomState, KindUpdateRemote, KindRemoteFired,
		KindEnemySpawn, KindEnemyClone, KindEnemyDefeated,
		KindPlayerDefeated, KindGameOver, KindDisconnect:
		return true
	}
	return false
}

// ServerSeq is the sequence echo used when an update was not computed from
// any client input.
const ServerSeq int64 = -1

// Envelope wraps every wire message with its kind and UTC send time.
// Data holds the kind-specific payload still in msgpack form so the
// pipeline can validate the kind before committing to a full decode.
type Envelope struct {
	Kind   Kind               `msgpack:"k"`
	SentAt time.Time          `msgpack:"ts"`
	Data   msgpack.RawMessage `msgpack:"d"`
}

// PlayerUpdateMsg is sent by the client at its send rate: the newest input
// sample plus the state the client predicted from it.
type PlayerUpdateMsg struct {
	Seq   int64          `msgpack:"q"`
	Input sim.InputFlags `msgpack:"i"`
	Dt    float64        `msgpack:"dt"`
	X     float64        `msgpack:"x"`
	Y     float64        `msgpack:"y"`
	Rot   float64        `msgpack:"r"`
	Speed float64        `msgpack:"s"`
}

// PlayerFiredMsg announces a locally spawned laser.
type PlayerFiredMsg struct {
	LaserID  string  `msgpack:"l"`
	X        float64 `msgpack:"x"`
	Y        float64 `msgpack:"y"`
	Rot      float64 `msgpack:"r"`
	GameTime float64 `msgpack:"t"`
}

// JoinMsg requests entry into the waiting room. Token is empty for guests.
type JoinMsg struct {
	Name  string `msgpack:"n"`
	Token string `msgpack:"tk,omitempty"`
}

// WelcomeMsg confirms a join and assigns the player id and colour.
type WelcomeMsg struct {
	PlayerID string `msgpack:"id"`
	RoomID   string `msgpack:"rm"`
	Colour   string `msgpack:"c"`
}

// RoomStatePlayer is one entry in a RoomStateMsg.
type RoomStatePlayer struct {
	PlayerID string `msgpack:"id"`
	Name     string `msgpack:"n"`
	Colour   string `msgpack:"c"`
}

// RoomStateMsg lists the waiting room roster; Started flips when the room
// transitions into session.
type RoomStateMsg struct {
	Players []RoomStatePlayer `msgpack:"p"`
	Started bool              `msgpack:"st"`
}

// UpdateRemoteMsg is the authoritative per-player snapshot. Seq is the last
// input sequence the server processed for that player, or ServerSeq.
type UpdateRemoteMsg struct {
	PlayerID string         `msgpack:"id"`
	Seq      int64          `msgpack:"q"`
	X        float64        `msgpack:"x"`
	Y        float64        `msgpack:"y"`
	Rot      float64        `msgpack:"r"`
	Speed    float64        `msgpack:"s"`
	Input    sim.InputFlags `msgpack:"i"`
}

// RemoteFiredMsg relays another player's laser spawn.
type RemoteFiredMsg struct {
	PlayerID string  `msgpack:"id"`
	LaserID  string  `msgpack:"l"`
	X        float64 `msgpack:"x"`
	Y        float64 `msgpack:"y"`
	Rot      float64 `msgpack:"r"`
}

// MinionSpawn describes one escort attached to a spawned enemy. DeepClone
// tells the client whether the escort duplicated the parent's sprite
// reference or shares it.
type MinionSpawn struct {
	EnemyID   string  `msgpack:"id"`
	DX        float64 `msgpack:"dx"`
	DY        float64 `msgpack:"dy"`
	DeepClone bool    `msgpack:"dc"`
}

// EnemySpawnMsg announces a server-spawned enemy and any minions.
type EnemySpawnMsg struct {
	EnemyID string        `msgpack:"id"`
	X       float64       `msgpack:"x"`
	Y       float64       `msgpack:"y"`
	Kind    int           `msgpack:"e"`
	Value   int           `msgpack:"v"`
	Minions []MinionSpawn `msgpack:"m,omitempty"`
}

// EnemyCloneMsg announces a clone derived from an existing enemy.
type EnemyCloneMsg struct {
	ParentID  string `msgpack:"p"`
	EnemyID   string `msgpack:"id"`
	DeepClone bool   `msgpack:"dc"`
}

// EnemyDefeatedMsg reports a laser destroying an enemy.
type EnemyDefeatedMsg struct {
	LaserID    string `msgpack:"l"`
	EnemyID    string `msgpack:"e"`
	AttackerID string `msgpack:"a"`
	NewScore   int    `msgpack:"sc"`
}

// PlayerDefeatedMsg reports a laser defeating a player.
type PlayerDefeatedMsg struct {
	LaserID  string `msgpack:"l"`
	VictimID string `msgpack:"v"`
	NewScore int    `msgpack:"sc"`
}

// GameOverMsg is the final leaderboard, index-aligned across the slices.
type GameOverMsg struct {
	Names   []string `msgpack:"n"`
	Scores  []int    `msgpack:"s"`
	Colours []string `msgpack:"c"`
}

// DisconnectMsg tells the peer the server is dropping the connection.
type DisconnectMsg struct {
	Reason string `msgpack:"r"`
}
