package server

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"laserarena/internal/protocol"
	"laserarena/internal/replay"
	"laserarena/internal/sim"
)

// RoomPhase is the room lifecycle state machine.
type RoomPhase int

const (
	PhaseWaiting     RoomPhase = 0 // filling up, no simulation
	PhaseInSession   RoomPhase = 1 // tick loop running
	PhaseLeaderboard RoomPhase = 2 // terminal, final scores sent
)

// Broadcaster delivers one encoded message to a client without blocking.
type Broadcaster interface {
	Send(kind protocol.Kind, payload interface{})
}

// colourPalette is cycled in join order.
var colourPalette = []string{"#e6394a", "#3984e6", "#39e65c", "#e6d239", "#b339e6", "#39dce6"}

// maxLasersPerPlayer caps how many live lasers one player may own.
const maxLasersPerPlayer = 12

type roomPlayer struct {
	ID        string
	Name      string
	Colour    string
	State     sim.PlayerState
	Score     int
	LastSeq   int64 // last processed input sequence, protocol.ServerSeq before any
	LastInput sim.InputFlags
	Lasers    *sim.LaserManager
}

// Room is one game instance: it owns the canonical player states, every
// per-player laser manager, one shared enemy manager, and the scores. The
// tick goroutine is the only mutator of simulation state; connection
// goroutines reach in solely through the mutex-guarded pending-input slots.
type Room struct {
	ID  string
	cfg sim.Config

	mu         sync.RWMutex
	phase      RoomPhase
	players    map[string]*roomPlayer
	order      []string // join order, fixes collision iteration order
	clients    map[string]Broadcaster
	pending    map[string]sim.InputSample // single slot per player, last write wins
	hasPending map[string]bool
	enemies    *sim.EnemyManager
	spawnTimer float64
	tick       uint64
	stopped    bool
	stop       chan struct{}
	startedAt  time.Time

	rec        *replay.Writer
	db         *DB
	onComplete func(*Room)
}

// NewRoom creates a waiting room. rec and db may be nil; onComplete fires
// once after the leaderboard is sent.
func NewRoom(id string, cfg sim.Config, db *DB, rec *replay.Writer, onComplete func(*Room)) *Room {
	return &Room{
		ID:         id,
		cfg:        cfg,
		phase:      PhaseWaiting,
		players:    make(map[string]*roomPlayer),
		clients:    make(map[string]Broadcaster),
		pending:    make(map[string]sim.InputSample),
		hasPending: make(map[string]bool),
		enemies:    sim.NewEnemyManager(cfg, rand.New(rand.NewSource(time.Now().UnixNano())), nil),
		stop:       make(chan struct{}),
		rec:        rec,
		db:         db,
		onComplete: onComplete,
	}
}

// AddPlayer registers a player while the room is waiting. Returns nil once
// the room is full or already in session.
func (r *Room) AddPlayer(name string, client Broadcaster) *roomPlayer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseWaiting || len(r.players) >= r.cfg.RoomSize {
		return nil
	}

	idx := len(r.players)
	p := &roomPlayer{
		ID:      sim.GenerateID(4),
		Name:    name,
		Colour:  colourPalette[idx%len(colourPalette)],
		LastSeq: protocol.ServerSeq,
		State: sim.PlayerState{
			X: r.cfg.WindowW * 0.15,
			Y: r.cfg.WindowH * (float64(idx) + 1) / (float64(r.cfg.RoomSize) + 1),
		},
	}
	p.Lasers = sim.NewLaserManager(r.cfg, nil)
	r.players[p.ID] = p
	r.order = append(r.order, p.ID)
	r.clients[p.ID] = client

	r.broadcastRoster()
	if len(r.players) == r.cfg.RoomSize {
		r.startLocked()
	}
	return p
}

// RemovePlayer drops a player and their client. Safe to call twice.
func (r *Room) RemovePlayer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[id]; !ok {
		return
	}
	delete(r.players, id)
	delete(r.clients, id)
	delete(r.pending, id)
	delete(r.hasPending, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.phase == PhaseWaiting {
		r.broadcastRoster()
	}
	if len(r.players) == 0 {
		r.finishLocked(nil)
	}
}

// HandleInput validates a client-asserted update at the edge and, when it
// passes, overwrites that player's pending slot. A malformed or implausible
// packet is dropped; the connection stays up.
func (r *Room) HandleInput(playerID string, msg protocol.PlayerUpdateMsg) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok || r.phase != PhaseInSession {
		return
	}
	if reason := validateUpdate(r.cfg, msg, p.LastSeq); reason != "" {
		log.Printf("room %s: dropped update from %s: %s", r.ID, playerID, reason)
		return
	}
	r.pending[playerID] = sim.InputSample{Seq: msg.Seq, Input: msg.Input, Dt: msg.Dt}
	r.hasPending[playerID] = true
}

// HandleFired spawns a laser for the firing player and relays the shot to
// everyone else. The client names the laser so both sides agree on the id.
func (r *Room) HandleFired(playerID string, msg protocol.PlayerFiredMsg) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok || r.phase != PhaseInSession {
		return
	}
	if reason := validateFired(r.cfg, msg, p.State); reason != "" {
		log.Printf("room %s: dropped fire from %s: %s", r.ID, playerID, reason)
		return
	}
	if p.Lasers.Count() >= maxLasersPerPlayer {
		return
	}
	p.Lasers.Spawn(msg.LaserID, playerID, msg.X, msg.Y, msg.Rot)

	relay := protocol.RemoteFiredMsg{
		PlayerID: playerID,
		LaserID:  msg.LaserID,
		X:        msg.X,
		Y:        msg.Y,
		Rot:      msg.Rot,
	}
	for id, c := range r.clients {
		if id != playerID {
			c.Send(protocol.KindRemoteFired, relay)
		}
	}
	r.record("player_fired", relay)
}

// Phase returns the current lifecycle phase.
func (r *Room) Phase() RoomPhase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase
}

// PlayerCount returns the number of joined players.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// Scores returns a player-id to score snapshot for the console interface.
func (r *Room) Scores() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.players))
	for id, p := range r.players {
		out[id] = p.Score
	}
	return out
}

// startLocked flips the room into session. The tick loop is already
// running; update starts doing work on its next fire. Callers must hold
// the mutex.
func (r *Room) startLocked() {
	r.phase = PhaseInSession
	r.startedAt = time.Now()
	r.broadcastRoster()
	log.Printf("room %s: session started with %d players", r.ID, len(r.players))
}

// Run drives the tick loop until the room finishes. The manager launches
// it in its own goroutine when the room is created.
func (r *Room) Run() {
	ticker := time.NewTicker(time.Second / time.Duration(r.cfg.TickRate))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.update()
		case <-r.stop:
			return
		}
	}
}

// update runs one authoritative tick.
func (r *Room) update() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseInSession {
		return
	}
	dt := r.cfg.TickDt()
	r.tick++

	r.applyPlayerInput(dt)
	r.updateEnemies(dt)
	r.checkCollisions()
	if r.tick%uint64(r.cfg.BroadcastEvery) == 0 {
		r.broadcastState()
	}
	r.checkGameOver()
}

// applyPlayerInput consumes each pending slot: one input, one integration.
// A player with no buffered input this tick only decays.
func (r *Room) applyPlayerInput(dt float64) {
	for _, id := range r.order {
		p := r.players[id]
		if r.hasPending[id] {
			s := r.pending[id]
			p.State = sim.Step(p.State, s, r.cfg)
			p.LastSeq = s.Seq
			p.LastInput = s.Input
			r.hasPending[id] = false
		} else {
			p.State = sim.Step(p.State, sim.InputSample{Dt: dt}, r.cfg)
		}
		p.Lasers.Tick(dt)
	}
}

// updateEnemies advances the spawn timer and every enemy strategy.
func (r *Room) updateEnemies(dt float64) {
	r.spawnTimer += dt
	if r.spawnTimer >= r.cfg.SpawnInterval {
		r.spawnTimer -= r.cfg.SpawnInterval
		e := r.enemies.Spawn()

		spawn := protocol.EnemySpawnMsg{
			EnemyID: e.ID,
			X:       e.X,
			Y:       e.Y,
			Kind:    int(e.Kind),
			Value:   e.Value,
		}
		for _, m := range e.Minions {
			spawn.Minions = append(spawn.Minions, protocol.MinionSpawn{
				EnemyID:   m.ID,
				DX:        m.X - e.X,
				DY:        m.Y - e.Y,
				DeepClone: m.DeepCloned(),
			})
		}
		r.broadcast(protocol.KindEnemySpawn, spawn)
		for _, m := range e.Minions {
			r.broadcast(protocol.KindEnemyClone, protocol.EnemyCloneMsg{
				ParentID:  e.ID,
				EnemyID:   m.ID,
				DeepClone: m.DeepCloned(),
			})
		}
		r.record("enemy_spawn", spawn)
	}
	r.enemies.Tick(dt)
}

// checkCollisions runs the detector once and applies every consequence:
// consume the laser, deactivate the victim, adjust scores, announce.
func (r *Room) checkCollisions() {
	playerBoxes := make([]sim.PlayerBox, 0, len(r.order))
	var lasers []*sim.Laser
	for _, id := range r.order {
		p := r.players[id]
		playerBoxes = append(playerBoxes, sim.PlayerBox{ID: id, Box: p.State.Box()})
		lasers = append(lasers, p.Lasers.Active()...)
	}

	events := sim.DetectCollisions(lasers, playerBoxes, r.enemies.Active())
	for _, ev := range events {
		attacker, ok := r.players[ev.AttackerID]
		if !ok {
			continue // attacker disconnected mid-tick
		}
		attacker.Lasers.Deactivate(ev.LaserID)

		switch ev.Kind {
		case sim.LaserToEnemy:
			e := r.enemies.Find(ev.EnemyID)
			if e == nil || !e.Damage(1) {
				continue
			}
			attacker.Score += e.Value
			msg := protocol.EnemyDefeatedMsg{
				LaserID:    ev.LaserID,
				EnemyID:    ev.EnemyID,
				AttackerID: ev.AttackerID,
				NewScore:   attacker.Score,
			}
			r.broadcast(protocol.KindEnemyDefeated, msg)
			r.record("enemy_defeated", msg)

		case sim.LaserToPlayer:
			victim, ok := r.players[ev.VictimID]
			if !ok {
				continue
			}
			victim.Score--
			if victim.Score < 0 {
				victim.Score = 0
			}
			// Knock the victim back to a spawn point. The new position is
			// server-initiated, not computed from any client input, so it
			// goes out immediately stamped with ServerSeq: the victim's
			// predictor adopts it and replays its whole queue on top.
			victim.State.X = r.cfg.WindowW * 0.15
			victim.State.Y = r.cfg.WindowH * 0.5
			victim.State.Speed = 0
			r.broadcast(protocol.KindUpdateRemote, protocol.UpdateRemoteMsg{
				PlayerID: ev.VictimID,
				Seq:      protocol.ServerSeq,
				X:        victim.State.X,
				Y:        victim.State.Y,
				Rot:      victim.State.Rot,
				Speed:    victim.State.Speed,
			})
			msg := protocol.PlayerDefeatedMsg{
				LaserID:  ev.LaserID,
				VictimID: ev.VictimID,
				NewScore: victim.Score,
			}
			r.broadcast(protocol.KindPlayerDefeated, msg)
			r.record("player_defeated", msg)
		}
	}
}

// broadcastState sends every player's canonical snapshot to every client,
// each stamped with that player's last-processed input sequence.
func (r *Room) broadcastState() {
	frame := make([]protocol.UpdateRemoteMsg, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		msg := protocol.UpdateRemoteMsg{
			PlayerID: id,
			Seq:      p.LastSeq,
			X:        p.State.X,
			Y:        p.State.Y,
			Rot:      p.State.Rot,
			Speed:    p.State.Speed,
			Input:    p.LastInput,
		}
		frame = append(frame, msg)
		r.broadcast(protocol.KindUpdateRemote, msg)
	}
	if r.rec != nil {
		if raw, err := msgpack.Marshal(frame); err == nil {
			r.rec.AppendFrame(r.tick, raw)
		}
	}
}

// checkGameOver ends the session once any score reaches the win threshold.
func (r *Room) checkGameOver() {
	reached := false
	for _, p := range r.players {
		if p.Score >= r.cfg.WinScore {
			reached = true
			break
		}
	}
	if !reached {
		return
	}

	over := protocol.GameOverMsg{}
	for _, id := range r.order {
		p := r.players[id]
		over.Names = append(over.Names, p.Name)
		over.Scores = append(over.Scores, p.Score)
		over.Colours = append(over.Colours, p.Colour)
	}
	r.broadcast(protocol.KindGameOver, over)
	r.record("game_over", over)
	r.finishLocked(&over)
}

// finishLocked is the single terminal path: persist, close the recording,
// stop the loop, notify the manager. Callers must hold the mutex.
func (r *Room) finishLocked(result *protocol.GameOverMsg) {
	if r.phase == PhaseLeaderboard {
		return
	}
	r.phase = PhaseLeaderboard

	if result != nil && r.db != nil {
		duration := time.Since(r.startedAt).Seconds()
		if err := r.db.RecordMatch(r.ID, duration, result.Names, result.Scores); err != nil {
			log.Printf("room %s: record match: %v", r.ID, err)
		}
	}
	if r.rec != nil {
		r.rec.Close()
	}
	if !r.stopped {
		r.stopped = true
		close(r.stop)
	}
	if r.onComplete != nil {
		go r.onComplete(r)
	}
	log.Printf("room %s: finished after %d ticks", r.ID, r.tick)
}

// broadcastRoster sends the waiting-room roster. Callers hold the mutex.
func (r *Room) broadcastRoster() {
	state := protocol.RoomStateMsg{Started: r.phase == PhaseInSession}
	for _, id := range r.order {
		p := r.players[id]
		state.Players = append(state.Players, protocol.RoomStatePlayer{
			PlayerID: id,
			Name:     p.Name,
			Colour:   p.Colour,
		})
	}
	r.broadcast(protocol.KindRoomState, state)
}

func (r *Room) broadcast(kind protocol.Kind, payload interface{}) {
	for _, c := range r.clients {
		c.Send(kind, payload)
	}
}

func (r *Room) record(typ string, data interface{}) {
	if r.rec == nil {
		return
	}
	if err := r.rec.AppendEvent(replay.Event{Tick: r.tick, Type: typ, Data: data}); err != nil {
		log.Printf("room %s: replay event: %v", r.ID, err)
	}
}
