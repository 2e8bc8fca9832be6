package server

import (
	"math"
	"sync"
	"testing"
	"time"

	"laserarena/internal/protocol"
	"laserarena/internal/sim"
)

// mockBroadcaster captures sent messages for testing
type mockBroadcaster struct {
	mu   sync.Mutex
	sent []sentMsg
}

type sentMsg struct {
	kind    protocol.Kind
	payload interface{}
}

func (m *mockBroadcaster) Send(kind protocol.Kind, payload interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMsg{kind, payload})
}

func (m *mockBroadcaster) byKind(kind protocol.Kind) []interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []interface{}
	for _, s := range m.sent {
		if s.kind == kind {
			out = append(out, s.payload)
		}
	}
	return out
}

func testRoom(t *testing.T) (*Room, *roomPlayer, *roomPlayer, *mockBroadcaster, *mockBroadcaster) {
	t.Helper()
	cfg := sim.DefaultConfig()
	r := NewRoom("test-room", cfg, nil, nil, nil)
	m1 := &mockBroadcaster{}
	m2 := &mockBroadcaster{}
	p1 := r.AddPlayer("Alice", m1)
	p2 := r.AddPlayer("Bob", m2)
	if p1 == nil || p2 == nil {
		t.Fatal("both players should be admitted")
	}
	return r, p1, p2, m1, m2
}

func TestRoomFillsAndStarts(t *testing.T) {
	cfg := sim.DefaultConfig()
	r := NewRoom("test-room", cfg, nil, nil, nil)
	m1 := &mockBroadcaster{}

	p1 := r.AddPlayer("Alice", m1)
	if p1 == nil {
		t.Fatal("first player should be admitted")
	}
	if r.Phase() != PhaseWaiting {
		t.Error("room should still be waiting with one player")
	}

	p2 := r.AddPlayer("Bob", &mockBroadcaster{})
	if p2 == nil {
		t.Fatal("second player should be admitted")
	}
	if r.Phase() != PhaseInSession {
		t.Error("full room should transition into session")
	}
	if p1.Colour == p2.Colour {
		t.Error("players should get distinct colours")
	}

	if r.AddPlayer("Carol", &mockBroadcaster{}) != nil {
		t.Error("a room in session must not admit players")
	}

	// The roster went out, and the final one flags the session start.
	rosters := m1.byKind(protocol.KindRoomState)
	if len(rosters) == 0 {
		t.Fatal("roster should be broadcast on join")
	}
	last := rosters[len(rosters)-1].(protocol.RoomStateMsg)
	if !last.Started || len(last.Players) != 2 {
		t.Errorf("final roster should mark the start with 2 players, got %+v", last)
	}
}

func TestRoomAppliesPendingInput(t *testing.T) {
	r, p1, _, _, _ := testRoom(t)

	msg := protocol.PlayerUpdateMsg{
		Seq:   1,
		Input: sim.InputFlags{Up: true},
		Dt:    1.0 / 60,
		X:     p1.State.X,
		Y:     p1.State.Y,
	}
	r.HandleInput(p1.ID, msg)
	r.update()

	r.mu.RLock()
	state := r.players[p1.ID].State
	lastSeq := r.players[p1.ID].LastSeq
	r.mu.RUnlock()

	if lastSeq != 1 {
		t.Errorf("expected last seq 1, got %d", lastSeq)
	}
	want := sim.Step(sim.PlayerState{X: msg.X, Y: msg.Y}, sim.InputSample{Seq: 1, Input: msg.Input, Dt: msg.Dt}, r.cfg)
	if !state.Equal(want) {
		t.Errorf("server state should step with the sample, got %+v want %+v", state, want)
	}

	// A second tick with no pending input only decays.
	r.update()
	r.mu.RLock()
	after := r.players[p1.ID].State
	r.mu.RUnlock()
	if after.Speed > state.Speed {
		t.Error("idle tick should not accelerate the player")
	}
}

func TestRoomDropsInvalidInput(t *testing.T) {
	r, p1, _, _, _ := testRoom(t)

	r.HandleInput(p1.ID, protocol.PlayerUpdateMsg{Seq: 1, Dt: 10, X: 100, Y: 100})
	r.update()

	r.mu.RLock()
	lastSeq := r.players[p1.ID].LastSeq
	r.mu.RUnlock()
	if lastSeq != protocol.ServerSeq {
		t.Error("implausible update should be dropped, not applied")
	}
}

// A NaN delta-time slipping past the gate would poison the canonical state
// permanently: Step propagates NaN through X/Y/Speed and Clamp passes NaN
// through. The gate must stop it at the edge.
func TestRoomRejectsNonFiniteInput(t *testing.T) {
	r, p1, _, _, _ := testRoom(t)

	r.HandleInput(p1.ID, protocol.PlayerUpdateMsg{
		Seq:   1,
		Input: sim.InputFlags{Up: true},
		Dt:    math.NaN(),
		X:     p1.State.X,
		Y:     p1.State.Y,
	})
	r.update()

	r.mu.RLock()
	p := r.players[p1.ID]
	state, lastSeq := p.State, p.LastSeq
	r.mu.RUnlock()

	if lastSeq != protocol.ServerSeq {
		t.Error("non-finite update should be dropped, not applied")
	}
	if math.IsNaN(state.X) || math.IsNaN(state.Y) || math.IsNaN(state.Speed) {
		t.Errorf("canonical state must stay finite, got %+v", state)
	}
}

func TestRoomLastInputWinsWithinTick(t *testing.T) {
	r, p1, _, _, _ := testRoom(t)

	r.HandleInput(p1.ID, protocol.PlayerUpdateMsg{Seq: 1, Input: sim.InputFlags{Up: true}, Dt: 1.0 / 60, X: p1.State.X, Y: p1.State.Y})
	r.HandleInput(p1.ID, protocol.PlayerUpdateMsg{Seq: 2, Input: sim.InputFlags{Left: true}, Dt: 1.0 / 60, X: p1.State.X, Y: p1.State.Y})
	r.update()

	r.mu.RLock()
	p := r.players[p1.ID]
	r.mu.RUnlock()
	if p.LastSeq != 2 {
		t.Errorf("newest sample should win the slot, got seq %d", p.LastSeq)
	}
	if !p.LastInput.Left || p.LastInput.Up {
		t.Errorf("slot should hold the newest input, got %+v", p.LastInput)
	}
}

func TestRoomRelaysFire(t *testing.T) {
	r, p1, _, m1, m2 := testRoom(t)

	fire := protocol.PlayerFiredMsg{LaserID: "l1", X: p1.State.X, Y: p1.State.Y, Rot: 0}
	r.HandleFired(p1.ID, fire)

	if got := m2.byKind(protocol.KindRemoteFired); len(got) != 1 {
		t.Fatalf("other player should see the shot, got %d", len(got))
	}
	if got := m1.byKind(protocol.KindRemoteFired); len(got) != 0 {
		t.Error("the shooter must not receive its own relay")
	}
	r.mu.RLock()
	count := r.players[p1.ID].Lasers.Count()
	r.mu.RUnlock()
	if count != 1 {
		t.Errorf("laser should be spawned server-side, got %d", count)
	}
}

func TestRoomRejectsImplausibleFire(t *testing.T) {
	r, p1, _, _, m2 := testRoom(t)

	r.HandleFired(p1.ID, protocol.PlayerFiredMsg{LaserID: "l1", X: p1.State.X + 500, Y: p1.State.Y})
	if got := m2.byKind(protocol.KindRemoteFired); len(got) != 0 {
		t.Error("implausible fire should be dropped")
	}
}

func TestRoomBroadcastDivisor(t *testing.T) {
	r, _, _, m1, _ := testRoom(t)

	for i := 0; i < r.cfg.BroadcastEvery*3; i++ {
		r.update()
	}
	// Two players per broadcast, one broadcast per divisor ticks.
	got := len(m1.byKind(protocol.KindUpdateRemote))
	want := 3 * 2
	if got != want {
		t.Errorf("expected %d remote updates, got %d", want, got)
	}
}

func TestRoomEnemyDefeatScores(t *testing.T) {
	r, p1, _, m1, _ := testRoom(t)

	e := r.enemies.Spawn()
	e.Minions = nil
	e.X, e.Y = 600, 300
	r.players[p1.ID].Lasers.Spawn("l1", p1.ID, 600, 300, 0)

	r.checkCollisions()

	r.mu.RLock()
	score := r.players[p1.ID].Score
	r.mu.RUnlock()
	if score != e.Value {
		t.Errorf("attacker should earn the enemy value %d, got %d", e.Value, score)
	}
	if e.Alive {
		t.Error("defeated enemy should be deactivated the same tick")
	}

	defeats := m1.byKind(protocol.KindEnemyDefeated)
	if len(defeats) != 1 {
		t.Fatalf("expected 1 defeat broadcast, got %d", len(defeats))
	}
	msg := defeats[0].(protocol.EnemyDefeatedMsg)
	if msg.EnemyID != e.ID || msg.AttackerID != p1.ID || msg.NewScore != e.Value {
		t.Errorf("unexpected defeat message %+v", msg)
	}
}

func TestRoomPlayerDefeatScoreFloor(t *testing.T) {
	r, p1, p2, _, m2 := testRoom(t)

	// p2 has score zero; a hit must not push it negative.
	r.players[p1.ID].Lasers.Spawn("l1", p1.ID, p2.State.X, p2.State.Y, 0)
	r.checkCollisions()

	r.mu.RLock()
	victim := r.players[p2.ID]
	r.mu.RUnlock()
	if victim.Score != 0 {
		t.Errorf("score should floor at zero, got %d", victim.Score)
	}
	if victim.State.Speed != 0 {
		t.Error("defeated player should be stopped at the respawn point")
	}
	if got := m2.byKind(protocol.KindPlayerDefeated); len(got) != 1 {
		t.Errorf("expected 1 defeat broadcast, got %d", len(got))
	}

	// The knockback is server-initiated: it goes out immediately, stamped
	// ServerSeq, carrying the respawn position.
	updates := m2.byKind(protocol.KindUpdateRemote)
	if len(updates) != 1 {
		t.Fatalf("expected 1 immediate knockback update, got %d", len(updates))
	}
	upd := updates[0].(protocol.UpdateRemoteMsg)
	if upd.PlayerID != p2.ID || upd.Seq != protocol.ServerSeq {
		t.Errorf("knockback update should target the victim with ServerSeq, got %+v", upd)
	}
	if upd.X != victim.State.X || upd.Y != victim.State.Y || upd.Speed != 0 {
		t.Errorf("knockback update should carry the respawn state, got %+v", upd)
	}
}

func TestRoomGameOver(t *testing.T) {
	cfg := sim.DefaultConfig()
	done := make(chan *Room, 1)
	r := NewRoom("test-room", cfg, nil, nil, func(room *Room) { done <- room })
	m1 := &mockBroadcaster{}
	p1 := r.AddPlayer("Alice", m1)
	r.AddPlayer("Bob", &mockBroadcaster{})

	r.mu.Lock()
	r.players[p1.ID].Score = cfg.WinScore
	r.mu.Unlock()
	r.update()

	if r.Phase() != PhaseLeaderboard {
		t.Error("reaching the win score should end the session")
	}
	overs := m1.byKind(protocol.KindGameOver)
	if len(overs) != 1 {
		t.Fatalf("expected 1 game-over broadcast, got %d", len(overs))
	}
	over := overs[0].(protocol.GameOverMsg)
	if len(over.Names) != 2 || over.Names[0] != "Alice" || over.Scores[0] != cfg.WinScore {
		t.Errorf("leaderboard should list players in join order, got %+v", over)
	}

	select {
	case room := <-done:
		if room.ID != "test-room" {
			t.Errorf("completion callback got wrong room %s", room.ID)
		}
	case <-time.After(time.Second):
		t.Error("completion callback should fire")
	}

	// Terminal: further updates are no-ops.
	r.update()
	if got := m1.byKind(protocol.KindGameOver); len(got) != 1 {
		t.Error("leaderboard must be sent exactly once")
	}
}

func TestRoomEmptiesOut(t *testing.T) {
	r, p1, p2, _, _ := testRoom(t)

	r.RemovePlayer(p1.ID)
	if r.PlayerCount() != 1 {
		t.Errorf("expected 1 player, got %d", r.PlayerCount())
	}
	r.RemovePlayer(p2.ID)
	if r.Phase() != PhaseLeaderboard {
		t.Error("an emptied room should finish")
	}
	r.RemovePlayer(p2.ID) // second removal is a no-op
}
