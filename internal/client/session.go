package client

import (
	"bytes"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"laserarena/internal/protocol"
	"laserarena/internal/sim"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuf    = 64
)

// SceneHandler is the surface the out-of-scope layers (rendering, audio,
// menus) implement. The session feeds it display events and lifecycle
// transitions; it must not block.
type SceneHandler interface {
	OnEvent(env protocol.Envelope)
	OnGameOver(msg protocol.GameOverMsg)
	OnDisconnected(reason string)
}

// Session is one client connection: it predicts the local player, smooths
// remote players, and runs every inbound message through the same pipeline
// discipline the server uses. The receive goroutine only ever mutates
// shadow state under the session mutex; it never touches rendering.
type Session struct {
	cfg      sim.Config
	conn     *websocket.Conn
	pipeline *protocol.Pipeline
	send     chan []byte
	scene    SceneHandler

	mu          sync.Mutex
	predictor   *Predictor
	remotes     map[string]*Interpolator
	playerID    string
	roomID      string
	tickCount   uint64
	corrections int64

	welcomed  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects, joins the waiting room, and starts the pumps. scene must
// be non-nil.
func Dial(url string, cfg sim.Config, name, token string, scene SceneHandler) (*Session, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:       cfg,
		conn:      conn,
		send:      make(chan []byte, sendBuf),
		scene:     scene,
		predictor: NewPredictor(cfg, sim.PlayerState{}),
		remotes:   make(map[string]*Interpolator),
		welcomed:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.pipeline = protocol.NewPipeline("client", protocol.MessageHandlerFunc(s.handleSession),
		[]protocol.Kind{protocol.KindWelcome, protocol.KindGameOver, protocol.KindDisconnect})
	s.pipeline.SetScene(protocol.MessageHandlerFunc(s.handleGame))

	go s.writePump()
	go s.readPump()

	s.sendMsg(protocol.KindJoin, protocol.JoinMsg{Name: name, Token: token})
	return s, nil
}

// AwaitWelcome blocks until the server has seated the player or the timeout
// elapses.
func (s *Session) AwaitWelcome(timeout time.Duration) error {
	select {
	case <-s.welcomed:
		return nil
	case <-s.done:
		return fmt.Errorf("connection closed before welcome")
	case <-time.After(timeout):
		return fmt.Errorf("no welcome within %s", timeout)
	}
}

// Tick runs one client frame: predict the sampled input immediately, queue
// it, advance remote interpolation, and transmit the newest sample at the
// send-rate divisor.
func (s *Session) Tick(in sim.InputFlags, dt float64) {
	s.mu.Lock()
	sample := s.predictor.Apply(in, dt)
	state := s.predictor.State()
	s.tickCount++
	transmit := s.tickCount%uint64(s.cfg.ClientSendEvery) == 0
	for _, ip := range s.remotes {
		ip.Advance(dt)
	}
	s.mu.Unlock()

	if transmit {
		s.sendMsg(protocol.KindPlayerUpdate, protocol.PlayerUpdateMsg{
			Seq:   sample.Seq,
			Input: sample.Input,
			Dt:    sample.Dt,
			X:     state.X,
			Y:     state.Y,
			Rot:   state.Rot,
			Speed: state.Speed,
		})
	}
}

// Fire announces a locally spawned laser and returns its id.
func (s *Session) Fire(gameTime float64) string {
	s.mu.Lock()
	state := s.predictor.State()
	s.mu.Unlock()

	id := sim.GenerateID(3)
	s.sendMsg(protocol.KindPlayerFired, protocol.PlayerFiredMsg{
		LaserID:  id,
		X:        state.X,
		Y:        state.Y,
		Rot:      state.Rot,
		GameTime: gameTime,
	})
	return id
}

// PlayerID returns the server-assigned id, "" before the welcome.
func (s *Session) PlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID
}

// LocalState returns the predicted local state.
func (s *Session) LocalState() sim.PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.predictor.State()
}

// RemoteStates returns the interpolated state of every remote player.
func (s *Session) RemoteStates() map[string]sim.PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]sim.PlayerState, len(s.remotes))
	for id, ip := range s.remotes {
		out[id] = ip.Current()
	}
	return out
}

// Corrections returns how many reconciliations required a replay.
func (s *Session) Corrections() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corrections
}

// Close tears the connection down. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) sendMsg(kind protocol.Kind, payload interface{}) {
	data, err := protocol.Encode(kind, payload)
	if err != nil {
		log.Printf("encode error: %v", err)
		return
	}
	select {
	case s.send <- data:
	case <-s.done:
	}
}

func (s *Session) readPump() {
	defer func() {
		s.Close()
		s.scene.OnDisconnected("connection lost")
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		fr := protocol.NewFrameReader(bytes.NewReader(message))
		payload, err := fr.ReadFrame()
		if err != nil {
			log.Printf("bad frame from server: %v", err)
			continue
		}
		s.pipeline.Handle(payload)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// handleSession handles the session-level kinds: seating, game over, and
// server-initiated disconnects.
func (s *Session) handleSession(env protocol.Envelope) {
	switch env.Kind {
	case protocol.KindWelcome:
		var msg protocol.WelcomeMsg
		if err := protocol.DecodePayload(env, &msg); err != nil {
			log.Printf("welcome decode: %v", err)
			return
		}
		s.mu.Lock()
		first := s.playerID == ""
		s.playerID = msg.PlayerID
		s.roomID = msg.RoomID
		s.mu.Unlock()
		if first {
			close(s.welcomed)
		}

	case protocol.KindGameOver:
		var msg protocol.GameOverMsg
		if err := protocol.DecodePayload(env, &msg); err != nil {
			log.Printf("game over decode: %v", err)
			return
		}
		s.scene.OnGameOver(msg)

	case protocol.KindDisconnect:
		var msg protocol.DisconnectMsg
		if err := protocol.DecodePayload(env, &msg); err == nil {
			s.scene.OnDisconnected(msg.Reason)
		}
		s.Close()
	}
}

// handleGame handles in-session messages: authoritative snapshots feed
// reconciliation or interpolation, everything else goes to the scene.
func (s *Session) handleGame(env protocol.Envelope) {
	switch env.Kind {
	case protocol.KindUpdateRemote:
		var msg protocol.UpdateRemoteMsg
		if err := protocol.DecodePayload(env, &msg); err != nil {
			log.Printf("update decode: %v", err)
			return
		}
		snapshot := sim.PlayerState{X: msg.X, Y: msg.Y, Rot: msg.Rot, Speed: msg.Speed}

		s.mu.Lock()
		if msg.PlayerID == s.playerID {
			if s.predictor.Reconcile(snapshot, msg.Seq) {
				s.corrections++
			}
		} else {
			ip, ok := s.remotes[msg.PlayerID]
			if !ok {
				ip = NewInterpolator(float64(s.cfg.BroadcastEvery) / float64(s.cfg.TickRate))
				s.remotes[msg.PlayerID] = ip
			}
			ip.SetTarget(snapshot)
		}
		s.mu.Unlock()

	default:
		s.scene.OnEvent(env)
	}
}
