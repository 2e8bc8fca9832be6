package server

import (
	"bytes"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"laserarena/internal/protocol"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 65536
	sendBufSize       = 256
	maxMessagesPerSec = 120
	maxNameLen        = 16
)

// Client represents one WebSocket connection. Its read goroutine feeds the
// inbound pipeline; its write goroutine is the only writer on the socket, so
// room broadcasts can never interleave.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	pipeline   *protocol.Pipeline
	playerID   string
	roomID     string
	remoteAddr string
	msgCount   int
	msgResetAt time.Time

	authPlayerID int64  // 0 = guest
	authUsername string // "" = guest
}

// NewClient creates a Client wired to the hub. Join and Leave are
// session-level; everything else routes to the room the client joined.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	c := &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
	c.pipeline = protocol.NewPipeline(remoteAddr, protocol.MessageHandlerFunc(c.handleSession),
		[]protocol.Kind{protocol.KindJoin, protocol.KindLeave})
	return c
}

// ReadPump reads framed messages from the connection and runs each through
// the pipeline. A stream fault exits the loop; cleanup then runs exactly
// once via the deferred unregister.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		// One websocket message carries one frame.
		fr := protocol.NewFrameReader(bytes.NewReader(message))
		payload, err := fr.ReadFrame()
		if err != nil {
			log.Printf("bad frame from %s: %v", c.remoteAddr, err)
			continue
		}
		c.pipeline.Handle(payload)
	}
}

// WritePump writes queued messages and pings to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send encodes and enqueues one message. A slow client drops messages
// rather than stalling the simulation.
func (c *Client) Send(kind protocol.Kind, payload interface{}) {
	data, err := protocol.Encode(kind, payload)
	if err != nil {
		log.Printf("encode error: %v", err)
		return
	}
	defer func() { recover() }() // send on closed channel during teardown
	select {
	case c.send <- data:
	default:
	}
}

// handleSession handles the session-level kinds.
func (c *Client) handleSession(env protocol.Envelope) {
	switch env.Kind {
	case protocol.KindJoin:
		c.handleJoin(env)
	case protocol.KindLeave:
		c.handleLeave()
	}
}

func (c *Client) handleJoin(env protocol.Envelope) {
	if c.roomID != "" {
		return // already in a room
	}
	var msg protocol.JoinMsg
	if err := protocol.DecodePayload(env, &msg); err != nil {
		log.Printf("join decode from %s: %v", c.remoteAddr, err)
		return
	}
	name := msg.Name
	if name == "" {
		name = "Pilot"
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}

	// Optional account token; invalid tokens demote to guest.
	if msg.Token != "" && c.hub.auth != nil {
		if id, username, err := c.hub.auth.ValidateToken(msg.Token); err == nil {
			c.authPlayerID = id
			c.authUsername = username
			name = username
		}
	}

	room, player := c.hub.rooms.Join(name, c)
	if room == nil {
		c.Send(protocol.KindDisconnect, protocol.DisconnectMsg{Reason: "server full"})
		return
	}
	c.roomID = room.ID
	c.playerID = player.ID
	c.pipeline.SetScene(&roomScene{room: room, playerID: player.ID})

	c.Send(protocol.KindWelcome, protocol.WelcomeMsg{
		PlayerID: player.ID,
		RoomID:   room.ID,
		Colour:   player.Colour,
	})
}

func (c *Client) handleLeave() {
	if c.roomID == "" {
		return
	}
	c.hub.rooms.RemovePlayer(c.roomID, c.playerID)
	c.roomID = ""
	c.playerID = ""
	c.pipeline.SetScene(nil)
}

// roomScene routes in-session messages from one connection to its room.
type roomScene struct {
	room     *Room
	playerID string
}

// HandleMessage implements protocol.MessageHandler.
func (s *roomScene) HandleMessage(env protocol.Envelope) {
	switch env.Kind {
	case protocol.KindPlayerUpdate:
		var msg protocol.PlayerUpdateMsg
		if err := protocol.DecodePayload(env, &msg); err != nil {
			log.Printf("player update decode: %v", err)
			return
		}
		s.room.HandleInput(s.playerID, msg)
	case protocol.KindPlayerFired:
		var msg protocol.PlayerFiredMsg
		if err := protocol.DecodePayload(env, &msg); err != nil {
			log.Printf("player fired decode: %v", err)
			return
		}
		s.room.HandleFired(s.playerID, msg)
	}
}
