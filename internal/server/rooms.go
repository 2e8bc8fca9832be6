package server

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"laserarena/internal/replay"
	"laserarena/internal/sim"
)

const maxRooms = 100

// RoomInfo is the read-only view of one room.
type RoomInfo struct {
	ID      string `json:"id"`
	Players int    `json:"players"`
	Phase   int    `json:"phase"`
}

// RoomManager keeps one open waiting room that joins fill; when it reaches
// the configured size it transitions into session and a fresh waiting room
// takes its place.
type RoomManager struct {
	cfg        sim.Config
	db         *DB
	replayRoot string // empty disables recording

	mu      sync.Mutex
	rooms   map[string]*Room
	waiting *Room
}

// NewRoomManager creates a manager.
func NewRoomManager(cfg sim.Config, db *DB, replayRoot string) *RoomManager {
	return &RoomManager{
		cfg:        cfg,
		db:         db,
		replayRoot: replayRoot,
		rooms:      make(map[string]*Room),
	}
}

// Join places a player in the waiting room, creating one if needed. Returns
// the room and the player, or nils when the server is saturated.
func (rm *RoomManager) Join(name string, client Broadcaster) (*Room, *roomPlayer) {
	rm.mu.Lock()
	room := rm.waiting
	if room == nil || room.Phase() != PhaseWaiting {
		if len(rm.rooms) >= maxRooms {
			rm.mu.Unlock()
			return nil, nil
		}
		room = rm.newRoomLocked()
	}
	rm.mu.Unlock()

	p := room.AddPlayer(name, client)
	if p == nil {
		// Lost the race to the last seat; retry once with a fresh room.
		rm.mu.Lock()
		if rm.waiting == room {
			rm.waiting = nil
		}
		rm.mu.Unlock()
		return rm.Join(name, client)
	}

	rm.mu.Lock()
	if room.Phase() != PhaseWaiting && rm.waiting == room {
		rm.waiting = nil
	}
	rm.mu.Unlock()
	return room, p
}

// GetRoom returns a room by id.
func (rm *RoomManager) GetRoom(id string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.rooms[id]
}

// RemovePlayer removes a player from a room.
func (rm *RoomManager) RemovePlayer(roomID, playerID string) {
	if room := rm.GetRoom(roomID); room != nil {
		room.RemovePlayer(playerID)
	}
}

// ListRooms returns info about every tracked room.
func (rm *RoomManager) ListRooms() []RoomInfo {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	list := make([]RoomInfo, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		list = append(list, RoomInfo{
			ID:      r.ID,
			Players: r.PlayerCount(),
			Phase:   int(r.Phase()),
		})
	}
	return list
}

// newRoomLocked builds a room and installs it as the waiting room. Callers
// must hold the mutex.
func (rm *RoomManager) newRoomLocked() *Room {
	id := uuid.NewString()

	var rec *replay.Writer
	if rm.replayRoot != "" {
		w, _, err := replay.NewWriter(rm.replayRoot, id)
		if err != nil {
			log.Printf("room %s: replay disabled: %v", id, err)
		} else {
			rec = w
		}
	}

	room := NewRoom(id, rm.cfg, rm.db, rec, rm.roomCompleted)
	rm.rooms[id] = room
	rm.waiting = room
	go room.Run()
	return room
}

func (rm *RoomManager) roomCompleted(r *Room) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.rooms, r.ID)
	if rm.waiting == r {
		rm.waiting = nil
	}
}
