package server

import (
	"testing"
	"time"

	"laserarena/internal/sim"
)

func TestRoomManagerFillsWaitingRoom(t *testing.T) {
	cfg := sim.DefaultConfig()
	rm := NewRoomManager(cfg, nil, "")

	r1, p1 := rm.Join("Alice", &mockBroadcaster{})
	if r1 == nil || p1 == nil {
		t.Fatal("join should succeed")
	}
	r2, p2 := rm.Join("Bob", &mockBroadcaster{})
	if r2 != r1 {
		t.Error("second join should land in the same waiting room")
	}
	if p2.ID == p1.ID {
		t.Error("players should get distinct ids")
	}
	if r1.Phase() != PhaseInSession {
		t.Error("room should start once full")
	}

	// The filled room is no longer the waiting room.
	r3, _ := rm.Join("Carol", &mockBroadcaster{})
	if r3 == r1 {
		t.Error("third join should open a fresh room")
	}
	if r3.Phase() != PhaseWaiting {
		t.Error("fresh room should be waiting")
	}
}

func TestRoomManagerListsAndFinds(t *testing.T) {
	cfg := sim.DefaultConfig()
	rm := NewRoomManager(cfg, nil, "")

	room, _ := rm.Join("Alice", &mockBroadcaster{})
	if rm.GetRoom(room.ID) != room {
		t.Error("GetRoom should find the room by id")
	}
	list := rm.ListRooms()
	if len(list) != 1 || list[0].ID != room.ID || list[0].Players != 1 {
		t.Errorf("unexpected room list %+v", list)
	}
}

func TestRoomManagerDropsCompletedRoom(t *testing.T) {
	cfg := sim.DefaultConfig()
	rm := NewRoomManager(cfg, nil, "")

	room, p1 := rm.Join("Alice", &mockBroadcaster{})
	_, p2 := rm.Join("Bob", &mockBroadcaster{})

	rm.RemovePlayer(room.ID, p1.ID)
	rm.RemovePlayer(room.ID, p2.ID)

	// Completion is delivered asynchronously.
	deadline := time.Now().Add(time.Second)
	for rm.GetRoom(room.ID) != nil {
		if time.Now().After(deadline) {
			t.Fatal("completed room should be dropped from the manager")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
