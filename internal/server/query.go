package server

// ConsoleQuery is the read-only view the diagnostics console gets instead
// of poking at simulation internals. It exposes exactly what the console
// needs and nothing more.
type ConsoleQuery struct {
	hub *Hub
}

// NewConsoleQuery wraps a hub.
func NewConsoleQuery(hub *Hub) *ConsoleQuery {
	return &ConsoleQuery{hub: hub}
}

// ActiveRooms lists every room with player count and phase.
func (q *ConsoleQuery) ActiveRooms() []RoomInfo {
	return q.hub.rooms.ListRooms()
}

// Scores returns the per-player scores of one room, nil when the room is
// unknown.
func (q *ConsoleQuery) Scores(roomID string) map[string]int {
	room := q.hub.rooms.GetRoom(roomID)
	if room == nil {
		return nil
	}
	return room.Scores()
}

// Connections lists the remote addresses of every live connection.
func (q *ConsoleQuery) Connections() []string {
	return q.hub.ConnectionAddrs()
}
