package sim

// Box is an axis-aligned bounding box with a min corner and extents.
type Box struct {
	X, Y, W, H float64
}

// CenteredBox builds a box of the given size centered on (cx, cy).
func CenteredBox(cx, cy, w, h float64) Box {
	return Box{X: cx - w/2, Y: cy - h/2, W: w, H: h}
}

// Intersects reports whether two boxes overlap.
func (b Box) Intersects(o Box) bool {
	return b.X < o.X+o.W && b.X+b.W > o.X &&
		b.Y < o.Y+o.H && b.Y+b.H > o.Y
}

// CollisionKind discriminates collision events.
type CollisionKind int

const (
	LaserToPlayer CollisionKind = 0
	LaserToEnemy  CollisionKind = 1
)

// CollisionEvent is one discrete hit for a single tick. Produced by the
// detector, consumed once by the simulation; never stored.
type CollisionEvent struct {
	Kind       CollisionKind
	LaserID    string
	AttackerID string // owner of the laser
	VictimID   string // defeated player, LaserToPlayer only
	EnemyID    string // defeated enemy, LaserToEnemy only
}

// PlayerBox pairs a player id with its bounding box for detection.
type PlayerBox struct {
	ID  string
	Box Box
}

// DetectCollisions tests every active laser against players first, then
// enemies and their minions. The tie-break is array order: the first
// intersecting target in the stored order wins, a laser defeats at most one
// entity per tick, and nothing here mutates state — callers apply the
// consequences.
func DetectCollisions(lasers []*Laser, players []PlayerBox, enemies []*Enemy) []CollisionEvent {
	var events []CollisionEvent

	for _, l := range lasers {
		if !l.Alive {
			continue
		}
		lbox := l.Box()
		consumed := false

		for _, p := range players {
			if p.ID == l.OwnerID {
				continue
			}
			if lbox.Intersects(p.Box) {
				events = append(events, CollisionEvent{
					Kind:       LaserToPlayer,
					LaserID:    l.ID,
					AttackerID: l.OwnerID,
					VictimID:   p.ID,
				})
				consumed = true
				break
			}
		}
		if consumed {
			continue
		}

		for _, e := range enemies {
			if e.Alive && lbox.Intersects(e.Box()) {
				events = append(events, CollisionEvent{
					Kind:       LaserToEnemy,
					LaserID:    l.ID,
					AttackerID: l.OwnerID,
					EnemyID:    e.ID,
				})
				consumed = true
				break
			}
			for _, m := range e.Minions {
				if m.Alive && lbox.Intersects(m.Box()) {
					events = append(events, CollisionEvent{
						Kind:       LaserToEnemy,
						LaserID:    l.ID,
						AttackerID: l.OwnerID,
						EnemyID:    m.ID,
					})
					consumed = true
					break
				}
			}
			if consumed {
				break
			}
		}
	}
	return events
}
