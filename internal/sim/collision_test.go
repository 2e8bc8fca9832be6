package sim

import "testing"

func TestBoxIntersects(t *testing.T) {
	a := Box{X: 0, Y: 0, W: 10, H: 10}

	if !a.Intersects(Box{X: 5, Y: 5, W: 10, H: 10}) {
		t.Error("overlapping boxes should intersect")
	}
	if a.Intersects(Box{X: 10, Y: 0, W: 10, H: 10}) {
		t.Error("edge-touching boxes should not intersect")
	}
	if a.Intersects(Box{X: 20, Y: 20, W: 5, H: 5}) {
		t.Error("separated boxes should not intersect")
	}
}

func TestDetectSkipsOwner(t *testing.T) {
	l := &Laser{ID: "l1", OwnerID: "p1", X: 100, Y: 100, Alive: true}
	players := []PlayerBox{{ID: "p1", Box: CenteredBox(100, 100, PlayerWidth, PlayerHeight)}}

	events := DetectCollisions([]*Laser{l}, players, nil)
	if len(events) != 0 {
		t.Errorf("laser must not hit its owner, got %d events", len(events))
	}
}

func TestDetectLaserHitsPlayer(t *testing.T) {
	l := &Laser{ID: "l1", OwnerID: "p1", X: 100, Y: 100, Alive: true}
	players := []PlayerBox{
		{ID: "p1", Box: CenteredBox(100, 100, PlayerWidth, PlayerHeight)},
		{ID: "p2", Box: CenteredBox(110, 100, PlayerWidth, PlayerHeight)},
	}

	events := DetectCollisions([]*Laser{l}, players, nil)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != LaserToPlayer || ev.VictimID != "p2" || ev.AttackerID != "p1" {
		t.Errorf("unexpected event %+v", ev)
	}
}

// The first intersecting target in array order wins, even when a later one
// is closer to the laser center.
func TestDetectArrayOrderTieBreak(t *testing.T) {
	l := &Laser{ID: "l1", OwnerID: "p1", X: 100, Y: 100, Alive: true}
	far := newTestEnemy(EnemyDrifter)
	far.ID = "far"
	far.X, far.Y = 130, 100 // overlapping but off-center
	near := newTestEnemy(EnemyDrifter)
	near.ID = "near"
	near.X, near.Y = 100, 100 // dead center

	events := DetectCollisions([]*Laser{l}, nil, []*Enemy{far, near})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].EnemyID != "far" {
		t.Errorf("array order should win over proximity, hit %s", events[0].EnemyID)
	}
}

func TestDetectPlayersBeforeEnemies(t *testing.T) {
	l := &Laser{ID: "l1", OwnerID: "p1", X: 100, Y: 100, Alive: true}
	players := []PlayerBox{{ID: "p2", Box: CenteredBox(100, 100, PlayerWidth, PlayerHeight)}}
	e := newTestEnemy(EnemyDrifter)
	e.X, e.Y = 100, 100

	events := DetectCollisions([]*Laser{l}, players, []*Enemy{e})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != LaserToPlayer {
		t.Error("players should be tested before enemies")
	}
}

func TestDetectParentBeforeMinions(t *testing.T) {
	l := &Laser{ID: "l1", OwnerID: "p1", X: 100, Y: 100, Alive: true}
	parent := newTestEnemy(EnemyDrifter)
	parent.ID = "parent"
	parent.X, parent.Y = 100, 100
	minion := parent.Clone(false)
	minion.ID = "minion"
	minion.X, minion.Y = 100, 100
	parent.Minions = append(parent.Minions, minion)

	events := DetectCollisions([]*Laser{l}, nil, []*Enemy{parent})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].EnemyID != "parent" {
		t.Errorf("parent should be tested before its minions, hit %s", events[0].EnemyID)
	}
}

func TestDetectMinionReachableWhenParentMisses(t *testing.T) {
	l := &Laser{ID: "l1", OwnerID: "p1", X: 100, Y: 100, Alive: true}
	parent := newTestEnemy(EnemyDrifter)
	parent.X, parent.Y = 900, 600
	minion := parent.Clone(false)
	minion.ID = "minion"
	minion.X, minion.Y = 100, 100
	parent.Minions = append(parent.Minions, minion)

	events := DetectCollisions([]*Laser{l}, nil, []*Enemy{parent})
	if len(events) != 1 || events[0].EnemyID != "minion" {
		t.Errorf("laser should reach the minion, got %+v", events)
	}
}

// Two lasers on two targets the same tick produce two independent events.
func TestDetectSimultaneousHits(t *testing.T) {
	l1 := &Laser{ID: "l1", OwnerID: "p1", X: 100, Y: 100, Alive: true}
	l2 := &Laser{ID: "l2", OwnerID: "p1", X: 500, Y: 100, Alive: true}
	e1 := newTestEnemy(EnemyDrifter)
	e1.ID = "e1"
	e1.X, e1.Y = 100, 100
	e2 := newTestEnemy(EnemyDrifter)
	e2.ID = "e2"
	e2.X, e2.Y = 500, 100

	events := DetectCollisions([]*Laser{l1, l2}, nil, []*Enemy{e1, e2})
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].LaserID != "l1" || events[0].EnemyID != "e1" {
		t.Errorf("unexpected first event %+v", events[0])
	}
	if events[1].LaserID != "l2" || events[1].EnemyID != "e2" {
		t.Errorf("unexpected second event %+v", events[1])
	}
}

func TestDetectOneHitPerLaser(t *testing.T) {
	l := &Laser{ID: "l1", OwnerID: "p1", X: 100, Y: 100, Alive: true}
	e1 := newTestEnemy(EnemyDrifter)
	e1.X, e1.Y = 100, 100
	e2 := newTestEnemy(EnemyDrifter)
	e2.X, e2.Y = 110, 100

	events := DetectCollisions([]*Laser{l}, nil, []*Enemy{e1, e2})
	if len(events) != 1 {
		t.Errorf("a laser defeats at most one entity per tick, got %d events", len(events))
	}
}

func TestDetectIgnoresDead(t *testing.T) {
	dead := &Laser{ID: "l1", OwnerID: "p1", X: 100, Y: 100, Alive: false}
	e := newTestEnemy(EnemyDrifter)
	e.X, e.Y = 100, 100

	if events := DetectCollisions([]*Laser{dead}, nil, []*Enemy{e}); len(events) != 0 {
		t.Error("dead lasers should be skipped")
	}

	live := &Laser{ID: "l2", OwnerID: "p1", X: 100, Y: 100, Alive: true}
	e.Alive = false
	if events := DetectCollisions([]*Laser{live}, nil, []*Enemy{e}); len(events) != 0 {
		t.Error("dead enemies should be skipped")
	}
}

func TestDetectMutatesNothing(t *testing.T) {
	l := &Laser{ID: "l1", OwnerID: "p1", X: 100, Y: 100, Alive: true}
	e := newTestEnemy(EnemyDrifter)
	e.X, e.Y = 100, 100

	DetectCollisions([]*Laser{l}, nil, []*Enemy{e})
	if !l.Alive || !e.Alive || e.Health != enemyBaseHealth {
		t.Error("detection must not mutate entities")
	}
}
