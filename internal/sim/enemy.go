package sim

import "math/rand"

// SpriteRef is the render-side resource an enemy points at. Shallow clones
// share one SpriteRef; deep clones get their own copy so a tint applied to
// the clone leaves the original untouched. The server never draws, but it
// must know which topology it told the clients to build.
type SpriteRef struct {
	Sheet string
	Tint  uint32
}

// Enemy is a server-spawned hostile. Minions are escorts created by cloning
// at spawn time; they are simulated independently and outlive their parent.
type Enemy struct {
	ID      string
	X, Y    float64
	BaseY   float64 // spawn Y, anchor for weaving motion
	Phase   float64 // strategy-private accumulator
	Health  int
	Value   int
	Kind    EnemyKind
	Sprite  *SpriteRef
	Minions []*Enemy
	Alive   bool

	strategy  MovementStrategy
	deepClone bool // how this enemy was cloned, for the spawn event
}

const enemyBaseHealth = 1

// Clone duplicates the enemy. A shallow clone shares the sprite reference;
// a deep clone copies it. The minion list is never cloned.
func (e *Enemy) Clone(deep bool) *Enemy {
	c := &Enemy{
		ID:        GenerateID(4),
		X:         e.X,
		Y:         e.Y,
		BaseY:     e.BaseY,
		Health:    e.Health,
		Value:     e.Value,
		Kind:      e.Kind,
		Sprite:    e.Sprite,
		Alive:     e.Alive,
		strategy:  strategyFor(e.Kind),
		deepClone: deep,
	}
	if deep {
		sprite := *e.Sprite
		c.Sprite = &sprite
	}
	return c
}

// DeepCloned reports whether this enemy carries its own sprite copy.
func (e *Enemy) DeepCloned() bool { return e.deepClone }

// Box returns the enemy's axis-aligned bounding box.
func (e *Enemy) Box() Box {
	return CenteredBox(e.X, e.Y, EnemyWidth, EnemyHeight)
}

// Damage reduces health and deactivates on the same tick it reaches zero,
// before the next movement update.
func (e *Enemy) Damage(amount int) bool {
	if !e.Alive {
		return false
	}
	e.Health -= amount
	if e.Health <= 0 {
		e.Health = 0
		e.Alive = false
		return true
	}
	return false
}

// offscreen is the natural expiry predicate: fully past the left edge or
// far outside the vertical bounds.
func (e *Enemy) offscreen(cfg Config) bool {
	return e.X < -EnemyWidth ||
		e.Y < -2*EnemyHeight || e.Y > cfg.WindowH+2*EnemyHeight
}

// EnemyManager owns every enemy in one room. The top-level list keeps spawn
// order; minions ride inside their parent until the parent is removed, at
// which point surviving minions are promoted to top level and live on.
type EnemyManager struct {
	cfg        Config
	rng        *rand.Rand
	enemies    []*Enemy
	spawnCount int // drives minion alternation
	onRemoved  func(*Enemy)
}

// NewEnemyManager creates a manager with a seeded rng so spawn sequences are
// reproducible in tests.
func NewEnemyManager(cfg Config, rng *rand.Rand, onRemoved func(*Enemy)) *EnemyManager {
	return &EnemyManager{cfg: cfg, rng: rng, onRemoved: onRemoved}
}

// Spawn creates an enemy of a random kind at the right window edge. Every
// other spawn gets minions — alternation, not randomness, keeps the load
// predictable. Minion sprite sharing alternates too: even minions share the
// parent sprite, odd ones deep-clone it.
func (em *EnemyManager) Spawn() *Enemy {
	kind := randomKind(em.rng)
	e := &Enemy{
		ID:       GenerateID(4),
		X:        em.cfg.WindowW + EnemyWidth/2,
		Y:        EnemyHeight + em.rng.Float64()*(em.cfg.WindowH-2*EnemyHeight),
		Health:   enemyBaseHealth,
		Value:    valueFor(kind),
		Kind:     kind,
		Sprite:   &SpriteRef{Sheet: "enemy"},
		Alive:    true,
		strategy: strategyFor(kind),
	}
	e.BaseY = e.Y

	withMinions := em.spawnCount%2 == 1
	em.spawnCount++
	if withMinions {
		for i := 0; i < em.cfg.MaxMinions; i++ {
			m := e.Clone(i%2 == 1)
			m.Y = e.Y + float64(i+1)*EnemyHeight*1.2
			m.BaseY = m.Y
			e.Minions = append(e.Minions, m)
		}
	}
	em.enemies = append(em.enemies, e)
	return e
}

// Tick advances every enemy and its minions, then removes expired entries
// back-to-front. Minions of a removed parent are promoted, not destroyed.
func (em *EnemyManager) Tick(dt float64) {
	for i := len(em.enemies) - 1; i >= 0; i-- {
		e := em.enemies[i]
		if e.Alive {
			e.strategy.Advance(e, dt)
			if e.offscreen(em.cfg) {
				e.Alive = false
			}
		}
		for j := len(e.Minions) - 1; j >= 0; j-- {
			m := e.Minions[j]
			if m.Alive {
				m.strategy.Advance(m, dt)
				if m.offscreen(em.cfg) {
					m.Alive = false
				}
			}
			if !m.Alive {
				if em.onRemoved != nil {
					em.onRemoved(m)
				}
				e.Minions = append(e.Minions[:j], e.Minions[j+1:]...)
			}
		}
		if !e.Alive {
			em.remove(i)
		}
	}
}

// Deactivate is the external kill switch for a specific enemy id, parent or
// minion. The entry is swept on the next Tick.
func (em *EnemyManager) Deactivate(id string) {
	if e := em.Find(id); e != nil {
		e.Alive = false
	}
}

// Find returns the enemy with the given id, searching minions too.
func (em *EnemyManager) Find(id string) *Enemy {
	for _, e := range em.enemies {
		if e.ID == id {
			return e
		}
		for _, m := range e.Minions {
			if m.ID == id {
				return m
			}
		}
	}
	return nil
}

// Active returns the live top-level enemies in spawn order. Minions are
// reached through their parent, matching collision iteration order.
func (em *EnemyManager) Active() []*Enemy {
	out := make([]*Enemy, 0, len(em.enemies))
	for _, e := range em.enemies {
		if e.Alive {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of tracked enemies including minions.
func (em *EnemyManager) Count() int {
	n := 0
	for _, e := range em.enemies {
		n += 1 + len(e.Minions)
	}
	return n
}

func (em *EnemyManager) remove(i int) {
	e := em.enemies[i]
	if em.onRemoved != nil {
		em.onRemoved(e)
	}
	// Surviving minions become independent top-level enemies. A parent's
	// death never cascades.
	promoted := e.Minions
	e.Minions = nil
	em.enemies = append(em.enemies[:i], em.enemies[i+1:]...)
	em.enemies = append(em.enemies, promoted...)
}
