package sim

import "math"

// Laser is a short-lived projectile owned by the firing player's manager.
type Laser struct {
	ID      string
	OwnerID string
	X, Y    float64
	Rot     float64
	Age     float64 // seconds alive
	MaxAge  float64
	Alive   bool
}

// Update advances the laser one tick.
func (l *Laser) Update(dt float64, cfg Config) {
	if !l.Alive {
		return
	}
	l.X += math.Cos(l.Rot) * cfg.LaserSpeed * dt
	l.Y += math.Sin(l.Rot) * cfg.LaserSpeed * dt
	l.Age += dt
	if l.Age > l.MaxAge {
		l.Alive = false
	}
}

// Box returns the laser's axis-aligned bounding box.
func (l *Laser) Box() Box {
	return CenteredBox(l.X, l.Y, LaserWidth, LaserHeight)
}

// LaserManager owns the lifecycle of one player's lasers. The live set keeps
// spawn order so collision iteration stays deterministic.
type LaserManager struct {
	cfg       Config
	lasers    []*Laser
	onRemoved func(*Laser)
}

// NewLaserManager creates a manager. onRemoved may be nil; when set it fires
// once per laser just before removal, for both expiry and explicit kills.
func NewLaserManager(cfg Config, onRemoved func(*Laser)) *LaserManager {
	return &LaserManager{cfg: cfg, onRemoved: onRemoved}
}

// Spawn registers a new laser. The id comes from the firing client so both
// sides name the entity identically.
func (lm *LaserManager) Spawn(id, ownerID string, x, y, rot float64) *Laser {
	l := &Laser{
		ID:      id,
		OwnerID: ownerID,
		X:       x,
		Y:       y,
		Rot:     rot,
		MaxAge:  lm.cfg.LaserLifetime,
		Alive:   true,
	}
	lm.lasers = append(lm.lasers, l)
	return l
}

// Tick advances every laser and removes the ones whose lifetime has run out
// or that were deactivated since the last tick. Iteration is back-to-front
// so removal does not skip entries.
func (lm *LaserManager) Tick(dt float64) {
	for i := len(lm.lasers) - 1; i >= 0; i-- {
		l := lm.lasers[i]
		l.Update(dt, lm.cfg)
		if !l.Alive {
			lm.remove(i)
		}
	}
}

// Deactivate is the external kill switch, used when a collision consumes the
// laser. The entry stays in place until the next Tick sweeps it, keeping
// array order stable within the tick.
func (lm *LaserManager) Deactivate(id string) {
	for _, l := range lm.lasers {
		if l.ID == id {
			l.Alive = false
			return
		}
	}
}

// Active returns the live lasers in spawn order.
func (lm *LaserManager) Active() []*Laser {
	out := make([]*Laser, 0, len(lm.lasers))
	for _, l := range lm.lasers {
		if l.Alive {
			out = append(out, l)
		}
	}
	return out
}

// Count returns the number of tracked lasers, live or pending removal.
func (lm *LaserManager) Count() int {
	return len(lm.lasers)
}

func (lm *LaserManager) remove(i int) {
	l := lm.lasers[i]
	if lm.onRemoved != nil {
		lm.onRemoved(l)
	}
	lm.lasers = append(lm.lasers[:i], lm.lasers[i+1:]...)
}
