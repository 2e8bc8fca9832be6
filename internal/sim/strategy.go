package sim

import (
	"math"
	"math/rand"
)

// EnemyKind tags the enemy variant. Per-kind behavior lives in the strategy
// table below, not in a type hierarchy.
type EnemyKind int

const (
	EnemyDrifter EnemyKind = 0 // constant leftward drift
	EnemyWeaver  EnemyKind = 1 // leftward with a sine sweep
	EnemyDarter  EnemyKind = 2 // leftward with hard vertical zigzags
)

// MovementStrategy advances an enemy for one tick.
type MovementStrategy interface {
	Advance(e *Enemy, dt float64)
}

// driftStrategy moves straight left at a fixed speed.
type driftStrategy struct {
	speed float64
}

func (s driftStrategy) Advance(e *Enemy, dt float64) {
	e.X -= s.speed * dt
}

// weaveStrategy moves left while sweeping vertically on a sine wave.
type weaveStrategy struct {
	speed float64
	amp   float64
	freq  float64
}

func (s weaveStrategy) Advance(e *Enemy, dt float64) {
	e.X -= s.speed * dt
	e.Phase += s.freq * dt
	e.Y = e.BaseY + math.Sin(e.Phase)*s.amp
}

// dartStrategy moves left and flips vertical direction on a timer.
type dartStrategy struct {
	speed    float64
	vspeed   float64
	flipTime float64
}

func (s dartStrategy) Advance(e *Enemy, dt float64) {
	e.X -= s.speed * dt
	e.Phase += dt
	dir := 1.0
	if int(e.Phase/s.flipTime)%2 == 1 {
		dir = -1.0
	}
	e.Y += dir * s.vspeed * dt
}

// strategyFor builds the movement strategy for a kind. Kept as a table so a
// new variant is one case, not a subclass.
func strategyFor(kind EnemyKind) MovementStrategy {
	switch kind {
	case EnemyWeaver:
		return weaveStrategy{speed: 140, amp: 80, freq: 2.5}
	case EnemyDarter:
		return dartStrategy{speed: 190, vspeed: 120, flipTime: 0.6}
	default:
		return driftStrategy{speed: 160}
	}
}

// valueFor is the score awarded for defeating a kind.
func valueFor(kind EnemyKind) int {
	switch kind {
	case EnemyDarter:
		return 2
	default:
		return 1
	}
}

// randomKind picks a spawn kind from rng.
func randomKind(rng *rand.Rand) EnemyKind {
	return EnemyKind(rng.Intn(3))
}
