package sim

import "math"

// PlayerState is the canonical kinematic state of one player. It is a value
// type on purpose: the server's copy, the client's predicted shadow, and
// every replay step all flow through the same pure functions, so there is no
// aliasing to go wrong.
//
// Vel is a scalar placeholder carried on the wire for compatibility; nothing
// reads it.
type PlayerState struct {
	X, Y  float64
	Vel   float64
	Rot   float64 // radians, 0 faces +X
	Speed float64 // units/s along the facing
}

// ApplyInput advances rotation and speed from one input sample. Left/right
// turn, up accelerates toward the cap, down brakes, and with neither held
// the residual speed decays toward zero.
func ApplyInput(s PlayerState, in InputFlags, dt float64, cfg Config) PlayerState {
	if in.Left {
		s.Rot = NormalizeAngle(s.Rot - cfg.TurnSpeed*dt)
	}
	if in.Right {
		s.Rot = NormalizeAngle(s.Rot + cfg.TurnSpeed*dt)
	}

	switch {
	case in.Up:
		s.Speed += cfg.Accel * dt
		if s.Speed > cfg.MaxSpeed {
			s.Speed = cfg.MaxSpeed
		}
	case in.Down:
		s.Speed -= cfg.Decel * dt
		if s.Speed < 0 {
			s.Speed = 0
		}
	default:
		s.Speed -= cfg.Decel * dt
		if s.Speed < 0 {
			s.Speed = 0
		}
	}
	return s
}

// Integrate moves the player along its facing and clamps to window bounds.
func Integrate(s PlayerState, dt float64, cfg Config) PlayerState {
	s.X += math.Cos(s.Rot) * s.Speed * dt
	s.Y += math.Sin(s.Rot) * s.Speed * dt
	s.X = Clamp(s.X, 0, cfg.WindowW)
	s.Y = Clamp(s.Y, 0, cfg.WindowH)
	return s
}

// Step applies one full sample: input then a single integration with the
// sample's own delta-time. The server tick, client prediction, and
// reconciliation replay all call exactly this.
func Step(s PlayerState, sample InputSample, cfg Config) PlayerState {
	s = ApplyInput(s, sample.Input, sample.Dt, cfg)
	return Integrate(s, sample.Dt, cfg)
}

// Equal reports bit-for-bit equality of the numeric fields the
// reconciliation compares.
func (s PlayerState) Equal(o PlayerState) bool {
	return s.X == o.X && s.Y == o.Y && s.Rot == o.Rot && s.Speed == o.Speed
}

// Box returns the player's axis-aligned bounding box.
func (s PlayerState) Box() Box {
	return CenteredBox(s.X, s.Y, PlayerWidth, PlayerHeight)
}
