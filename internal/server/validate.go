package server

import (
	"math"

	"laserarena/internal/protocol"
	"laserarena/internal/sim"
)

// maxSampleDt bounds the delta-time a client may claim for one sample. A
// frame longer than this is a stall, not an input.
const maxSampleDt = 0.25

// fireTolerance is how far a claimed laser origin may sit from the server's
// copy of the shooter, covering in-flight movement.
const fireTolerance = 200.0

// finite rejects NaN and both infinities. Range comparisons are false for
// NaN, so this must run before them.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// validateUpdate is the plausibility gate at the proxy boundary: anything
// implausible in a client-asserted update is rejected before it can reach
// the authoritative simulation. The packet is dropped, never the connection.
func validateUpdate(cfg sim.Config, msg protocol.PlayerUpdateMsg, lastSeq int64) string {
	if msg.Seq <= lastSeq {
		return "stale sequence"
	}
	if !finite(msg.Dt) || !finite(msg.X) || !finite(msg.Y) || !finite(msg.Rot) || !finite(msg.Speed) {
		return "non-finite field"
	}
	if msg.Dt <= 0 || msg.Dt > maxSampleDt {
		return "implausible delta-time"
	}
	if msg.Speed < 0 || msg.Speed > cfg.MaxSpeed*sim.SpeedTolerance {
		return "implausible speed"
	}
	if msg.X < 0 || msg.X > cfg.WindowW || msg.Y < 0 || msg.Y > cfg.WindowH {
		return "position out of bounds"
	}
	return ""
}

// validateFired checks a fire announcement against the server's copy of the
// shooter.
func validateFired(cfg sim.Config, msg protocol.PlayerFiredMsg, state sim.PlayerState) string {
	if msg.LaserID == "" {
		return "missing laser id"
	}
	if !finite(msg.X) || !finite(msg.Y) || !finite(msg.Rot) {
		return "non-finite field"
	}
	dx := msg.X - state.X
	dy := msg.Y - state.Y
	if dx*dx+dy*dy > fireTolerance*fireTolerance {
		return "origin too far from player"
	}
	return ""
}
