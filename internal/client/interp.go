package client

import "laserarena/internal/sim"

// Interpolator smooths one remote player between authoritative snapshots.
// Remote players are never predicted or reconciled; the shadow simply eases
// toward the latest known state at the client tick rate.
type Interpolator struct {
	prev     sim.PlayerState
	target   sim.PlayerState
	t        float64 // 0..1 progress from prev to target
	duration float64 // seconds to reach the target, the broadcast interval
	init     bool
}

// NewInterpolator creates an interpolator that eases over duration seconds.
func NewInterpolator(duration float64) *Interpolator {
	if duration <= 0 {
		duration = 1.0 / 30.0
	}
	return &Interpolator{duration: duration, t: 1}
}

// SetTarget installs a new authoritative snapshot. The current interpolated
// state becomes the new starting point so the remote never jumps backwards.
func (ip *Interpolator) SetTarget(s sim.PlayerState) {
	if !ip.init {
		ip.prev = s
		ip.target = s
		ip.t = 1
		ip.init = true
		return
	}
	ip.prev = ip.Current()
	ip.target = s
	ip.t = 0
}

// Advance moves progress forward by dt seconds.
func (ip *Interpolator) Advance(dt float64) {
	if ip.t < 1 {
		ip.t += dt / ip.duration
		if ip.t > 1 {
			ip.t = 1
		}
	}
}

// Current returns the interpolated remote state.
func (ip *Interpolator) Current() sim.PlayerState {
	if ip.t >= 1 {
		return ip.target
	}
	return sim.PlayerState{
		X:     sim.Lerp(ip.prev.X, ip.target.X, ip.t),
		Y:     sim.Lerp(ip.prev.Y, ip.target.Y, ip.t),
		Rot:   sim.LerpAngle(ip.prev.Rot, ip.target.Rot, ip.t),
		Speed: sim.Lerp(ip.prev.Speed, ip.target.Speed, ip.t),
	}
}
