package client

import (
	"laserarena/internal/protocol"
	"laserarena/internal/sim"
)

// queuedSample is one sent-but-unacknowledged input, together with the
// state prediction recorded right after applying it.
type queuedSample struct {
	Sample sim.InputSample
	After  sim.PlayerState
}

// Predictor owns the local player's shadow state. Input is applied
// immediately for responsiveness and queued under a monotonically increasing
// sequence number; when the server's authoritative echo for a sequence
// arrives, the shadow is corrected and newer samples are replayed on top.
// Not safe for concurrent use; the Session serializes access.
type Predictor struct {
	cfg     sim.Config
	state   sim.PlayerState
	queue   []queuedSample // strict FIFO by Seq
	nextSeq int64

	// Last consumed acknowledgement, kept so a rebroadcast of the same
	// sequence can still take the exact-match fast path after its sample
	// left the queue.
	ackedSeq int64
	acked    sim.PlayerState
	hasAcked bool
}

// NewPredictor creates a predictor seeded with the given state.
func NewPredictor(cfg sim.Config, start sim.PlayerState) *Predictor {
	return &Predictor{cfg: cfg, state: start, nextSeq: 1}
}

// State returns the current predicted state.
func (p *Predictor) State() sim.PlayerState { return p.state }

// Pending returns the number of unacknowledged samples.
func (p *Predictor) Pending() int { return len(p.queue) }

// Apply predicts one frame of input: assign the next sequence number, step
// the shadow state, and queue the sample for the server. Returns the sample
// so the caller can transmit it.
func (p *Predictor) Apply(in sim.InputFlags, dt float64) sim.InputSample {
	sample := sim.InputSample{Seq: p.nextSeq, Input: in, Dt: dt}
	p.nextSeq++
	p.state = sim.Step(p.state, sample, p.cfg)
	p.queue = append(p.queue, queuedSample{Sample: sample, After: p.state})
	return sample
}

// Reconcile processes the server's authoritative snapshot for sequence seq.
// Samples up to and including seq are consumed from the front of the queue,
// never skipped. When the server agrees with what was predicted at seq the
// call is a no-op; otherwise the shadow is seeded from the snapshot and
// every still-queued sample is replayed in order with its own recorded
// delta-time. Returns true when a correction happened.
func (p *Predictor) Reconcile(snapshot sim.PlayerState, seq int64) bool {
	if seq == protocol.ServerSeq {
		// Server-initiated update (respawn, knockback): adopt and replay
		// the whole queue.
		return p.rebase(snapshot)
	}

	// Consume queued samples monotonically up to seq, remembering the
	// prediction recorded at seq itself.
	var predicted *sim.PlayerState
	i := 0
	for i < len(p.queue) && p.queue[i].Sample.Seq <= seq {
		if p.queue[i].Sample.Seq == seq {
			after := p.queue[i].After
			predicted = &after
		}
		i++
	}
	p.queue = p.queue[i:]

	if predicted != nil {
		// Remember the authoritative state at seq; the broadcast divisor
		// outpaces the client send rate, so the same ack arrives again.
		p.ackedSeq = seq
		p.acked = snapshot
		p.hasAcked = true
	} else if p.hasAcked && seq == p.ackedSeq {
		predicted = &p.acked
	}

	if predicted != nil && predicted.Equal(snapshot) {
		return false // prediction confirmed, nothing to replay
	}
	return p.rebase(snapshot)
}

// rebase seeds the shadow from the authoritative state and replays every
// queued sample on top, re-recording each prediction.
func (p *Predictor) rebase(snapshot sim.PlayerState) bool {
	before := p.state
	p.state = snapshot
	for i := range p.queue {
		p.state = sim.Step(p.state, p.queue[i].Sample, p.cfg)
		p.queue[i].After = p.state
	}
	return !p.state.Equal(before)
}
