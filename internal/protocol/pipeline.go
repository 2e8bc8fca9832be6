package protocol

import (
	"log"
	"sync"
)

// MessageHandler consumes one validated envelope. Handlers run on the
// connection's read goroutine and must not block.
type MessageHandler interface {
	HandleMessage(env Envelope)
}

// MessageHandlerFunc adapts a function to MessageHandler.
type MessageHandlerFunc func(env Envelope)

// HandleMessage implements MessageHandler.
func (f MessageHandlerFunc) HandleMessage(env Envelope) { f(env) }

// Pipeline applies the inbound message discipline: contain panics, decode
// one frame, validate the kind, trace, then dispatch. A bad message is
// dropped with a log line; only stream faults (handled by the caller's read
// loop) end the connection. The same pipeline runs on both ends.
type Pipeline struct {
	tag          string // log prefix, usually the remote address
	session      MessageHandler
	sessionKinds map[Kind]bool
	trace        bool

	mu    sync.RWMutex
	scene MessageHandler
}

// NewPipeline builds a pipeline. Kinds listed in sessionKinds route to the
// session handler; everything else goes to the current scene handler.
func NewPipeline(tag string, session MessageHandler, sessionKinds []Kind) *Pipeline {
	km := make(map[Kind]bool, len(sessionKinds))
	for _, k := range sessionKinds {
		km[k] = true
	}
	return &Pipeline{tag: tag, session: session, sessionKinds: km}
}

// SetScene swaps the active scene handler. A nil scene drops scene-routed
// messages (logged), which covers the gap while a client changes scenes.
func (p *Pipeline) SetScene(h MessageHandler) {
	p.mu.Lock()
	p.scene = h
	p.mu.Unlock()
}

// SetTrace toggles per-message trace logging.
func (p *Pipeline) SetTrace(on bool) { p.trace = on }

// Handle runs one frame payload through every stage. It never panics.
func (p *Pipeline) Handle(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%s] handler panic contained: %v", p.tag, r)
		}
	}()

	env, err := DecodeEnvelope(raw)
	if err != nil {
		log.Printf("[%s] decode error: %v", p.tag, err)
		return
	}
	if !env.Kind.Known() {
		log.Printf("[%s] unknown message kind %d, dropped", p.tag, env.Kind)
		return
	}
	if len(env.Data) == 0 {
		log.Printf("[%s] kind %d with empty payload, dropped", p.tag, env.Kind)
		return
	}
	if p.trace {
		log.Printf("[%s] <- kind=%d sent=%s bytes=%d", p.tag, env.Kind, env.SentAt.Format("15:04:05.000"), len(env.Data))
	}

	if p.sessionKinds[env.Kind] {
		p.session.HandleMessage(env)
		return
	}
	p.mu.RLock()
	scene := p.scene
	p.mu.RUnlock()
	if scene == nil {
		log.Printf("[%s] no scene for kind %d, dropped", p.tag, env.Kind)
		return
	}
	scene.HandleMessage(env)
}
