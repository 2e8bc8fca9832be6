// arena-bot is a headless predictive client. It joins a room, drives a
// scripted input pattern through the same prediction/reconciliation path a
// real client uses, and reports how often the server corrected it. Useful
// for filling rooms during development and for soak-testing the protocol.
package main

import (
	"flag"
	"log"
	"time"

	"laserarena/internal/client"
	"laserarena/internal/protocol"
	"laserarena/internal/sim"
)

type logScene struct {
	quiet bool
}

func (s *logScene) OnEvent(env protocol.Envelope) {
	if s.quiet {
		return
	}
	switch env.Kind {
	case protocol.KindEnemyDefeated:
		var msg protocol.EnemyDefeatedMsg
		if protocol.DecodePayload(env, &msg) == nil {
			log.Printf("enemy %s defeated by %s (score %d)", msg.EnemyID, msg.AttackerID, msg.NewScore)
		}
	case protocol.KindPlayerDefeated:
		var msg protocol.PlayerDefeatedMsg
		if protocol.DecodePayload(env, &msg) == nil {
			log.Printf("player %s defeated (score %d)", msg.VictimID, msg.NewScore)
		}
	}
}

func (s *logScene) OnGameOver(msg protocol.GameOverMsg) {
	log.Printf("game over: %v %v", msg.Names, msg.Scores)
}

func (s *logScene) OnDisconnected(reason string) {
	log.Printf("disconnected: %s", reason)
}

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "server websocket URL")
	name := flag.String("name", "bot", "pilot name")
	runFor := flag.Duration("for", 60*time.Second, "how long to play")
	quiet := flag.Bool("quiet", false, "suppress event logging")
	flag.Parse()

	cfg := sim.DefaultConfig()
	scene := &logScene{quiet: *quiet}

	sess, err := client.Dial(*url, cfg, *name, "", scene)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer sess.Close()

	if err := sess.AwaitWelcome(10 * time.Second); err != nil {
		log.Fatalf("join: %v", err)
	}
	log.Printf("joined as %s", sess.PlayerID())

	ticker := time.NewTicker(time.Second / time.Duration(cfg.TickRate))
	defer ticker.Stop()
	deadline := time.After(*runFor)

	start := time.Now()
	dt := cfg.TickDt()
	var frame int
	for {
		select {
		case <-ticker.C:
			frame++
			// Thrust constantly, sweep the heading, fire in bursts.
			in := sim.InputFlags{Up: true}
			switch (frame / 120) % 3 {
			case 1:
				in.Left = true
			case 2:
				in.Right = true
			}
			if frame%30 == 0 {
				in.Fire = true
				sess.Fire(time.Since(start).Seconds())
			}
			sess.Tick(in, dt)

		case <-deadline:
			st := sess.LocalState()
			log.Printf("done: pos=(%.1f, %.1f) corrections=%d remotes=%d",
				st.X, st.Y, sess.Corrections(), len(sess.RemoteStates()))
			return

		case <-sess.Done():
			return
		}
	}
}
