package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"laserarena/internal/server"
	"laserarena/internal/sim"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "arena.db", "SQLite database path (empty disables accounts and match history)")
	replayDir := flag.String("replays", "", "Directory for match recordings (empty disables)")
	publicURL := flag.String("public-url", "http://localhost:8080", "Public base URL, used in QR join codes")
	roomSize := flag.Int("room-size", 0, "Players per room (0 = default)")
	flag.Parse()

	cfg := sim.DefaultConfig()
	if *roomSize > 0 {
		cfg.RoomSize = *roomSize
	}

	var db *server.DB
	if *dbPath != "" {
		var err error
		db, err = server.OpenDB(*dbPath)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()
	}

	hub := server.NewHub(cfg, db, *replayDir)
	go hub.Run()

	mux := server.SetupRoutes(hub, *publicURL)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		log.Printf("Server starting on %s", *addr)
		if *replayDir != "" {
			log.Printf("Recording matches to %s", *replayDir)
		}
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	srv.Close()
}
