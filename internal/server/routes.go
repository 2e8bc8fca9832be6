package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// SetupRoutes configures the HTTP surface: the websocket endpoint, account
// endpoints, room listing, and the QR join helper. publicURL is the address
// clients reach the server at, used in QR payloads.
func SetupRoutes(hub *Hub, publicURL string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":          true,
			"connections": hub.ClientCount(),
			"rooms":       len(hub.rooms.ListRooms()),
		})
	})

	mux.HandleFunc("/rooms", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, hub.rooms.ListRooms())
	})

	mux.HandleFunc("/matches", func(w http.ResponseWriter, r *http.Request) {
		if hub.db == nil {
			writeJSON(w, http.StatusOK, []MatchResultRow{})
			return
		}
		matches, err := hub.db.GetRecentMatches(20)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database error"})
			return
		}
		writeJSON(w, http.StatusOK, matches)
	})

	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if hub.db == nil || name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing name"})
			return
		}
		stats, err := hub.db.GetPlayerStats(name)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database error"})
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	// QR-encoded join URL, for joining from a phone.
	mux.HandleFunc("/join/qr.png", func(w http.ResponseWriter, r *http.Request) {
		png, err := qrcode.Encode(publicURL+"/", qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "qr encode failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})

	mux.HandleFunc("/api/register", func(w http.ResponseWriter, r *http.Request) {
		handleCredentials(hub, w, r, func(username, password, _ string) (int64, string, error) {
			return hub.auth.Register(username, password)
		})
	})

	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		handleCredentials(hub, w, r, func(username, password, ip string) (int64, string, error) {
			return hub.auth.Login(username, password, ip)
		})
	})

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade error: %v", err)
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, ip)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	})

	return mux
}

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func handleCredentials(hub *Hub, w http.ResponseWriter, r *http.Request, fn func(username, password, ip string) (int64, string, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if hub.auth == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "accounts disabled"})
		return
	}
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}
	id, token, err := fn(req.Username, req.Password, extractIP(r))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": fmt.Sprint(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"player_id": id,
		"username":  req.Username,
		"token":     token,
	})
}
