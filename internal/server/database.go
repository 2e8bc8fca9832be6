package server

import (
	"database/sql"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database: pilot accounts plus finished-match history.
// Live game state never touches it.
type DB struct {
	conn *sql.DB
}

// PlayerRow represents a pilot account.
type PlayerRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// MatchResultRow is one finished match.
type MatchResultRow struct {
	ID        int64
	RoomID    string
	Duration  float64
	Winner    string
	CreatedAt time.Time
}

// OpenDB opens (or creates) the SQLite database.
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		duration REAL NOT NULL DEFAULT 0,
		winner TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS match_players (
		match_id INTEGER NOT NULL REFERENCES matches(id),
		name TEXT NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, name)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_players_username ON players(username);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// CreatePlayer creates a new pilot account and returns its ID.
func (db *DB) CreatePlayer(username, passHash string) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO players (username, pass_hash) VALUES (?, ?)",
		username, passHash,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetPlayerByUsername returns a pilot by username, nil when absent.
func (db *DB) GetPlayerByUsername(username string) (*PlayerRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM players WHERE username = ?",
		username,
	)
	p := &PlayerRow{}
	err := row.Scan(&p.ID, &p.Username, &p.PassHash, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// UsernameExists checks if a username is taken.
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM players WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// RecordMatch records a finished match leaderboard. names and scores are
// index-aligned; the highest score is the winner.
func (db *DB) RecordMatch(roomID string, duration float64, names []string, scores []int) error {
	winner := ""
	best := -1
	for i, n := range names {
		if scores[i] > best {
			best = scores[i]
			winner = n
		}
	}

	res, err := db.conn.Exec(
		"INSERT INTO matches (room_id, duration, winner) VALUES (?, ?, ?)",
		roomID, duration, winner,
	)
	if err != nil {
		return err
	}
	matchID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for i, n := range names {
		if _, err := db.conn.Exec(
			"INSERT OR REPLACE INTO match_players (match_id, name, score) VALUES (?, ?, ?)",
			matchID, n, scores[i],
		); err != nil {
			return err
		}
	}
	return nil
}

// GetRecentMatches returns the latest finished matches.
func (db *DB) GetRecentMatches(limit int) ([]MatchResultRow, error) {
	rows, err := db.conn.Query(
		"SELECT id, room_id, duration, winner, created_at FROM matches ORDER BY created_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MatchResultRow
	for rows.Next() {
		var r MatchResultRow
		if err := rows.Scan(&r.ID, &r.RoomID, &r.Duration, &r.Winner, &r.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// PlayerStats aggregates one pilot's finished matches.
type PlayerStats struct {
	Name       string `json:"name"`
	Matches    int    `json:"matches"`
	Wins       int    `json:"wins"`
	TotalScore int    `json:"total_score"`
}

// GetPlayerStats returns aggregate stats for a pilot name.
func (db *DB) GetPlayerStats(name string) (PlayerStats, error) {
	s := PlayerStats{Name: name}
	err := db.conn.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(score), 0) FROM match_players WHERE name = ?",
		name,
	).Scan(&s.Matches, &s.TotalScore)
	if err != nil {
		return s, err
	}
	err = db.conn.QueryRow("SELECT COUNT(*) FROM matches WHERE winner = ?", name).Scan(&s.Wins)
	return s, err
}

// GetSetting returns a settings value or "".
func (db *DB) GetSetting(key string) string {
	var v string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if err != nil {
		return ""
	}
	return v
}

// SetSetting stores a settings value.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}
