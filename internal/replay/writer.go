// Package replay streams per-room match artefacts to disk: a
// snappy-compressed line log of discrete events and a zstd-compressed frame
// stream of broadcast snapshots. The recordings feed offline determinism
// checks against the live simulation.
package replay

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var roomIDCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Manifest describes the bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version    int    `json:"version"`
	CreatedAt  string `json:"created_at"`
	RoomID     string `json:"room_id"`
	EventsPath string `json:"events_path"`
	FramesPath string `json:"frames_path"`
}

// Event is one discrete simulation occurrence worth keeping.
type Event struct {
	Tick uint64      `json:"tick"`
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Writer records one room's match. Safe for use from the room's tick
// goroutine plus a closer.
type Writer struct {
	mu          sync.Mutex
	dir         string
	eventFile   *os.File
	eventStream *snappy.Writer
	frameFile   *os.File
	frameStream *zstd.Encoder
	closed      bool
}

// NewWriter prepares the recording directory and opens the compressed sinks.
func NewWriter(root, roomID string) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("replay root must be provided")
	}
	clean := roomIDCleaner.ReplaceAllString(roomID, "_")
	dir := filepath.Join(root, clean)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	eventFile, err := os.Create(filepath.Join(dir, "events.snappy"))
	if err != nil {
		return nil, Manifest{}, err
	}
	frameFile, err := os.Create(filepath.Join(dir, "frames.zst"))
	if err != nil {
		eventFile.Close()
		return nil, Manifest{}, err
	}
	frameStream, err := zstd.NewWriter(frameFile)
	if err != nil {
		eventFile.Close()
		frameFile.Close()
		return nil, Manifest{}, err
	}

	w := &Writer{
		dir:         dir,
		eventFile:   eventFile,
		eventStream: snappy.NewBufferedWriter(eventFile),
		frameFile:   frameFile,
		frameStream: frameStream,
	}

	manifest := Manifest{
		Version:    1,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		RoomID:     roomID,
		EventsPath: "events.snappy",
		FramesPath: "frames.zst",
	}
	mb, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		w.Close()
		return nil, Manifest{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), mb, 0o644); err != nil {
		w.Close()
		return nil, Manifest{}, err
	}
	return w, manifest, nil
}

// Dir returns the bundle directory.
func (w *Writer) Dir() string { return w.dir }

// AppendEvent writes a single JSON event line to the compressed event log.
func (w *Writer) AppendEvent(ev Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("replay writer closed")
	}
	if _, err := w.eventStream.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

// AppendFrame writes one broadcast snapshot: tick header then the raw
// payload, length-prefixed so a reader can skip frames.
func (w *Writer) AppendFrame(tick uint64, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("replay writer closed")
	}
	var hdr [12]byte
	binary.LittleEndian.PutUint64(hdr[:8], tick)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(payload)))
	if _, err := w.frameStream.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.frameStream.Write(payload); err != nil {
		return err
	}
	return nil
}

// Close flushes both streams and releases the files. Idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var firstErr error
	if err := w.eventStream.Close(); err != nil {
		firstErr = err
	}
	if err := w.eventFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.frameStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.frameFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
