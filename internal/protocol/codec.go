package protocol

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// maxFrameSize bounds a single wire frame. Anything larger is a protocol
// fault, not a legitimate message.
const maxFrameSize = 64 * 1024

// Encode builds a framed wire message: uvarint payload length followed by
// the msgpack envelope {kind, send timestamp, payload}.
func Encode(kind Kind, payload interface{}) ([]byte, error) {
	if !kind.Known() {
		return nil, fmt.Errorf("encode: unknown kind %d", kind)
	}
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, err
	}
	env, err := msgpack.Marshal(Envelope{
		Kind:   kind,
		SentAt: time.Now().UTC(),
		Data:   data,
	})
	if err != nil {
		return nil, err
	}

	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(env)))
	out := make([]byte, 0, n+len(env))
	out = append(out, hdr[:n]...)
	out = append(out, env...)
	return out, nil
}

// DecodePayload unmarshals an envelope's payload into out.
func DecodePayload(env Envelope, out interface{}) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("empty payload for kind %d", env.Kind)
	}
	return msgpack.Unmarshal(env.Data, out)
}

// FrameReader reads length-prefixed frames from a byte stream, resuming
// across partial reads. One reader per connection; not safe for concurrent
// use.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader wraps r for frame-at-a-time reading.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// ReadFrame blocks until one complete frame is available and returns its
// payload bytes. Stream errors (including EOF) are fatal to the connection
// and surface unchanged.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	n, err := binary.ReadUvarint(fr.r)
	if err != nil {
		return nil, err
	}
	if n == 0 || n > maxFrameSize {
		return nil, fmt.Errorf("frame length %d out of range", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeEnvelope unmarshals one frame payload into an Envelope without
// touching the kind-specific data.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	if len(raw) == 0 {
		return Envelope{}, fmt.Errorf("decode: empty frame")
	}
	var env Envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
