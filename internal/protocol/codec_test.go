package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"testing/iotest"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := JoinMsg{Name: "Pilot", Token: "tok"}
	frame, err := Encode(KindJoin, msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	fr := NewFrameReader(bytes.NewReader(frame))
	raw, err := fr.ReadFrame()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	env, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Kind != KindJoin {
		t.Errorf("expected kind %d, got %d", KindJoin, env.Kind)
	}
	if env.SentAt.IsZero() || time.Since(env.SentAt) > time.Minute {
		t.Errorf("send timestamp should be stamped at encode time, got %v", env.SentAt)
	}

	var got JoinMsg
	if err := DecodePayload(env, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.Name != "Pilot" || got.Token != "tok" {
		t.Errorf("payload mismatch: %+v", got)
	}
}

func TestEncodeRejectsUnknownKind(t *testing.T) {
	if _, err := Encode(Kind(99), JoinMsg{}); err == nil {
		t.Error("encoding an unknown kind should fail")
	}
}

// Frames must survive a stream that delivers one byte at a time.
func TestFrameReaderPartialReads(t *testing.T) {
	f1, _ := Encode(KindPlayerUpdate, PlayerUpdateMsg{Seq: 1, X: 10, Y: 20})
	f2, _ := Encode(KindPlayerFired, PlayerFiredMsg{LaserID: "abc"})
	stream := append(append([]byte{}, f1...), f2...)

	fr := NewFrameReader(iotest.OneByteReader(bytes.NewReader(stream)))

	raw1, err := fr.ReadFrame()
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	env1, _ := DecodeEnvelope(raw1)
	if env1.Kind != KindPlayerUpdate {
		t.Errorf("expected kind %d, got %d", KindPlayerUpdate, env1.Kind)
	}

	raw2, err := fr.ReadFrame()
	if err != nil {
		t.Fatalf("second frame: %v", err)
	}
	env2, _ := DecodeEnvelope(raw2)
	if env2.Kind != KindPlayerFired {
		t.Errorf("expected kind %d, got %d", KindPlayerFired, env2.Kind)
	}

	if _, err := fr.ReadFrame(); err != io.EOF {
		t.Errorf("expected EOF after last frame, got %v", err)
	}
}

func TestFrameReaderRejectsOversized(t *testing.T) {
	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], maxFrameSize+1)

	fr := NewFrameReader(bytes.NewReader(hdr[:n]))
	if _, err := fr.ReadFrame(); err == nil {
		t.Error("oversized frame length should be rejected")
	}
}

func TestFrameReaderRejectsZeroLength(t *testing.T) {
	fr := NewFrameReader(bytes.NewReader([]byte{0x00}))
	if _, err := fr.ReadFrame(); err == nil {
		t.Error("zero-length frame should be rejected")
	}
}

func TestFrameReaderTruncatedBody(t *testing.T) {
	frame, _ := Encode(KindJoin, JoinMsg{Name: "x"})
	fr := NewFrameReader(bytes.NewReader(frame[:len(frame)-3]))
	if _, err := fr.ReadFrame(); err == nil {
		t.Error("truncated frame body should surface a stream error")
	}
}

func TestKindKnown(t *testing.T) {
	for _, k := range []Kind{KindPlayerUpdate, KindPlayerFired, KindJoin, KindLeave,
		KindWelcome, KindRoomState, KindUpdateRemote, KindRemoteFired, KindEnemySpawn,
		KindEnemyClone, KindEnemyDefeated, KindPlayerDefeated, KindGameOver, KindDisconnect} {
		if !k.Known() {
			t.Errorf("kind %d should be known", k)
		}
	}
	for _, k := range []Kind{0, 5, 9, 20, -1, 99} {
		if k.Known() {
			t.Errorf("kind %d should be unknown", k)
		}
	}
}
