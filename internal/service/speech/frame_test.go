package speech

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte(`{"text":"hello"}`)
	original := &Frame{
		Type:          FrameFullServerReply,
		Flags:         FlagNegativeSeq,
		Serialization: SerializeJSON,
		Compression:   CompressNone,
		Sequence:      -3,
		Payload:       payload,
	}

	data, err := original.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary err: %v", err)
	}

	decoded, err := ReadFrame(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadFrame err: %v", err)
	}

	if decoded.Type != original.Type || decoded.Flags != original.Flags {
		t.Fatalf("header mismatch: got %v/%v", decoded.Type, decoded.Flags)
	}
	if decoded.Sequence != -3 {
		t.Fatalf("sequence mismatch: got %d", decoded.Sequence)
	}
	if !decoded.IsLast() {
		t.Fatal("negative sequence frame should be last")
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Fatalf("payload mismatch: got %q", decoded.Payload)
	}
}

func TestFrameWithEventMetadata(t *testing.T) {
	original := &Frame{
		Type:          FrameFullServerReply,
		Flags:         FlagWithEvent,
		Serialization: SerializeJSON,
		Event:         EventConnectionStarted,
		ConnectID:     "conn-1",
	}
	data, _ := original.MarshalBinary()

	decoded, err := ReadFrame(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadFrame err: %v", err)
	}
	if decoded.Event != EventConnectionStarted || decoded.ConnectID != "conn-1" {
		t.Fatalf("unexpected event metadata: %+v", decoded)
	}
	if decoded.SessionID != "" {
		t.Fatalf("connection events carry no session id, got %q", decoded.SessionID)
	}

	session := &Frame{
		Type:      FrameFullServerReply,
		Flags:     FlagWithEvent,
		Event:     EventSessionFinished,
		SessionID: "sess-9",
	}
	data, _ = session.MarshalBinary()
	decoded, err = ReadFrame(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadFrame err: %v", err)
	}
	if decoded.SessionID != "sess-9" {
		t.Fatalf("unexpected session id %q", decoded.SessionID)
	}
}

func TestFrameErrorCode(t *testing.T) {
	original := &Frame{Type: FrameError, ErrorCode: 45000001, Payload: []byte("bad request")}
	data, _ := original.MarshalBinary()

	decoded, err := ReadFrame(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadFrame err: %v", err)
	}
	if decoded.ErrorCode != 45000001 || string(decoded.Payload) != "bad request" {
		t.Fatalf("unexpected error frame: %+v", decoded)
	}
}

func TestReadFrameRejectsVersion(t *testing.T) {
	data := []byte{0x21, 0x10, 0x10, 0x00, 0, 0, 0, 0}
	if _, err := ReadFrame(bytes.NewReader(data)); err == nil {
		t.Fatal("expected version error")
	}
}

func TestReadFrameTruncated(t *testing.T) {
	f := &Frame{Type: FrameFullServerReply, Payload: []byte("abcdef")}
	data, _ := f.MarshalBinary()

	if _, err := ReadFrame(bytes.NewReader(data[:len(data)-2])); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestAudioFrameFlags(t *testing.T) {
	cases := []struct {
		seq     int32
		last    bool
		flags   FrameFlags
		wantSeq int32
	}{
		{seq: 2, last: false, flags: FlagPositiveSeq, wantSeq: 2},
		{seq: 5, last: true, flags: FlagNegativeSeq, wantSeq: -5},
		{seq: 0, last: true, flags: FlagLastNoSeq, wantSeq: 0},
		{seq: 0, last: false, flags: FlagNone, wantSeq: 0},
	}

	for _, tc := range cases {
		f, err := newAudioFrame([]byte{1, 2}, tc.seq, tc.last, CompressNone)
		if err != nil {
			t.Fatalf("newAudioFrame err: %v", err)
		}
		if f.Flags != tc.flags || f.Sequence != tc.wantSeq {
			t.Errorf("seq=%d last=%v: got flags %04b seq %d", tc.seq, tc.last, f.Flags, f.Sequence)
		}
	}
}

func TestGzipRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("helpdesk "), 64)

	compressed, err := compress(data, CompressGzip)
	if err != nil {
		t.Fatalf("compress err: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Fatalf("expected compression, got %d >= %d", len(compressed), len(data))
	}

	f := &Frame{Compression: CompressGzip, Payload: compressed}
	out, err := f.DecodedPayload()
	if err != nil {
		t.Fatalf("decompress err: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("decompressed data mismatch")
	}

	if _, err := compress(data, Compression(7)); !errors.Is(err, errUnsupportedCompression) {
		t.Fatalf("expected unsupported compression, got %v", err)
	}
}
