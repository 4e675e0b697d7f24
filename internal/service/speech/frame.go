package speech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// 火山引擎语音 WebSocket 二进制帧。
//
// 4 字节头：version|headerSize, type|flags, serialization|compression, reserved。
// 头后依次是可选 sequence、可选 event 元数据、payload size 与 payload。

const frameVersion uint8 = 0b0001

// FrameType 帧类型
type FrameType uint8

const (
	FrameFullClientRequest FrameType = 0b0001
	FrameAudioOnlyRequest  FrameType = 0b0010
	FrameFullServerReply   FrameType = 0b1001
	FrameAudioOnlyReply    FrameType = 0b1011
	FrameError             FrameType = 0b1111
)

// FrameFlags 帧标志位
type FrameFlags uint8

const (
	FlagNone          FrameFlags = 0b0000
	FlagPositiveSeq   FrameFlags = 0b0001
	FlagLastNoSeq     FrameFlags = 0b0010
	FlagNegativeSeq   FrameFlags = 0b0011
	FlagWithEvent     FrameFlags = 0b0100
	sequenceFlagsMask FrameFlags = 0b0011
)

// Serialization payload 序列化方式
type Serialization uint8

const (
	SerializeRaw  Serialization = 0b0000
	SerializeJSON Serialization = 0b0001
)

// Compression payload 压缩方式
type Compression uint8

const (
	CompressNone Compression = 0b0000
	CompressGzip Compression = 0b0001
)

// Event 服务端事件编号
type Event int32

const (
	EventNone               Event = 0
	EventStartConnection    Event = 1
	EventFinishConnection   Event = 2
	EventConnectionStarted  Event = 50
	EventConnectionFailed   Event = 51
	EventConnectionFinished Event = 52
	EventSessionStarted     Event = 150
	EventSessionFinished    Event = 152
	EventSessionFailed      Event = 153
)

var errUnsupportedCompression = errors.New("unsupported compression")

// Frame 一条完整的二进制消息。
type Frame struct {
	Type          FrameType
	Flags         FrameFlags
	Serialization Serialization
	Compression   Compression
	HeaderWords   uint8 // header 长度，单位 4 字节，0 按 1 处理

	Sequence  int32
	Event     Event
	SessionID string
	ConnectID string
	ErrorCode uint32
	Payload   []byte
}

// HasSequence 帧是否携带 sequence 字段。
func (f *Frame) HasSequence() bool {
	switch f.Flags & sequenceFlagsMask {
	case FlagPositiveSeq, FlagNegativeSeq:
		return true
	}
	return false
}

// HasEvent 帧是否携带事件元数据。
func (f *Frame) HasEvent() bool {
	return f.Flags&FlagWithEvent == FlagWithEvent
}

// IsLast 是否为最后一包。
func (f *Frame) IsLast() bool {
	switch f.Flags & sequenceFlagsMask {
	case FlagLastNoSeq, FlagNegativeSeq:
		return true
	}
	return false
}

// MarshalBinary 编码为线上格式。
func (f *Frame) MarshalBinary() ([]byte, error) {
	words := f.HeaderWords
	if words == 0 {
		words = 1
	}

	var buf bytes.Buffer
	buf.Grow(16 + len(f.Payload))
	buf.WriteByte(frameVersion<<4 | words&0x0F)
	buf.WriteByte(uint8(f.Type)<<4 | uint8(f.Flags)&0x0F)
	buf.WriteByte(uint8(f.Serialization)<<4 | uint8(f.Compression)&0x0F)
	buf.WriteByte(0)
	for i := 1; i < int(words); i++ {
		buf.Write(make([]byte, 4))
	}

	if f.HasSequence() {
		putUint32(&buf, uint32(f.Sequence))
	}
	if f.HasEvent() {
		putUint32(&buf, uint32(f.Event))
		if eventCarriesSession(f.Event) {
			putSized(&buf, f.SessionID)
		}
		if eventCarriesConnect(f.Event) {
			putSized(&buf, f.ConnectID)
		}
	}
	if f.Type == FrameError {
		putUint32(&buf, f.ErrorCode)
	}

	putUint32(&buf, uint32(len(f.Payload)))
	buf.Write(f.Payload)
	return buf.Bytes(), nil
}

// ReadFrame 从 r 中解码一帧。
func ReadFrame(r io.Reader) (*Frame, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	if v := head[0] >> 4; v != frameVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", v)
	}

	f := &Frame{
		HeaderWords:   head[0] & 0x0F,
		Type:          FrameType(head[1] >> 4),
		Flags:         FrameFlags(head[1] & 0x0F),
		Serialization: Serialization(head[2] >> 4),
		Compression:   Compression(head[2] & 0x0F),
	}

	if extra := int(f.HeaderWords)*4 - 4; extra > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extra)); err != nil {
			return nil, fmt.Errorf("read extended header: %w", err)
		}
	}

	if f.HasSequence() {
		seq, err := readUint32(r, "sequence")
		if err != nil {
			return nil, err
		}
		f.Sequence = int32(seq)
	}

	if f.HasEvent() {
		event, err := readUint32(r, "event")
		if err != nil {
			return nil, err
		}
		f.Event = Event(int32(event))
		if eventCarriesSession(f.Event) {
			if f.SessionID, err = readSized(r, "session id"); err != nil {
				return nil, err
			}
		}
		if eventCarriesConnect(f.Event) {
			if f.ConnectID, err = readSized(r, "connect id"); err != nil {
				return nil, err
			}
		}
	}

	if f.Type == FrameError {
		code, err := readUint32(r, "error code")
		if err != nil {
			return nil, err
		}
		f.ErrorCode = code
	}

	size, err := readUint32(r, "payload size")
	if err != nil {
		return nil, err
	}
	if size > 0 {
		f.Payload = make([]byte, size)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return nil, fmt.Errorf("read payload (%d bytes): %w", size, err)
		}
	}
	return f, nil
}

// DecodedPayload 按帧声明的压缩方式解压 payload。
func (f *Frame) DecodedPayload() ([]byte, error) {
	return decompress(f.Payload, f.Compression)
}

// newRequestFrame 构造带 JSON 参数的首帧。
func newRequestFrame(payload []byte, compression Compression) (*Frame, error) {
	body, err := compress(payload, compression)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Type:          FrameFullClientRequest,
		Serialization: SerializeJSON,
		Compression:   compression,
		Payload:       body,
	}, nil
}

// newAudioFrame 构造音频帧，最后一包的 sequence 取负。
func newAudioFrame(audio []byte, seq int32, last bool, compression Compression) (*Frame, error) {
	body, err := compress(audio, compression)
	if err != nil {
		return nil, err
	}

	flags := FlagNone
	switch {
	case last && seq != 0:
		flags, seq = FlagNegativeSeq, -seq
	case last:
		flags = FlagLastNoSeq
	case seq > 0:
		flags = FlagPositiveSeq
	}

	return &Frame{
		Type:          FrameAudioOnlyRequest,
		Flags:         flags,
		Serialization: SerializeRaw,
		Compression:   compression,
		Sequence:      seq,
		Payload:       body,
	}, nil
}

func eventCarriesSession(e Event) bool {
	switch e {
	case EventStartConnection, EventFinishConnection,
		EventConnectionStarted, EventConnectionFailed, EventConnectionFinished:
		return false
	}
	return true
}

func eventCarriesConnect(e Event) bool {
	switch e {
	case EventConnectionStarted, EventConnectionFailed, EventConnectionFinished:
		return true
	}
	return false
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putSized(buf *bytes.Buffer, s string) {
	putUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readUint32(r io.Reader, what string) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read %s: %w", what, err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readSized(r io.Reader, what string) (string, error) {
	size, err := readUint32(r, what+" size")
	if err != nil {
		return "", err
	}
	if size == 0 {
		return "", nil
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read %s: %w", what, err)
	}
	return string(b), nil
}

func compress(data []byte, method Compression) ([]byte, error) {
	switch method {
	case CompressNone:
		return data, nil
	case CompressGzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			zw.Close()
			return nil, fmt.Errorf("gzip write: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("gzip close: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %d", errUnsupportedCompression, method)
	}
}

func decompress(data []byte, method Compression) ([]byte, error) {
	switch method {
	case CompressNone:
		return data, nil
	case CompressGzip:
		if len(data) == 0 {
			return nil, nil
		}
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gzip read: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", errUnsupportedCompression, method)
	}
}
