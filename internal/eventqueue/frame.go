// Package eventqueue is the control-thread notification queue spec.md
// §9 calls for ("where the bus demands notification under a lock,
// publish into a small queue drained by the control thread"). Its wire
// framing is adapted directly from maboo/internal/protocol/wire.go's
// Frame/WriteFrame/ReadFrame: the same fixed header layout and pooled
// buffers, headers msgpack-encoded instead of the teacher's opaque blob.
package eventqueue

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// Magic bytes identify tpx3drv event-log frames.
var Magic = [2]byte{0x54, 0x45} // "TE"

// Version is the current frame format version.
const Version uint8 = 0x01

// FrameHeaderSize is the fixed size of a frame header in bytes.
const FrameHeaderSize = 14

// Kind enumerates the domain events a channel worker or coordinator can
// raise onto the queue.
type Kind uint8

const (
	KindFrameLoss Kind = iota + 1
	KindShapeChange
	KindLifecycle
	KindRateTick
	KindError
)

// Frame is one wire-encoded event record: a fixed header plus
// msgpack-encoded headers (small routing metadata) and payload (the
// Event itself).
type Frame struct {
	Kind     Kind
	Flags    uint8
	StreamID uint16 // channel index, for multiplexed audit-log replay
	Headers  []byte // msgpack encoded
	Payload  []byte // msgpack encoded Event
}

var writeBufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 256)
		return &b
	},
}

// WriteFrame encodes and writes f to w in a single Write call.
func WriteFrame(w io.Writer, f *Frame) error {
	totalSize := FrameHeaderSize + len(f.Headers) + len(f.Payload)

	bp := writeBufPool.Get().(*[]byte)
	buf := (*bp)[:0]
	if cap(buf) < totalSize {
		buf = make([]byte, 0, totalSize)
	}
	buf = buf[:FrameHeaderSize]

	buf[0] = Magic[0]
	buf[1] = Magic[1]
	buf[2] = Version
	buf[3] = byte(f.Kind)
	buf[4] = f.Flags
	binary.BigEndian.PutUint16(buf[5:7], f.StreamID)

	hdrSize := len(f.Headers)
	buf[7] = byte(hdrSize >> 16)
	buf[8] = byte(hdrSize >> 8)
	buf[9] = byte(hdrSize)

	binary.BigEndian.PutUint32(buf[10:14], uint32(len(f.Payload)))

	buf = append(buf, f.Headers...)
	buf = append(buf, f.Payload...)

	_, err := w.Write(buf)

	*bp = buf
	writeBufPool.Put(bp)

	if err != nil {
		return fmt.Errorf("eventqueue: writing frame: %w", err)
	}
	return nil
}

var readHdrPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, FrameHeaderSize)
		return &b
	},
}

// ReadFrame reads and decodes one frame from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	bp := readHdrPool.Get().(*[]byte)
	header := *bp

	if _, err := io.ReadFull(r, header); err != nil {
		readHdrPool.Put(bp)
		return nil, err
	}

	if header[0] != Magic[0] || header[1] != Magic[1] {
		readHdrPool.Put(bp)
		return nil, fmt.Errorf("eventqueue: invalid magic bytes: 0x%02x%02x", header[0], header[1])
	}
	if header[2] != Version {
		readHdrPool.Put(bp)
		return nil, fmt.Errorf("eventqueue: unsupported frame version: %d", header[2])
	}

	f := &Frame{
		Kind:     Kind(header[3]),
		Flags:    header[4],
		StreamID: binary.BigEndian.Uint16(header[5:7]),
	}

	hdrSize := int(header[7])<<16 | int(header[8])<<8 | int(header[9])
	payloadSize := int(binary.BigEndian.Uint32(header[10:14]))
	readHdrPool.Put(bp)

	total := hdrSize + payloadSize
	if total > 0 {
		data := make([]byte, total)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("eventqueue: reading frame data (%d bytes): %w", total, err)
		}
		if hdrSize > 0 {
			f.Headers = data[:hdrSize]
		}
		if payloadSize > 0 {
			f.Payload = data[hdrSize:]
		}
	}

	return f, nil
}
