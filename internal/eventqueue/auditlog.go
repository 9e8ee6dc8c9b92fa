package eventqueue

import (
	"errors"
	"fmt"
	"io"
)

// AuditLog persists control-thread events (never frame data — spec.md
// §1 forbids persisting frames) to an append-only writer, one wire Frame
// per event.
type AuditLog struct {
	w io.Writer
}

// NewAuditLog wraps w (typically an os.File opened O_APPEND) as an event sink.
func NewAuditLog(w io.Writer) *AuditLog {
	return &AuditLog{w: w}
}

// Write encodes and appends e.
func (a *AuditLog) Write(e Event, streamID uint16) error {
	f, err := ToFrame(e, streamID)
	if err != nil {
		return err
	}
	return WriteFrame(a.w, f)
}

// ReadAuditLog replays every event frame in r until EOF.
func ReadAuditLog(r io.Reader) ([]Event, error) {
	var events []Event
	for {
		f, err := ReadFrame(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return events, nil
			}
			return events, fmt.Errorf("eventqueue: replaying audit log: %w", err)
		}
		e, err := Decode(f.Payload)
		if err != nil {
			return events, err
		}
		events = append(events, e)
	}
}
