package eventqueue

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Event is one domain notification: a frame-loss gap, a shape change, a
// worker lifecycle transition, a rate-window tick, or a processing error.
type Event struct {
	Kind    Kind      `msgpack:"kind"`
	Channel string    `msgpack:"channel"`
	Detail  string    `msgpack:"detail"`
	At      time.Time `msgpack:"at"`
}

// Encode msgpack-encodes e for use as a Frame's Payload.
func Encode(e Event) ([]byte, error) {
	b, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("eventqueue: encoding event: %w", err)
	}
	return b, nil
}

// Decode msgpack-decodes a Frame's Payload back into an Event.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("eventqueue: decoding event: %w", err)
	}
	return e, nil
}

// ToFrame builds the wire Frame for e, keyed to streamID (a small per-
// channel index used only to group events in audit-log replay).
func ToFrame(e Event, streamID uint16) (*Frame, error) {
	payload, err := Encode(e)
	if err != nil {
		return nil, err
	}
	return &Frame{Kind: e.Kind, StreamID: streamID, Payload: payload}, nil
}
