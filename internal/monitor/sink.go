package monitor

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/yourusername/tpx3drv/internal/channel"
)

var _ channel.Sink = (*Sink)(nil)

// message is the JSON shape pushed to every connected dashboard client.
// Frame data (pixels, bin counts) is deliberately never included here —
// only metadata about it — so this feed cannot be mistaken for an image
// renderer.
type message struct {
	Type      string  `json:"type"`
	Channel   string  `json:"channel,omitempty"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	BinCount  int     `json:"binCount,omitempty"`
	Rate      float64 `json:"rateHz,omitempty"`
	Frame     int     `json:"frameNumber,omitempty"`
	Kind      string  `json:"kind,omitempty"`
	Detail    string  `json:"detail,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// Sink adapts a Manager to implement channel.Sink, broadcasting a
// lightweight JSON message for each publication instead of forwarding
// any frame payload.
type Sink struct {
	manager *Manager
	logger  *slog.Logger
}

// NewSink wraps manager as a channel.Sink.
func NewSink(manager *Manager, logger *slog.Logger) *Sink {
	return &Sink{manager: manager, logger: logger}
}

func (s *Sink) broadcast(m message) {
	m.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(m)
	if err != nil {
		s.logger.Error("monitor: encoding dashboard message failed", "error", err)
		return
	}
	s.manager.Broadcast(data)
}

func (s *Sink) PublishImageFrame(channel string, width, height int, pixels []uint32) {
	s.broadcast(message{Type: "image_frame", Channel: channel, Width: width, Height: height})
}

func (s *Sink) PublishImageRunning(channel string, width, height int, sum []uint64) {
	s.broadcast(message{Type: "image_running", Channel: channel, Width: width, Height: height})
}

func (s *Sink) PublishImageWindow(channel string, width, height int, sum []uint64) {
	s.broadcast(message{Type: "image_window", Channel: channel, Width: width, Height: height})
}

func (s *Sink) PublishHistogramFrame(channel string, counts []uint32, centersMs []float64) {
	s.broadcast(message{Type: "histogram_frame", Channel: channel, BinCount: len(counts)})
}

func (s *Sink) PublishHistogramRunning(channel string, sum []uint64) {
	s.broadcast(message{Type: "histogram_running", Channel: channel, BinCount: len(sum)})
}

func (s *Sink) PublishHistogramWindow(channel string, sum []uint64) {
	s.broadcast(message{Type: "histogram_window", Channel: channel, BinCount: len(sum)})
}

func (s *Sink) PublishRate(channel string, hz float64) {
	s.broadcast(message{Type: "rate", Channel: channel, Rate: hz})
}

func (s *Sink) PublishFrameNumber(channel string, frameNumber int) {
	s.broadcast(message{Type: "frame_number", Channel: channel, Frame: frameNumber})
}

func (s *Sink) PublishEvent(channel string, kind string, detail string) {
	s.broadcast(message{Type: "event", Channel: channel, Kind: kind, Detail: detail})
}
