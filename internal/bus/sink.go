package bus

import (
	"fmt"

	"github.com/yourusername/tpx3drv/internal/channel"
)

var _ channel.Sink = (*Sink)(nil)

// Sink adapts a Facade to implement channel.Sink, mapping each
// publication onto a named parameter the way spec.md §9 describes
// ("named typed setters" instead of the source's shared integer
// parameter-id table).
type Sink struct {
	facade Facade
}

// NewSink wraps facade as a channel.Sink.
func NewSink(facade Facade) *Sink {
	return &Sink{facade: facade}
}

func (s *Sink) PublishImageFrame(channel string, width, height int, pixels []uint32) {
	s.facade.PublishArray32(channel+":CurrentFrame", pixels)
}

func (s *Sink) PublishImageRunning(channel string, width, height int, sum []uint64) {
	s.facade.PublishArray64(channel+":RunningSum", sum)
}

func (s *Sink) PublishImageWindow(channel string, width, height int, sum []uint64) {
	s.facade.PublishArray64(channel+":WindowSum", sum)
}

func (s *Sink) PublishHistogramFrame(channel string, counts []uint32, centersMs []float64) {
	s.facade.PublishArray32(channel+":CurrentHistogram", counts)
}

func (s *Sink) PublishHistogramRunning(channel string, sum []uint64) {
	s.facade.PublishArray64(channel+":RunningHistogram", sum)
}

func (s *Sink) PublishHistogramWindow(channel string, sum []uint64) {
	s.facade.PublishArray64(channel+":WindowHistogram", sum)
}

func (s *Sink) PublishRate(channel string, hz float64) {
	s.facade.SetScalar(channel+":Rate", hz)
}

func (s *Sink) PublishFrameNumber(channel string, frameNumber int) {
	s.facade.SetScalar(channel+":FrameNumber", float64(frameNumber))
}

func (s *Sink) PublishEvent(channel string, kind string, detail string) {
	s.facade.SetString(channel+":LastEvent", fmt.Sprintf("%s: %s", kind, detail))
}
