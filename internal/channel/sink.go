// Package channel implements the unified streaming-channel processor
// (spec.md §9: "unify into a single generic streaming channel
// parameterised by payload decoder and publication set") and the
// per-channel worker lifecycle state machine (C6).
package channel


// Sink receives a channel's three published views per frame: the current
// frame, the running sum, and (when refreshed) the rolling window sum.
// Both internal/bus and internal/monitor implement Sink so the processor
// never knows which — or how many — consumers are listening (§4.4:
// "all publications are performed outside any lock held by C1 state").
type Sink interface {
	PublishImageFrame(channel string, width, height int, pixels []uint32)
	PublishImageRunning(channel string, width, height int, sum []uint64)
	PublishImageWindow(channel string, width, height int, sum []uint64)

	PublishHistogramFrame(channel string, counts []uint32, centersMs []float64)
	PublishHistogramRunning(channel string, sum []uint64)
	PublishHistogramWindow(channel string, sum []uint64)

	PublishRate(channel string, hz float64)
	PublishFrameNumber(channel string, frameNumber int)
	PublishEvent(channel string, kind string, detail string)
}

// FanOut broadcasts every publication to all of Sinks in order. Used by
// the coordinator to wire both the parameter bus and the monitor
// dashboard feed to one processor.
type FanOut struct {
	Sinks []Sink
}

func (f FanOut) PublishImageFrame(channel string, width, height int, pixels []uint32) {
	for _, s := range f.Sinks {
		s.PublishImageFrame(channel, width, height, pixels)
	}
}

func (f FanOut) PublishImageRunning(channel string, width, height int, sum []uint64) {
	for _, s := range f.Sinks {
		s.PublishImageRunning(channel, width, height, sum)
	}
}

func (f FanOut) PublishImageWindow(channel string, width, height int, sum []uint64) {
	for _, s := range f.Sinks {
		s.PublishImageWindow(channel, width, height, sum)
	}
}

func (f FanOut) PublishHistogramFrame(channel string, counts []uint32, centersMs []float64) {
	for _, s := range f.Sinks {
		s.PublishHistogramFrame(channel, counts, centersMs)
	}
}

func (f FanOut) PublishHistogramRunning(channel string, sum []uint64) {
	for _, s := range f.Sinks {
		s.PublishHistogramRunning(channel, sum)
	}
}

func (f FanOut) PublishHistogramWindow(channel string, sum []uint64) {
	for _, s := range f.Sinks {
		s.PublishHistogramWindow(channel, sum)
	}
}

func (f FanOut) PublishRate(channel string, hz float64) {
	for _, s := range f.Sinks {
		s.PublishRate(channel, hz)
	}
}

func (f FanOut) PublishFrameNumber(channel string, frameNumber int) {
	for _, s := range f.Sinks {
		s.PublishFrameNumber(channel, frameNumber)
	}
}

func (f FanOut) PublishEvent(channel string, kind string, detail string) {
	for _, s := range f.Sinks {
		s.PublishEvent(channel, kind, detail)
	}
}
