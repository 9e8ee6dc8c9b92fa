package channel

import (
	"fmt"

	"github.com/yourusername/tpx3drv/internal/frame"
	"github.com/yourusername/tpx3drv/internal/wire"
)

// Config is the processor's per-channel tuning, sourced from
// config.ChannelConfig.
type Config struct {
	Name           string
	FramesToSum    int
	SumUpdateEvery int
	AccumulateData bool
}

// Processor is the unified C4/C5 streaming-channel processor: one shape
// parameterised by whether it decodes image or histogram payloads, per
// spec.md §9's unification note. Exactly one of the image/histogram
// state groups below is used for a given Processor, selected at
// construction by NewImageProcessor/NewHistogramProcessor.
type Processor struct {
	cfg  Config
	sink Sink

	isHistogram bool

	// image state
	accum             *frame.Accumulator
	buf               *frame.FrameBuffer
	imgScratch        []uint64
	framesSinceUpdate int

	// histogram state
	binAccum                                 *frame.BinAccumulator
	binBuf                                    *frame.BinBuffer
	binScratch                                []uint64
	edgesInit                                 bool
	lastBinSize, lastBinWidth, lastBinOffset int
}

// NewImageProcessor creates a Processor that decodes image frames.
func NewImageProcessor(cfg Config, sink Sink) *Processor {
	return &Processor{
		cfg:  cfg,
		sink: sink,
		buf:  frame.NewFrameBuffer(cfg.FramesToSum),
	}
}

// NewHistogramProcessor creates a Processor that decodes histogram frames.
func NewHistogramProcessor(cfg Config, sink Sink) *Processor {
	return &Processor{
		cfg:         cfg,
		sink:        sink,
		isHistogram: true,
		binBuf:      frame.NewBinBuffer(cfg.FramesToSum),
	}
}

// SetFramesToSum adjusts the rolling-window capacity mid-run, trimming
// and immediately republishing the window sum (§4.4: "frames_to_sum
// lowered mid-run").
func (p *Processor) SetFramesToSum(n int) {
	p.cfg.FramesToSum = n
	if p.isHistogram {
		p.binBuf.Resize(n)
		p.binScratch = p.binBuf.WindowSum(p.binScratch)
		p.sink.PublishHistogramWindow(p.cfg.Name, p.binScratch)
		return
	}
	p.buf.Resize(n)
	p.imgScratch = p.buf.WindowSum(p.imgScratch)
	p.sink.PublishImageWindow(p.cfg.Name, p.bufWidth(), p.bufHeight(), p.imgScratch)
}

func (p *Processor) bufWidth() int {
	if p.accum != nil {
		return p.accum.Width
	}
	return 0
}

func (p *Processor) bufHeight() int {
	if p.accum != nil {
		return p.accum.Height
	}
	return 0
}

// PayloadSize computes the expected byte length of a frame's binary
// payload from its decoded header, so the caller (Worker) can request
// exactly that many bytes from the reader.
func (p *Processor) PayloadSize(h *wire.Header) int {
	if h.IsHistogram {
		return h.BinSize * 4
	}
	bpp := 2
	if h.PixelFormat == wire.PixelU32 {
		bpp = 4
	}
	return h.Width * h.Height * bpp
}

// ProcessImage implements §4.4 steps 2-7 for one decoded image frame.
// It returns the sum of decoded pixel values, for the caller to feed
// into metrics.Channel.Observe as that frame's "total counts".
func (p *Processor) ProcessImage(h *wire.Header, payload []byte) (uint64, error) {
	format := frame.U16
	wide := h.PixelFormat == wire.PixelU32
	if wide {
		format = frame.U32
	}

	current := frame.NewPixelArray(h.Width, h.Height, format)
	decodeImagePixels(payload, wide, current.Pixels)

	var total uint64
	for _, v := range current.Pixels {
		total += uint64(v)
	}

	p.sink.PublishImageFrame(p.cfg.Name, current.Width, current.Height, current.Pixels)

	if !p.cfg.AccumulateData {
		return total, nil
	}

	if p.accum == nil || p.accum.Width != current.Width || p.accum.Height != current.Height {
		p.accum = frame.NewAccumulator(current.Width, current.Height)
		p.buf.Clear()
		p.sink.PublishEvent(p.cfg.Name, "ShapeChanged", fmt.Sprintf("%dx%d", current.Width, current.Height))
	}
	if err := p.accum.AddInto(current); err != nil {
		return total, fmt.Errorf("channel: %s: %w", p.cfg.Name, err)
	}
	p.sink.PublishImageRunning(p.cfg.Name, p.accum.Width, p.accum.Height, p.accum.Sum)

	p.buf.Push(current)
	p.framesSinceUpdate++
	if p.framesSinceUpdate >= p.cfg.SumUpdateEvery {
		p.framesSinceUpdate = 0
		p.imgScratch = p.buf.WindowSum(p.imgScratch)
		p.sink.PublishImageWindow(p.cfg.Name, p.accum.Width, p.accum.Height, p.imgScratch)
	}

	return total, nil
}

// ProcessHistogram implements §4.5 for one decoded histogram frame.
func (p *Processor) ProcessHistogram(h *wire.Header, payload []byte) (uint64, error) {
	current := frame.NewBinArray(h.BinSize, h.BinWidth, h.BinOffset)
	decodeHistogramCounts(payload, current.Counts)

	if !p.edgesInit || p.lastBinSize != h.BinSize || p.lastBinWidth != h.BinWidth || p.lastBinOffset != h.BinOffset {
		current.SetEdges(h.BinWidth, h.BinOffset)
		p.lastBinSize, p.lastBinWidth, p.lastBinOffset = h.BinSize, h.BinWidth, h.BinOffset
		p.edgesInit = true
	}

	var total uint64
	for _, v := range current.Counts {
		total += uint64(v)
	}

	centers := current.BinCenters()
	p.sink.PublishHistogramFrame(p.cfg.Name, current.Counts, centers)

	if !p.cfg.AccumulateData {
		return total, nil
	}

	if p.binAccum == nil || p.binAccum.BinCount != current.BinCount {
		p.binAccum = frame.NewBinAccumulator(current.BinCount)
		p.binBuf.Clear()
		p.sink.PublishEvent(p.cfg.Name, "ShapeChanged", fmt.Sprintf("bins=%d", current.BinCount))
	}
	if err := p.binAccum.AddInto(current); err != nil {
		return total, fmt.Errorf("channel: %s: %w", p.cfg.Name, err)
	}
	p.sink.PublishHistogramRunning(p.cfg.Name, p.binAccum.Sum)

	p.binBuf.Push(current)
	p.framesSinceUpdate++
	if p.framesSinceUpdate >= p.cfg.SumUpdateEvery {
		p.framesSinceUpdate = 0
		p.binScratch = p.binBuf.WindowSum(p.binScratch)
		p.sink.PublishHistogramWindow(p.cfg.Name, p.binScratch)
	}

	return total, nil
}

// MemoryShape reports the processor's current element count and
// bytes-per-element, for metrics.MemoryUsageMiB. Returns zeros until the
// first frame of a run has established a shape.
func (p *Processor) MemoryShape() (elements, bytesPerElement, framesToSum int) {
	if p.isHistogram {
		if p.binAccum == nil {
			return 0, 4, p.cfg.FramesToSum
		}
		return p.binAccum.BinCount, 4, p.cfg.FramesToSum
	}
	if p.accum == nil {
		return 0, 2, p.cfg.FramesToSum
	}
	return p.accum.Width * p.accum.Height, 2, p.cfg.FramesToSum
}

// Reset clears accumulator/buffer state on a clean stop (§7).
func (p *Processor) Reset() {
	if p.isHistogram {
		p.binAccum = nil
		p.binBuf.Clear()
		p.edgesInit = false
		p.framesSinceUpdate = 0
		return
	}
	p.accum = nil
	p.buf.Clear()
	p.framesSinceUpdate = 0
}
