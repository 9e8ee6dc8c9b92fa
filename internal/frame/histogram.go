package frame

import "math/bits"

// TDCPeriod is the time quantum used to convert histogram bin offsets to
// seconds: 1.5625 / 6 nanoseconds.
const TDCPeriod = 1.5625 / 6 * 1e-9

// BinArray is a fixed-size 1D histogram frame with U32 counts and the
// bin-edge vector it was decoded against.
type BinArray struct {
	BinCount int
	Edges    []float64 // len BinCount+1
	Counts   []uint32
}

// NewBinArray allocates a zeroed histogram frame with edges computed from
// (binWidth, binOffset) per spec: edges[i] = (binOffset + i*binWidth) * TDCPeriod.
func NewBinArray(binCount int, binWidth, binOffset int) *BinArray {
	b := &BinArray{
		BinCount: binCount,
		Edges:    make([]float64, binCount+1),
		Counts:   make([]uint32, binCount),
	}
	b.SetEdges(binWidth, binOffset)
	return b
}

// SetEdges recomputes the edge vector. NewBinArray calls it for every
// new frame, so edges are computed once per frame whether or not
// (binSize, binWidth, binOffset) changed.
func (b *BinArray) SetEdges(binWidth, binOffset int) {
	for i := range b.Edges {
		b.Edges[i] = float64(binOffset+i*binWidth) * TDCPeriod
	}
}

// BinCenters returns the published time axis: center[i] = ((edges[i] +
// edges[i+1]) / 2) * 1000 ms.
func (b *BinArray) BinCenters() []float64 {
	centers := make([]float64, b.BinCount)
	for i := range centers {
		centers[i] = (b.Edges[i] + b.Edges[i+1]) / 2 * 1000
	}
	return centers
}

// BinAccumulator is the 64-bit saturating running sum over histogram
// frames of matching bin count.
type BinAccumulator struct {
	BinCount int
	Sum      []uint64
}

// NewBinAccumulator allocates a zeroed histogram accumulator.
func NewBinAccumulator(binCount int) *BinAccumulator {
	return &BinAccumulator{BinCount: binCount, Sum: make([]uint64, binCount)}
}

// AddInto adds a histogram frame into the accumulator element-wise,
// saturating at math.MaxUint64.
func (a *BinAccumulator) AddInto(b *BinArray) error {
	if a.BinCount != b.BinCount {
		return ErrShapeMismatch
	}
	for i, v := range b.Counts {
		sum, carry := bits.Add64(a.Sum[i], uint64(v), 0)
		if carry != 0 {
			sum = ^uint64(0)
		}
		a.Sum[i] = sum
	}
	return nil
}

// Reset zeroes the accumulator in place.
func (a *BinAccumulator) Reset() {
	for i := range a.Sum {
		a.Sum[i] = 0
	}
}
