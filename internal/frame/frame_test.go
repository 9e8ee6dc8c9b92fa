package frame

import (
	"math"
	"testing"
)

func TestAccumulatorSaturation(t *testing.T) {
	a := NewAccumulator(2, 1)
	p := NewPixelArray(2, 1, U32)
	p.Pixels[0] = math.MaxUint32
	p.Pixels[1] = 1

	for i := 0; i < 2; i++ {
		if err := a.AddInto(p); err != nil {
			t.Fatalf("AddInto: %v", err)
		}
	}
	if a.Sum[0] != uint64(math.MaxUint32)*2 {
		t.Errorf("expected exact sum before overflow, got %d", a.Sum[0])
	}

	// Drive element 1 past U64 max.
	huge := NewPixelArray(2, 1, U32)
	huge.Pixels[1] = math.MaxUint32
	for i := 0; i < 5; i++ {
		// force an overflow by repeatedly adding near-max values
		a.Sum[1] = math.MaxUint64 - 1
		if err := a.AddInto(huge); err != nil {
			t.Fatalf("AddInto: %v", err)
		}
		if a.Sum[1] != math.MaxUint64 {
			t.Errorf("expected saturation at MaxUint64, got %d", a.Sum[1])
		}
	}
}

func TestAccumulatorShapeMismatch(t *testing.T) {
	a := NewAccumulator(2, 2)
	p := NewPixelArray(3, 3, U16)
	if err := a.AddInto(p); err != ErrShapeMismatch {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

// Scenario 2 from spec §8: two UINT32 frames into a 2x1 accumulator.
func TestScenarioTwoUint32Frames(t *testing.T) {
	a := NewAccumulator(2, 1)

	frameA := NewPixelArray(2, 1, U32)
	frameA.Pixels[0] = 1
	frameA.Pixels[1] = 2
	if err := a.AddInto(frameA); err != nil {
		t.Fatal(err)
	}

	frameB := NewPixelArray(2, 1, U32)
	frameB.Pixels[0] = 0xFFFFFFFF
	frameB.Pixels[1] = 5
	if err := a.AddInto(frameB); err != nil {
		t.Fatal(err)
	}

	if a.Sum[0] != 0x100000000 {
		t.Errorf("expected running sum[0]=0x100000000, got 0x%x", a.Sum[0])
	}
	if a.Sum[1] != 7 {
		t.Errorf("expected running sum[1]=7, got %d", a.Sum[1])
	}
	if frameB.Pixels[0] != 0xFFFFFFFF || frameB.Pixels[1] != 5 {
		t.Errorf("current frame after B mismatch: %v", frameB.Pixels)
	}
}

// Scenario 3 from spec §8: frame-buffer resize.
func TestScenarioFrameBufferResize(t *testing.T) {
	fb := NewFrameBuffer(3)
	values := []uint32{1, 2, 3, 4, 5}
	expected := []uint64{1, 3, 6, 9, 12}

	var scratch []uint64
	for i, v := range values {
		p := NewPixelArray(1, 1, U16)
		p.Pixels[0] = v
		fb.Push(p)
		scratch = fb.WindowSum(scratch)
		if scratch[0] != expected[i] {
			t.Errorf("frame %d: expected window sum %d, got %d", i, expected[i], scratch[0])
		}
	}

	fb.Resize(2)
	scratch = fb.WindowSum(scratch)
	if scratch[0] != 9 {
		t.Errorf("after resize to 2: expected window sum 9, got %d", scratch[0])
	}
}

func TestFrameBufferShapeChangeClears(t *testing.T) {
	fb := NewFrameBuffer(5)
	fb.Push(NewPixelArray(2, 2, U16))
	fb.Push(NewPixelArray(2, 2, U16))
	if fb.Len() != 2 {
		t.Fatalf("expected 2 frames, got %d", fb.Len())
	}
	fb.Push(NewPixelArray(3, 3, U16))
	if fb.Len() != 1 {
		t.Errorf("expected buffer cleared on shape change, got len %d", fb.Len())
	}
}

func TestBinArrayEdgesMonotonic(t *testing.T) {
	b := NewBinArray(4, 6, 0)
	for i := 1; i < len(b.Edges); i++ {
		if b.Edges[i] < b.Edges[i-1] {
			t.Errorf("edges not monotonic at %d: %v", i, b.Edges)
		}
	}
	want := float64(6) * TDCPeriod
	if math.Abs(b.Edges[1]-want) > 1e-20 {
		t.Errorf("expected edges[1]=%v, got %v", want, b.Edges[1])
	}
}

func TestBinAccumulatorSaturation(t *testing.T) {
	a := NewBinAccumulator(3)
	b := &BinArray{BinCount: 3, Counts: []uint32{10, 20, 30}}
	if err := a.AddInto(b); err != nil {
		t.Fatal(err)
	}
	if a.Sum[0] != 10 || a.Sum[1] != 20 || a.Sum[2] != 30 {
		t.Errorf("unexpected sums: %v", a.Sum)
	}
}
