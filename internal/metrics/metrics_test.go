package metrics

import (
	"testing"
	"time"
)

func TestObserveDetectsFrameLoss(t *testing.T) {
	var losses []FrameLoss
	c := NewChannel("raw", func(l FrameLoss) { losses = append(losses, l) })

	base := time.Now()
	c.Observe(0, base, time.Millisecond, 10)
	c.Observe(2, base.Add(time.Second), time.Millisecond, 10) // gap of 2 -> loss

	if len(losses) != 1 {
		t.Fatalf("expected 1 frame loss, got %d", len(losses))
	}
	if losses[0].Previous != 0 || losses[0].Current != 2 {
		t.Errorf("unexpected loss record: %+v", losses[0])
	}
	if got := c.Snapshot().FrameLosses; got != 1 {
		t.Errorf("expected Snapshot().FrameLosses == 1, got %d", got)
	}
}

func TestObserveNoLossOnSequentialFrames(t *testing.T) {
	var losses []FrameLoss
	c := NewChannel("raw", func(l FrameLoss) { losses = append(losses, l) })

	base := time.Now()
	for i := 0; i < 5; i++ {
		c.Observe(i, base.Add(time.Duration(i)*time.Second), time.Millisecond, 1)
	}
	if len(losses) != 0 {
		t.Errorf("expected no losses, got %d", len(losses))
	}
}

func TestTotalCountsAccumulates(t *testing.T) {
	c := NewChannel("raw", nil)
	base := time.Now()
	c.Observe(0, base, time.Millisecond, 36)
	snap := c.Snapshot()
	if snap.TotalCounts != 36 {
		t.Errorf("expected total counts 36, got %d", snap.TotalCounts)
	}
}

func TestResetClearsState(t *testing.T) {
	c := NewChannel("raw", nil)
	c.Observe(5, time.Now(), time.Millisecond, 10)
	c.Reset()
	snap := c.Snapshot()
	if snap.TotalCounts != 0 || snap.Rate != 0 {
		t.Errorf("expected cleared metrics after reset, got %+v", snap)
	}
}

func TestMemoryUsageMiBHeadroomEstimate(t *testing.T) {
	usage := MemoryUsageMiB(512, 512, 2, 10)
	if usage <= 0 {
		t.Errorf("expected positive memory estimate, got %v", usage)
	}
}

func TestMemoryEstimatorHighWaterForcesRecompute(t *testing.T) {
	var e MemoryEstimator
	now := time.Now()
	if !e.ShouldRecompute(now, 95, 100) {
		t.Error("expected recompute at 95% full buffer")
	}
}

func TestMemoryEstimatorIntervalGating(t *testing.T) {
	var e MemoryEstimator
	now := time.Now()
	if !e.ShouldRecompute(now, 0, 100) {
		t.Error("expected first call to trigger recompute")
	}
	if e.ShouldRecompute(now.Add(time.Second), 0, 100) {
		t.Error("expected no recompute within interval")
	}
	if !e.ShouldRecompute(now.Add(6*time.Second), 0, 100) {
		t.Error("expected recompute after interval elapses")
	}
}
