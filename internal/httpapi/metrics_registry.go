package httpapi

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
)

// ChannelMetrics is one channel's values as handed to Registry for
// exposition; populated by the coordinator from internal/metrics.Channel
// snapshots on a ticker while an acquisition runs (see
// coordinator.publishMetricsLoop), not per scrape.
type ChannelMetrics struct {
	Name         string
	Rate         float64
	ProcTimeMs   float64
	TotalCounts  uint64
	MemoryMiB    float64
	FrameLosses  uint64
}

// Registry hand-builds a Prometheus text exposition, mirroring the
// teacher's HELP/TYPE-comment convention in internal/server/metrics.go.
type Registry struct {
	mu       sync.Mutex
	channels map[string]ChannelMetrics
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]ChannelMetrics)}
}

// Update replaces the stored snapshot for one channel.
func (r *Registry) Update(m ChannelMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[m.Name] = m
}

// Render produces the full Prometheus text-format body.
func (r *Registry) Render() string {
	r.mu.Lock()
	snapshot := make([]ChannelMetrics, 0, len(r.channels))
	for _, m := range r.channels {
		snapshot = append(snapshot, m)
	}
	r.mu.Unlock()

	var b strings.Builder

	b.WriteString("# HELP tpx3drv_channel_frame_rate_hz Mean frames per second over the rate sliding window.\n")
	b.WriteString("# TYPE tpx3drv_channel_frame_rate_hz gauge\n")
	for _, m := range snapshot {
		fmt.Fprintf(&b, "tpx3drv_channel_frame_rate_hz{channel=%q} %g\n", m.Name, m.Rate)
	}

	b.WriteString("# HELP tpx3drv_channel_processing_time_ms Mean per-frame processing time in milliseconds.\n")
	b.WriteString("# TYPE tpx3drv_channel_processing_time_ms gauge\n")
	for _, m := range snapshot {
		fmt.Fprintf(&b, "tpx3drv_channel_processing_time_ms{channel=%q} %g\n", m.Name, m.ProcTimeMs)
	}

	b.WriteString("# HELP tpx3drv_channel_total_counts_total Cumulative pixel/bin counts processed.\n")
	b.WriteString("# TYPE tpx3drv_channel_total_counts_total counter\n")
	for _, m := range snapshot {
		fmt.Fprintf(&b, "tpx3drv_channel_total_counts_total{channel=%q} %d\n", m.Name, m.TotalCounts)
	}

	b.WriteString("# HELP tpx3drv_channel_memory_usage_mib Estimated memory footprint of a channel's buffers.\n")
	b.WriteString("# TYPE tpx3drv_channel_memory_usage_mib gauge\n")
	for _, m := range snapshot {
		fmt.Fprintf(&b, "tpx3drv_channel_memory_usage_mib{channel=%q} %g\n", m.Name, m.MemoryMiB)
	}

	b.WriteString("# HELP tpx3drv_channel_frame_losses_total Frame-number gaps detected.\n")
	b.WriteString("# TYPE tpx3drv_channel_frame_losses_total counter\n")
	for _, m := range snapshot {
		fmt.Fprintf(&b, "tpx3drv_channel_frame_losses_total{channel=%q} %d\n", m.Name, m.FrameLosses)
	}

	b.WriteString("# HELP tpx3drv_go_goroutines Number of goroutines.\n")
	b.WriteString("# TYPE tpx3drv_go_goroutines gauge\n")
	fmt.Fprintf(&b, "tpx3drv_go_goroutines %d\n", runtime.NumGoroutine())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	b.WriteString("# HELP tpx3drv_go_memstats_alloc_bytes Number of bytes allocated by the Go runtime.\n")
	b.WriteString("# TYPE tpx3drv_go_memstats_alloc_bytes gauge\n")
	fmt.Fprintf(&b, "tpx3drv_go_memstats_alloc_bytes %d\n", mem.Alloc)

	return b.String()
}
