// Package coordinator implements the acquisition coordinator (spec.md
// §4.7): start_acquisition/stop_acquisition orchestration over Serval's
// REST surface and the per-channel workers of internal/channel. Sequencing
// and error-wrapping style follow maboo/internal/pool/pool.go's
// Start/Stop/Reload.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/yourusername/tpx3drv/internal/channel"
	"github.com/yourusername/tpx3drv/internal/config"
	"github.com/yourusername/tpx3drv/internal/destination"
	"github.com/yourusername/tpx3drv/internal/eventqueue"
	"github.com/yourusername/tpx3drv/internal/httpapi"
	"github.com/yourusername/tpx3drv/internal/metrics"
	"github.com/yourusername/tpx3drv/internal/restclient"
)

// ErrStartFailed is returned when Serval's /measurement/start does not
// answer 200.
var ErrStartFailed = errors.New("coordinator: start failed")

// Measurement statuses Serval reports via GET /measurement; a status
// outside {idle, stopped} means a stale run must be stopped before a new
// one can start (§4.7 step 2).
const (
	statusIdle    = "DA_IDLE"
	statusStopped = "DA_STOPPED"
)

type measurementInfo struct {
	Info struct {
		Status string `json:"Status"`
	} `json:"Info"`
}

// channelRuntime pairs a config entry with its live worker, processor and
// metrics, for channels the coordinator has actually launched.
type channelRuntime struct {
	cfg     config.ChannelConfig
	worker  *channel.Worker
	proc    *channel.Processor
	metrics *metrics.Channel
	memEst  metrics.MemoryEstimator
	lastMem float64
}

// Coordinator owns the acquisition lifecycle across all configured
// channels. It is the control thread of spec.md §5: the only caller of
// Serval's /measurement* endpoints and the only launcher/joiner of
// channel workers.
type Coordinator struct {
	rest     *restclient.Client
	cfg      *config.Config
	sink     channel.Sink
	registry *httpapi.Registry
	events   *eventqueue.Queue
	logger   *slog.Logger

	mu          sync.Mutex
	running     bool
	channels    map[string]*channelRuntime
	metricsDone chan struct{}
}

// New builds a Coordinator. sink receives every channel's published
// frames/metrics/events (typically a channel.FanOut over the parameter
// bus and the dashboard monitor). registry may be nil; if set, the
// coordinator feeds it a ChannelMetrics snapshot per channel on a
// ticker while an acquisition is running (spec.md §5: "one thread polls
// Serval's /measurement and publishes live measurement counters during
// a run" — the coordinator plays that role for the counters it already
// owns via internal/metrics). events may be nil; if set, lifecycle and
// frame-loss notifications are published to it for the control thread
// to drain, in addition to the slog warning each already gets.
func New(rest *restclient.Client, cfg *config.Config, sink channel.Sink, registry *httpapi.Registry, events *eventqueue.Queue, logger *slog.Logger) *Coordinator {
	return &Coordinator{rest: rest, cfg: cfg, sink: sink, registry: registry, events: events, logger: logger, channels: make(map[string]*channelRuntime)}
}

func (c *Coordinator) publishControlEvent(kind eventqueue.Kind, channelName, detail string) {
	if c.events == nil {
		return
	}
	c.events.Publish(eventqueue.Event{Kind: kind, Channel: channelName, Detail: detail, At: time.Now()})
}

// Running reports whether an acquisition is currently active.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// ChannelStatuses reports the connection state of each channel the
// current acquisition launched a worker for (disabled, non-TCP and
// unlaunched channels are not listed), for the readiness/health surface
// (internal/httpapi).
func (c *Coordinator) ChannelStatuses() []httpapi.ChannelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	statuses := make([]httpapi.ChannelStatus, 0, len(c.channels))
	for _, rt := range c.channels {
		connected := rt.worker != nil && rt.worker.State() == channel.StateRunning
		statuses = append(statuses, httpapi.ChannelStatus{Name: rt.cfg.Name, Connected: connected})
	}
	return statuses
}

// StartAcquisition implements §4.7's start_acquisition: clear any stale
// worker, stop a dangling measurement, start a fresh one, then launch one
// worker per enabled TCP streaming channel.
func (c *Coordinator) StartAcquisition(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.metricsDone != nil {
		close(c.metricsDone)
		c.metricsDone = nil
	}
	c.stopAllWorkersLocked()

	body, status, err := c.rest.GetJSON(ctx, "/measurement")
	if err != nil {
		return fmt.Errorf("coordinator: querying measurement status: %w", err)
	}
	if status == 200 {
		var info measurementInfo
		if err := json.Unmarshal(body, &info); err == nil {
			if info.Info.Status != statusIdle && info.Info.Status != statusStopped {
				if _, err := c.rest.PutJSON(ctx, "/measurement/stop", struct{}{}); err != nil {
					return fmt.Errorf("coordinator: stopping stale measurement: %w", err)
				}
				time.Sleep(c.cfg.Acquisition.PreCleanSleep.Duration())
			}
		}
	}

	if _, status, err := c.rest.GetText(ctx, "/measurement/start"); err != nil || status != 200 {
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStartFailed, err)
		}
		return fmt.Errorf("%w: status %d", ErrStartFailed, status)
	}

	for _, ch := range c.cfg.Channels {
		if !ch.Enabled || ch.Kind == config.ChannelPrvImg1 {
			continue
		}
		target, err := destination.Parse(ch.Destination)
		if err != nil || target.Kind != destination.KindTCP {
			continue
		}

		time.Sleep(c.cfg.Acquisition.PreStartSleep.Duration())

		port, err := strconv.Atoi(target.Port)
		if err != nil {
			c.logger.Error("coordinator: bad channel port, skipping", "channel", ch.Name, "error", err)
			continue
		}

		m := metrics.NewChannel(ch.Name, func(loss metrics.FrameLoss) {
			c.logger.Warn("frame loss", "channel", loss.Channel, "previous", loss.Previous, "current", loss.Current)
			c.publishControlEvent(eventqueue.KindFrameLoss, loss.Channel, fmt.Sprintf("%d->%d", loss.Previous, loss.Current))
		})
		procCfg := channel.Config{
			Name:           ch.Name,
			FramesToSum:    ch.FramesToSum,
			SumUpdateEvery: ch.SumUpdateEvery,
			AccumulateData: ch.AccumulateData,
		}
		var proc *channel.Processor
		if ch.Histogram {
			proc = channel.NewHistogramProcessor(procCfg, c.sink)
		} else {
			proc = channel.NewImageProcessor(procCfg, c.sink)
		}

		w := channel.NewWorker(ch.Name, target.Host, port, proc, m, c.logger)
		w.Start(ctx)

		c.channels[ch.Name] = &channelRuntime{cfg: ch, worker: w, proc: proc, metrics: m}
	}

	c.running = true
	c.publishControlEvent(eventqueue.KindLifecycle, "", "acquisition started")

	if c.registry != nil {
		done := make(chan struct{})
		c.metricsDone = done
		go c.publishMetricsLoop(done)
	}

	return nil
}

// publishMetricsLoop feeds c.registry a ChannelMetrics snapshot per
// tracked channel on AcquisitionConfig.PollInterval, until done is
// closed by StopAcquisition. Memory usage is only recomputed per
// metrics.MemoryEstimator's cadence, not every tick.
func (c *Coordinator) publishMetricsLoop(done <-chan struct{}) {
	interval := c.cfg.Acquisition.PollInterval.Duration()
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			c.publishMetricsOnce(now)
		}
	}
}

func (c *Coordinator) publishMetricsOnce(now time.Time) {
	c.mu.Lock()
	runtimes := make([]*channelRuntime, 0, len(c.channels))
	for _, rt := range c.channels {
		runtimes = append(runtimes, rt)
	}
	c.mu.Unlock()

	for _, rt := range runtimes {
		snap := rt.metrics.Snapshot()

		elements, bpp, framesToSum := rt.proc.MemoryShape()
		if rt.memEst.ShouldRecompute(now, 0, 0) {
			rt.lastMem = metrics.MemoryUsageMiB(elements, 1, bpp, framesToSum)
		}

		c.registry.Update(httpapi.ChannelMetrics{
			Name:        rt.cfg.Name,
			Rate:        snap.Rate,
			ProcTimeMs:  snap.ProcTimeMs,
			TotalCounts: snap.TotalCounts,
			MemoryMiB:   rt.lastMem,
			FrameLosses: snap.FrameLosses,
		})
	}
}

// StopAcquisition implements §4.7's stop_acquisition: stop the
// measurement, let Serval drain its senders, then join and disconnect
// every worker, finally polling /measurement once. The response of that
// final poll is discarded: no terminal counters are parsed or published.
func (c *Coordinator) StopAcquisition(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.rest.PutJSON(ctx, "/measurement/stop", struct{}{}); err != nil {
		c.logger.Warn("coordinator: measurement/stop failed", "error", err)
	}
	time.Sleep(c.cfg.Acquisition.PostStopSleep.Duration())

	if c.metricsDone != nil {
		close(c.metricsDone)
		c.metricsDone = nil
	}

	c.stopAllWorkersLocked()
	c.running = false
	c.publishControlEvent(eventqueue.KindLifecycle, "", "acquisition stopped")

	if _, _, err := c.rest.GetJSON(ctx, "/measurement"); err != nil {
		c.logger.Warn("coordinator: final measurement poll failed", "error", err)
	}
	return nil
}

// stopAllWorkersLocked joins and discards every live worker. Callers must
// hold c.mu.
func (c *Coordinator) stopAllWorkersLocked() {
	var wg sync.WaitGroup
	for name, rt := range c.channels {
		wg.Add(1)
		go func(rt *channelRuntime) {
			defer wg.Done()
			rt.worker.Stop()
		}(rt)
		delete(c.channels, name)
	}
	wg.Wait()
}
