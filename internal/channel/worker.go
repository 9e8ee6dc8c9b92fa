package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/yourusername/tpx3drv/internal/metrics"
	"github.com/yourusername/tpx3drv/internal/wire"
)

// State is one of the per-channel lifecycle states of §4.6:
// Idle -> Connecting -> Running -> Stopping -> Idle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// reconnectDelay is the fixed backoff §4.2 specifies for reconnection
// while running.
const reconnectDelay = time.Second

// Worker owns one active streaming channel: its TCP reader (C2), header
// decoder (C3), and processor (C4/C5), run as one goroutine per §5's
// "parallel OS-level threads" — realized here as the idiomatic Go
// analogue, per spec.md §9's redesign note replacing void*/epicsThread
// entry points with a typed, joinable task.
type Worker struct {
	name string
	host string
	port int

	processor *Processor
	metrics   *metrics.Channel
	logger    *slog.Logger

	mu    sync.Mutex
	state State

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker builds a Worker for one channel. The processor must already
// be constructed with NewImageProcessor or NewHistogramProcessor.
func NewWorker(name, host string, port int, processor *Processor, m *metrics.Channel, logger *slog.Logger) *Worker {
	return &Worker{
		name:      name,
		host:      host,
		port:      port,
		processor: processor,
		metrics:   m,
		logger:    logger,
		state:     StateIdle,
	}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Start launches the worker's goroutine. Cooperative stop: Stop clears
// the running signal; the loop observes it either immediately (during
// backoff) or after its current blocking read returns.
func (w *Worker) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.setState(StateConnecting)

	go w.run(runCtx)
}

// Stop signals the worker to exit and blocks until its goroutine has
// joined, satisfying §5's "cancellation timeliness" and §8's "stop ∘ stop
// = stop" (a Stop on an already-idle worker is a no-op).
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.setState(StateStopping)
	w.cancel()
	<-w.done
	w.processor.Reset()
	w.metrics.Reset()
	w.setState(StateIdle)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	for {
		if ctx.Err() != nil {
			return
		}

		reader, err := wire.NewReader(w.host, w.port)
		if err != nil {
			w.logger.Error("channel: bad address", "channel", w.name, "error", err)
			return
		}

		w.setState(StateConnecting)
		if err := reader.Connect(ctx); err != nil {
			w.logger.Warn("channel: connect failed, backing off", "channel", w.name, "error", err)
			if !sleepOrDone(ctx, reconnectDelay) {
				return
			}
			continue
		}

		w.setState(StateRunning)
		w.readLoop(ctx, reader)
		reader.Close()

		if ctx.Err() != nil {
			return
		}
		w.setState(StateConnecting)
		if !sleepOrDone(ctx, reconnectDelay) {
			return
		}
	}
}

// readLoop implements C2->C3->C4/C5 for as long as the connection stays
// up and ctx isn't cancelled; it returns on peer close, socket error, or
// cancellation, letting run() decide whether to reconnect.
func (w *Worker) readLoop(ctx context.Context, reader *wire.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}

		hdr, err := reader.NextHeader(ctx)
		if err != nil {
			if !errors.Is(err, wire.ErrPeerClosed) {
				w.logger.Warn("channel: reader error", "channel", w.name, "error", err)
			}
			return
		}

		header, err := wire.DecodeHeader(hdr)
		if err != nil {
			w.logger.Debug("channel: dropping frame with bad header", "channel", w.name, "error", err)
			continue
		}

		size := w.processor.PayloadSize(header)
		payload, err := reader.ReadPayload(ctx, size)
		if err != nil {
			w.logger.Warn("channel: short payload, dropping frame", "channel", w.name, "error", err)
			continue
		}

		start := time.Now()
		var (
			total uint64
			perr  error
		)
		if header.IsHistogram {
			total, perr = w.processor.ProcessHistogram(header, payload)
		} else {
			total, perr = w.processor.ProcessImage(header, payload)
		}
		procDuration := time.Since(start)
		if perr != nil {
			w.logger.Warn("channel: processing error", "channel", w.name, "error", perr)
			continue
		}

		w.metrics.Observe(header.FrameNumber, start, procDuration, total)
		if w.metrics.ShouldPublish(time.Now()) {
			snap := w.metrics.Snapshot()
			w.processor.sink.PublishRate(w.name, snap.Rate)
		}
		w.processor.sink.PublishFrameNumber(w.name, header.FrameNumber)
	}
}

// sleepOrDone waits for d or ctx cancellation, whichever comes first,
// reporting whether the sleep completed normally.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
