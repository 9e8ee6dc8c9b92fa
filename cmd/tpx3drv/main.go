package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourusername/tpx3drv/internal/bus"
	"github.com/yourusername/tpx3drv/internal/channel"
	"github.com/yourusername/tpx3drv/internal/config"
	"github.com/yourusername/tpx3drv/internal/coordinator"
	"github.com/yourusername/tpx3drv/internal/eventqueue"
	"github.com/yourusername/tpx3drv/internal/httpapi"
	"github.com/yourusername/tpx3drv/internal/monitor"
	"github.com/yourusername/tpx3drv/internal/restclient"
)

// eventQueueDepth bounds the control-thread notification queue; the
// oldest event is dropped once it fills (eventqueue.Queue's policy).
const eventQueueDepth = 256

var version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve", "start":
		serve()
	case "version":
		fmt.Printf("tpx3drv v%s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func serve() {
	cfgPath := "tpx3drv.yaml"
	if len(os.Args) > 2 {
		cfgPath = os.Args[2]
	}

	logger, startupCloser := setupLogger("info", "json", "stdout")
	if startupCloser != nil {
		defer startupCloser.Close()
	}
	logger.Info("tpx3drv starting", "version", version)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	if startupCloser != nil {
		_ = startupCloser.Close()
		startupCloser = nil
	}
	logger, logCloser := setupLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if logCloser != nil {
		defer logCloser.Close()
	}

	rest := restclient.New(restclient.Config{
		BaseURL:  cfg.Serval.URL,
		Username: cfg.Serval.Username,
		Password: cfg.Serval.Password,
		Timeout:  cfg.Serval.Timeout.Duration(),
	})

	facade := bus.NewLogFacade(logger)
	defer facade.Close()

	sinks := []channel.Sink{bus.NewSink(facade)}

	var monitorManager *monitor.Manager
	if cfg.Monitor.Enabled {
		monitorManager = monitor.NewManager(logger)
		sinks = append(sinks, monitor.NewSink(monitorManager, logger))
	}

	registry := httpapi.NewRegistry()

	events := eventqueue.NewQueue(eventQueueDepth)
	var auditLog *eventqueue.AuditLog
	if cfg.Logging.Output != "" && cfg.Logging.Output != "stdout" && cfg.Logging.Output != "stderr" {
		if f, err := os.OpenFile(cfg.Logging.Output+".events", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			auditLog = eventqueue.NewAuditLog(f)
			defer f.Close()
		}
	}
	go drainEvents(events, auditLog, logger)

	co := coordinator.New(rest, cfg, channel.FanOut{Sinks: sinks}, registry, events, logger)

	var opsServer *httpapi.Server
	if cfg.HTTPAPI.Enabled {
		opsServer = httpapi.New(cfg.HTTPAPI.Address, co, registry, logger)
	}

	var monitorServer *http.Server
	if monitorManager != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Monitor.Path, monitor.NewHandler(monitorManager, logger))
		monitorServer = &http.Server{Addr: cfg.Monitor.Address, Handler: mux}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := co.StartAcquisition(ctx); err != nil {
		logger.Error("initial acquisition start failed", "error", err)
	}

	if opsServer != nil {
		go func() {
			if err := opsServer.Start(ctx); err != nil {
				logger.Error("ops http server error", "error", err)
			}
		}()
	}
	if monitorServer != nil {
		go func() {
			if err := monitorServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("monitor http server error", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("tpx3drv ready", "serval", cfg.Serval.URL)

	<-quit
	logger.Info("shutdown signal received")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := co.StopAcquisition(stopCtx); err != nil {
		logger.Error("acquisition stop error", "error", err)
	}
	if opsServer != nil {
		if err := opsServer.Stop(); err != nil {
			logger.Error("ops http server shutdown error", "error", err)
		}
	}
	if monitorServer != nil {
		if err := monitorServer.Shutdown(stopCtx); err != nil {
			logger.Error("monitor http server shutdown error", "error", err)
		}
	}

	logger.Info("tpx3drv stopped")
}

// drainEvents is the control thread's consumer side of the coordinator's
// notification queue: it logs every event and, if an audit log is
// configured, appends it there. Returns when events is closed.
func drainEvents(events *eventqueue.Queue, auditLog *eventqueue.AuditLog, logger *slog.Logger) {
	streamID := uint16(0)
	for e := range events.Events() {
		logger.Info("control event", "kind", e.Kind, "channel", e.Channel, "detail", e.Detail)
		if auditLog != nil {
			if err := auditLog.Write(e, streamID); err != nil {
				logger.Error("audit log write failed", "error", err)
			}
		}
	}
}

func setupLogger(level, format, output string) (*slog.Logger, io.Closer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	writer, closer := resolveLogOutput(output)
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(handler), closer
}

func resolveLogOutput(output string) (io.Writer, io.Closer) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stdout, nil
		}
		return f, f
	}
}

func printUsage() {
	fmt.Println(`tpx3drv - Timepix3/Serval detector driver

Usage:
  tpx3drv <command> [options]

Commands:
  serve [config]   Start the driver (default config: tpx3drv.yaml)
  start [config]   Alias for serve
  version          Show version
  help             Show this help

Signals:
  SIGINT/SIGTERM   Graceful shutdown (stops acquisition, joins workers)

Examples:
  tpx3drv serve
  tpx3drv serve /etc/tpx3drv/tpx3drv.yaml
  tpx3drv version`)
}
