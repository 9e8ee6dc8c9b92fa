package coordinator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/yourusername/tpx3drv/internal/config"
	"github.com/yourusername/tpx3drv/internal/eventqueue"
	"github.com/yourusername/tpx3drv/internal/httpapi"
	"github.com/yourusername/tpx3drv/internal/restclient"
)

type noopSink struct{}

func (noopSink) PublishImageFrame(string, int, int, []uint32)         {}
func (noopSink) PublishImageRunning(string, int, int, []uint64)       {}
func (noopSink) PublishImageWindow(string, int, int, []uint64)        {}
func (noopSink) PublishHistogramFrame(string, []uint32, []float64)    {}
func (noopSink) PublishHistogramRunning(string, []uint64)             {}
func (noopSink) PublishHistogramWindow(string, []uint64)               {}
func (noopSink) PublishRate(string, float64)                           {}
func (noopSink) PublishFrameNumber(string, int)                        {}
func (noopSink) PublishEvent(string, string, string)                   {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastCfg(destination string) *config.Config {
	cfg := config.Default()
	cfg.Acquisition.PreStartSleep = 0
	cfg.Acquisition.PreCleanSleep = 0
	cfg.Acquisition.PostStopSleep = 0
	cfg.Channels = []config.ChannelConfig{
		{
			Name: "raw", Kind: config.ChannelRaw, Enabled: true,
			Destination: destination, FramesToSum: 4, SumUpdateEvery: 1,
		},
	}
	return cfg
}

func TestStartAcquisitionLaunchesTCPWorker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)

	mux := http.NewServeMux()
	mux.HandleFunc("/measurement", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"Info": map[string]any{"Status": "DA_IDLE"}})
	})
	mux.HandleFunc("/measurement/start", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
	mux.HandleFunc("/measurement/stop", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rest := restclient.New(restclient.Config{BaseURL: srv.URL})
	cfg := fastCfg("tcp://" + addr.IP.String() + ":" + strconv.Itoa(addr.Port))
	co := New(rest, cfg, noopSink{}, nil, nil, discardLogger())

	if err := co.StartAcquisition(context.Background()); err != nil {
		t.Fatalf("StartAcquisition: %v", err)
	}
	if !co.Running() {
		t.Error("expected Running() true after successful start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		statuses := co.ChannelStatuses()
		if len(statuses) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	statuses := co.ChannelStatuses()
	if len(statuses) != 1 || statuses[0].Name != "raw" {
		t.Fatalf("expected one channel status for 'raw', got %v", statuses)
	}

	if err := co.StopAcquisition(context.Background()); err != nil {
		t.Fatalf("StopAcquisition: %v", err)
	}
	if co.Running() {
		t.Error("expected Running() false after stop")
	}
}

func TestStartAcquisitionFailsOnNon200Start(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/measurement", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"Info": map[string]any{"Status": "DA_IDLE"}})
	})
	mux.HandleFunc("/measurement/start", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rest := restclient.New(restclient.Config{BaseURL: srv.URL})
	cfg := fastCfg("")
	co := New(rest, cfg, noopSink{}, nil, nil, discardLogger())

	if err := co.StartAcquisition(context.Background()); err == nil {
		t.Error("expected StartFailed error on non-200 /measurement/start")
	}
	if co.Running() {
		t.Error("expected Running() false after failed start")
	}
}

func TestStartAcquisitionPublishesToRegistry(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("{\"width\":2,\"height\":1,\"pixelFormat\":\"uint16\",\"frameNumber\":0}\n"))
		conn.Write([]byte{0x00, 0x01, 0x00, 0x02})
	}()
	addr := ln.Addr().(*net.TCPAddr)

	mux := http.NewServeMux()
	mux.HandleFunc("/measurement", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"Info": map[string]any{"Status": "DA_IDLE"}})
	})
	mux.HandleFunc("/measurement/start", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
	mux.HandleFunc("/measurement/stop", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rest := restclient.New(restclient.Config{BaseURL: srv.URL})
	cfg := fastCfg("tcp://" + addr.IP.String() + ":" + strconv.Itoa(addr.Port))
	cfg.Acquisition.PollInterval = config.Duration(5 * time.Millisecond)
	registry := httpapi.NewRegistry()
	co := New(rest, cfg, noopSink{}, registry, nil, discardLogger())

	if err := co.StartAcquisition(context.Background()); err != nil {
		t.Fatalf("StartAcquisition: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(registry.Render(), "tpx3drv_channel_frame_rate_hz{channel=\"raw\"}") {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	rendered := registry.Render()
	if !strings.Contains(rendered, "channel=\"raw\"") {
		t.Fatalf("expected registry to contain a sample for channel raw, got:\n%s", rendered)
	}

	if err := co.StopAcquisition(context.Background()); err != nil {
		t.Fatalf("StopAcquisition: %v", err)
	}
}

func TestStartStopPublishLifecycleEvents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/measurement", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"Info": map[string]any{"Status": "DA_IDLE"}})
	})
	mux.HandleFunc("/measurement/start", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
	mux.HandleFunc("/measurement/stop", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rest := restclient.New(restclient.Config{BaseURL: srv.URL})
	cfg := fastCfg("")
	events := eventqueue.NewQueue(8)
	co := New(rest, cfg, noopSink{}, nil, events, discardLogger())

	if err := co.StartAcquisition(context.Background()); err != nil {
		t.Fatalf("StartAcquisition: %v", err)
	}
	if err := co.StopAcquisition(context.Background()); err != nil {
		t.Fatalf("StopAcquisition: %v", err)
	}

	var kinds []eventqueue.Kind
	for i := 0; i < 2; i++ {
		select {
		case e := <-events.Events():
			kinds = append(kinds, e.Kind)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for lifecycle events")
		}
	}
	if len(kinds) != 2 || kinds[0] != eventqueue.KindLifecycle || kinds[1] != eventqueue.KindLifecycle {
		t.Fatalf("expected two lifecycle events, got %v", kinds)
	}
}

func TestDisabledAndNonTCPChannelsSkipped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/measurement", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"Info": map[string]any{"Status": "DA_IDLE"}})
	})
	mux.HandleFunc("/measurement/start", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rest := restclient.New(restclient.Config{BaseURL: srv.URL})
	cfg := config.Default()
	cfg.Channels = []config.ChannelConfig{
		{Name: "disabled", Enabled: false, Destination: "tcp://127.0.0.1:9"},
		{Name: "http-dest", Enabled: true, Destination: "http://example.invalid/"},
	}
	co := New(rest, cfg, noopSink{}, nil, nil, discardLogger())

	if err := co.StartAcquisition(context.Background()); err != nil {
		t.Fatalf("StartAcquisition: %v", err)
	}
	if len(co.ChannelStatuses()) != 0 {
		t.Errorf("expected no workers launched, got %v", co.ChannelStatuses())
	}
	co.StopAcquisition(context.Background())
}

