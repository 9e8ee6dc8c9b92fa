package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeStatus struct {
	running  bool
	statuses []ChannelStatus
}

func (f fakeStatus) Running() bool                   { return f.running }
func (f fakeStatus) ChannelStatuses() []ChannelStatus { return f.statuses }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleLiveness(t *testing.T) {
	s := New("127.0.0.1:0", fakeStatus{running: true}, NewRegistry(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.handleLiveness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestHandleReadinessNotRunning(t *testing.T) {
	s := New("127.0.0.1:0", fakeStatus{running: false}, NewRegistry(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	s.handleReadiness(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when not running, got %d", w.Code)
	}
}

func TestHandleReadinessRunning(t *testing.T) {
	s := New("127.0.0.1:0", fakeStatus{running: true, statuses: []ChannelStatus{{Name: "raw", Connected: true}}}, NewRegistry(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	s.handleReadiness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 when running, got %d", w.Code)
	}
}

func TestHandleMetricsRendersRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Update(ChannelMetrics{Name: "raw", Rate: 10, TotalCounts: 100})
	s := New("127.0.0.1:0", fakeStatus{running: true}, reg, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.handleMetrics(w, req)

	body := w.Body.String()
	if !strings.Contains(body, `tpx3drv_channel_frame_rate_hz{channel="raw"} 10`) {
		t.Errorf("expected rate metric in output, got:\n%s", body)
	}
}
