//go:build !tpx3_epics

package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestLogFacadeImplementsFacade(t *testing.T) {
	var _ Facade = NewLogFacade(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestQueuePublishAndDrain(t *testing.T) {
	q := NewQueue(2)
	q.Publish(Callback{Name: "a", Value: 1})
	q.Publish(Callback{Name: "b", Value: 2})

	select {
	case cb := <-q.Channel():
		if cb.Name != "a" {
			t.Errorf("expected first callback a, got %s", cb.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := NewQueue(1)
	q.Publish(Callback{Name: "first"})
	q.Publish(Callback{Name: "second"})

	select {
	case cb := <-q.Channel():
		if cb.Name != "second" {
			t.Errorf("expected queue to keep the newest callback, got %s", cb.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func TestLogFacadeCloseClosesCallbacks(t *testing.T) {
	f := NewLogFacade(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-f.Callbacks(); ok {
		t.Error("expected callbacks channel to be closed")
	}
}
