package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcherFiresOnFirstSuccess(t *testing.T) {
	probe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer probe.Close()

	var fired atomic.Int32
	w := New(probe.URL, time.Hour, func() { fired.Add(1) })

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for fired.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("onOnline never fired")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !w.Online() {
		t.Fatal("watcher should report online")
	}
}

func TestWatcherOfflineToOnlineTransition(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	probe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer probe.Close()

	var fired atomic.Int32
	w := New(probe.URL, 20*time.Millisecond, func() { fired.Add(1) })

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop(context.Background())

	// Server errors count as unreachable.
	time.Sleep(50 * time.Millisecond)
	if w.Online() || fired.Load() != 0 {
		t.Fatalf("while failing: online=%v fired=%d", w.Online(), fired.Load())
	}

	failing.Store(false)
	deadline := time.Now().Add(5 * time.Second)
	for fired.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("transition never fired")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !w.Online() {
		t.Fatal("watcher should report online after recovery")
	}
}

func TestWatcherStartStop(t *testing.T) {
	probe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer probe.Close()

	w := New(probe.URL, time.Hour, nil)
	ctx := context.Background()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.Start(ctx); err == nil {
		t.Fatal("double start should fail")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	w := New("", 0, nil)
	if w.probeURL != DefaultProbeURL {
		t.Fatalf("probe url = %q", w.probeURL)
	}
	if w.interval != DefaultProbeInterval {
		t.Fatalf("interval = %v", w.interval)
	}
}
