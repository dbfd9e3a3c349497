// Package connectivity watches network reachability by probing an HTTP
// endpoint, and fires a callback on each offline-to-online transition so a
// sync attempt can start as soon as the network comes back.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	DefaultProbeURL      = "https://clients3.google.com/generate_204"
	DefaultProbeInterval = 15 * time.Second
	probeTimeout         = 5 * time.Second
)

// Watcher probes a URL on an interval and tracks the online state.
type Watcher struct {
	probeURL string
	interval time.Duration
	client   *http.Client
	onOnline func()

	mu      sync.Mutex
	running bool
	online  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds a watcher. onOnline runs on every offline-to-online transition,
// including the first successful probe.
func New(probeURL string, interval time.Duration, onOnline func()) *Watcher {
	if probeURL == "" {
		probeURL = DefaultProbeURL
	}
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Watcher{
		probeURL: probeURL,
		interval: interval,
		client:   &http.Client{Timeout: probeTimeout},
		onOnline: onOnline,
	}
}

// Start begins probing. Returns an error if already running.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("connectivity watcher is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Connectivity watcher started",
		"probe_url", w.probeURL,
		"interval", w.interval)
	return nil
}

// Stop halts probing.
func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

// Online reports the last observed reachability state.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

func (w *Watcher) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.probe(ctx)
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *Watcher) probe(ctx context.Context) {
	nowOnline := w.reachable(ctx)

	w.mu.Lock()
	wasOnline := w.online
	w.online = nowOnline
	w.mu.Unlock()

	if nowOnline && !wasOnline {
		slog.InfoContext(ctx, "Connectivity regained")
		if w.onOnline != nil {
			w.onOnline()
		}
	} else if !nowOnline && wasOnline {
		slog.WarnContext(ctx, "Connectivity lost")
	}
}

func (w *Watcher) reachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
