// Package sync drains the pending-mutation outbox to the remote document
// store and pulls the remote snapshot back over the local cache. Attempts are
// driven by connectivity-regained events and explicit triggers, never by a
// poll timer.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pocketbook/internal/core"
	"pocketbook/internal/remote"
	"pocketbook/internal/storage"
)

// ErrSyncInProgress reports a SyncNow call that found an attempt already
// running. Triggers arriving mid-attempt are coalesced, not queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// Result reports what one sync attempt did.
type Result struct {
	Skipped       bool // an attempt was already running
	Pushed        int  // mutations committed remotely
	PulledBudgets int
	PulledLoans   int
}

// Engine owns the push/pull cycle. Start launches a background loop that
// runs one attempt per trigger; SyncNow runs an attempt inline.
type Engine struct {
	store  *storage.SQLiteStore
	remote remote.DocumentStore

	mu      sync.Mutex
	running bool
	syncing bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	trigger chan struct{}
}

func NewEngine(store *storage.SQLiteStore, docs remote.DocumentStore) *Engine {
	return &Engine{
		store:   store,
		remote:  docs,
		trigger: make(chan struct{}, 1),
	}
}

// Start begins the trigger loop. Returns an error if already running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("sync engine is already running")
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	go e.runLoop(ctx)

	slog.InfoContext(ctx, "Sync engine started")
	return nil
}

// Stop gracefully stops the loop, waiting for an in-flight attempt.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	close(e.stopCh)

	select {
	case <-e.doneCh:
		slog.InfoContext(ctx, "Sync engine stopped")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync engine stop timed out")
		return ctx.Err()
	}

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	return nil
}

// TriggerSync requests a sync attempt. Safe from any goroutine; a trigger
// arriving while one is already queued is dropped.
func (e *Engine) TriggerSync() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// LoanAdded implements the ledger's notifier: a fresh loan is worth pushing
// immediately.
func (e *Engine) LoanAdded(ctx context.Context, loanID string) {
	slog.DebugContext(ctx, "Sync requested for new loan", "loan_id", loanID)
	e.TriggerSync()
}

// Syncing reports whether an attempt is currently running.
func (e *Engine) Syncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

func (e *Engine) runLoop(ctx context.Context) {
	defer close(e.doneCh)

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-e.trigger:
			start := time.Now()
			res, err := e.SyncNow(ctx)
			if err != nil {
				// The outbox survives; the next connectivity event
				// or trigger retries from scratch.
				slog.WarnContext(ctx, "Sync attempt failed", "error", err)
				continue
			}
			slog.InfoContext(ctx, "Sync attempt finished",
				"pushed", res.Pushed,
				"pulled_budgets", res.PulledBudgets,
				"pulled_loans", res.PulledLoans,
				"duration_ms", time.Since(start).Milliseconds())
		}
	}
}

// SyncNow runs one full attempt: push the whole outbox as a single atomic
// remote commit, clear exactly the pushed prefix, then pull the remote
// budgets and loans snapshots over the local cache. The pull runs only after
// a successful push (or when the outbox was empty).
func (e *Engine) SyncNow(ctx context.Context) (Result, error) {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return Result{Skipped: true}, ErrSyncInProgress
	}
	e.syncing = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	pushed, err := e.push(ctx)
	if err != nil {
		return Result{}, err
	}

	budgets, loans, err := e.pull(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{Pushed: pushed, PulledBudgets: budgets, PulledLoans: loans}, nil
}

// push snapshots the outbox, commits it remotely in one batch and clears the
// snapshot's id prefix. Mutations enqueued while the commit is in flight keep
// their higher ids and survive for the next attempt.
func (e *Engine) push(ctx context.Context) (int, error) {
	pending, err := e.store.PendingMutations(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot outbox: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	maxID := pending[len(pending)-1].ID

	writes := make([]remote.Write, 0, len(pending))
	for _, m := range pending {
		id, err := m.EntityID()
		if err != nil {
			return 0, fmt.Errorf("mutation %d: %w", m.ID, err)
		}
		writes = append(writes, remote.Write{
			Collection: string(m.Collection),
			ID:         id,
			Data:       m.Payload,
			Delete:     m.Kind == core.MutationDelete,
		})
	}

	if err := e.remote.Commit(ctx, writes); err != nil {
		return 0, fmt.Errorf("push %d mutations: %w", len(writes), err)
	}
	if err := e.store.ClearMutationsThrough(ctx, maxID); err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Outbox pushed", "mutations", len(writes), "through_id", maxID)
	return len(writes), nil
}

// pull fetches both remote collections concurrently and overwrites the local
// cache with the remote snapshots, last writer wins at collection level.
func (e *Engine) pull(ctx context.Context) (budgetCount, loanCount int, err error) {
	var (
		budgets []core.Budget
		loans   []core.Loan
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := e.remote.ListAll(gctx, string(core.CollectionBudgets))
		if err != nil {
			return fmt.Errorf("pull budgets: %w", err)
		}
		budgets, err = decodeAll[core.Budget](docs)
		if err != nil {
			return fmt.Errorf("pull budgets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		docs, err := e.remote.ListAll(gctx, string(core.CollectionLoans))
		if err != nil {
			return fmt.Errorf("pull loans: %w", err)
		}
		loans, err = decodeAll[core.Loan](docs)
		if err != nil {
			return fmt.Errorf("pull loans: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	if err := e.store.SaveBudgets(ctx, budgets); err != nil {
		return 0, 0, err
	}
	if err := e.store.SaveLoans(ctx, loans); err != nil {
		return 0, 0, err
	}
	return len(budgets), len(loans), nil
}

func decodeAll[T any](docs []remote.Doc) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Data, &v); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", d.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}
