package storage

import (
	"context"
	"path/filepath"
	"testing"

	"pocketbook/internal/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "pocketbook.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBudgetsRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.Budgets(ctx)
	if err != nil || got != nil {
		t.Fatalf("fresh store: budgets=%v err=%v", got, err)
	}

	budgets := []core.Budget{{
		ID:         "b1",
		GroupID:    "g1",
		Title:      "Rent",
		Planned:    core.Money{Cents: 120000},
		Period:     "2026-03",
		Date:       core.NewDate(2026, 3, 1),
		Category:   "Housing",
		Recurrence: core.RecurMonthly,
	}}
	if err := store.SaveBudgets(ctx, budgets); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err = store.Budgets(ctx)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b1" || got[0].Planned.Cents != 120000 {
		t.Fatalf("unexpected budgets: %+v", got)
	}
	if got[0].Date.ISO() != "2026-03-01" {
		t.Fatalf("date lost precision: %s", got[0].Date.ISO())
	}
}

func TestSaveNilNormalizesToEmpty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveLoans(ctx, []core.Loan{{ID: "l1", CounterpartName: "A", Type: core.OwedToMe,
		Principal: core.Money{Cents: 100}, Balance: core.Money{Cents: 100},
		Issuances: []core.Issuance{{ID: "i", Amount: core.Money{Cents: 100}}}}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveLoans(ctx, nil); err != nil {
		t.Fatalf("save nil: %v", err)
	}
	loans, err := store.Loans(ctx)
	if err != nil || len(loans) != 0 {
		t.Fatalf("after nil save: loans=%v err=%v", loans, err)
	}
}

func TestCategoriesSeedDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cats, err := store.Categories(ctx)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cats) == 0 {
		t.Fatal("fresh store should seed default categories")
	}

	cats = append(cats, "Pets")
	if err := store.SaveCategories(ctx, cats); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Categories(ctx)
	if err != nil || got[len(got)-1] != "Pets" {
		t.Fatalf("after save: cats=%v err=%v", got, err)
	}
}

func TestSettingsRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := core.Settings{Theme: "dark", Locale: "it-IT", Currency: "EUR"}
	if err := store.SaveSettings(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Settings(ctx)
	if err != nil || got != want {
		t.Fatalf("settings = %+v err=%v", got, err)
	}
}

func TestOutboxEnqueueAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id1, err := store.Enqueue(ctx, core.CollectionBudgets, core.MutationCreate, map[string]string{"id": "b1"})
	if err != nil {
		t.Fatalf("enqueue 1: %v", err)
	}
	id2, err := store.Enqueue(ctx, core.CollectionLoans, core.MutationDelete, map[string]string{"id": "l1"})
	if err != nil {
		t.Fatalf("enqueue 2: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("ids not monotonically increasing: %d then %d", id1, id2)
	}

	pending, err := store.PendingMutations(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != id1 || pending[1].ID != id2 {
		t.Fatalf("unexpected pending order: %+v", pending)
	}
	if pending[1].Collection != core.CollectionLoans || pending[1].Kind != core.MutationDelete {
		t.Fatalf("mutation fields lost: %+v", pending[1])
	}
	eid, err := pending[0].EntityID()
	if err != nil || eid != "b1" {
		t.Fatalf("entity id = %q err=%v", eid, err)
	}
}

func TestOutboxRejectsInvalidInput(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, "invoices_draft", core.MutationCreate, nil); err == nil {
		t.Fatal("invalid collection accepted")
	}
	if _, err := store.Enqueue(ctx, core.CollectionBudgets, "upsert", nil); err == nil {
		t.Fatal("invalid kind accepted")
	}
}

// A clear up to a snapshot id must leave entries enqueued after the snapshot
// untouched, otherwise a write racing a push would be lost forever.
func TestClearMutationsThroughIsPrefixOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for _, entity := range []string{"a", "b", "c"} {
		id, err := store.Enqueue(ctx, core.CollectionBudgets, core.MutationCreate, map[string]string{"id": entity})
		if err != nil {
			t.Fatalf("enqueue %s: %v", entity, err)
		}
		ids = append(ids, id)
	}

	// Snapshot covers the first two; the third arrived "during the push".
	if err := store.ClearMutationsThrough(ctx, ids[1]); err != nil {
		t.Fatalf("clear: %v", err)
	}

	pending, err := store.PendingMutations(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != ids[2] {
		t.Fatalf("expected only the late mutation to survive, got %+v", pending)
	}

	n, err := store.PendingCount(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count = %d err=%v", n, err)
	}
}
