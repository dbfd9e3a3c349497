package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pocketbook/internal/core"
	"pocketbook/internal/storage"
)

type recordingNotifier struct {
	loanIDs []string
}

func (n *recordingNotifier) LoanAdded(_ context.Context, loanID string) {
	n.loanIDs = append(n.loanIDs, loanID)
}

func newTestLedger(t *testing.T) (*Ledger, *storage.SQLiteStore, *recordingNotifier) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "pocketbook.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	notifier := &recordingNotifier{}
	l := New(store, notifier)
	l.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return l, store, notifier
}

func TestAddLoanCreates(t *testing.T) {
	l, store, notifier := newTestLedger(t)
	ctx := context.Background()

	res, err := l.AddLoan(ctx, "Alice", core.OwedToMe, core.Money{Cents: 5000}, core.NewDate(2026, 3, 1), AddOptions{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.Merged {
		t.Fatal("first loan should not report merged")
	}
	loan := res.Loan
	if loan.Principal.Cents != 5000 || loan.Balance.Cents != 5000 {
		t.Fatalf("amounts: %+v", loan)
	}
	if len(loan.Issuances) != 1 || loan.Issuances[0].Amount.Cents != 5000 {
		t.Fatalf("issuances: %+v", loan.Issuances)
	}
	if loan.Notes != "You loaned Alice 50.00 on 01/03/2026" {
		t.Fatalf("default note = %q", loan.Notes)
	}

	pending, _ := store.PendingMutations(ctx)
	if len(pending) != 1 || pending[0].Kind != core.MutationCreate || pending[0].Collection != core.CollectionLoans {
		t.Fatalf("outbox: %+v", pending)
	}
	if len(notifier.loanIDs) != 1 || notifier.loanIDs[0] != loan.ID {
		t.Fatalf("notifier calls: %v", notifier.loanIDs)
	}
}

// Lodging against an existing counterparty of the same type merges the amount
// as a new issuance instead of creating a duplicate record.
func TestAddLoanMergesByNameAndType(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()

	first, err := l.AddLoan(ctx, "Alice", core.OwedToMe, core.Money{Cents: 5000}, core.NewDate(2026, 3, 1), AddOptions{})
	if err != nil {
		t.Fatalf("first add: %v", err)
	}

	// Name match is case-insensitive.
	second, err := l.AddLoan(ctx, "alice", core.OwedToMe, core.Money{Cents: 2500}, core.NewDate(2026, 3, 2), AddOptions{Notes: "lunch"})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if !second.Merged {
		t.Fatal("expected merge")
	}
	if second.Loan.ID != first.Loan.ID {
		t.Fatal("merge should reuse the existing loan record")
	}
	if second.Loan.Principal.Cents != 7500 || second.Loan.Balance.Cents != 7500 {
		t.Fatalf("merged amounts: %+v", second.Loan)
	}
	if len(second.Loan.Issuances) != 2 || second.Loan.Issuances[1].Notes != "lunch" {
		t.Fatalf("merged issuances: %+v", second.Loan.Issuances)
	}

	loans, _ := store.Loans(ctx)
	if len(loans) != 1 {
		t.Fatalf("expected a single loan record, got %d", len(loans))
	}

	pending, _ := store.PendingMutations(ctx)
	if len(pending) != 2 || pending[1].Kind != core.MutationUpdate {
		t.Fatalf("outbox after merge: %+v", pending)
	}
}

// The opposite direction never merges: owing Alice and being owed by Alice
// are distinct records.
func TestAddLoanDifferentTypeDoesNotMerge(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.AddLoan(ctx, "Alice", core.OwedToMe, core.Money{Cents: 5000}, core.NewDate(2026, 3, 1), AddOptions{}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	res, err := l.AddLoan(ctx, "Alice", core.OwedByMe, core.Money{Cents: 1000}, core.NewDate(2026, 3, 2), AddOptions{})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if res.Merged {
		t.Fatal("opposite direction must not merge")
	}
	loans, _ := store.Loans(ctx)
	if len(loans) != 2 {
		t.Fatalf("expected 2 records, got %d", len(loans))
	}
}

// Saving the counterparty as a new record opts out of merging.
func TestAddLoanSaveCounterpartySkipsMerge(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.AddLoan(ctx, "Bob", core.OwedByMe, core.Money{Cents: 3000}, core.NewDate(2026, 3, 1), AddOptions{}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	res, err := l.AddLoan(ctx, "Bob", core.OwedByMe, core.Money{Cents: 1000}, core.NewDate(2026, 3, 2), AddOptions{SaveCounterparty: true})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if res.Merged {
		t.Fatal("save-counterparty add must not merge")
	}
	if res.Loan.CounterpartID == "" {
		t.Fatal("saved counterparty id not attached to the loan")
	}

	cps, _ := store.Counterparties(ctx)
	if len(cps) != 1 || cps[0].Name != "Bob" {
		t.Fatalf("counterparties: %+v", cps)
	}
}

func TestAddLoanValidation(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	date := core.NewDate(2026, 3, 1)

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{"empty counterpart", func() error {
			_, err := l.AddLoan(ctx, "  ", core.OwedToMe, core.Money{Cents: 100}, date, AddOptions{})
			return err
		}, core.ErrEmptyCounterparty},
		{"bad type", func() error {
			_, err := l.AddLoan(ctx, "Alice", "gift", core.Money{Cents: 100}, date, AddOptions{})
			return err
		}, core.ErrUnknownLoanType},
		{"zero amount", func() error {
			_, err := l.AddLoan(ctx, "Alice", core.OwedToMe, core.Money{}, date, AddOptions{})
			return err
		}, core.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecordPaymentClampsBalance(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()

	res, err := l.AddLoan(ctx, "Carol", core.OwedToMe, core.Money{Cents: 4000}, core.NewDate(2026, 3, 1), AddOptions{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	paid, err := l.RecordPayment(ctx, res.Loan.ID, core.Money{Cents: 1500}, "first chunk", 0)
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if paid.Balance.Cents != 2500 || len(paid.Payments) != 1 {
		t.Fatalf("after payment: %+v", paid)
	}
	if paid.Payments[0].Date == 0 {
		t.Fatal("zero payment date should default to now")
	}

	// Overpayment settles rather than failing.
	paid, err = l.RecordPayment(ctx, res.Loan.ID, core.Money{Cents: 9999}, "", 0)
	if err != nil {
		t.Fatalf("overpayment: %v", err)
	}
	if paid.Balance.Cents != 0 || !paid.Settled() {
		t.Fatalf("overpaid loan not settled: %+v", paid)
	}

	if _, err := l.RecordPayment(ctx, res.Loan.ID, core.Money{Cents: 0}, "", 0); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	if _, err := l.RecordPayment(ctx, "missing", core.Money{Cents: 100}, "", 0); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	pending, _ := store.PendingMutations(ctx)
	// One create plus two payment updates.
	if len(pending) != 3 {
		t.Fatalf("outbox size = %d", len(pending))
	}
}

// A settled loan stays on the books and a later merge reactivates it.
func TestMergeReactivatesSettledLoan(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	res, err := l.AddLoan(ctx, "Dan", core.OwedToMe, core.Money{Cents: 1000}, core.NewDate(2026, 3, 1), AddOptions{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := l.RecordPayment(ctx, res.Loan.ID, core.Money{Cents: 1000}, "", 0); err != nil {
		t.Fatalf("settle: %v", err)
	}

	merged, err := l.AddLoan(ctx, "Dan", core.OwedToMe, core.Money{Cents: 500}, core.NewDate(2026, 3, 5), AddOptions{})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !merged.Merged || merged.Loan.Balance.Cents != 500 || merged.Loan.Settled() {
		t.Fatalf("reactivated loan: %+v", merged.Loan)
	}
	if merged.Loan.Principal.Cents != 1500 {
		t.Fatalf("principal = %d", merged.Loan.Principal.Cents)
	}
}

// An overpaid loan clamps to zero, and a later issuance for the same
// counterparty still merges instead of duplicating.
func TestMergeAfterOverpayment(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()

	res, err := l.AddLoan(ctx, "Bob", core.OwedToMe, core.Money{Cents: 10000}, core.NewDate(2026, 3, 1), AddOptions{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	paid, err := l.RecordPayment(ctx, res.Loan.ID, core.Money{Cents: 15000}, "", 0)
	if err != nil {
		t.Fatalf("overpayment: %v", err)
	}
	if paid.Balance.Cents != 0 {
		t.Fatalf("balance = %d, want clamp to 0", paid.Balance.Cents)
	}

	merged, err := l.AddLoan(ctx, "Bob", core.OwedToMe, core.Money{Cents: 5000}, core.NewDate(2026, 3, 5), AddOptions{})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !merged.Merged {
		t.Fatal("expected merge into the overpaid loan")
	}
	if merged.Loan.Principal.Cents != 15000 || merged.Loan.Balance.Cents != 5000 {
		t.Fatalf("merged amounts: %+v", merged.Loan)
	}

	loans, _ := store.Loans(ctx)
	if len(loans) != 1 {
		t.Fatalf("expected a single loan record, got %d", len(loans))
	}
}

func TestDeleteLoan(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()

	res, err := l.AddLoan(ctx, "Eve", core.OwedByMe, core.Money{Cents: 2000}, core.NewDate(2026, 3, 1), AddOptions{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	deleted, err := l.DeleteLoan(ctx, res.Loan.ID)
	if err != nil || deleted.ID != res.Loan.ID {
		t.Fatalf("delete: %+v err=%v", deleted, err)
	}
	loans, _ := store.Loans(ctx)
	if len(loans) != 0 {
		t.Fatalf("loan not removed: %+v", loans)
	}

	pending, _ := store.PendingMutations(ctx)
	last := pending[len(pending)-1]
	if last.Kind != core.MutationDelete {
		t.Fatalf("last mutation = %+v", last)
	}
	// The delete payload carries the pre-deletion snapshot.
	id, err := last.EntityID()
	if err != nil || id != res.Loan.ID {
		t.Fatalf("delete payload id = %q err=%v", id, err)
	}

	if _, err := l.DeleteLoan(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateLoanBasicPrincipalDelta(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	res, err := l.AddLoan(ctx, "Frank", core.OwedToMe, core.Money{Cents: 5000}, core.NewDate(2026, 3, 1), AddOptions{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	t.Run("increase appends issuance", func(t *testing.T) {
		p := core.Money{Cents: 7000}
		updated, err := l.UpdateLoanBasic(ctx, res.Loan.ID, BasicFields{Principal: &p})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Principal.Cents != 7000 || updated.Balance.Cents != 7000 {
			t.Fatalf("amounts: %+v", updated)
		}
		if len(updated.Issuances) != 2 || updated.Issuances[1].Amount.Cents != 2000 {
			t.Fatalf("issuances: %+v", updated.Issuances)
		}
	})

	t.Run("decrease keeps issuance history", func(t *testing.T) {
		p := core.Money{Cents: 6000}
		updated, err := l.UpdateLoanBasic(ctx, res.Loan.ID, BasicFields{Principal: &p})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Principal.Cents != 6000 || updated.Balance.Cents != 6000 {
			t.Fatalf("amounts: %+v", updated)
		}
		if len(updated.Issuances) != 2 {
			t.Fatalf("decrease should not touch issuances: %+v", updated.Issuances)
		}
	})

	t.Run("payment after decrease", func(t *testing.T) {
		// The decrease left principal below the issuance total; payments
		// keep working against the reduced amounts.
		paid, err := l.RecordPayment(ctx, res.Loan.ID, core.Money{Cents: 1000}, "", 0)
		if err != nil {
			t.Fatalf("payment: %v", err)
		}
		if paid.Balance.Cents != 5000 || paid.Principal.Cents != 6000 {
			t.Fatalf("after payment: %+v", paid)
		}
	})

	t.Run("rename", func(t *testing.T) {
		name := "Francesca"
		updated, err := l.UpdateLoanBasic(ctx, res.Loan.ID, BasicFields{CounterpartName: &name})
		if err != nil || updated.CounterpartName != "Francesca" {
			t.Fatalf("rename: %+v err=%v", updated, err)
		}
	})

	t.Run("non-positive principal rejected", func(t *testing.T) {
		p := core.Money{Cents: 0}
		if _, err := l.UpdateLoanBasic(ctx, res.Loan.ID, BasicFields{Principal: &p}); !errors.Is(err, core.ErrInvalidAmount) {
			t.Fatalf("err = %v, want ErrInvalidAmount", err)
		}
	})
}

func TestAddCounterpartyDedupes(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()

	first, err := l.AddCounterparty(ctx, "Grace")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := l.AddCounterparty(ctx, "grace")
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("case-insensitive duplicate should be touched, not created")
	}

	if _, err := l.AddCounterparty(ctx, "Heidi"); err != nil {
		t.Fatalf("add second: %v", err)
	}
	cps, _ := store.Counterparties(ctx)
	if len(cps) != 2 || cps[0].Name != "Heidi" {
		t.Fatalf("newest-first ordering broken: %+v", cps)
	}

	if _, err := l.AddCounterparty(ctx, "   "); !errors.Is(err, core.ErrEmptyCounterparty) {
		t.Fatalf("err = %v, want ErrEmptyCounterparty", err)
	}
}
