// Package ledger maintains loan records: lodging with counterparty
// merge-or-create semantics, payments, principal edits and the saved
// counterparty registry. The balance and principal invariants hold after
// every operation.
package ledger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pocketbook/internal/core"
	"pocketbook/internal/storage"
)

// Notifier receives a nudge whenever a loan is lodged, so a sync can start
// right away instead of waiting for the next connectivity event.
type Notifier interface {
	LoanAdded(ctx context.Context, loanID string)
}

// Ledger applies loan mutations against the local store and queues the
// corresponding outbox entries.
type Ledger struct {
	store    *storage.SQLiteStore
	notifier Notifier
	now      func() time.Time
}

func New(store *storage.SQLiteStore, notifier Notifier) *Ledger {
	return &Ledger{store: store, notifier: notifier, now: time.Now}
}

// AddOptions tunes loan lodging. SaveCounterparty creates a new saved
// counterparty record instead of merging by name; CounterpartID references an
// already-saved one. Notes overrides the generated default note.
type AddOptions struct {
	SaveCounterparty bool
	CounterpartID    string
	Notes            string
}

// AddResult reports what lodging did: the loan as stored, and whether the
// amount was merged into an existing loan rather than creating a new one.
type AddResult struct {
	Loan   core.Loan
	Merged bool
}

// AddLoan lodges a debt. When the counterparty is not being saved as a new
// record, an existing loan with the same name (case-insensitive) and type
// absorbs the amount as a fresh issuance instead of becoming a duplicate.
func (l *Ledger) AddLoan(ctx context.Context, counterpart string, loanType core.LoanType, amount core.Money, date core.Date, opts AddOptions) (AddResult, error) {
	counterpart = strings.TrimSpace(counterpart)
	if counterpart == "" {
		return AddResult{}, core.ErrEmptyCounterparty
	}
	if !loanType.Valid() {
		return AddResult{}, core.ErrUnknownLoanType
	}
	if amount.Cents <= 0 {
		return AddResult{}, core.ErrInvalidAmount
	}
	if len(opts.Notes) > core.MaxNotesLen {
		return AddResult{}, core.ErrNotesTooLong
	}

	nowMs := l.now().UnixMilli()
	counterpartID := opts.CounterpartID
	if opts.SaveCounterparty && counterpartID == "" {
		cp, err := l.saveCounterparty(ctx, counterpart, nowMs)
		if err != nil {
			return AddResult{}, err
		}
		counterpartID = cp.ID
	} else if counterpartID != "" {
		if err := l.touchCounterparty(ctx, counterpartID, nowMs); err != nil {
			return AddResult{}, err
		}
	}

	loans, err := l.store.Loans(ctx)
	if err != nil {
		return AddResult{}, err
	}

	if !opts.SaveCounterparty {
		if idx := findLoanByCounterpart(loans, counterpart, loanType); idx >= 0 {
			merged := loans[idx]
			merged.Issuances = append(copyIssuances(merged.Issuances), core.Issuance{
				ID:     uuid.NewString(),
				Amount: amount,
				Date:   date.UnixMilli(),
				Notes:  opts.Notes,
			})
			merged.Principal.Cents += amount.Cents
			merged.Balance.Cents += amount.Cents
			merged.UpdatedAt = nowMs
			if err := merged.Validate(); err != nil {
				return AddResult{}, err
			}

			loans[idx] = merged
			if err := l.store.SaveLoans(ctx, loans); err != nil {
				return AddResult{}, err
			}
			if _, err := l.store.Enqueue(ctx, core.CollectionLoans, core.MutationUpdate, merged); err != nil {
				return AddResult{}, err
			}

			slog.InfoContext(ctx, "Loan merged",
				"loan_id", merged.ID,
				"counterpart", merged.CounterpartName,
				"amount_cents", amount.Cents)
			l.notifyAdded(ctx, merged.ID)
			return AddResult{Loan: merged, Merged: true}, nil
		}
	}

	notes := opts.Notes
	if notes == "" {
		notes = core.DefaultLoanNote(counterpart, loanType, amount, date)
	}
	loan := core.Loan{
		ID:              uuid.NewString(),
		CounterpartName: counterpart,
		CounterpartID:   counterpartID,
		Type:            loanType,
		Principal:       amount,
		Balance:         amount,
		Payments:        []core.Payment{},
		Issuances: []core.Issuance{{
			ID:     uuid.NewString(),
			Amount: amount,
			Date:   date.UnixMilli(),
		}},
		LoanDate:  date.UnixMilli(),
		Notes:     notes,
		CreatedAt: nowMs,
		UpdatedAt: nowMs,
	}
	if err := loan.Validate(); err != nil {
		return AddResult{}, err
	}

	loans = append(loans, loan)
	if err := l.store.SaveLoans(ctx, loans); err != nil {
		return AddResult{}, err
	}
	if _, err := l.store.Enqueue(ctx, core.CollectionLoans, core.MutationCreate, loan); err != nil {
		return AddResult{}, err
	}

	slog.InfoContext(ctx, "Loan created",
		"loan_id", loan.ID,
		"counterpart", loan.CounterpartName,
		"type", loanType,
		"amount_cents", amount.Cents)
	l.notifyAdded(ctx, loan.ID)
	return AddResult{Loan: loan}, nil
}

// RecordPayment appends a payment and reduces the balance, clamped at zero.
// Overpayment settles the loan rather than failing.
func (l *Ledger) RecordPayment(ctx context.Context, loanID string, amount core.Money, notes string, dateMs int64) (core.Loan, error) {
	if amount.Cents <= 0 {
		return core.Loan{}, core.ErrInvalidAmount
	}

	loans, err := l.store.Loans(ctx)
	if err != nil {
		return core.Loan{}, err
	}
	idx := indexByID(loans, loanID)
	if idx < 0 {
		return core.Loan{}, core.ErrNotFound
	}

	nowMs := l.now().UnixMilli()
	if dateMs == 0 {
		dateMs = nowMs
	}

	updated := loans[idx]
	updated.Payments = append(copyPayments(updated.Payments), core.Payment{
		ID:     uuid.NewString(),
		Amount: amount,
		Date:   dateMs,
		Notes:  notes,
	})
	updated.Balance.Cents -= amount.Cents
	if updated.Balance.Cents < 0 {
		updated.Balance.Cents = 0
	}
	updated.UpdatedAt = nowMs
	if err := updated.Validate(); err != nil {
		return core.Loan{}, err
	}

	loans[idx] = updated
	if err := l.store.SaveLoans(ctx, loans); err != nil {
		return core.Loan{}, err
	}
	if _, err := l.store.Enqueue(ctx, core.CollectionLoans, core.MutationUpdate, updated); err != nil {
		return core.Loan{}, err
	}

	slog.InfoContext(ctx, "Payment recorded",
		"loan_id", updated.ID,
		"amount_cents", amount.Cents,
		"balance_cents", updated.Balance.Cents)
	return updated, nil
}

// DeleteLoan removes the loan and queues a delete mutation carrying its
// pre-deletion snapshot.
func (l *Ledger) DeleteLoan(ctx context.Context, loanID string) (core.Loan, error) {
	loans, err := l.store.Loans(ctx)
	if err != nil {
		return core.Loan{}, err
	}
	idx := indexByID(loans, loanID)
	if idx < 0 {
		return core.Loan{}, core.ErrNotFound
	}
	deleted := loans[idx]

	next := append(loans[:idx:idx], loans[idx+1:]...)
	if err := l.store.SaveLoans(ctx, next); err != nil {
		return core.Loan{}, err
	}
	if _, err := l.store.Enqueue(ctx, core.CollectionLoans, core.MutationDelete, deleted); err != nil {
		return core.Loan{}, err
	}
	return deleted, nil
}

// BasicFields carries the editable header fields of a loan; nil pointers
// leave the stored value untouched.
type BasicFields struct {
	CounterpartName *string
	Principal       *core.Money
}

// UpdateLoanBasic renames the counterparty and/or adjusts the principal. A
// principal increase appends a synthetic issuance for the delta; a decrease
// only lowers principal and balance, the issuance history is kept as lodged.
func (l *Ledger) UpdateLoanBasic(ctx context.Context, loanID string, fields BasicFields) (core.Loan, error) {
	loans, err := l.store.Loans(ctx)
	if err != nil {
		return core.Loan{}, err
	}
	idx := indexByID(loans, loanID)
	if idx < 0 {
		return core.Loan{}, core.ErrNotFound
	}

	nowMs := l.now().UnixMilli()
	updated := loans[idx]

	if fields.CounterpartName != nil {
		if name := strings.TrimSpace(*fields.CounterpartName); name != "" {
			updated.CounterpartName = name
		}
	}
	if fields.Principal != nil {
		if fields.Principal.Cents <= 0 {
			return core.Loan{}, core.ErrInvalidAmount
		}
		delta := fields.Principal.Cents - updated.Principal.Cents
		updated.Principal.Cents += delta
		updated.Balance.Cents += delta
		if updated.Balance.Cents < 0 {
			updated.Balance.Cents = 0
		}
		if delta > 0 {
			updated.Issuances = append(copyIssuances(updated.Issuances), core.Issuance{
				ID:     uuid.NewString(),
				Amount: core.Money{Cents: delta},
				Date:   nowMs,
				Notes:  "Principal adjustment",
			})
		}
	}
	updated.UpdatedAt = nowMs

	loans[idx] = updated
	if err := l.store.SaveLoans(ctx, loans); err != nil {
		return core.Loan{}, err
	}
	if _, err := l.store.Enqueue(ctx, core.CollectionLoans, core.MutationUpdate, updated); err != nil {
		return core.Loan{}, err
	}
	return updated, nil
}

// AddCounterparty saves a counterparty for reuse, newest first. An existing
// record with the same name (case-insensitive) is touched instead of
// duplicated.
func (l *Ledger) AddCounterparty(ctx context.Context, name string) (core.Counterparty, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Counterparty{}, core.ErrEmptyCounterparty
	}
	return l.saveCounterparty(ctx, name, l.now().UnixMilli())
}

func (l *Ledger) saveCounterparty(ctx context.Context, name string, nowMs int64) (core.Counterparty, error) {
	cps, err := l.store.Counterparties(ctx)
	if err != nil {
		return core.Counterparty{}, err
	}
	for i, cp := range cps {
		if strings.EqualFold(cp.Name, name) {
			cps[i].LastUsedAt = nowMs
			if err := l.store.SaveCounterparties(ctx, cps); err != nil {
				return core.Counterparty{}, err
			}
			return cps[i], nil
		}
	}

	cp := core.Counterparty{ID: uuid.NewString(), Name: name, LastUsedAt: nowMs}
	next := append([]core.Counterparty{cp}, cps...)
	if err := l.store.SaveCounterparties(ctx, next); err != nil {
		return core.Counterparty{}, err
	}
	return cp, nil
}

func (l *Ledger) touchCounterparty(ctx context.Context, id string, nowMs int64) error {
	cps, err := l.store.Counterparties(ctx)
	if err != nil {
		return err
	}
	for i, cp := range cps {
		if cp.ID == id {
			cps[i].LastUsedAt = nowMs
			return l.store.SaveCounterparties(ctx, cps)
		}
	}
	return nil
}

func (l *Ledger) notifyAdded(ctx context.Context, loanID string) {
	if l.notifier != nil {
		l.notifier.LoanAdded(ctx, loanID)
	}
}

func findLoanByCounterpart(loans []core.Loan, name string, loanType core.LoanType) int {
	for i, loan := range loans {
		if loan.Type == loanType && strings.EqualFold(loan.CounterpartName, name) {
			return i
		}
	}
	return -1
}

func indexByID(loans []core.Loan, id string) int {
	for i, loan := range loans {
		if loan.ID == id {
			return i
		}
	}
	return -1
}

func copyIssuances(in []core.Issuance) []core.Issuance {
	out := make([]core.Issuance, len(in))
	copy(out, in)
	return out
}

func copyPayments(in []core.Payment) []core.Payment {
	out := make([]core.Payment, len(in))
	copy(out, in)
	return out
}
