package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr bool
	}{
		{"integer", "12", 1200, false},
		{"dot decimal", "12.34", 1234, false},
		{"comma decimal", "12,34", 1234, false},
		{"one decimal digit", "5.5", 550, false},
		{"rounds half up", "1.005", 101, false},
		{"rounds down below half", "1.004", 100, false},
		{"leading dot", ".5", 50, false},
		{"whitespace trimmed", "  3.00 ", 300, false},
		{"empty", "", 0, true},
		{"zero rejected", "0", 0, true},
		{"zero decimal rejected", "0.00", 0, true},
		{"negative rejected", "-5", 0, true},
		{"plus sign rejected", "+5", 0, true},
		{"letters rejected", "abc", 0, true},
		{"two separators rejected", "1.2.3", 0, true},
		{"mixed garbage rejected", "12x.30", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimalToCents(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("ParseDecimalToCents(%q) err = %v, want ErrInvalidAmount", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDecimalToCents(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("ParseDecimalToCents(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	raw, err := json.Marshal(Money{Cents: 1234})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != "1234" {
		t.Fatalf("Money marshals as %s, want bare 1234", raw)
	}

	var m Money
	if err := json.Unmarshal([]byte("567"), &m); err != nil || m.Cents != 567 {
		t.Fatalf("unmarshal 567: cents=%d err=%v", m.Cents, err)
	}
	// Quoted integers appear in documents written by older clients.
	if err := json.Unmarshal([]byte(`"890"`), &m); err != nil || m.Cents != 890 {
		t.Fatalf("unmarshal quoted: cents=%d err=%v", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`"12.5"`), &m); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("unmarshal decimal should fail, got %v", err)
	}
}

func TestDateJSONAndPeriod(t *testing.T) {
	d, err := ParseDate("2026-03-15")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Period() != "2026-03" {
		t.Fatalf("period = %s, want 2026-03", d.Period())
	}

	raw, err := json.Marshal(d)
	if err != nil || string(raw) != `"2026-03-15"` {
		t.Fatalf("marshal = %s err=%v", raw, err)
	}

	var back Date
	if err := json.Unmarshal(raw, &back); err != nil || !back.Equal(d) {
		t.Fatalf("roundtrip = %v err=%v", back, err)
	}

	var zero Date
	if err := json.Unmarshal([]byte("null"), &zero); err != nil || !zero.IsZero() {
		t.Fatalf("null should decode to zero date, got %v err=%v", zero, err)
	}
}

func TestDateOrdering(t *testing.T) {
	a := NewDate(2026, 1, 31)
	b := NewDate(2026, 2, 1)
	if !a.Before(b) || b.Before(a) || !b.After(a) {
		t.Fatalf("ordering broken: a=%s b=%s", a.ISO(), b.ISO())
	}
	if !a.Equal(NewDate(2026, 1, 31)) {
		t.Fatalf("equal dates not equal")
	}
}

func TestBudgetValidate(t *testing.T) {
	valid := func() Budget {
		return Budget{
			ID:         "b1",
			GroupID:    "g1",
			Title:      "Groceries",
			Planned:    Money{Cents: 5000},
			Period:     "2026-03",
			Date:       NewDate(2026, 3, 10),
			Category:   "Groceries",
			Recurrence: RecurMonthly,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid budget rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Budget)
		wantErr error
	}{
		{"empty title", func(b *Budget) { b.Title = "  " }, ErrEmptyTitle},
		{"negative planned", func(b *Budget) { b.Planned.Cents = -1 }, ErrInvalidAmount},
		{"unknown recurrence", func(b *Budget) { b.Recurrence = "fortnightly" }, ErrUnknownRecurrence},
		{"period mismatch", func(b *Budget) { b.Period = "2026-04" }, ErrPeriodMismatch},
		{"stop before anchor", func(b *Budget) {
			stop := NewDate(2026, 2, 1)
			b.RecurrenceStop = &stop
		}, ErrStopBeforeAnchor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid()
			tt.mutate(&b)
			if err := b.Validate(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("notes too long", func(t *testing.T) {
		b := valid()
		for len(b.Notes) <= MaxNotesLen {
			b.Notes += "x"
		}
		if err := b.Validate(); !errors.Is(err, ErrNotesTooLong) {
			t.Fatalf("Validate() = %v, want ErrNotesTooLong", err)
		}
	})

	t.Run("items must sum to planned", func(t *testing.T) {
		b := valid()
		b.Items = []BudgetItem{{ID: "i1", Name: "milk", Amount: Money{Cents: 100}}}
		if err := b.Validate(); err == nil {
			t.Fatal("mismatched item sum accepted")
		}
		b.Planned = Money{Cents: 100}
		if err := b.Validate(); err != nil {
			t.Fatalf("matching item sum rejected: %v", err)
		}
	})
}

func TestItemTotals(t *testing.T) {
	items := []BudgetItem{
		{ID: "a", Amount: Money{Cents: 100}, Completed: true},
		{ID: "b", Amount: Money{Cents: 250}},
		{ID: "c", Amount: Money{Cents: 50}, Completed: true},
	}
	if got := PlannedFromItems(items); got.Cents != 400 {
		t.Fatalf("planned = %d, want 400", got.Cents)
	}
	if got := SpentFromItems(items); got.Cents != 150 {
		t.Fatalf("spent = %d, want 150", got.Cents)
	}
}

func TestLoanValidate(t *testing.T) {
	valid := func() Loan {
		return Loan{
			ID:              "l1",
			CounterpartName: "Alice",
			Type:            OwedToMe,
			Principal:       Money{Cents: 10000},
			Balance:         Money{Cents: 7000},
			Issuances:       []Issuance{{ID: "i1", Amount: Money{Cents: 10000}, Date: 1}},
			Payments:        []Payment{{ID: "p1", Amount: Money{Cents: 3000}, Date: 2}},
			LoanDate:        1,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid loan rejected: %v", err)
	}

	t.Run("empty counterpart", func(t *testing.T) {
		l := valid()
		l.CounterpartName = " "
		if err := l.Validate(); !errors.Is(err, ErrEmptyCounterparty) {
			t.Fatalf("Validate() = %v", err)
		}
	})
	t.Run("bad type", func(t *testing.T) {
		l := valid()
		l.Type = "owedToThem"
		if err := l.Validate(); !errors.Is(err, ErrUnknownLoanType) {
			t.Fatalf("Validate() = %v", err)
		}
	})
	t.Run("principal above issuance total rejected", func(t *testing.T) {
		l := valid()
		l.Principal.Cents = 10001
		if err := l.Validate(); err == nil {
			t.Fatal("principal exceeding issuance total accepted")
		}
	})
	t.Run("reduced principal below issuance total accepted", func(t *testing.T) {
		// A principal-reduction edit lowers principal and balance but keeps
		// the issuance history as lodged.
		l := valid()
		l.Principal.Cents = 5000
		l.Balance.Cents = 2000
		if err := l.Validate(); err != nil {
			t.Fatalf("reduced loan rejected: %v", err)
		}
	})
	t.Run("balance above principal rejected", func(t *testing.T) {
		l := valid()
		l.Balance.Cents = 10001
		if err := l.Validate(); err == nil {
			t.Fatal("balance above principal accepted")
		}
	})
	t.Run("balance below principal minus payments rejected", func(t *testing.T) {
		l := valid()
		l.Balance.Cents = 6999
		if err := l.Validate(); err == nil {
			t.Fatal("under-credited balance accepted")
		}
	})
	t.Run("balance clamps at zero", func(t *testing.T) {
		l := valid()
		l.Payments = []Payment{{ID: "p1", Amount: Money{Cents: 20000}, Date: 2}}
		l.Balance = Money{Cents: 0}
		if err := l.Validate(); err != nil {
			t.Fatalf("overpaid loan with zero balance rejected: %v", err)
		}
		if !l.Settled() {
			t.Fatal("zero balance should report settled")
		}
	})
	t.Run("issuance after overpayment accepted", func(t *testing.T) {
		// An overpaid loan clamps to zero; a merge issuance then raises
		// principal and balance together even though payments exceed the
		// original principal.
		l := valid()
		l.Issuances = append(l.Issuances, Issuance{ID: "i2", Amount: Money{Cents: 5000}, Date: 3})
		l.Principal.Cents = 15000
		l.Payments = []Payment{{ID: "p1", Amount: Money{Cents: 15000}, Date: 2}}
		l.Balance.Cents = 5000
		if err := l.Validate(); err != nil {
			t.Fatalf("reactivated overpaid loan rejected: %v", err)
		}
	})
}

func TestDefaultLoanNote(t *testing.T) {
	date := NewDate(2026, 3, 5)
	amount := Money{Cents: 2550}

	got := DefaultLoanNote("Alice", OwedToMe, amount, date)
	want := "You loaned Alice 25.50 on 05/03/2026"
	if got != want {
		t.Fatalf("note = %q, want %q", got, want)
	}

	got = DefaultLoanNote("Bob", OwedByMe, amount, date)
	want = "You borrowed 25.50 from Bob on 05/03/2026"
	if got != want {
		t.Fatalf("note = %q, want %q", got, want)
	}
}

func TestPendingMutationEntityID(t *testing.T) {
	m := PendingMutation{Payload: json.RawMessage(`{"id":"abc","title":"x"}`)}
	id, err := m.EntityID()
	if err != nil || id != "abc" {
		t.Fatalf("EntityID = %q err=%v", id, err)
	}

	m.Payload = json.RawMessage(`not json`)
	if _, err := m.EntityID(); err == nil {
		t.Fatal("invalid payload should fail")
	}
}
