package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// OwedByMe marks money the user borrowed.
	OwedByMe LoanType = "owedByMe"
	// OwedToMe marks money the user lent out.
	OwedToMe LoanType = "owedToMe"
)

type (
	// LoanType is the direction of a debt obligation.
	LoanType string

	// Issuance is an event that increases a loan's principal: the initial
	// loan or a later top-up merged into the same record.
	Issuance struct {
		ID     string `json:"id"`
		Amount Money  `json:"amount"`
		Date   int64  `json:"date"` // epoch millis
		Notes  string `json:"notes,omitempty"`
	}

	// Payment reduces a loan's outstanding balance.
	Payment struct {
		ID     string `json:"id"`
		Amount Money  `json:"amount"`
		Date   int64  `json:"date"` // epoch millis
		Notes  string `json:"notes,omitempty"`
	}

	// Loan is a single debt record against one counterparty. Issuances only
	// record increases, so sum(issuances) bounds principal from above: a
	// principal-reduction edit lowers principal and balance without touching
	// the issuance history. Payments reduce the balance with a clamp at zero,
	// so balance stays within [max(0, principal - sum(payments)), principal]
	// after every ledger operation.
	Loan struct {
		ID              string     `json:"id"`
		CounterpartName string     `json:"counterpartName"`
		CounterpartID   string     `json:"counterpartId,omitempty"`
		Type            LoanType   `json:"type"`
		Principal       Money      `json:"principal"`
		Balance         Money      `json:"balance"`
		Payments        []Payment  `json:"payments"`
		Issuances       []Issuance `json:"issuances"`
		LoanDate        int64      `json:"loanDate"` // epoch millis, user-chosen
		Notes           string     `json:"notes,omitempty"`
		CreatedAt       int64      `json:"createdAt"`
		UpdatedAt       int64      `json:"updatedAt"`
	}

	// Counterparty is a saved person or entity for reuse across loans.
	Counterparty struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		LastUsedAt int64  `json:"lastUsedAt"` // epoch millis
	}
)

var (
	ErrEmptyCounterparty = errors.New("empty counterparty name")
	ErrUnknownLoanType   = errors.New("unknown loan type")
)

func (t LoanType) Valid() bool {
	return t == OwedByMe || t == OwedToMe
}

// Settled reports whether the loan's balance has reached zero. Settled loans
// stay visible; a later merge issuance can make them active again.
func (l Loan) Settled() bool {
	return l.Balance.Cents == 0
}

// PrincipalFromIssuances sums the issuance amounts.
func PrincipalFromIssuances(issuances []Issuance) Money {
	var total int64
	for _, iss := range issuances {
		total += iss.Amount.Cents
	}
	return Money{Cents: total}
}

// PaymentsTotal sums the payment amounts.
func PaymentsTotal(payments []Payment) Money {
	var total int64
	for _, p := range payments {
		total += p.Amount.Cents
	}
	return Money{Cents: total}
}

// Validate checks the loan's structural invariants. Principal edits and
// overpayment clamping make the exact principal and balance path-dependent,
// so the issuance and payment histories give bounds, not equalities.
func (l Loan) Validate() error {
	if strings.TrimSpace(l.CounterpartName) == "" {
		return ErrEmptyCounterparty
	}
	if !l.Type.Valid() {
		return ErrUnknownLoanType
	}
	if l.Principal.Cents <= 0 {
		return ErrInvalidAmount
	}
	if len(l.Notes) > MaxNotesLen {
		return ErrNotesTooLong
	}
	if got := PrincipalFromIssuances(l.Issuances); got.Cents < l.Principal.Cents {
		return fmt.Errorf("principal %d exceeds issuance total %d", l.Principal.Cents, got.Cents)
	}
	if l.Balance.Cents < 0 || l.Balance.Cents > l.Principal.Cents {
		return fmt.Errorf("balance %d outside [0, %d]", l.Balance.Cents, l.Principal.Cents)
	}
	if floor := l.Principal.Cents - PaymentsTotal(l.Payments).Cents; l.Balance.Cents < floor {
		return fmt.Errorf("balance %d below principal minus payments %d", l.Balance.Cents, floor)
	}
	return nil
}

// DefaultLoanNote renders the note the app attaches to a freshly lodged loan.
func DefaultLoanNote(counterpart string, loanType LoanType, amount Money, date Date) string {
	d := date.Format("02/01/2006")
	if loanType == OwedToMe {
		return fmt.Sprintf("You loaned %s %.2f on %s", counterpart, amount.Units(), d)
	}
	return fmt.Sprintf("You borrowed %.2f from %s on %s", amount.Units(), counterpart, d)
}

// NowMillis is the epoch-millisecond clock used for entity timestamps.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
