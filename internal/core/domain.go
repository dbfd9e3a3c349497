package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	RecurNone      RecurrenceRule = "none"
	RecurWeekly    RecurrenceRule = "weekly"
	RecurMonthly   RecurrenceRule = "monthly"
	RecurQuarterly RecurrenceRule = "quarterly"
	RecurAnnually  RecurrenceRule = "annually"
)

// GeneralCategory is assigned to budget drafts that carry no category.
const GeneralCategory = "General"

// MaxNotesLen bounds free-text notes on budgets and loans.
const MaxNotesLen = 500

type (
	// RecurrenceRule names how a budget repeats over time.
	RecurrenceRule string

	// Date is a calendar date with day granularity. It marshals as YYYY-MM-DD.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// BudgetItem is one line item of a budget. A budget's planned amount is
	// the sum of its items' amounts when items are present; its spent amount
	// is the sum of completed items' amounts.
	BudgetItem struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Amount    Money  `json:"amount"`
		Completed bool   `json:"completed"`
	}

	// Budget is one dated occurrence of a (possibly recurring) planned
	// spending entry. Occurrences generated from the same recurring draft
	// share a GroupID; scoped operations filter strictly by it.
	Budget struct {
		ID             string         `json:"id"`
		GroupID        string         `json:"groupId"`
		Title          string         `json:"title"`
		Planned        Money          `json:"planned"`
		Spent          Money          `json:"spent"`
		Period         string         `json:"period"` // YYYY-MM, always the month of Date
		Date           Date           `json:"date"`
		Category       string         `json:"category"`
		CategoryIcon   string         `json:"categoryIcon,omitempty"`
		Notes          string         `json:"notes,omitempty"`
		Recurrence     RecurrenceRule `json:"recurrence"`
		RecurrenceStop *Date          `json:"recurrenceStop,omitempty"` // inclusive
		Items          []BudgetItem   `json:"items"`
		CreatedAt      int64          `json:"createdAt"` // epoch millis
		UpdatedAt      int64          `json:"updatedAt"`
	}

	// Settings is the persisted app preference blob.
	Settings struct {
		Theme    string `json:"theme"`
		Locale   string `json:"locale"`
		Currency string `json:"currency"`
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyTitle        = errors.New("empty title")
	ErrPastDate          = errors.New("date is in the past")
	ErrPeriodMismatch    = errors.New("period does not match date")
	ErrNotesTooLong      = errors.New("notes too long")
	ErrUnknownRecurrence = errors.New("unknown recurrence rule")
	ErrStopBeforeAnchor  = errors.New("recurrence stop date before anchor date")
	ErrNotRecurring      = errors.New("budget is not recurring")
	ErrNotFound          = errors.New("not found")
)

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month and day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to calendar-date granularity in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) ISO() string {
	return d.Format(dateLayout)
}

// Period returns the YYYY-MM prefix of the date.
func (d Date) Period() string {
	return d.Format("2006-01")
}

// Before reports whether d falls on an earlier calendar day than other.
func (d Date) Before(other Date) bool {
	return d.ISO() < other.ISO()
}

// After reports whether d falls on a later calendar day than other.
func (d Date) After(other Date) bool {
	return d.ISO() > other.ISO()
}

func (d Date) Equal(other Date) bool {
	return d.ISO() == other.ISO()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.ISO() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (r RecurrenceRule) Valid() bool {
	switch r {
	case RecurNone, RecurWeekly, RecurMonthly, RecurQuarterly, RecurAnnually:
		return true
	}
	return false
}

// Recurring reports whether the rule generates more than one occurrence.
func (r RecurrenceRule) Recurring() bool {
	return r.Valid() && r != RecurNone
}

// Money marshals as a bare integer cent amount.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(m.Cents, 10)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	cents, err := strconv.ParseInt(strings.Trim(string(b), `"`), 10, 64)
	if err != nil {
		return ErrInvalidAmount
	}
	m.Cents = cents
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// PlannedFromItems sums the item amounts.
func PlannedFromItems(items []BudgetItem) Money {
	var total int64
	for _, it := range items {
		total += it.Amount.Cents
	}
	return Money{Cents: total}
}

// SpentFromItems sums the amounts of completed items.
func SpentFromItems(items []BudgetItem) Money {
	var total int64
	for _, it := range items {
		if it.Completed {
			total += it.Amount.Cents
		}
	}
	return Money{Cents: total}
}

// Validate checks the budget's structural invariants.
func (b Budget) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return ErrEmptyTitle
	}
	if b.Planned.Cents < 0 {
		return ErrInvalidAmount
	}
	if len(b.Notes) > MaxNotesLen {
		return ErrNotesTooLong
	}
	if !b.Recurrence.Valid() {
		return ErrUnknownRecurrence
	}
	if b.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if b.Period != b.Date.Period() {
		return ErrPeriodMismatch
	}
	if b.Recurrence.Recurring() && b.RecurrenceStop != nil && b.RecurrenceStop.Before(b.Date) {
		return ErrStopBeforeAnchor
	}
	if len(b.Items) > 0 && b.Planned.Cents != PlannedFromItems(b.Items).Cents {
		return errors.New("planned amount does not equal sum of items")
	}
	return nil
}

// DefaultCategories seeds a fresh install's category list.
func DefaultCategories() []string {
	return []string{
		"Housing",
		"Utilities",
		"Groceries",
		"Transport",
		"Healthcare",
		"Entertainment",
		"Savings",
		"Misc",
	}
}
