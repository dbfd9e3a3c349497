package recurrence

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pocketbook/internal/core"
	"pocketbook/internal/storage"
)

// Engine applies budget mutations: creation with occurrence expansion, plain
// and scope-limited updates, deletes and spend recording. Every successful
// mutation is persisted as a whole-collection write followed by outbox
// entries, so an operation either lands completely or not at all.
type Engine struct {
	store *storage.SQLiteStore
	now   func() time.Time
}

func NewEngine(store *storage.SQLiteStore) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Draft is the input for creating a budget entry.
type Draft struct {
	Title          string
	Planned        core.Money
	Date           core.Date
	Category       string
	CategoryIcon   string
	Notes          string
	Recurrence     core.RecurrenceRule
	RecurrenceStop *core.Date
	Items          []core.BudgetItem
}

// Fields carries an update's changed fields; nil pointers leave the stored
// value untouched. Date is honored only by whole-entry and single-occurrence
// updates; series and future scopes never shift materialized dates.
type Fields struct {
	Title          *string
	Planned        *core.Money
	Date           *core.Date
	Category       *string
	CategoryIcon   *string
	Notes          *string
	Recurrence     *core.RecurrenceRule
	RecurrenceStop *core.Date
	ClearStop      bool
	Items          *[]core.BudgetItem
}

// Create validates a draft, expands its recurrence rule into dated
// occurrences sharing one group id, persists them and queues a create
// mutation per occurrence. Drafts dated before today are rejected with
// ErrPastDate.
func (e *Engine) Create(ctx context.Context, draft Draft) ([]core.Budget, error) {
	today := core.DateOf(e.now())
	if draft.Date.IsZero() {
		draft.Date = today
	}
	if draft.Date.Before(today) {
		return nil, core.ErrPastDate
	}
	if !draft.Recurrence.Valid() {
		return nil, core.ErrUnknownRecurrence
	}

	category := strings.TrimSpace(draft.Category)
	if category == "" {
		category = core.GeneralCategory
	}
	if err := e.ensureCategory(ctx, category); err != nil {
		return nil, err
	}

	items := make([]core.BudgetItem, len(draft.Items))
	for i, it := range draft.Items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.Completed = false
		items[i] = it
	}
	planned := draft.Planned
	if len(items) > 0 {
		planned = core.PlannedFromItems(items)
	}
	if planned.Cents < 0 {
		return nil, core.ErrInvalidAmount
	}

	groupID := uuid.NewString()
	nowMs := e.now().UnixMilli()
	dates := Occurrences(draft.Date, draft.Recurrence, draft.RecurrenceStop)

	created := make([]core.Budget, 0, len(dates))
	for _, d := range dates {
		b := core.Budget{
			ID:             uuid.NewString(),
			GroupID:        groupID,
			Title:          draft.Title,
			Planned:        planned,
			Period:         d.Period(),
			Date:           d,
			Category:       category,
			CategoryIcon:   draft.CategoryIcon,
			Notes:          draft.Notes,
			Recurrence:     draft.Recurrence,
			RecurrenceStop: draft.RecurrenceStop,
			Items:          copyItems(items),
			CreatedAt:      nowMs,
			UpdatedAt:      nowMs,
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		created = append(created, b)
	}

	budgets, err := e.store.Budgets(ctx)
	if err != nil {
		return nil, err
	}
	budgets = append(budgets, created...)
	if err := e.store.SaveBudgets(ctx, budgets); err != nil {
		return nil, err
	}
	for _, b := range created {
		if _, err := e.store.Enqueue(ctx, core.CollectionBudgets, core.MutationCreate, b); err != nil {
			return nil, err
		}
	}

	slog.InfoContext(ctx, "Budget created",
		"group_id", groupID,
		"occurrences", len(created),
		"recurrence", draft.Recurrence)
	return created, nil
}

// Update applies field changes to one budget entry with no recurrence-scope
// semantics. It is the route for edits to non-recurring budgets.
func (e *Engine) Update(ctx context.Context, id string, fields Fields) (core.Budget, error) {
	return e.updateOne(ctx, id, fields, false)
}

// UpdateSingle edits exactly one occurrence of a recurring series, detaching
// it into its own group so later series-scoped operations leave it alone.
// Sibling occurrences are untouched.
func (e *Engine) UpdateSingle(ctx context.Context, id string, fields Fields) (core.Budget, error) {
	return e.updateOne(ctx, id, fields, true)
}

func (e *Engine) updateOne(ctx context.Context, id string, fields Fields, detach bool) (core.Budget, error) {
	budgets, err := e.store.Budgets(ctx)
	if err != nil {
		return core.Budget{}, err
	}
	idx := indexByID(budgets, id)
	if idx < 0 {
		return core.Budget{}, core.ErrNotFound
	}
	if detach && !budgets[idx].Recurrence.Recurring() {
		return core.Budget{}, core.ErrNotRecurring
	}

	updated := budgets[idx]
	if err := applyFields(&updated, fields, true, e.now().UnixMilli()); err != nil {
		return core.Budget{}, err
	}
	if detach {
		updated.GroupID = uuid.NewString()
	}
	if err := updated.Validate(); err != nil {
		return core.Budget{}, err
	}

	budgets[idx] = updated
	if err := e.store.SaveBudgets(ctx, budgets); err != nil {
		return core.Budget{}, err
	}
	if _, err := e.store.Enqueue(ctx, core.CollectionBudgets, core.MutationUpdate, updated); err != nil {
		return core.Budget{}, err
	}
	return updated, nil
}

// UpdateSeries applies the series-safe field subset to every occurrence
// sharing the edited budget's group. Dates and periods of materialized
// occurrences are never shifted.
func (e *Engine) UpdateSeries(ctx context.Context, id string, fields Fields) ([]core.Budget, error) {
	return e.updateScoped(ctx, id, fields, false)
}

// UpdateFuture is UpdateSeries restricted to occurrences dated on or after
// the edited occurrence.
func (e *Engine) UpdateFuture(ctx context.Context, id string, fields Fields) ([]core.Budget, error) {
	return e.updateScoped(ctx, id, fields, true)
}

func (e *Engine) updateScoped(ctx context.Context, id string, fields Fields, futureOnly bool) ([]core.Budget, error) {
	budgets, err := e.store.Budgets(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexByID(budgets, id)
	if idx < 0 {
		return nil, core.ErrNotFound
	}
	edited := budgets[idx]
	if !edited.Recurrence.Recurring() {
		return nil, core.ErrNotRecurring
	}

	nowMs := e.now().UnixMilli()
	var changed []core.Budget
	next := make([]core.Budget, len(budgets))
	copy(next, budgets)
	for i, b := range next {
		if b.GroupID != edited.GroupID {
			continue
		}
		if futureOnly && b.Date.Before(edited.Date) {
			continue
		}
		if err := applyFields(&b, fields, false, nowMs); err != nil {
			return nil, err
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		next[i] = b
		changed = append(changed, b)
	}

	if err := e.store.SaveBudgets(ctx, next); err != nil {
		return nil, err
	}
	for _, b := range changed {
		if _, err := e.store.Enqueue(ctx, core.CollectionBudgets, core.MutationUpdate, b); err != nil {
			return nil, err
		}
	}

	slog.InfoContext(ctx, "Budget series updated",
		"group_id", edited.GroupID,
		"future_only", futureOnly,
		"occurrences", len(changed))
	return changed, nil
}

// DeleteSingle removes exactly one occurrence and queues a delete mutation
// carrying its pre-deletion snapshot.
func (e *Engine) DeleteSingle(ctx context.Context, id string) (core.Budget, error) {
	budgets, err := e.store.Budgets(ctx)
	if err != nil {
		return core.Budget{}, err
	}
	idx := indexByID(budgets, id)
	if idx < 0 {
		return core.Budget{}, core.ErrNotFound
	}
	deleted := budgets[idx]

	next := append(budgets[:idx:idx], budgets[idx+1:]...)
	if err := e.store.SaveBudgets(ctx, next); err != nil {
		return core.Budget{}, err
	}
	if _, err := e.store.Enqueue(ctx, core.CollectionBudgets, core.MutationDelete, deleted); err != nil {
		return core.Budget{}, err
	}
	return deleted, nil
}

// DeleteSeries removes every occurrence sharing the budget's group id.
func (e *Engine) DeleteSeries(ctx context.Context, id string) ([]core.Budget, error) {
	budgets, err := e.store.Budgets(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexByID(budgets, id)
	if idx < 0 {
		return nil, core.ErrNotFound
	}
	groupID := budgets[idx].GroupID

	var kept, deleted []core.Budget
	for _, b := range budgets {
		if b.GroupID == groupID {
			deleted = append(deleted, b)
		} else {
			kept = append(kept, b)
		}
	}
	if err := e.store.SaveBudgets(ctx, kept); err != nil {
		return nil, err
	}
	for _, b := range deleted {
		if _, err := e.store.Enqueue(ctx, core.CollectionBudgets, core.MutationDelete, b); err != nil {
			return nil, err
		}
	}

	slog.InfoContext(ctx, "Budget series deleted",
		"group_id", groupID,
		"occurrences", len(deleted))
	return deleted, nil
}

// RecordSpend sets a budget's spent amount directly, for budgets tracked
// without line items.
func (e *Engine) RecordSpend(ctx context.Context, id string, amount core.Money) (core.Budget, error) {
	if amount.Cents < 0 {
		return core.Budget{}, core.ErrInvalidAmount
	}

	budgets, err := e.store.Budgets(ctx)
	if err != nil {
		return core.Budget{}, err
	}
	idx := indexByID(budgets, id)
	if idx < 0 {
		return core.Budget{}, core.ErrNotFound
	}

	updated := budgets[idx]
	updated.Spent = amount
	updated.UpdatedAt = e.now().UnixMilli()

	budgets[idx] = updated
	if err := e.store.SaveBudgets(ctx, budgets); err != nil {
		return core.Budget{}, err
	}
	if _, err := e.store.Enqueue(ctx, core.CollectionBudgets, core.MutationUpdate, updated); err != nil {
		return core.Budget{}, err
	}
	return updated, nil
}

// ToggleItem flips one line item's completion flag and recomputes the
// budget's spent amount as the sum of completed items.
func (e *Engine) ToggleItem(ctx context.Context, budgetID, itemID string) (core.Budget, error) {
	budgets, err := e.store.Budgets(ctx)
	if err != nil {
		return core.Budget{}, err
	}
	idx := indexByID(budgets, budgetID)
	if idx < 0 {
		return core.Budget{}, core.ErrNotFound
	}

	updated := budgets[idx]
	updated.Items = copyItems(updated.Items)
	found := false
	for i, it := range updated.Items {
		if it.ID == itemID {
			updated.Items[i].Completed = !it.Completed
			found = true
			break
		}
	}
	if !found {
		return core.Budget{}, core.ErrNotFound
	}
	updated.Spent = core.SpentFromItems(updated.Items)
	updated.UpdatedAt = e.now().UnixMilli()

	budgets[idx] = updated
	if err := e.store.SaveBudgets(ctx, budgets); err != nil {
		return core.Budget{}, err
	}
	if _, err := e.store.Enqueue(ctx, core.CollectionBudgets, core.MutationUpdate, updated); err != nil {
		return core.Budget{}, err
	}
	return updated, nil
}

// ensureCategory appends a category to the stored list when absent.
func (e *Engine) ensureCategory(ctx context.Context, name string) error {
	cats, err := e.store.Categories(ctx)
	if err != nil {
		return err
	}
	for _, c := range cats {
		if c == name {
			return nil
		}
	}
	return e.store.SaveCategories(ctx, append(cats, name))
}

// applyFields merges changed fields into b. allowDate controls whether the
// occurrence's own date (and derived period) may move.
func applyFields(b *core.Budget, f Fields, allowDate bool, nowMs int64) error {
	if f.Title != nil {
		if strings.TrimSpace(*f.Title) == "" {
			return core.ErrEmptyTitle
		}
		b.Title = *f.Title
	}
	if f.Items != nil {
		items := copyItems(*f.Items)
		for i, it := range items {
			if it.ID == "" {
				items[i].ID = uuid.NewString()
			}
		}
		b.Items = items
		b.Planned = core.PlannedFromItems(items)
		b.Spent = core.SpentFromItems(items)
	} else if f.Planned != nil {
		if f.Planned.Cents < 0 {
			return core.ErrInvalidAmount
		}
		b.Planned = *f.Planned
	}
	if f.Category != nil && strings.TrimSpace(*f.Category) != "" {
		b.Category = *f.Category
	}
	if f.CategoryIcon != nil {
		b.CategoryIcon = *f.CategoryIcon
	}
	if f.Notes != nil {
		if len(*f.Notes) > core.MaxNotesLen {
			return core.ErrNotesTooLong
		}
		b.Notes = *f.Notes
	}
	if f.Recurrence != nil {
		if !f.Recurrence.Valid() {
			return core.ErrUnknownRecurrence
		}
		b.Recurrence = *f.Recurrence
	}
	if f.ClearStop {
		b.RecurrenceStop = nil
	} else if f.RecurrenceStop != nil {
		stop := *f.RecurrenceStop
		b.RecurrenceStop = &stop
	}
	if allowDate && f.Date != nil {
		b.Date = *f.Date
		b.Period = f.Date.Period()
	}
	b.UpdatedAt = nowMs
	return nil
}

func copyItems(items []core.BudgetItem) []core.BudgetItem {
	out := make([]core.BudgetItem, len(items))
	copy(out, items)
	return out
}

func indexByID(budgets []core.Budget, id string) int {
	for i, b := range budgets {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// PeriodTotals aggregates planned, spent and over-budget excess for every
// budget in the given YYYY-MM period.
func PeriodTotals(budgets []core.Budget, period string) (planned, spent, excess core.Money) {
	for _, b := range budgets {
		if b.Period != period {
			continue
		}
		planned.Cents += b.Planned.Cents
		spent.Cents += b.Spent.Cents
		if over := b.Spent.Cents - b.Planned.Cents; over > 0 {
			excess.Cents += over
		}
	}
	return planned, spent, excess
}
