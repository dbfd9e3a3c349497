package http

import (
	"fmt"
	"net/http"
	"time"

	"pocketbook/internal/core"
	"pocketbook/internal/recurrence"
)

// Scopes for updates and deletes of recurring budgets.
const (
	scopeSingle = "single"
	scopeSeries = "series"
	scopeFuture = "future"
)

// budgetItemRequest carries one line item; amounts are decimal strings
// ("12.34" or "12,34").
type budgetItemRequest struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	Completed bool   `json:"completed,omitempty"`
}

type createBudgetRequest struct {
	Title          string              `json:"title"`
	Amount         string              `json:"amount,omitempty"`
	Date           string              `json:"date,omitempty"`
	Category       string              `json:"category,omitempty"`
	CategoryIcon   string              `json:"categoryIcon,omitempty"`
	Notes          string              `json:"notes,omitempty"`
	Recurrence     string              `json:"recurrence,omitempty"`
	RecurrenceStop string              `json:"recurrenceStop,omitempty"`
	Items          []budgetItemRequest `json:"items,omitempty"`
}

type updateBudgetRequest struct {
	Title          *string              `json:"title,omitempty"`
	Amount         *string              `json:"amount,omitempty"`
	Date           *string              `json:"date,omitempty"`
	Category       *string              `json:"category,omitempty"`
	CategoryIcon   *string              `json:"categoryIcon,omitempty"`
	Notes          *string              `json:"notes,omitempty"`
	Recurrence     *string              `json:"recurrence,omitempty"`
	RecurrenceStop *string              `json:"recurrenceStop,omitempty"`
	ClearStop      bool                 `json:"clearStop,omitempty"`
	Items          *[]budgetItemRequest `json:"items,omitempty"`
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.store.Budgets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if period := r.URL.Query().Get("period"); period != "" {
		filtered := budgets[:0:0]
		for _, b := range budgets {
			if b.Period == period {
				filtered = append(filtered, b)
			}
		}
		budgets = filtered
	}
	if budgets == nil {
		budgets = []core.Budget{}
	}
	writeJSON(w, http.StatusOK, budgets)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req createBudgetRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	draft := recurrence.Draft{
		Title:        req.Title,
		Category:     req.Category,
		CategoryIcon: req.CategoryIcon,
		Notes:        req.Notes,
		Recurrence:   core.RecurNone,
	}
	if req.Recurrence != "" {
		draft.Recurrence = core.RecurrenceRule(req.Recurrence)
	}
	if req.Date != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid date"})
			return
		}
		draft.Date = d
	}
	if req.RecurrenceStop != "" {
		stop, err := core.ParseDate(req.RecurrenceStop)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid recurrence stop date"})
			return
		}
		draft.RecurrenceStop = &stop
	}
	if req.Amount != "" {
		cents, err := core.ParseDecimalToCents(req.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		draft.Planned = core.Money{Cents: cents}
	}
	items, err := parseItems(req.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	draft.Items = items

	created, err := s.budgets.Create(r.Context(), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.bucketCache.Purge()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateBudgetRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	fields, err := buildFields(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	scope := r.URL.Query().Get("scope")
	switch scope {
	case "", scopeSingle:
		var (
			updated core.Budget
			err     error
		)
		if scope == scopeSingle {
			updated, err = s.budgets.UpdateSingle(r.Context(), id, fields)
		} else {
			updated, err = s.budgets.Update(r.Context(), id, fields)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.bucketCache.Purge()
		writeJSON(w, http.StatusOK, updated)
	case scopeSeries, scopeFuture:
		var (
			changed []core.Budget
			err     error
		)
		if scope == scopeSeries {
			changed, err = s.budgets.UpdateSeries(r.Context(), id, fields)
		} else {
			changed, err = s.budgets.UpdateFuture(r.Context(), id, fields)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.bucketCache.Purge()
		writeJSON(w, http.StatusOK, changed)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown scope %q", scope)})
	}
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch scope := r.URL.Query().Get("scope"); scope {
	case "", scopeSingle:
		deleted, err := s.budgets.DeleteSingle(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.bucketCache.Purge()
		writeJSON(w, http.StatusOK, deleted)
	case scopeSeries:
		deleted, err := s.budgets.DeleteSeries(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.bucketCache.Purge()
		writeJSON(w, http.StatusOK, deleted)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown scope %q", scope)})
	}
}

func (s *Server) handleRecordSpend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	cents, err := parseSpentAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.budgets.RecordSpend(r.Context(), r.PathValue("id"), core.Money{Cents: cents})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.bucketCache.Purge()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	updated, err := s.budgets.ToggleItem(r.Context(), r.PathValue("id"), r.PathValue("itemId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.bucketCache.Purge()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handlePeriodTotals(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = core.DateOf(time.Now()).Period()
	}
	budgets, err := s.store.Budgets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	planned, spent, excess := recurrence.PeriodTotals(budgets, period)
	writeJSON(w, http.StatusOK, map[string]any{
		"period":  period,
		"planned": planned,
		"spent":   spent,
		"excess":  excess,
	})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// parseSpentAmount allows zero, which resets a budget's spent amount.
func parseSpentAmount(s string) (int64, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err == nil {
		return cents, nil
	}
	switch s {
	case "0", "0.0", "0.00", "0,00":
		return 0, nil
	}
	return 0, err
}

func parseItems(in []budgetItemRequest) ([]core.BudgetItem, error) {
	if in == nil {
		return nil, nil
	}
	items := make([]core.BudgetItem, len(in))
	for i, it := range in {
		cents, err := core.ParseDecimalToCents(it.Amount)
		if err != nil {
			return nil, err
		}
		items[i] = core.BudgetItem{
			ID:        it.ID,
			Name:      it.Name,
			Amount:    core.Money{Cents: cents},
			Completed: it.Completed,
		}
	}
	return items, nil
}

func buildFields(req updateBudgetRequest) (recurrence.Fields, error) {
	fields := recurrence.Fields{
		Title:        req.Title,
		Category:     req.Category,
		CategoryIcon: req.CategoryIcon,
		Notes:        req.Notes,
		ClearStop:    req.ClearStop,
	}
	if req.Amount != nil {
		cents, err := core.ParseDecimalToCents(*req.Amount)
		if err != nil {
			return recurrence.Fields{}, err
		}
		fields.Planned = &core.Money{Cents: cents}
	}
	if req.Date != nil {
		d, err := core.ParseDate(*req.Date)
		if err != nil {
			return recurrence.Fields{}, fmt.Errorf("%w: invalid date", errBadRequest)
		}
		fields.Date = &d
	}
	if req.Recurrence != nil {
		rule := core.RecurrenceRule(*req.Recurrence)
		fields.Recurrence = &rule
	}
	if req.RecurrenceStop != nil {
		stop, err := core.ParseDate(*req.RecurrenceStop)
		if err != nil {
			return recurrence.Fields{}, fmt.Errorf("%w: invalid recurrence stop date", errBadRequest)
		}
		fields.RecurrenceStop = &stop
	}
	if req.Items != nil {
		items, err := parseItems(*req.Items)
		if err != nil {
			return recurrence.Fields{}, err
		}
		fields.Items = &items
	}
	return fields, nil
}
