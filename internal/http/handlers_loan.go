package http

import (
	"fmt"
	"net/http"
	"time"

	"pocketbook/internal/core"
	"pocketbook/internal/ledger"
)

type addLoanRequest struct {
	Counterpart      string `json:"counterpart"`
	CounterpartID    string `json:"counterpartId,omitempty"`
	Type             string `json:"type"`
	Amount           string `json:"amount"`
	Date             string `json:"date,omitempty"`
	Notes            string `json:"notes,omitempty"`
	SaveCounterparty bool   `json:"saveCounterparty,omitempty"`
}

type recordPaymentRequest struct {
	Amount string `json:"amount"`
	Notes  string `json:"notes,omitempty"`
	Date   string `json:"date,omitempty"`
}

type updateLoanRequest struct {
	CounterpartName *string `json:"counterpartName,omitempty"`
	Principal       *string `json:"principal,omitempty"`
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.store.Loans(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("settled") == "false" {
		active := loans[:0:0]
		for _, l := range loans {
			if !l.Settled() {
				active = append(active, l)
			}
		}
		loans = active
	}
	if loans == nil {
		loans = []core.Loan{}
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) handleAddLoan(w http.ResponseWriter, r *http.Request) {
	var req addLoanRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date := core.DateOf(time.Now())
	if req.Date != "" {
		date, err = core.ParseDate(req.Date)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid date", errBadRequest))
			return
		}
	}

	result, err := s.loans.AddLoan(r.Context(), req.Counterpart, core.LoanType(req.Type),
		core.Money{Cents: cents}, date, ledger.AddOptions{
			SaveCounterparty: req.SaveCounterparty,
			CounterpartID:    req.CounterpartID,
			Notes:            req.Notes,
		})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Merged {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var dateMs int64
	if req.Date != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid date", errBadRequest))
			return
		}
		dateMs = d.UnixMilli()
	}

	updated, err := s.loans.RecordPayment(r.Context(), r.PathValue("id"),
		core.Money{Cents: cents}, req.Notes, dateMs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleUpdateLoan(w http.ResponseWriter, r *http.Request) {
	var req updateLoanRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	fields := ledger.BasicFields{CounterpartName: req.CounterpartName}
	if req.Principal != nil {
		cents, err := core.ParseDecimalToCents(*req.Principal)
		if err != nil {
			writeError(w, r, err)
			return
		}
		fields.Principal = &core.Money{Cents: cents}
	}

	updated, err := s.loans.UpdateLoanBasic(r.Context(), r.PathValue("id"), fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.loans.DeleteLoan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}

func (s *Server) handleLoanInvoice(w http.ResponseWriter, r *http.Request) {
	loans, err := s.store.Loans(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	var loan *core.Loan
	for i := range loans {
		if loans[i].ID == id {
			loan = &loans[i]
			break
		}
	}
	if loan == nil {
		writeError(w, r, core.ErrNotFound)
		return
	}

	inv, err := s.invoices.SaveAndUpload(r.Context(), *loan)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (s *Server) handleListCounterparties(w http.ResponseWriter, r *http.Request) {
	cps, err := s.store.Counterparties(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cps == nil {
		cps = []core.Counterparty{}
	}
	writeJSON(w, http.StatusOK, cps)
}

func (s *Server) handleAddCounterparty(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	cp, err := s.loans.AddCounterparty(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cp)
}

// handleCounterpartyMatches answers "did you mean" lookups while the user
// types a counterparty name.
func (s *Server) handleCounterpartyMatches(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing name parameter"})
		return
	}
	cps, err := s.store.Counterparties(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	matches := ledger.CloseCounterparties(name, cps)
	if matches == nil {
		matches = []core.Counterparty{}
	}
	writeJSON(w, http.StatusOK, matches)
}
