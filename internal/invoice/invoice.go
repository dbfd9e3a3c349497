// Package invoice renders a loan statement as HTML, uploads it to blob
// storage and records an invoice document in the remote store.
package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pocketbook/internal/blob"
	"pocketbook/internal/core"
	"pocketbook/internal/remote"
)

const invoicesCollection = "invoices"

var statementTmpl = template.Must(template.New("statement").Funcs(template.FuncMap{
	"paymentDate": func(ms int64) string {
		return time.UnixMilli(ms).Format("02/01/2006")
	},
}).Parse(`<html>
  <head>
    <style>
      body { font-family: Arial, sans-serif; padding: 24px; }
      h1 { text-align: center; }
      table { width: 100%; border-collapse: collapse; margin-top: 24px; }
      th, td { border: 1px solid #ccc; padding: 8px; }
      th { background: #f5f5f5; }
    </style>
  </head>
  <body>
    <h1>Loan Statement</h1>
    <p><strong>Counterpart:</strong> {{.CounterpartName}}</p>
    <p><strong>Principal:</strong> {{printf "%.2f" .Principal.Units}}</p>
    <p><strong>Balance:</strong> {{printf "%.2f" .Balance.Units}}</p>
    <table>
      <thead>
        <tr>
          <th>Date</th>
          <th>Amount</th>
          <th>Notes</th>
        </tr>
      </thead>
      <tbody>
        {{- if .Payments}}
        {{- range .Payments}}
        <tr>
          <td>{{paymentDate .Date}}</td>
          <td style="text-align:right;">{{printf "%.2f" .Amount.Units}}</td>
          <td>{{.Notes}}</td>
        </tr>
        {{- end}}
        {{- else}}
        <tr><td colspan="3" style="text-align:center;">No payments yet</td></tr>
        {{- end}}
      </tbody>
    </table>
  </body>
</html>
`))

// Service builds and publishes loan statements.
type Service struct {
	uploader blob.Uploader
	docs     remote.DocumentStore
	now      func() time.Time
}

func NewService(uploader blob.Uploader, docs remote.DocumentStore) *Service {
	return &Service{uploader: uploader, docs: docs, now: time.Now}
}

// BuildStatementHTML renders the loan's statement.
func BuildStatementHTML(loan core.Loan) (string, error) {
	var buf bytes.Buffer
	if err := statementTmpl.Execute(&buf, loan); err != nil {
		return "", fmt.Errorf("render statement: %w", err)
	}
	return buf.String(), nil
}

// SaveAndUpload renders the loan's statement, uploads it and writes the
// invoice metadata to the remote invoices collection.
func (s *Service) SaveAndUpload(ctx context.Context, loan core.Loan) (core.Invoice, error) {
	html, err := BuildStatementHTML(loan)
	if err != nil {
		return core.Invoice{}, err
	}

	name := fmt.Sprintf("invoices/%s.html", uuid.NewString())
	fileURL, err := s.uploader.Upload(ctx, name, "text/html", []byte(html))
	if err != nil {
		return core.Invoice{}, fmt.Errorf("upload statement: %w", err)
	}

	inv := core.Invoice{
		ID:        uuid.NewString(),
		LoanID:    loan.ID,
		FileURL:   fileURL,
		CreatedAt: s.now().UnixMilli(),
	}
	data, err := json.Marshal(inv)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("encode invoice: %w", err)
	}
	err = s.docs.Commit(ctx, []remote.Write{{
		Collection: invoicesCollection,
		ID:         inv.ID,
		Data:       data,
	}})
	if err != nil {
		return core.Invoice{}, fmt.Errorf("save invoice: %w", err)
	}

	slog.InfoContext(ctx, "Invoice uploaded",
		"invoice_id", inv.ID,
		"loan_id", loan.ID,
		"file_url", fileURL)
	return inv, nil
}
