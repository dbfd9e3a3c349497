// Package http exposes the budget, loan, history and sync operations as a
// JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pocketbook/internal/cache"
	"pocketbook/internal/invoice"
	"pocketbook/internal/ledger"
	applog "pocketbook/internal/log"
	"pocketbook/internal/middleware/ratelimit"
	"pocketbook/internal/middleware/security"
	"pocketbook/internal/middleware/trace"
	"pocketbook/internal/recurrence"
	"pocketbook/internal/storage"
	appsync "pocketbook/internal/sync"
)

type Server struct {
	http.Server
	store    *storage.SQLiteStore
	budgets  *recurrence.Engine
	loans    *ledger.Ledger
	syncer   *appsync.Engine
	invoices *invoice.Service

	limiter *ratelimit.Limiter

	// History buckets re-scan the whole budget collection, so responses are
	// memoized and purged on every budget mutation.
	bucketCache *cache.LRUCache[[]recurrence.Bucket]
	cacheMgr    *cache.Manager

	shutdownOnce sync.Once
}

func NewServer(addr string, store *storage.SQLiteStore, budgets *recurrence.Engine, loans *ledger.Ledger, syncer *appsync.Engine, invoices *invoice.Service) *Server {
	mux := http.NewServeMux()

	s := &Server{
		store:       store,
		budgets:     budgets,
		loans:       loans,
		syncer:      syncer,
		invoices:    invoices,
		limiter:     ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		bucketCache: cache.NewLRUCache[[]recurrence.Bucket](100, 5*time.Minute),
		cacheMgr:    cache.NewManager(),
	}
	s.cacheMgr.Register(s.bucketCache)
	s.cacheMgr.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("POST /api/budgets", s.handleCreateBudget)
	mux.HandleFunc("PATCH /api/budgets/{id}", s.handleUpdateBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)
	mux.HandleFunc("POST /api/budgets/{id}/spend", s.handleRecordSpend)
	mux.HandleFunc("POST /api/budgets/{id}/items/{itemId}/toggle", s.handleToggleItem)
	mux.HandleFunc("GET /api/budgets/totals", s.handlePeriodTotals)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("GET /api/history", s.handleHistory)

	mux.HandleFunc("GET /api/loans", s.handleListLoans)
	mux.HandleFunc("POST /api/loans", s.handleAddLoan)
	mux.HandleFunc("PATCH /api/loans/{id}", s.handleUpdateLoan)
	mux.HandleFunc("DELETE /api/loans/{id}", s.handleDeleteLoan)
	mux.HandleFunc("POST /api/loans/{id}/payments", s.handleRecordPayment)
	mux.HandleFunc("POST /api/loans/{id}/invoice", s.handleLoanInvoice)
	mux.HandleFunc("GET /api/counterparties", s.handleListCounterparties)
	mux.HandleFunc("POST /api/counterparties", s.handleAddCounterparty)
	mux.HandleFunc("GET /api/counterparties/matches", s.handleCounterpartyMatches)

	mux.HandleFunc("POST /api/sync", s.handleTriggerSync)
	mux.HandleFunc("GET /api/sync/status", s.handleSyncStatus)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)

	ips := security.NewExtractor()
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(ips.ExtractClientIP)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(ips.ExtractClientIP, nil)(handler)
	handler = headers.Middleware(handler)
	handler = tracer.Middleware(handler)
	handler = applog.Middleware(applog.New(applog.Config{Component: applog.ComponentHTTP}))(handler)

	s.Server = http.Server{Addr: addr, Handler: handler}
	return s
}

// Shutdown stops the server, the rate limiter and the cache cleanup routine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheMgr.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
