/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack, and the route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. requestLog: Structured request logging via zerolog
  4. CORS:       Cross-origin requests for the forms frontend

SECURITY NOTE:
  No authentication middleware. Session handling is an external
  collaborator of this engine.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog(h.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Transaction routes
		r.Post("/receipts", h.CreateReceipt)
		r.Post("/expenses", h.CreateExpense)
		r.Post("/transfers", h.CreateTransfer)
		r.Post("/buyer-transfers", h.CreateBuyerTransfer)
		r.Post("/discounts", h.CreateDiscount)
		r.Post("/discounts/preview", h.PreviewDiscount)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/{id}/reverse", h.ReverseTransaction)
		})

		r.Get("/summary", h.GetSummary)

		// Reference data
		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.ListSales)
			r.Post("/", h.CreateSale)
		})
		r.Get("/buyers/{name}/due", h.GetBuyerDue)
		r.Route("/opening-balances", func(r chi.Router) {
			r.Put("/{year}", h.SetOpeningBalances)
			r.Get("/{year}", h.GetOpeningBalances)
		})

		// Drafts
		r.Route("/drafts", func(r chi.Router) {
			r.Put("/{key}", h.SaveDraft)
			r.Get("/{key}", h.GetDraft)
			r.Delete("/{key}", h.DeleteDraft)
		})

		// Demo scenarios
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// requestLog logs one line per request with method, path, status and timing.
func requestLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
