package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ndanchak/vyriy-income-expense-bot/internal/auth"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/config"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/http/handler"
	mw "github.com/ndanchak/vyriy-income-expense-bot/internal/http/middleware"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/telegram"
)

func NewRouter(cfg config.Config, webhook *telegram.Handler, ops *handler.OpsHandler, jwtSvc *auth.JWT) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins))
	}

	// Health check kept minimal to avoid leaking identity.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/webhook", webhook.Webhook)

	r.Route("/ops", func(r chi.Router) {
		r.Post("/login", ops.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(jwtSvc))

			r.Get("/transactions", ops.ListTransactions)
			r.Post("/bookings/{id}/cancel", ops.CancelBooking)
			r.Get("/jobs", ops.ListJobs)
			r.Get("/sync/backlog", ops.SyncBacklog)
		})
	})

	return r
}
