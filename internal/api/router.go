package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/safar/go-shop-orders/internal/api/middleware"
)

func NewRouter(h *Handler, jwtSecret []byte, logger *zerolog.Logger) *chi.Mux {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, "ok", nil)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/webhook", h.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(jwtSecret))

			r.Post("/", h.CreateOrder)
			r.Post("/payment", h.CreatePaymentSession)
			r.Get("/myorders", h.MyOrders)
			r.Get("/{id}", h.GetOrder)
			r.Put("/{id}/cancel", h.CancelOrder)
			r.Put("/{id}/address", h.UpdateAddress)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/", h.ListOrders)
				r.Put("/{id}/status", h.UpdateStatus)
				r.Put("/{id}/tracking", h.UpdateTracking)
			})
		})
	})

	return r
}
