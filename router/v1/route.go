package v1

import (
	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/storepay/handler"
)

// Handlers are the handlers mounted under /v1
type Handlers struct {
	Payment *handler.PaymentHandler
	Config  *handler.ConfigHandler
	Order   *handler.OrderHandler
	Product *handler.ProductHandler
	Audit   *handler.AuditHandler
}

// Routes registers all authenticated API routes
func Routes(r chi.Router, h Handlers) {
	r.Route("/payment", func(r chi.Router) {
		r.Post("/create_payment", h.Payment.CreatePayment)
		r.Get("/providers", h.Config.Providers)
		r.Get("/callbacks", h.Audit.ListCallbacks)

		r.Route("/configs", func(r chi.Router) {
			r.Get("/", h.Config.List)
			r.Post("/", h.Config.Create)
			r.Put("/{configID}", h.Config.Update)
			r.Delete("/{configID}", h.Config.Delete)
		})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.Order.List)
		r.Get("/{orderID}", h.Order.Get)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.Product.List)
		r.Post("/", h.Product.Create)
		r.Get("/{productID}", h.Product.Get)
	})
}
