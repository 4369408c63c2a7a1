// api/routes/router.go
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sportsfesthq/sportsfest-backend/api/controllers"
	"github.com/sportsfesthq/sportsfest-backend/api/middleware"
	cartsvc "github.com/sportsfesthq/sportsfest-backend/internal/cart"
	"github.com/sportsfesthq/sportsfest-backend/internal/inventory"
	invoicesvc "github.com/sportsfesthq/sportsfest-backend/internal/invoices"
	ordersvc "github.com/sportsfesthq/sportsfest-backend/internal/orders"
	"github.com/sportsfesthq/sportsfest-backend/pkg/config"
	"github.com/sportsfesthq/sportsfest-backend/pkg/db"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
	"github.com/sportsfesthq/sportsfest-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	store *db.Client,
	cache *redis.Client,
	inventoryService inventory.Service,
	cartService cartsvc.Service,
	orderService ordersvc.Service,
	invoiceService invoicesvc.Service,
	cleanupService *ordersvc.CleanupService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, store, cache, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/availability", func(r chi.Router) {
			r.Get("/", controllers.AvailabilityList(inventoryService, logg))
			r.Get("/{productId}", controllers.AvailabilityGet(inventoryService, logg))
		})

		r.Route("/organizations/{orgId}", func(r chi.Router) {
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(cartService, logg))
				r.Put("/items", controllers.CartSetItem(cartService, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(cartService, logg))
				r.Delete("/", controllers.CartClear(cartService, logg))
			})
			r.Get("/orders", controllers.OrderList(orderService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/checkout", controllers.OrderCheckout(orderService, logg))
			r.Post("/sponsorships", controllers.SponsorshipCreate(orderService, invoiceService, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.OrderGet(orderService, logg))
				r.Post("/payments", controllers.PaymentRecord(orderService, logg))
				r.Post("/cancel", controllers.OrderCancel(orderService, logg))
				r.Post("/refund", controllers.OrderRefund(orderService, logg))

				r.Route("/invoice", func(r chi.Router) {
					r.Post("/", controllers.InvoiceAttach(invoiceService, logg))
					r.Get("/", controllers.InvoiceGet(invoiceService, logg))
					r.Post("/mark-sent", controllers.InvoiceMarkSent(invoiceService, logg))
					r.Post("/payments", controllers.InvoicePaymentRecord(invoiceService, logg))
					r.Post("/reconcile", controllers.InvoiceReconcile(invoiceService, logg))
					r.Post("/resend", controllers.InvoiceResend(invoiceService, logg))
				})
			})
		})

		r.Route("/cleanup", func(r chi.Router) {
			r.Use(middleware.BearerToken(cfg.Cleanup.Token, logg))
			r.Post("/orders", controllers.CleanupOrders(cleanupService, logg))
			r.Get("/carts", controllers.CleanupCartHealth(cleanupService, logg))
		})
	})

	return r
}
