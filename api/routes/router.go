package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charmforge/charmforge-backend/api/controllers"
	"github.com/charmforge/charmforge-backend/api/middleware"
	"github.com/charmforge/charmforge-backend/internal/cart"
	"github.com/charmforge/charmforge-backend/internal/cartgateway"
	checkoutsvc "github.com/charmforge/charmforge-backend/internal/checkout"
	"github.com/charmforge/charmforge-backend/internal/notifications"
	"github.com/charmforge/charmforge-backend/internal/orders"
	"github.com/charmforge/charmforge-backend/pkg/config"
	"github.com/charmforge/charmforge-backend/pkg/logger"
	"github.com/charmforge/charmforge-backend/pkg/redis"
)

// RouterParams carries every dependency the HTTP surface needs.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *redis.Client
	Carts    *cart.Manager
	Gateway  cartgateway.Service
	Checkout checkoutsvc.Service
	Orders   orders.Repository
	Notifier notifications.Publisher
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, map[string]controllers.Pinger{
			"db":    p.DB,
			"redis": p.Redis,
		}))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(p.Config.Session, p.Logger))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(p.Carts, p.Gateway, p.Logger))
			r.Delete("/", controllers.CartClear(p.Carts, p.Gateway, p.Notifier, p.Logger))
			r.Get("/summary", controllers.CartSummary(p.Carts, p.Gateway, p.Logger))
			r.Post("/items", controllers.CartAddItem(p.Carts, p.Gateway, p.Notifier, p.Logger))
			r.Patch("/items/{itemID}", controllers.CartUpdateItem(p.Carts, p.Gateway, p.Notifier, p.Logger))
			r.Delete("/items/{itemID}", controllers.CartRemoveItem(p.Carts, p.Gateway, p.Notifier, p.Logger))
			r.Post("/undo", controllers.CartUndo(p.Carts, p.Gateway, p.Notifier, p.Logger))
			r.Post("/redo", controllers.CartRedo(p.Carts, p.Gateway, p.Notifier, p.Logger))
			r.Post("/transfer", controllers.CartTransfer(p.Carts, p.Gateway, p.Logger))
		})

		r.With(middleware.CheckoutGuard(p.Redis, p.Logger)).
			Post("/checkout", controllers.Checkout(p.Carts, p.Gateway, p.Checkout, p.Notifier, p.Logger))

		r.Get("/orders/{orderNumber}", controllers.OrderDetail(p.Orders, p.Logger))
	})

	return r
}
