package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/storefront/api/handler"
)

type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

type Handlers struct {
	Products   *apiHandler.ProductHandler
	Orders     *apiHandler.OrderHandler
	Affiliates *apiHandler.AffiliateHandler
	Admin      *apiHandler.AdminHandler
	Health     *apiHandler.HealthHandler
	// Metrics is mounted only when set.
	Metrics fasthttp.RequestHandler
}

type Middlewares struct {
	Auth         Middleware
	OptionalAuth Middleware
	Admin        Middleware
}

func New(handlers Handlers, mw Middlewares) *router.Router {
	r := router.New()
	admin := func(h fasthttp.RequestHandler) fasthttp.RequestHandler { return mw.Auth(mw.Admin(h)) }

	r.GET("/health", handlers.Health.Check)
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}

	// Storefront
	r.GET("/r/{code}", handlers.Products.Landing)
	r.GET("/api/v1/products", handlers.Products.ListProducts)
	r.GET("/api/v1/products/{slug}", handlers.Products.GetProduct)
	r.POST("/api/v1/orders", mw.OptionalAuth(handlers.Orders.CreateOrder))
	r.GET("/api/v1/orders/{id}", mw.Auth(handlers.Orders.GetOrder))

	// Affiliate self-service
	r.POST("/api/v1/affiliate", mw.Auth(handlers.Affiliates.Enroll))
	r.GET("/api/v1/affiliate/me", mw.Auth(handlers.Affiliates.Dashboard))
	r.GET("/api/v1/affiliate/sales", mw.Auth(handlers.Affiliates.Sales))

	// Admin
	r.POST("/api/v1/admin/products", admin(handlers.Products.CreateProduct))
	r.GET("/api/v1/admin/affiliates", admin(handlers.Admin.ListAffiliates))
	r.POST("/api/v1/admin/affiliates/reconcile", admin(handlers.Admin.Reconcile))
	r.GET("/api/v1/admin/affiliate-sales", admin(handlers.Admin.ListSales))
	r.POST("/api/v1/admin/affiliate-sales/{id}/confirm", admin(handlers.Admin.ConfirmSale))
	r.POST("/api/v1/admin/affiliate-sales/{id}/void", admin(handlers.Admin.VoidSale))
	r.GET("/api/v1/admin/orders", admin(handlers.Orders.ListOrders))

	return r
}
