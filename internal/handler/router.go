package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/flicky/storefront-api/internal/metrics"
	"github.com/flicky/storefront-api/internal/middleware"
)

// Router bundles everything the HTTP surface needs.
type Router struct {
	Auth     *AuthHandler
	Products *ProductHandler
	Carts    *CartHandler
	Orders   *OrderHandler
	Admin    *AdminHandler
	Health   *HealthHandler
	Metrics  *metrics.Metrics

	JWTSecret string
	Sessions  middleware.SessionValidator
}

func (r Router) Engine() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if r.Metrics != nil {
		router.Use(r.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(r.Metrics.Handler()))
	}
	router.GET("/healthz", r.Health.Healthz)
	router.GET("/readyz", r.Health.Readyz)

	authn := middleware.AuthMiddleware(r.JWTSecret, r.Sessions)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", r.Auth.Register)
		auth.POST("/login", r.Auth.Login)
		auth.POST("/logout", authn, r.Auth.Logout)

		products := v1.Group("/products")
		products.GET("", r.Products.List)
		products.GET("/new", r.Products.NewArrivals)
		products.GET("/recommended", r.Products.Recommended)
		products.GET("/:id", r.Products.GetByID)

		adminProducts := products.Group("", authn, middleware.AdminOnly())
		adminProducts.POST("", r.Products.Create)
		adminProducts.PUT("/:id", r.Products.Update)
		adminProducts.DELETE("/:id", r.Products.Delete)

		cart := v1.Group("/cart", authn)
		cart.GET("", r.Carts.GetCart)
		cart.DELETE("", r.Carts.Clear)
		cart.GET("/count", r.Carts.Count)
		cart.POST("/items", r.Carts.AddItem)
		cart.PUT("/items/:id", r.Carts.UpdateItem)
		cart.DELETE("/items/:id", r.Carts.DeleteItem)

		orders := v1.Group("/orders", authn)
		orders.POST("", r.Orders.CreateOrder)
		orders.GET("", r.Orders.ListOrders)
		orders.GET("/count", r.Orders.CountOrders)
		orders.GET("/number/:number", r.Orders.GetOrderByNumber)
		orders.GET("/:id", r.Orders.GetOrder)
		orders.POST("/:id/cancel", r.Orders.CancelOrder)

		admin := v1.Group("/admin/orders", authn, middleware.AdminOnly())
		admin.POST("/:id/payment", r.Admin.ApplyPayment)
		admin.POST("/:id/prepare", r.Admin.Prepare)
		admin.POST("/:id/ship", r.Admin.Ship)
		admin.POST("/:id/delivery", r.Admin.UpdateDelivery)
		admin.POST("/:id/refund", r.Admin.Refund)
		admin.POST("/:id/cancel", r.Admin.Cancel)
	}
	return router
}
