package routes

import (
	"storefront-backend/controllers"
	"storefront-backend/middleware"
	"storefront-backend/models"
	"storefront-backend/services"

	"github.com/gin-gonic/gin"
)

// Controllers bundles everything route registration needs.
type Controllers struct {
	Checkout     *controllers.CheckoutController
	Transactions *controllers.TransactionController
	Orders       *controllers.OrderController
	Users        *controllers.UserController
	Products     *controllers.ProductController
	UserService  *services.UserService
}

// Register wires all API routes onto the engine.
func Register(r *gin.Engine, c Controllers) {
	api := r.Group("/api")

	// Auth endpoints: open, but rate limited against credential stuffing
	// and OTP brute force.
	auth := api.Group("/auth")
	auth.Use(middleware.RateLimit(30, 10))
	{
		auth.POST("/register", c.Users.Register)
		auth.POST("/login", c.Users.Login)
		auth.POST("/create-account", c.Users.CreateAccount)
		auth.POST("/forgot-password", c.Users.ForgotPassword)
		auth.POST("/reset-password", c.Users.ResetPassword)
	}

	// Checkout serves guests and account holders alike; auth is optional.
	checkout := api.Group("/checkout")
	checkout.Use(middleware.RateLimit(60, 20), middleware.OptionalAuth(c.UserService))
	{
		checkout.POST("/initialize", c.Checkout.InitializeCheckout)
	}

	transactions := api.Group("/transactions")
	{
		// The gateway authenticates via HMAC signature, not a session.
		transactions.POST("/webhook", c.Transactions.Webhook)
		transactions.GET("/verify/:reference", middleware.RateLimit(120, 30), c.Transactions.VerifyPayment)
		transactions.GET("/:reference/status", c.Transactions.GetTransactionStatus)
	}

	orders := api.Group("/orders")
	{
		orders.GET("/track/:orderNumber", middleware.OptionalAuth(c.UserService), c.Orders.TrackOrder)
		orders.GET("/my-orders", middleware.RequireAuth(c.UserService), c.Orders.MyOrders)
	}

	users := api.Group("/users")
	users.Use(middleware.RequireAuth(c.UserService))
	{
		users.GET("/me", c.Users.GetProfile)
		users.PUT("/me", c.Users.UpdateProfile)
		users.PUT("/me/password", c.Users.ChangePassword)
		users.POST("/verify-phone/request", c.Users.RequestPhoneVerification)
		users.POST("/verify-phone", c.Users.VerifyPhone)
	}

	products := api.Group("/products")
	{
		products.GET("", c.Products.ListProducts)
		products.GET("/:id", c.Products.GetProduct)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.RequireAuth(c.UserService), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/orders", c.Orders.ListOrders)
		admin.PATCH("/orders/:id", c.Orders.UpdateOrder)
		admin.GET("/transactions", c.Transactions.ListTransactions)
		admin.POST("/products", c.Products.CreateProduct)
		admin.PATCH("/products/:id", c.Products.UpdateProduct)
		admin.POST("/products/upload-url", c.Products.PresignUpload)
	}
}
