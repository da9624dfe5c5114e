// internal/router/router.go
package router

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/javajoker/eshop-backend/internal/config"
	"github.com/javajoker/eshop-backend/internal/handlers"
	"github.com/javajoker/eshop-backend/internal/middleware"
	"github.com/javajoker/eshop-backend/internal/repository"
	"github.com/javajoker/eshop-backend/internal/services"
	"github.com/javajoker/eshop-backend/internal/utils"
)

const Version = "1.0.0"

// Dependencies are the process-wide collaborators built by the caller.
type Dependencies struct {
	Store        repository.Store
	Gateway      services.PaymentGateway
	Ledger       services.EventLedger
	Mailer       services.Mailer
	Storage      *services.StorageService
	HealthChecks map[string]handlers.HealthCheck
}

// Initialize wires services and handlers onto a new engine. ctx bounds the
// background work of the rate limiters.
func Initialize(ctx context.Context, deps Dependencies, cfg *config.Config) *gin.Engine {
	// Initialize services
	authService := services.NewAuthService(deps.Store, cfg, deps.Mailer)
	userService := services.NewUserService(deps.Store)
	productService := services.NewProductService(deps.Store, deps.Storage)
	reviewService := services.NewReviewService(deps.Store)
	orderService := services.NewOrderService(deps.Store)
	checkoutService := services.NewCheckoutService(deps.Store, deps.Gateway, cfg)
	webhookService := services.NewWebhookService(deps.Store, deps.Gateway, deps.Ledger, cfg.Payment)
	adminService := services.NewAdminService(deps.Store)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, handlers.NewPublicOrigin(cfg.Server.PublicURL, !cfg.IsProduction()))
	userHandler := handlers.NewUserHandler(userService)
	productHandler := handlers.NewProductHandler(productService, reviewService, cfg.Pagination.ResPerPage)
	orderHandler := handlers.NewOrderHandler(orderService, cfg.Pagination.ResPerPage)
	paymentHandler := handlers.NewPaymentHandler(checkoutService, webhookService, userService)
	healthHandler := handlers.NewHealthHandler(Version, deps.HealthChecks)
	adminHandler := handlers.NewAdminHandler(adminService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS([]string{cfg.Frontend.BaseURL}))
	r.Use(middleware.I18nMiddleware())

	var general, auth gin.HandlerFunc = noLimit, noLimit
	if cfg.RateLimit.Enabled {
		generalLimiter := middleware.PerMinute(cfg.RateLimit.General)
		authLimiter := middleware.PerMinute(cfg.RateLimit.Auth)
		go generalLimiter.Run(ctx)
		go authLimiter.Run(ctx)
		general, auth = generalLimiter.Middleware(), authLimiter.Middleware()
	}

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.AWS.S3Bucket == "" && cfg.AWS.LocalUploadDir != "" {
		r.Static("/uploads", cfg.AWS.LocalUploadDir)
	}

	api := r.Group("/api")

	// The provider retries on its own schedule, so the webhook is not rate limited.
	api.POST("/order/webhook", paymentHandler.Webhook)

	api.Use(general)
	{
		// Authentication routes
		authRoutes := api.Group("")
		authRoutes.Use(auth)
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/token", authHandler.Login)
			authRoutes.POST("/forgot_password", authHandler.ForgotPassword)
			authRoutes.POST("/reset_password/:token", authHandler.ResetPassword)
		}

		user := api.Group("/current_user")
		user.Use(middleware.AuthRequired())
		{
			user.GET("", userHandler.GetCurrentUser)
			user.PUT("", userHandler.UpdateCurrentUser)
		}

		// Product routes
		products := api.Group("/products")
		{
			products.GET("", middleware.OptionalAuth(), productHandler.GetProducts)
			products.GET("/:id", middleware.OptionalAuth(), productHandler.GetProduct)

			// Authenticated routes
			protected := products.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("/:id/reviews", productHandler.SaveReview)
				protected.DELETE("/:id/reviews", productHandler.DeleteReview)
			}

			admin := products.Group("")
			admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
			{
				admin.POST("", productHandler.CreateProduct)
				admin.POST("/upload_images", productHandler.UploadImages)
				admin.PUT("/:id", productHandler.UpdateProduct)
				admin.DELETE("/:id", productHandler.DeleteProduct)
				admin.DELETE("/:id/images/:image_id", productHandler.DeleteImage)
			}
		}

		// Order routes
		orders := api.Group("/orders")
		orders.Use(middleware.AuthRequired())
		{
			orders.POST("/new", orderHandler.CreateOrder)
			orders.GET("", orderHandler.GetOrders)
			orders.GET("/:id", orderHandler.GetOrder)
			orders.PUT("/:id/process", middleware.AdminRequired(), orderHandler.ProcessOrder)
			orders.DELETE("/:id", middleware.AdminRequired(), orderHandler.DeleteOrder)
		}

		api.POST("/create_checkout_session", middleware.AuthRequired(), paymentHandler.CreateCheckoutSession)

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/dashboard/stats", adminHandler.GetDashboardStats)
		}
	}

	return r
}

func noLimit(c *gin.Context) { c.Next() }
