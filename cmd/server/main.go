package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"prepstock-system/config"
	"prepstock-system/internal/database"
	"prepstock-system/internal/gateway/handlers"
	"prepstock-system/internal/gateway/middleware"
	"prepstock-system/internal/logger"
	"prepstock-system/internal/mailer"
	invhandler "prepstock-system/internal/services/inventory/handler"
	teamhandler "prepstock-system/internal/services/team/handler"
	userhandler "prepstock-system/internal/services/user/handler"
)

func main() {
	logger.InitializeLogger()
	defer logger.Close()

	cfg := config.LoadConfig()

	db, err := database.NewConnection(cfg.DB.DSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	rdb := config.NewRedisClient(cfg.Redis)
	mail := mailer.NewFromConfig(cfg.SMTP)

	users := userhandler.NewUserHandler(db, rdb, mail, cfg.Auth, cfg.SMTP)
	inventory := invhandler.NewInventoryHandler(db, rdb)
	teams := teamhandler.NewTeamHandler(db, rdb)

	userHTTP := handlers.NewUserHTTPHandler(users, []byte(cfg.Auth.JWTSecret))
	inventoryHTTP := handlers.NewInventoryHTTPHandler(inventory)
	teamHTTP := handlers.NewTeamHTTPHandler(teams)

	r := gin.Default()

	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit())

	jwtAuth := middleware.JWTAuth([]byte(cfg.Auth.JWTSecret), func(c *gin.Context, token string) bool {
		return users.IsTokenDenylisted(c.Request.Context(), token)
	})

	// --- Public API Group ---
	public := r.Group("/api/v1")
	{
		auth := public.Group("/auth")
		{
			auth.POST("/login", userHTTP.Login)
			auth.POST("/register", userHTTP.Register)
			auth.POST("/reset-password", userHTTP.RequestPasswordReset)
			auth.POST("/reset-password/confirm", userHTTP.CompletePasswordReset)
		}
	}

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(jwtAuth)
	{
		protected.POST("/auth/logout", userHTTP.Logout)

		inventoryGroup := protected.Group("/inventory")
		{
			inventoryGroup.GET("/items", inventoryHTTP.ListItems)
			inventoryGroup.POST("/items", inventoryHTTP.AddItem)
			inventoryGroup.POST("/items/bulk", inventoryHTTP.BulkAdd)
			inventoryGroup.DELETE("/items/:id", inventoryHTTP.DeleteItem)
			inventoryGroup.PATCH("/items/:id/quantity", inventoryHTTP.UpdateQuantity)
			inventoryGroup.GET("/low-stock", inventoryHTTP.LowStock)
			inventoryGroup.GET("/summary", inventoryHTTP.Summary)
		}

		teamGroup := protected.Group("/team")
		{
			teamGroup.GET("", teamHTTP.MyTeam)
			teamGroup.POST("", teamHTTP.CreateTeam)
			teamGroup.GET("/members", teamHTTP.ListMembers)
			teamGroup.DELETE("/members/:id", teamHTTP.RemoveMember)
			teamGroup.GET("/requests", teamHTTP.ListPendingRequests)
			teamGroup.GET("/requests/mine", teamHTTP.MyPendingRequest)
			teamGroup.POST("/requests", teamHTTP.RequestToJoin)
			teamGroup.POST("/requests/:id/approve", teamHTTP.ApproveRequest)
			teamGroup.POST("/requests/:id/deny", teamHTTP.DenyRequest)
			teamGroup.DELETE("/requests/:id", teamHTTP.CancelRequest)
		}
	}

	r.GET("/health", healthCheckHandler(db, rdb))

	port := ":" + cfg.Server.Port
	logger.Info("Starting server", zap.String("port", port))
	if err := r.Run(port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func healthCheckHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		status := "healthy"
		httpStatus := http.StatusOK
		services := gin.H{"database": "healthy", "redis": "healthy"}

		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			services["database"] = "unavailable"
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			services["redis"] = "unavailable"
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, gin.H{
			"status":    status,
			"services":  services,
			"timestamp": time.Now(),
		})
	}
}
