package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas del facade.
func NewRouter(logger *zap.Logger, sessionH *SessionHandler, expenseH *ExpenseHandler) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	auth := r.Group("/auth")
	auth.POST("/login", sessionH.Login)
	auth.POST("/signup", sessionH.Signup)
	auth.POST("/logout", sessionH.Logout)
	auth.GET("/session", sessionH.Session)

	expenses := r.Group("/expenses")
	expenses.GET("", expenseH.List)
	expenses.GET("/total", expenseH.Total)
	expenses.POST("", expenseH.Create)
	expenses.POST("/image", expenseH.Upload)
	expenses.GET("/:id", expenseH.GetOne)
	expenses.PUT("/:id", expenseH.Update)
	expenses.DELETE("/:id", expenseH.Delete)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
