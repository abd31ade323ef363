package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/funlifew/Push-Notification-Server/internal/metrics"
	"github.com/funlifew/Push-Notification-Server/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
// limiter puede ser nil para desactivar el limite por IP.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	userH *UserHandler,
	pushH *PushHandler,
	healthH *HealthHandler,
	limiter *IPRateLimiter,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), metricsMiddleware())

	r.GET("/healthz", healthH.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("")
	api.Use(jsonContentTypeMiddleware())
	if limiter != nil {
		api.Use(limiter.Handler())
	}
	auth := JWTAuthMiddleware(jwtSvc)

	accounts := api.Group("/accounts")
	accounts.POST("/register", userH.Register)
	accounts.POST("/login", userH.Login)
	accounts.POST("/logout", auth, userH.Logout)
	accounts.POST("/password/change", auth, userH.ChangePassword)
	accounts.POST("/password/reset/request", userH.RequestPasswordReset)
	accounts.POST("/password/reset/verify", userH.VerifyPasswordReset)
	accounts.POST("/password/reset", userH.ResetPassword)
	accounts.GET("/profile", auth, userH.Profile)
	accounts.POST("/profile", auth, userH.UpdateProfile)
	accounts.POST("/otp/verify", userH.VerifyOTP)
	accounts.POST("/otp/refresh", userH.RefreshOTP)
	accounts.POST("/token/refresh", userH.RefreshToken)
	accounts.POST("/token/verify", userH.VerifyToken)
	accounts.POST("/number/change", auth, userH.ChangePhoneNumber)
	accounts.POST("/number/edit", userH.EditPhoneNumber)

	server := api.Group("/server")
	server.POST("/token/generate", auth, RequireSuperuser(), pushH.GenerateAdminToken)
	server.POST("/send/single", pushH.SendSingle)
	server.POST("/send/group", pushH.SendGroup)

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

// metricsMiddleware usa la ruta registrada como etiqueta para no explotar la cardinalidad.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
