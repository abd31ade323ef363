package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/funlifew/Push-Notification-Server/internal/config"
	"github.com/funlifew/Push-Notification-Server/internal/db"
	"github.com/funlifew/Push-Notification-Server/internal/domain"
	apihttp "github.com/funlifew/Push-Notification-Server/internal/http"
	"github.com/funlifew/Push-Notification-Server/internal/phone"
	"github.com/funlifew/Push-Notification-Server/internal/push"
	"github.com/funlifew/Push-Notification-Server/internal/repository"
	"github.com/funlifew/Push-Notification-Server/internal/service"
	"github.com/funlifew/Push-Notification-Server/internal/sms"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	normalizer, err := phone.NewNormalizer(cfg.PhoneRegion)
	if err != nil {
		logger.Fatal("phone normalizer", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	otpRepo := repository.NewPgOTPRepository(pool)
	adminTokenRepo := repository.NewPgAdminTokenRepository(pool)

	otpLimiter := service.NewMemoryOTPRateLimiter(cfg.OTPRateWindow, cfg.OTPRateMax)
	var tokenStore service.RefreshTokenStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory limiter and token store", zap.Error(err))
		} else {
			otpLimiter = service.NewRedisOTPRateLimiter(redisClient, cfg.OTPRateWindow, cfg.OTPRateMax)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
	}

	smsSender := sms.NewDisabledSender("sms sender not configured")
	if cfg.Kavenegar.APIKey != "" {
		kavenegar, err := sms.NewKavenegarSender(cfg.Kavenegar)
		if err != nil {
			logger.Warn("kavenegar sender init failed", zap.Error(err))
		} else {
			smsSender = sms.NewBreakerSender(kavenegar, sms.BreakerSettings{}, logger)
		}
	}

	var dispatcher push.Dispatcher
	webPush, err := push.NewWebPushDispatcher(cfg.VAPID)
	if err != nil {
		logger.Warn("web push dispatcher disabled", zap.Error(err))
		dispatcher = push.NewDisabledDispatcher(err.Error())
	} else {
		dispatcher = webPush
	}

	otpSvc, err := service.NewOTPService(logger, otpRepo, normalizer, smsSender, otpLimiter, service.OTPPolicy{
		Windows:             domain.OTPWindows{TTL: cfg.OTPTTL, RefreshAfter: cfg.OTPRefreshAfter},
		AllowConcurrentOTPs: cfg.OTPAllowConcurrent,
	})
	if err != nil {
		logger.Fatal("otp service", zap.Error(err))
	}
	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	userSvc := service.NewUserService(logger, userRepo, otpSvc, normalizer)
	pushSvc := service.NewPushService(logger, adminTokenRepo, dispatcher)

	limiter := apihttp.NewIPRateLimiter(cfg.RateLimitPerMinute, 10, logger)
	go limiter.Run(ctx)

	router := apihttp.NewRouter(
		logger,
		jwtSvc,
		apihttp.NewUserHandler(logger, userSvc, jwtSvc, cfg.CookieSecure),
		apihttp.NewPushHandler(logger, pushSvc),
		apihttp.NewHealthHandler(logger, pool),
		limiter,
	)
	handler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !allowsAnyOrigin(cfg.CORSAllowedOrigins),
		MaxAge:           300,
	})(router)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

// allowsAnyOrigin: con "*" no se envian credenciales.
func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
