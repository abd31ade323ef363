package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/funlifew/Push-Notification-Server/internal/phone"
	"github.com/funlifew/Push-Notification-Server/internal/push"
	"github.com/funlifew/Push-Notification-Server/internal/service"
)

// writeServiceError traduce errores de servicio a respuestas JSON {"error": ...}.
// Lo que no reconoce se registra y sale como 500 con fallback.
func writeServiceError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	var wait *service.RefreshWaitError
	switch {
	case errors.As(err, &wait):
		seconds := int(math.Ceil(wait.Remaining.Seconds()))
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "otp not yet refreshable", "retry_after": seconds})
	case errors.Is(err, phone.ErrInvalidFormat), errors.Is(err, phone.ErrInvalidNumber):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number"})
	case errors.Is(err, service.ErrOTPNotFound),
		errors.Is(err, service.ErrOTPExpired),
		errors.Is(err, service.ErrOTPNotVerified),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrInvalidProfile),
		errors.Is(err, service.ErrInvalidRequestType),
		errors.Is(err, service.ErrInvalidSubscription),
		errors.Is(err, service.ErrInvalidNotification),
		errors.Is(err, service.ErrNoSubscriptions),
		errors.Is(err, push.ErrUnsupportedIcon):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, service.ErrAdminTokenRequired), errors.Is(err, service.ErrAdminTokenInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, service.ErrUserExists),
		errors.Is(err, service.ErrPhoneTaken),
		errors.Is(err, service.ErrAccountActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPushDeliveryFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
