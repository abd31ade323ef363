package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/funlifew/Push-Notification-Server/internal/domain"
	"github.com/funlifew/Push-Notification-Server/internal/service"
)

const refreshCookieName = "refresh_token"

// UserHandler mantiene dependencias para los endpoints de /accounts.
type UserHandler struct {
	logger       *zap.Logger
	userServ     *service.UserService
	jwtServ      *service.JWTService
	cookieSecure bool
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService, jwtServ *service.JWTService, cookieSecure bool) *UserHandler {
	return &UserHandler{
		logger:       logger,
		userServ:     userServ,
		jwtServ:      jwtServ,
		cookieSecure: cookieSecure,
	}
}

// Register maneja POST /accounts/register.
func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		PhoneNumber string `json:"phone_number" binding:"required"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		Password    string `json:"password" binding:"required"`
	}
	if !h.bind(c, &req, "register") {
		return
	}

	res, err := h.userServ.Register(c.Request.Context(), service.RegisterInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
	})
	if err != nil {
		writeServiceError(c, h.logger, err, "could not register user")
		return
	}

	body := gin.H{
		"message":      "User registered. Please verify OTP.",
		"register_id":  res.OTP.Request.RegisterID,
		"phone_number": res.User.PhoneNumber,
	}
	withDeliveryWarning(body, res.OTP.DeliveryErr)
	c.JSON(http.StatusCreated, body)
}

// Login maneja POST /accounts/login. username acepta email o telefono.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !h.bind(c, &req, "login") {
		return
	}

	user, err := h.userServ.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		var inactive *service.InactiveAccountError
		if errors.As(err, &inactive) {
			body := gin.H{
				"error":       "account inactive",
				"message":     "OTP sent for activation.",
				"register_id": inactive.RegisterID,
			}
			withDeliveryWarning(body, inactive.DeliveryErr)
			c.JSON(http.StatusForbidden, body)
			return
		}
		writeServiceError(c, h.logger, err, "could not login")
		return
	}
	h.grantSession(c, user, gin.H{})
}

// Logout maneja POST /accounts/logout.
func (h *UserHandler) Logout(c *gin.Context) {
	if token := h.refreshTokenFrom(c); token != "" {
		if err := h.jwtServ.RevokeRefresh(c.Request.Context(), token); err != nil {
			h.logger.Debug("revoke refresh on logout", zap.Error(err))
		}
	}
	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out."})
}

// VerifyOTP maneja POST /accounts/otp/verify: activa la cuenta y abre sesion.
func (h *UserHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		RegisterID string `json:"register_id" binding:"required"`
		OTPCode    string `json:"otp_code" binding:"required"`
	}
	if !h.bind(c, &req, "verify otp") {
		return
	}

	user, err := h.userServ.VerifyAccount(c.Request.Context(), strings.TrimSpace(req.RegisterID), strings.TrimSpace(req.OTPCode))
	if err != nil {
		writeServiceError(c, h.logger, err, "could not verify otp")
		return
	}
	h.grantSession(c, user, gin.H{"message": "your account has been verified."})
}

// RefreshOTP maneja POST /accounts/otp/refresh.
func (h *UserHandler) RefreshOTP(c *gin.Context) {
	var req struct {
		RegisterID string `json:"register_id" binding:"required"`
	}
	if !h.bind(c, &req, "refresh otp") {
		return
	}

	issued, err := h.userServ.RefreshOTP(c.Request.Context(), strings.TrimSpace(req.RegisterID))
	if err != nil {
		writeServiceError(c, h.logger, err, "could not refresh otp")
		return
	}
	body := gin.H{"message": "new otp generated.", "register_id": issued.Request.RegisterID}
	withDeliveryWarning(body, issued.DeliveryErr)
	c.JSON(http.StatusOK, body)
}

// RequestPasswordReset maneja POST /accounts/password/reset/request.
func (h *UserHandler) RequestPasswordReset(c *gin.Context) {
	var req struct {
		PhoneNumber string `json:"phone_number" binding:"required"`
	}
	if !h.bind(c, &req, "password reset request") {
		return
	}

	issued, err := h.userServ.RequestPasswordReset(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not request password reset")
		return
	}
	body := gin.H{"message": "OTP request just sent.", "register_id": issued.Request.RegisterID}
	withDeliveryWarning(body, issued.DeliveryErr)
	c.JSON(http.StatusOK, body)
}

// VerifyPasswordReset maneja POST /accounts/password/reset/verify.
func (h *UserHandler) VerifyPasswordReset(c *gin.Context) {
	var req struct {
		RegisterID string `json:"register_id" binding:"required"`
		OTPCode    string `json:"otp_code" binding:"required"`
	}
	if !h.bind(c, &req, "password reset verify") {
		return
	}

	if _, err := h.userServ.VerifyPasswordReset(c.Request.Context(), strings.TrimSpace(req.RegisterID), strings.TrimSpace(req.OTPCode)); err != nil {
		writeServiceError(c, h.logger, err, "could not verify otp")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "otp is verified, you are able to reset your password"})
}

// ResetPassword maneja POST /accounts/password/reset.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req struct {
		RegisterID  string `json:"register_id" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if !h.bind(c, &req, "password reset") {
		return
	}

	if err := h.userServ.ResetPassword(c.Request.Context(), strings.TrimSpace(req.RegisterID), req.NewPassword); err != nil {
		writeServiceError(c, h.logger, err, "could not reset password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully."})
}

// ChangePassword maneja POST /accounts/password/change.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if !h.bind(c, &req, "change password") {
		return
	}

	if err := h.userServ.ChangePassword(c.Request.Context(), claims.UserID, req.OldPassword, req.NewPassword); err != nil {
		writeServiceError(c, h.logger, err, "could not change password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully."})
}

// Profile maneja GET /accounts/profile.
func (h *UserHandler) Profile(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	user, err := h.userServ.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not load profile")
		return
	}
	c.JSON(http.StatusOK, profileBody(user))
}

// UpdateProfile maneja POST /accounts/profile.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if !h.bind(c, &req, "update profile") {
		return
	}

	user, err := h.userServ.UpdateProfile(c.Request.Context(), claims.UserID, req.FirstName, req.LastName)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not update profile")
		return
	}
	c.JSON(http.StatusOK, profileBody(user))
}

// ChangePhoneNumber maneja POST /accounts/number/change.
func (h *UserHandler) ChangePhoneNumber(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	var req struct {
		NewPhoneNumber string `json:"new_phone_number" binding:"required"`
	}
	if !h.bind(c, &req, "change phone number") {
		return
	}

	issued, err := h.userServ.ChangePhoneNumber(c.Request.Context(), claims.UserID, req.NewPhoneNumber)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not change phone number")
		return
	}
	body := gin.H{"message": "OTP sent to new phone number.", "register_id": issued.Request.RegisterID}
	withDeliveryWarning(body, issued.DeliveryErr)
	c.JSON(http.StatusOK, body)
}

// EditPhoneNumber maneja POST /accounts/number/edit.
func (h *UserHandler) EditPhoneNumber(c *gin.Context) {
	var req struct {
		OldPhoneNumber string `json:"old_phone_number" binding:"required"`
		NewPhoneNumber string `json:"new_phone_number" binding:"required"`
		RequestType    string `json:"request_type" binding:"required"`
	}
	if !h.bind(c, &req, "edit phone number") {
		return
	}

	issued, err := h.userServ.EditPhoneNumber(c.Request.Context(), req.OldPhoneNumber, req.NewPhoneNumber, domain.OTPRequestType(req.RequestType))
	if err != nil {
		writeServiceError(c, h.logger, err, "could not edit phone number")
		return
	}
	body := gin.H{
		"message":      "phone number has changed successfully",
		"register_id":  issued.Request.RegisterID,
		"request_type": issued.Request.RequestType,
		"phone_number": issued.Request.PhoneNumber,
	}
	withDeliveryWarning(body, issued.DeliveryErr)
	c.JSON(http.StatusOK, body)
}

// RefreshToken maneja POST /accounts/token/refresh. Lee el refresh de la cookie o del body.
func (h *UserHandler) RefreshToken(c *gin.Context) {
	token := h.refreshTokenFrom(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no refresh token"})
		return
	}
	tokens, err := h.jwtServ.RefreshPair(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	h.setRefreshCookie(c, tokens.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"access_token": tokens.AccessToken, "expires_in": tokens.ExpiresIn})
}

// VerifyToken maneja POST /accounts/token/verify.
func (h *UserHandler) VerifyToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if !h.bind(c, &req, "verify token") {
		return
	}
	if _, err := h.jwtServ.Verify(req.Token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *UserHandler) grantSession(c *gin.Context, user domain.User, body gin.H) {
	tokens, err := h.jwtServ.GeneratePair(c.Request.Context(), user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}
	h.setRefreshCookie(c, tokens.RefreshToken)
	body["access_token"] = tokens.AccessToken
	body["expires_in"] = tokens.ExpiresIn
	c.JSON(http.StatusOK, body)
}

func (h *UserHandler) bind(c *gin.Context, req any, action string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("invalid "+action+" request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}

func (h *UserHandler) refreshTokenFrom(c *gin.Context) string {
	if cookie, err := c.Cookie(refreshCookieName); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie)
	}
	if c.Request.ContentLength == 0 {
		return ""
	}
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.Refresh)
}

func (h *UserHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, token, int(h.jwtServ.RefreshTTL().Seconds()), "/", "", h.cookieSecure, true)
}

func (h *UserHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, "", -1, "/", "", h.cookieSecure, true)
}

func profileBody(user domain.User) gin.H {
	return gin.H{
		"first_name":   user.FirstName,
		"last_name":    user.LastName,
		"phone_number": user.PhoneNumber,
		"email":        user.Email,
		"is_superuser": user.IsSuperuser,
		"is_active":    user.IsActive,
	}
}

// withDeliveryWarning avisa que el SMS no salio; la solicitud sigue valida y puede refrescarse.
func withDeliveryWarning(body gin.H, deliveryErr error) {
	if deliveryErr != nil {
		body["warning"] = "otp delivery failed, request a refresh"
	}
}
