package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/funlifew/Push-Notification-Server/internal/domain"
	"github.com/funlifew/Push-Notification-Server/internal/push"
	"github.com/funlifew/Push-Notification-Server/internal/service"
)

// PushHandler expone los endpoints de /server.
type PushHandler struct {
	logger   *zap.Logger
	pushServ *service.PushService
}

func NewPushHandler(logger *zap.Logger, pushServ *service.PushService) *PushHandler {
	return &PushHandler{logger: logger, pushServ: pushServ}
}

// pushRequest admite JSON o formulario; las suscripciones pueden venir como
// objeto/array JSON o como string con JSON dentro.
type pushRequest struct {
	AdminToken           string          `json:"admin_token"`
	Title                string          `json:"title"`
	Body                 string          `json:"body"`
	URL                  string          `json:"url"`
	SubscriptionInfo     json.RawMessage `json:"subscription_info"`
	SubscriptionInfoList json.RawMessage `json:"subscription_info_list"`
}

// GenerateAdminToken maneja POST /server/token/generate (solo superusuarios).
func (h *PushHandler) GenerateAdminToken(c *gin.Context) {
	token, err := h.pushServ.GenerateAdminToken(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.logger, err, "could not generate admin token")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token.Token, "name": token.Name})
}

// SendSingle maneja POST /server/send/single.
func (h *PushHandler) SendSingle(c *gin.Context) {
	req, ok := h.parse(c)
	if !ok {
		return
	}
	if !h.authorize(c, req) {
		return
	}
	n, ok := h.notification(c, req)
	if !ok {
		return
	}

	var sub domain.PushSubscription
	if err := decodeLenient(req.SubscriptionInfo, &sub); err != nil {
		h.logger.Debug("invalid subscription_info", zap.Error(err))
	}
	if err := h.pushServ.SendSingle(c.Request.Context(), req.AdminToken, sub, n); err != nil {
		writeServiceError(c, h.logger, err, "could not send notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification sent successfully"})
}

// SendGroup maneja POST /server/send/group.
func (h *PushHandler) SendGroup(c *gin.Context) {
	req, ok := h.parse(c)
	if !ok {
		return
	}
	if !h.authorize(c, req) {
		return
	}
	n, ok := h.notification(c, req)
	if !ok {
		return
	}

	var subs []domain.PushSubscription
	if err := decodeLenient(req.SubscriptionInfoList, &subs); err != nil {
		h.logger.Debug("invalid subscription_info_list", zap.Error(err))
		subs = nil
	}
	report, err := h.pushServ.SendGroup(c.Request.Context(), req.AdminToken, subs, n)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not send notifications")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *PushHandler) parse(c *gin.Context) (pushRequest, bool) {
	var req pushRequest
	ct := c.ContentType()
	if ct == gin.MIMEMultipartPOSTForm || ct == gin.MIMEPOSTForm {
		req.AdminToken = c.PostForm("admin_token")
		req.Title = c.PostForm("title")
		req.Body = c.PostForm("body")
		req.URL = c.PostForm("url")
		if raw := c.PostForm("subscription_info"); raw != "" {
			req.SubscriptionInfo = json.RawMessage(raw)
		}
		if raw := c.PostForm("subscription_info_list"); raw != "" {
			req.SubscriptionInfoList = json.RawMessage(raw)
		}
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid push request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return pushRequest{}, false
	}
	return req, true
}

// authorize valida el admin token antes de tocar el icono subido.
func (h *PushHandler) authorize(c *gin.Context, req pushRequest) bool {
	if err := h.pushServ.Authorize(c.Request.Context(), req.AdminToken); err != nil {
		writeServiceError(c, h.logger, err, "could not authorize request")
		return false
	}
	return true
}

// notification arma la notificacion; un icono que no se puede procesar se omite
// salvo que el tipo no sea JPEG o PNG.
func (h *PushHandler) notification(c *gin.Context, req pushRequest) (domain.Notification, bool) {
	n := domain.Notification{
		Title: strings.TrimSpace(req.Title),
		Body:  strings.TrimSpace(req.Body),
		URL:   strings.TrimSpace(req.URL),
	}
	header, err := c.FormFile("icon")
	if err != nil {
		return n, true
	}
	f, err := header.Open()
	if err != nil {
		h.logger.Warn("open icon failed", zap.Error(err))
		return n, true
	}
	defer f.Close()

	icon, err := push.PrepareIcon(f)
	switch {
	case errors.Is(err, push.ErrUnsupportedIcon):
		writeServiceError(c, h.logger, err, "could not process icon")
		return domain.Notification{}, false
	case err != nil:
		h.logger.Warn("icon processing failed, sending without icon", zap.Error(err))
	default:
		n.Icon = icon
	}
	return n, true
}

// decodeLenient acepta el valor JSON directo o un string que contiene JSON.
func decodeLenient(raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return err
		}
		raw = []byte(inner)
	}
	return json.Unmarshal(raw, dst)
}
