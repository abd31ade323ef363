package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/funlifew/Push-Notification-Server/internal/config"
)

// KavenegarSender usa el endpoint verify/lookup de Kavenegar con una plantilla del panel.
type KavenegarSender struct {
	apiKey   string
	template string
	baseURL  string
	client   *http.Client
}

type kavenegarResponse struct {
	Return struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"return"`
}

func NewKavenegarSender(cfg config.KavenegarConfig) (*KavenegarSender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("kavenegar api key is required")
	}
	if strings.TrimSpace(cfg.Template) == "" {
		return nil, fmt.Errorf("kavenegar template is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.kavenegar.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KavenegarSender{
		apiKey:   cfg.APIKey,
		template: cfg.Template,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (s *KavenegarSender) SendOTP(ctx context.Context, phoneNumber string, code string) error {
	if strings.TrimSpace(phoneNumber) == "" {
		return fmt.Errorf("receptor is required")
	}

	form := url.Values{}
	form.Set("receptor", phoneNumber)
	form.Set("token", code)
	form.Set("template", s.template)
	form.Set("type", "sms")

	endpoint := fmt.Sprintf("%s/%s/verify/lookup.json", s.baseURL, url.PathEscape(s.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build kavenegar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("kavenegar http error: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed kavenegarResponse
	_ = json.Unmarshal(body, &parsed)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kavenegar api error: status=%d message=%q", resp.StatusCode, parsed.Return.Message)
	}
	if parsed.Return.Status != 0 && parsed.Return.Status != http.StatusOK {
		return fmt.Errorf("kavenegar api error: status=%d message=%q", parsed.Return.Status, parsed.Return.Message)
	}
	return nil
}
