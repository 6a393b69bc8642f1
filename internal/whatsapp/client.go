// Package whatsapp is the outbound send gateway client (Evolution API style).
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"whatsapp_crm_backend/platform/config"
	"whatsapp_crm_backend/platform/logger"
	"whatsapp_crm_backend/platform/phone"
)

const presenceComposing = "composing"

// StatusError is returned when the gateway answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("whatsapp gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("whatsapp gateway returned %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL  string
	apiKey   string
	instance string
	delay    time.Duration
	region   string
	http     *http.Client
	log      *logger.Logger
}

type sendTextOptions struct {
	Delay    int64  `json:"delay"`
	Presence string `json:"presence"`
}

type textMessage struct {
	Text string `json:"text"`
}

type sendTextRequest struct {
	Number      string          `json:"number"`
	Options     sendTextOptions `json:"options"`
	TextMessage textMessage     `json:"textMessage"`
}

type sendTextResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

// NewClient returns nil when the gateway is not fully configured.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if cfg.GetWhatsAppURL() == "" || cfg.GetWhatsAppKey() == "" || cfg.GetWhatsAppInstance() == "" {
		return nil
	}

	timeout := cfg.GetWhatsAppSendTimeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		apiKey:   cfg.GetWhatsAppKey(),
		instance: cfg.GetWhatsAppInstance(),
		delay:    cfg.GetWhatsAppPresenceDelay(),
		region:   cfg.GetPhoneDefaultRegion(),
		http:     &http.Client{Timeout: timeout},
		log:      log.Component("whatsapp"),
	}
}

// SendText delivers a text message and returns the provider message id, which
// is empty when the gateway does not report one. Any non-2xx answer is a *StatusError.
func (c *Client) SendText(ctx context.Context, phoneNumber string, text string) (string, error) {
	normalized := phone.DigitsIn(phoneNumber, c.region)
	if normalized == "" {
		return "", fmt.Errorf("whatsapp: empty phone number")
	}

	payload := sendTextRequest{
		Number:      normalized,
		Options:     sendTextOptions{Delay: c.delay.Milliseconds(), Presence: presenceComposing},
		TextMessage: textMessage{Text: text},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, url.PathEscape(c.instance))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var sent sendTextResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&sent); err != nil && !errors.Is(err, io.EOF) {
		c.log.WithContext(ctx).Warn("whatsapp send response not decoded", "phone", normalized, "error", err)
	}

	c.log.WithContext(ctx).Debug("whatsapp text sent", "phone", normalized, "messageId", sent.Key.ID)
	return sent.Key.ID, nil
}
