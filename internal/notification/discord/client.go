package discord

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/assist-by/chartdesk/internal/notification"
)

// Client는 Discord 웹훅 클라이언트입니다
type Client struct {
	tradeWebhook string
	errorWebhook string
	infoWebhook  string
	client       *http.Client
}

var _ notification.Notifier = (*Client)(nil)

// ClientOption은 클라이언트 설정 함수입니다
type ClientOption func(*Client)

// WithTimeout은 HTTP 요청 타임아웃을 설정합니다
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// WithHTTPClient는 HTTP 클라이언트를 교체합니다
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.client = h
	}
}

// NewClient는 새로운 Discord 클라이언트를 생성합니다
// 비어 있는 웹훅 주소로 가는 알림은 전송하지 않습니다
func NewClient(tradeWebhook, errorWebhook, infoWebhook string, opts ...ClientOption) *Client {
	c := &Client{
		tradeWebhook: tradeWebhook,
		errorWebhook: errorWebhook,
		infoWebhook:  infoWebhook,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sendToWebhook은 웹훅으로 메시지를 전송합니다
func (c *Client) sendToWebhook(webhookURL string, msg WebhookMessage) error {
	if webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("메시지 마샬링 실패: %w", err)
	}

	resp, err := c.client.Post(webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("웹훅 전송 실패: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("웹훅 응답 오류 (상태 코드: %d): %s", resp.StatusCode, string(body))
	}
	return nil
}
