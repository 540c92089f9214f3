package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client は Mercado Pago Point（決済端末）APIの薄いラッパー。
// レスポンスはステータスと本文をそのまま返す（プロキシとして中継するため）。
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL string, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// トークン未設定なら呼ばない
func (c *Client) Configured() bool {
	return c.token != ""
}

type paymentOptions struct {
	Installments int    `json:"installments"`
	Type         string `json:"type"`
}

type paymentIntentRequest struct {
	Amount      float64        `json:"amount"`
	Description string         `json:"description"`
	Payment     paymentOptions `json:"payment"`
}

// CreatePaymentIntent は端末に支払いを送る。同じ注文の二重送信はidempotencyKeyで防ぐ
func (c *Client) CreatePaymentIntent(ctx context.Context, deviceID string, amount float64, description string, idempotencyKey string) (int, []byte, error) {
	body, err := json.Marshal(paymentIntentRequest{
		Amount:      amount,
		Description: description,
		Payment:     paymentOptions{Installments: 1, Type: "credit_card"},
	})
	if err != nil {
		return 0, nil, fmt.Errorf("marshal payment intent: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.intentsURL(deviceID), bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}
	return c.do(req)
}

func (c *Client) GetPaymentIntent(ctx context.Context, deviceID string, intentID string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.intentsURL(deviceID)+"/"+intentID, nil)
	if err != nil {
		return 0, nil, err
	}
	return c.do(req)
}

func (c *Client) intentsURL(deviceID string) string {
	return fmt.Sprintf("%s/%s/payment_intents", c.baseURL, deviceID)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("mercadopago request: %w", err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("read mercadopago response: %w", err)
	}
	return res.StatusCode, b, nil
}
